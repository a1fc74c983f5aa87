// Package avatarsvc stores, serves and removes user avatar images.
package avatarsvc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	http_ "github.com/mkrupp/itemcatalog/internal/infra/transport/http"
	"github.com/mkrupp/itemcatalog/internal/repo/blob"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
	"github.com/mkrupp/itemcatalog/internal/repo/user"
)

const (
	// nameBytes is the number of random bytes in a generated avatar name.
	nameBytes = 50

	placeholderSize = 128
)

// AvatarService keeps avatar files in a blob repository.
type AvatarService struct {
	repo       blob.Repository
	store      *store.Store
	users      user.RepositoryFactory
	httpClient *http.Client
	cfg        AvatarConfig
	log        logging.Logger
}

// NewAvatarService creates a new AvatarService and makes sure the default avatar exists.
// If httpClient is nil, a client with cfg.FetchTimeout is used.
func NewAvatarService(
	ctx context.Context,
	repo blob.Repository,
	db *store.Store,
	users user.RepositoryFactory,
	httpClient *http.Client,
	cfg AvatarConfig,
) (*AvatarService, error) {
	if _, err := getInterpolatorByName(cfg.Interpolator); err != nil {
		return nil, err
	}

	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}

	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}

	svc := &AvatarService{
		repo:       repo,
		store:      db,
		users:      users,
		httpClient: httpClient,
		cfg:        cfg,
		log:        logging.GetLogger("svc.avatarsvc.avatar_service"),
	}

	if err := svc.ensureDefault(ctx); err != nil {
		return nil, fmt.Errorf("ensure default avatar: %w", err)
	}

	return svc, nil
}

func (svc *AvatarService) ensureDefault(ctx context.Context) error {
	if svc.repo.Exists(ctx, domain.DefaultAvatar) {
		return nil
	}

	data, err := placeholderImage(placeholderSize)
	if err != nil {
		return err
	}

	if err := svc.repo.Store(ctx, domain.NewBlob(domain.DefaultAvatar, data)); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

// GenerateName returns a random file name keeping the extension of original.
func GenerateName(original string) (string, error) {
	random := make([]byte, nameBytes)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return hex.EncodeToString(random) + strings.ToLower(filepath.Ext(original)), nil
}

// SaveUpload checks and stores an uploaded image and returns its generated name.
func (svc *AvatarService) SaveUpload(ctx context.Context, filename string, data []byte) (name string, err error) {
	log := svc.log.With(logging.Group("upload", "filename", filename, "size", len(data)))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "save upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "upload saved", "avatar", name)
		}
	}()

	if int64(len(data)) > svc.cfg.MaxSize {
		return "", domain.ErrImageTooLarge
	}

	imageType, err := checkUpload(filename, data)
	if err != nil {
		return "", fmt.Errorf("check upload: %w", err)
	}

	return svc.save(ctx, filename, imageType, data)
}

// SaveFromURL downloads an image and stores it under a generated name.
// The type is taken from the content, as profile picture URLs often carry no extension.
func (svc *AvatarService) SaveFromURL(ctx context.Context, rawURL string) (name string, err error) {
	log := svc.log.With(logging.Group("download", "url", rawURL))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "save from url failed", "error", err)
		} else {
			log.DebugContext(ctx, "download saved", "avatar", name)
		}
	}()

	data, err := svc.download(ctx, rawURL)
	if err != nil {
		return "", err
	}

	imageType, err := sniffType(data)
	if err != nil {
		return "", fmt.Errorf("sniff type: %w", err)
	}

	return svc.save(ctx, "avatar"+imageTypeExts[imageType], imageType, data)
}

func (svc *AvatarService) download(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrImageFetch, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(http_.TraceIDHeader, traceID)
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrImageFetch, fmt.Errorf("get: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrImageFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, svc.cfg.MaxSize+1))
	if err != nil {
		return nil, errors.Join(domain.ErrImageFetch, fmt.Errorf("read body: %w", err))
	}

	if int64(len(data)) > svc.cfg.MaxSize {
		return nil, domain.ErrImageTooLarge
	}

	return data, nil
}

func (svc *AvatarService) save(ctx context.Context, filename, imageType string, data []byte) (string, error) {
	shrunk, err := shrinkImage(data, imageType, svc.cfg.Width, svc.cfg.Interpolator, svc.cfg.MaxPixels)
	if err != nil {
		return "", fmt.Errorf("shrink image: %w", err)
	}

	name, err := GenerateName(filename)
	if err != nil {
		return "", err
	}

	if err := svc.repo.Store(ctx, domain.NewBlob(name, shrunk)); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	return name, nil
}

// Remove deletes the avatar file name. Removing the default avatar or a
// missing file is a no-op.
func (svc *AvatarService) Remove(ctx context.Context, name string) error {
	if name == "" || name == domain.DefaultAvatar {
		return nil
	}

	if err := svc.repo.Delete(ctx, name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}

	return nil
}

// Delete removes the avatar of u. It returns false without changes when u has
// the default avatar or the file is missing. With reset, the user's avatar is
// set back to the default and the file is removed once that is committed.
func (svc *AvatarService) Delete(ctx context.Context, u *domain.User, reset bool) (deleted bool, err error) {
	log := svc.log.With(logging.Group("user", "id", u.ID, "avatar", u.Avatar), "reset", reset)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete avatar failed", "error", err)
		} else {
			log.DebugContext(ctx, "delete avatar", "deleted", deleted)
		}
	}()

	if u.HasDefaultAvatar() || !svc.repo.Exists(ctx, u.Avatar) {
		return false, nil
	}

	if !reset {
		if err := svc.repo.Delete(ctx, u.Avatar); err != nil {
			return false, fmt.Errorf("delete blob: %w", err)
		}

		return true, nil
	}

	updated := *u
	updated.Avatar = domain.DefaultAvatar

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if err := svc.users(tx).Update(ctx, &updated); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		return nil
	}); err != nil {
		return false, err
	}

	previous := u.Avatar
	u.Avatar = domain.DefaultAvatar

	// the user no longer references the file, so a failed removal only leaves an orphan
	if err := svc.repo.Delete(ctx, previous); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnContext(ctx, "remove avatar file failed", "error", err)
	}

	return true, nil
}

// Fetch returns the avatar file name together with its content type.
func (svc *AvatarService) Fetch(ctx context.Context, name string) (*domain.Blob, string, error) {
	avatar, err := svc.repo.Fetch(ctx, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, blob.ErrInvalidName) {
			err = errors.Join(domain.ErrAvatarNotFound, err)
		}

		return nil, "", fmt.Errorf("fetch blob: %w", err)
	}

	return avatar, MIMETypeOf(name), nil
}
