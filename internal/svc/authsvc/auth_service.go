package authsvc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
	"github.com/mkrupp/itemcatalog/internal/repo/user"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 50

	// maxUsernameAttempts bounds the search for a free username on third-party sign-up.
	maxUsernameAttempts = 100
)

// ErrNoFreeUsername is returned when no unused username could be derived for a new account.
var ErrNoFreeUsername = errors.New("no free username")

// IDTokenVerifier verifies third-party ID tokens.
type IDTokenVerifier interface {
	Verify(ctx context.Context, raw string) (*domain.Identity, error)
}

// AvatarStore saves and removes avatar files.
type AvatarStore interface {
	// SaveUpload stores an uploaded image and returns its generated name.
	SaveUpload(ctx context.Context, filename string, data []byte) (string, error)

	// SaveFromURL downloads an image and returns its generated name.
	SaveFromURL(ctx context.Context, url string) (string, error)

	// Remove deletes an avatar file. Removing DefaultAvatar is a no-op.
	Remove(ctx context.Context, name string) error
}

// Upload is a file received from a form.
type Upload struct {
	Filename string
	Data     []byte
}

// ProfileUpdate holds the new values of a profile form.
type ProfileUpdate struct {
	Username string
	Email    string
	Avatar   *Upload
}

// AuthService provides user registration, credential checks and profile management.
type AuthService struct {
	Config   AuthConfig
	Store    *store.Store
	Users    user.RepositoryFactory
	Verifier IDTokenVerifier
	Avatars  AvatarStore
	Log      logging.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	db *store.Store,
	users user.RepositoryFactory,
	verifier IDTokenVerifier,
	avatars AvatarStore,
	cfg AuthConfig,
) *AuthService {
	return &AuthService{
		Config:   cfg,
		Store:    db,
		Users:    users,
		Verifier: verifier,
		Avatars:  avatars,
		Log:      logging.GetLogger("svc.authsvc.auth_service"),
	}
}

func (s *AuthService) hashPassword(password string) ([]byte, error) {
	cost := s.Config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return hash, nil
}

// Register creates a local account. The email is stored lowercased.
// Returns domain.ErrUsernameTaken or domain.ErrEmailTaken on conflicts.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (u *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user registered", "id", u.ID)
		}
	}()

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct
	u = &domain.User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Avatar:       domain.DefaultAvatar,
	}

	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		return s.Users(tx).Create(ctx, u)
	}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (u *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "authenticate failed", "error", err)
		} else {
			log.DebugContext(ctx, "authenticated")
		}
	}()

	u, err = s.Users(s.Store.DB()).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, errors.Join(domain.ErrInvalidCredentials, err)
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, errors.Join(domain.ErrInvalidCredentials, err)
	}

	return u, nil
}

// SignInThirdParty verifies idToken and returns the account of its email,
// creating it when absent. created reports whether a new account was made.
// A new account needs a non-empty password, else domain.ErrPasswordRequired.
func (s *AuthService) SignInThirdParty(
	ctx context.Context,
	idToken, password string,
) (u *domain.User, identity *domain.Identity, created bool, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "third-party sign-in failed", "error", err)
		} else {
			log.InfoContext(ctx, "third-party sign-in", "id", u.ID, "created", created)
		}
	}()

	identity, err = s.Verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, nil, false, fmt.Errorf("verify id token: %w", err)
	}

	log = log.With(logging.Group("identity", "email", identity.Email))

	u, err = s.Users(s.Store.DB()).GetByEmail(ctx, identity.Email)
	if err == nil {
		return u, identity, false, nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, false, fmt.Errorf("get user: %w", err)
	}

	if password == "" {
		return nil, nil, false, domain.ErrPasswordRequired
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, nil, false, err
	}

	avatar := s.fetchAvatar(ctx, identity.Picture)

	//nolint:exhaustruct
	u = &domain.User{
		Email:        strings.ToLower(identity.Email),
		PasswordHash: hash,
		Avatar:       avatar,
	}

	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		users := s.Users(tx)

		username, err := freeUsername(ctx, users, usernameBase(identity))
		if err != nil {
			return err
		}

		u.Username = username

		return users.Create(ctx, u)
	}); err != nil {
		s.removeAvatar(ctx, avatar)

		return nil, nil, false, fmt.Errorf("create user: %w", err)
	}

	return u, identity, true, nil
}

func (s *AuthService) fetchAvatar(ctx context.Context, picture string) string {
	if picture == "" || s.Avatars == nil {
		return domain.DefaultAvatar
	}

	name, err := s.Avatars.SaveFromURL(ctx, picture)
	if err != nil {
		s.Log.WarnContext(ctx, "using default avatar", "error", err)

		return domain.DefaultAvatar
	}

	return name
}

func (s *AuthService) removeAvatar(ctx context.Context, name string) {
	if name == "" || name == domain.DefaultAvatar || s.Avatars == nil {
		return
	}

	if err := s.Avatars.Remove(ctx, name); err != nil {
		s.Log.WarnContext(ctx, "remove avatar failed", "avatar", name, "error", err)
	}
}

func usernameBase(identity *domain.Identity) string {
	base := strings.TrimSpace(identity.GivenName)
	if utf8.RuneCountInString(base) < minUsernameLen {
		base, _, _ = strings.Cut(identity.Email, "@")
	}

	if utf8.RuneCountInString(base) < minUsernameLen {
		base = "user"
	}

	// leave room for a numeric suffix
	if runes := []rune(base); len(runes) > maxUsernameLen-3 {
		base = string(runes[:maxUsernameLen-3])
	}

	return base
}

func freeUsername(ctx context.Context, users user.Repository, base string) (string, error) {
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = base + strconv.Itoa(attempt)
		}

		_, err := users.GetByUsername(ctx, candidate)
		if errors.Is(err, domain.ErrUserNotFound) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("get user: %w", err)
		}
	}

	return "", fmt.Errorf("%w: %q", ErrNoFreeUsername, base)
}

// CheckUser reports whether an account with email exists.
func (s *AuthService) CheckUser(ctx context.Context, email string) (bool, error) {
	_, err := s.Users(s.Store.DB()).GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}

	return true, nil
}

// UsernameTaken reports whether username belongs to a user other than exceptID.
func (s *AuthService) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	u, err := s.Users(s.Store.DB()).GetByUsername(ctx, username)

	return taken(u, err, exceptID)
}

// EmailTaken reports whether email belongs to a user other than exceptID.
func (s *AuthService) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	u, err := s.Users(s.Store.DB()).GetByEmail(ctx, email)

	return taken(u, err, exceptID)
}

func taken(u *domain.User, err error, exceptID int64) (bool, error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}

	return u.ID != exceptID, nil
}

// UpdateProfile stores new username, email and optionally a new avatar of actor.
// The previous avatar file is removed once the update is committed.
func (s *AuthService) UpdateProfile(
	ctx context.Context,
	actor *domain.User,
	update ProfileUpdate,
) (u *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "id", actor.ID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update profile failed", "error", err)
		} else {
			log.InfoContext(ctx, "profile updated")
		}
	}()

	updated := *actor
	updated.Username = update.Username
	updated.Email = strings.ToLower(update.Email)

	if update.Avatar != nil {
		name, err := s.Avatars.SaveUpload(ctx, update.Avatar.Filename, update.Avatar.Data)
		if err != nil {
			return nil, fmt.Errorf("save avatar: %w", err)
		}

		updated.Avatar = name
	}

	if err := s.Store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		return s.Users(tx).Update(ctx, &updated)
	}); err != nil {
		if updated.Avatar != actor.Avatar {
			s.removeAvatar(ctx, updated.Avatar)
		}

		return nil, fmt.Errorf("update user: %w", err)
	}

	if updated.Avatar != actor.Avatar {
		s.removeAvatar(ctx, actor.Avatar)
	}

	return &updated, nil
}
