package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
)

var (
	ErrBytesWrittenMismatch = errors.New("bytes written mismatch")
	ErrBytesReadMismatch    = errors.New("bytes read mismatch")
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the directory holding the blobs
	Basedir string `env:"BASEDIR" default:"var/storage/avatars"`
}

// FileSystemRepository implements Repository with one file per blob in a single directory.
type FileSystemRepository struct {
	cfg FileSystemBlobRepositoryConfig
	log logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

// NewFileSystemBlobRepository creates the base directory if needed.
func NewFileSystemBlobRepository(
	ctx context.Context,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		cfg: cfg,
		log: logging.GetLogger("repo.blob.filesystem_repository").With(
			logging.Group("repo", "basedir", cfg.Basedir),
		),
	}

	if err := repo.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	return repo, nil
}

func (fsRepo *FileSystemRepository) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			fsRepo.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			fsRepo.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(fsRepo.cfg.Basedir, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

// GetFilename returns the full filesystem path for a blob with the given name.
func (fsRepo *FileSystemRepository) GetFilename(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(fsRepo.cfg.Basedir, name), nil
}

// Exists implements Repository.Exists.
func (fsRepo *FileSystemRepository) Exists(_ context.Context, name string) bool {
	filename, err := fsRepo.GetFilename(name)
	if err != nil {
		return false
	}

	info, err := os.Stat(filename)

	return err == nil && info.Mode().IsRegular()
}

// Store implements Repository.Store. The body is written to a temporary file
// and renamed into place so readers never observe a partial blob.
func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	log := fsRepo.log.With(logging.Group("blob", "name", blob.Name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	filename, err := fsRepo.GetFilename(blob.Name)
	if err != nil {
		return err
	}

	file, err := os.CreateTemp(fsRepo.cfg.Basedir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(file.Name())
		}
	}()

	written, err := blob.WriteTo(file)
	if err != nil {
		_ = file.Close()

		return fmt.Errorf("write: %w", err)
	} else if written != blob.Size() {
		_ = file.Close()

		return fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), written)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Chmod(file.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(file.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Fetch implements Repository.Fetch.
func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, name string) (blob *domain.Blob, err error) {
	log := fsRepo.log.With(logging.Group("blob", "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	filename, err := fsRepo.GetFilename(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	blob = domain.NewBlob(name, nil)
	if n, err := blob.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	} else if info, err := file.Stat(); err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	} else if n != info.Size() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrBytesReadMismatch, info.Size(), n)
	}

	return blob, nil
}

// Delete implements Repository.Delete.
func (fsRepo *FileSystemRepository) Delete(ctx context.Context, name string) (err error) {
	log := fsRepo.log.With(logging.Group("blob", "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	filename, err := fsRepo.GetFilename(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filename); err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}
