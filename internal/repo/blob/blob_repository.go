package blob

import (
	"context"
	"errors"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

// ErrInvalidName is returned for names that are empty or would leave the storage directory.
var ErrInvalidName = errors.New("invalid blob name")

// Repository defines the interface for blob storage operations.
type Repository interface {
	// Exists checks if a blob with the given name exists.
	Exists(ctx context.Context, name string) bool

	// Store persists a blob, replacing any blob with the same name.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch retrieves a blob by its name.
	// The error wraps os.ErrNotExist if there is no such blob.
	Fetch(ctx context.Context, name string) (*domain.Blob, error)

	// Delete removes a blob.
	// The error wraps os.ErrNotExist if there is no such blob.
	Delete(ctx context.Context, name string) error
}
