package user

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

// Repository defines the interface for user data persistence.
type Repository interface {
	// Create inserts the user and sets its ID and CreatedAt.
	// Returns domain.ErrUsernameTaken or domain.ErrEmailTaken on conflicts.
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns domain.ErrUserNotFound if there is no such user.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername returns domain.ErrUserNotFound if there is no such user.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail matches case-insensitively and returns domain.ErrUserNotFound if there is no such user.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update stores username, email and avatar of an existing user.
	Update(ctx context.Context, user *domain.User) error
}

// RepositoryFactory binds a Repository to a connection pool or transaction.
type RepositoryFactory func(db sqlx.ExtContext) Repository
