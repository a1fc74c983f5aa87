// Package session persists server side sign-in sessions.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
)

// Repository stores sessions by id.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *domain.Session) error

	// Get returns domain.ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the repository.
	Close() error
}

// Config selects and configures the session backend.
type Config struct {
	// Backend is "sqlite" or "redis"
	Backend string `env:"BACKEND" default:"sqlite"`

	Redis RedisConfig `envPrefix:"REDIS_"`
}

// ErrUnknownBackend is returned for an unsupported Config.Backend.
var ErrUnknownBackend = errors.New("unknown session backend")

// NewRepository creates the backend selected by cfg. The SQLite backend shares db.
func NewRepository(ctx context.Context, cfg Config, db *store.Store) (Repository, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteSessionRepository(db), nil
	case "redis":
		repo, err := NewRedisSessionRepository(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("new redis session repository: %w", err)
		}

		return repo, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
