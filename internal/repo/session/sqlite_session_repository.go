package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
)

// SQLiteSessionRepository keeps sessions in the catalog database.
type SQLiteSessionRepository struct {
	store *store.Store
	log   logging.Logger
	now   func() time.Time
}

var _ Repository = (*SQLiteSessionRepository)(nil)

// NewSQLiteSessionRepository creates a repository on the shared store.
func NewSQLiteSessionRepository(s *store.Store) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{
		store: s,
		log:   logging.GetLogger("repo.session.sqlite"),
		now:   time.Now,
	}
}

// Create implements Repository.Create using SQLite. Expired sessions are purged on the way.
func (r *SQLiteSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	//nolint:wrapcheck
	return r.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", r.now().Unix())
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}

		if n, _ := res.RowsAffected(); n > 0 {
			r.log.DebugContext(ctx, "expired sessions purged", "count", n)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sessions (id, user_id, persistent, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
			session.ID,
			session.UserID,
			session.Persistent,
			session.CreatedAt,
			session.ExpiresAt,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		return nil
	})
}

// Get implements Repository.Get using SQLite.
func (r *SQLiteSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session

	if err := sqlx.GetContext(ctx, r.store.DB(), &session,
		"SELECT id, user_id, persistent, created_at, expires_at FROM sessions WHERE id = ?", id,
	); err != nil {
		return nil, fmt.Errorf("query session: %w", store.NotFound(err, domain.ErrSessionNotFound))
	}

	if session.Expired(r.now()) {
		return nil, domain.ErrSessionNotFound
	}

	return &session, nil
}

// Delete implements Repository.Delete using SQLite.
func (r *SQLiteSessionRepository) Delete(ctx context.Context, id string) error {
	//nolint:wrapcheck
	return r.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}

		return nil
	})
}

// Close implements Repository.Close. The store is owned by the caller.
func (r *SQLiteSessionRepository) Close() error {
	return nil
}
