package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
)

const selectUser = "SELECT id, username, email, password_hash, avatar, created_at FROM users"

// SQLiteUserRepository implements Repository on top of the catalog database.
type SQLiteUserRepository struct {
	db sqlx.ExtContext
}

var _ Repository = (*SQLiteUserRepository)(nil)

// NewSQLiteUserRepository binds the repository to db, which may be the pool or a transaction.
func NewSQLiteUserRepository(db sqlx.ExtContext) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// SQLiteUserRepositoryFactory implements RepositoryFactory.
func SQLiteUserRepositoryFactory(db sqlx.ExtContext) Repository {
	return NewSQLiteUserRepository(db)
}

// Create implements Repository.Create using SQLite.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	if user.Avatar == "" {
		user.Avatar = domain.DefaultAvatar
	}

	user.CreatedAt = time.Now().Unix()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, avatar, created_at) VALUES (?, ?, ?, ?, ?)",
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", conflictError(err))
	}

	if user.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	return nil
}

// GetByID implements Repository.GetByID using SQLite.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, selectUser+" WHERE id = ?", id)
}

// GetByUsername implements Repository.GetByUsername using SQLite.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.get(ctx, selectUser+" WHERE username = ?", username)
}

// GetByEmail implements Repository.GetByEmail using SQLite.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, selectUser+" WHERE email = ?", strings.ToLower(email))
}

func (r *SQLiteUserRepository) get(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User

	if err := sqlx.GetContext(ctx, r.db, &user, query, arg); err != nil {
		return nil, fmt.Errorf("query user: %w", store.NotFound(err, domain.ErrUserNotFound))
	}

	return &user, nil
}

// Update implements Repository.Update using SQLite.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)

	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET username = ?, email = ?, avatar = ? WHERE id = ?",
		user.Username,
		user.Email,
		user.Avatar,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", conflictError(err))
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func conflictError(err error) error {
	column, ok := store.UniqueViolation(err)
	if !ok {
		return err
	}

	switch column {
	case "users.email":
		return errors.Join(domain.ErrEmailTaken, err)
	default:
		return errors.Join(domain.ErrUsernameTaken, err)
	}
}
