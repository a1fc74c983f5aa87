// Package category persists categories.
package category

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
)

// Repository defines the interface for category persistence.
type Repository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	// List returns all categories, newest first.
	List(ctx context.Context) ([]domain.Category, error)
	// ListByUser returns the user's categories with their item counts.
	ListByUser(ctx context.Context, userID int64, order domain.SortOrder) ([]domain.CategorySummary, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

// RepositoryFactory binds a Repository to a connection pool or transaction.
type RepositoryFactory func(db sqlx.ExtContext) Repository

// SQLiteCategoryRepository implements Repository using SQLite.
type SQLiteCategoryRepository struct {
	db sqlx.ExtContext
}

var _ Repository = (*SQLiteCategoryRepository)(nil)

// NewSQLiteCategoryRepository binds the repository to db.
func NewSQLiteCategoryRepository(db sqlx.ExtContext) *SQLiteCategoryRepository {
	return &SQLiteCategoryRepository{db: db}
}

// SQLiteCategoryRepositoryFactory implements RepositoryFactory.
func SQLiteCategoryRepositoryFactory(db sqlx.ExtContext) Repository {
	return NewSQLiteCategoryRepository(db)
}

func (r *SQLiteCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	category.CreatedAt = time.Now().Unix()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, user_id, created_at) VALUES (?, ?, ?)",
		category.Name,
		category.UserID,
		category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", conflictError(err))
	}

	if category.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	return nil
}

func (r *SQLiteCategoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	return r.get(ctx, "SELECT id, name, user_id, created_at FROM categories WHERE id = ?", id)
}

func (r *SQLiteCategoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.get(ctx, "SELECT id, name, user_id, created_at FROM categories WHERE name = ?", name)
}

func (r *SQLiteCategoryRepository) get(ctx context.Context, query string, arg any) (*domain.Category, error) {
	var category domain.Category

	if err := sqlx.GetContext(ctx, r.db, &category, query, arg); err != nil {
		return nil, fmt.Errorf("query category: %w", store.NotFound(err, domain.ErrCategoryNotFound))
	}

	return &category, nil
}

func (r *SQLiteCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	categories := []domain.Category{}

	if err := sqlx.SelectContext(ctx, r.db, &categories,
		"SELECT id, name, user_id, created_at FROM categories ORDER BY id DESC",
	); err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}

	return categories, nil
}

func (r *SQLiteCategoryRepository) ListByUser(
	ctx context.Context,
	userID int64,
	order domain.SortOrder,
) ([]domain.CategorySummary, error) {
	direction := "DESC"
	if order == domain.SortOlder {
		direction = "ASC"
	}

	categories := []domain.CategorySummary{}

	if err := sqlx.SelectContext(ctx, r.db, &categories, `
		SELECT c.id, c.name, c.user_id, c.created_at, COUNT(i.id) AS item_count
		FROM categories c
		LEFT JOIN items i ON i.category_id = c.id
		WHERE c.user_id = ?
		GROUP BY c.id
		ORDER BY c.id `+direction,
		userID,
	); err != nil {
		return nil, fmt.Errorf("select user categories: %w", err)
	}

	return categories, nil
}

func (r *SQLiteCategoryRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64

	if err := sqlx.GetContext(ctx, r.db, &count,
		"SELECT COUNT(*) FROM categories WHERE user_id = ?", userID,
	); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}

	return count, nil
}

func (r *SQLiteCategoryRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE categories SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("update category: %w", conflictError(err))
	}

	return expectRow(res)
}

// Delete removes the category row only; items must be removed first.
func (r *SQLiteCategoryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	return expectRow(res)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectRow(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return domain.ErrCategoryNotFound
	}

	return nil
}

func conflictError(err error) error {
	if _, ok := store.UniqueViolation(err); ok {
		return errors.Join(domain.ErrNameTaken, err)
	}

	return err
}
