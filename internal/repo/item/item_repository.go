// Package item persists items.
package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
)

// selectItem joins the owning category so every loaded item knows its owner.
const selectItem = `
	SELECT i.id, i.name, i.description, i.category_id, i.created_at, c.user_id AS owner_id
	FROM items i
	JOIN categories c ON c.id = i.category_id`

// Repository defines the interface for item persistence.
type Repository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	// GetInCategory returns domain.ErrItemNotFound unless the item belongs to categoryID.
	GetInCategory(ctx context.Context, categoryID, id int64) (*domain.Item, error)
	GetByName(ctx context.Context, name string) (*domain.Item, error)
	// ListByCategory returns the category's items, newest first.
	ListByCategory(ctx context.Context, categoryID int64) ([]domain.Item, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id int64) error
	// DeleteByCategory removes every item of the category and returns how many were removed.
	DeleteByCategory(ctx context.Context, categoryID int64) (int64, error)
}

// RepositoryFactory binds a Repository to a connection pool or transaction.
type RepositoryFactory func(db sqlx.ExtContext) Repository

// SQLiteItemRepository implements Repository using SQLite.
type SQLiteItemRepository struct {
	db sqlx.ExtContext
}

var _ Repository = (*SQLiteItemRepository)(nil)

// NewSQLiteItemRepository binds the repository to db.
func NewSQLiteItemRepository(db sqlx.ExtContext) *SQLiteItemRepository {
	return &SQLiteItemRepository{db: db}
}

// SQLiteItemRepositoryFactory implements RepositoryFactory.
func SQLiteItemRepositoryFactory(db sqlx.ExtContext) Repository {
	return NewSQLiteItemRepository(db)
}

func (r *SQLiteItemRepository) Create(ctx context.Context, item *domain.Item) error {
	item.CreatedAt = time.Now().Unix()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO items (name, description, category_id, created_at) VALUES (?, ?, ?, ?)",
		item.Name,
		item.Description,
		item.CategoryID,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", writeError(err))
	}

	if item.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	return nil
}

func (r *SQLiteItemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	return r.get(ctx, selectItem+" WHERE i.id = ?", id)
}

func (r *SQLiteItemRepository) GetInCategory(ctx context.Context, categoryID, id int64) (*domain.Item, error) {
	return r.get(ctx, selectItem+" WHERE i.id = ? AND i.category_id = ?", id, categoryID)
}

func (r *SQLiteItemRepository) GetByName(ctx context.Context, name string) (*domain.Item, error) {
	return r.get(ctx, selectItem+" WHERE i.name = ?", name)
}

func (r *SQLiteItemRepository) get(ctx context.Context, query string, args ...any) (*domain.Item, error) {
	var item domain.Item

	if err := sqlx.GetContext(ctx, r.db, &item, query, args...); err != nil {
		return nil, fmt.Errorf("query item: %w", store.NotFound(err, domain.ErrItemNotFound))
	}

	return &item, nil
}

func (r *SQLiteItemRepository) ListByCategory(ctx context.Context, categoryID int64) ([]domain.Item, error) {
	items := []domain.Item{}

	if err := sqlx.SelectContext(ctx, r.db, &items,
		selectItem+" WHERE i.category_id = ? ORDER BY i.id DESC", categoryID,
	); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	return items, nil
}

func (r *SQLiteItemRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64

	if err := sqlx.GetContext(ctx, r.db, &count, `
		SELECT COUNT(*) FROM items i
		JOIN categories c ON c.id = i.category_id
		WHERE c.user_id = ?`, userID,
	); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}

	return count, nil
}

func (r *SQLiteItemRepository) Update(ctx context.Context, item *domain.Item) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE items SET name = ?, description = ?, category_id = ? WHERE id = ?",
		item.Name,
		item.Description,
		item.CategoryID,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", writeError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

func (r *SQLiteItemRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

func (r *SQLiteItemRepository) DeleteByCategory(ctx context.Context, categoryID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM items WHERE category_id = ?", categoryID)
	if err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}

func writeError(err error) error {
	switch {
	case store.ForeignKeyViolation(err):
		return errors.Join(domain.ErrCategoryNotFound, err)
	default:
		if _, ok := store.UniqueViolation(err); ok {
			return errors.Join(domain.ErrNameTaken, err)
		}

		return err
	}
}
