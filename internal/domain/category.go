package domain

import "errors"

var (
	// ErrCategoryNotFound is returned when looking up a non-existent category.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrNameTaken is returned when a category or item name is already in use.
	// Names are unique across all users.
	ErrNameTaken = errors.New("name taken")
)

// Category groups items and belongs to exactly one user.
type Category struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	UserID    int64  `db:"user_id"`
	CreatedAt int64  `db:"created_at"`
}

// OwnerID implements Owned.
func (c *Category) OwnerID() int64 {
	return c.UserID
}

// Response returns the JSON representation of the category.
func (c *Category) Response() CategoryResponse {
	return CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		UserID:    c.UserID,
		CreatedAt: FormatTimestamp(c.CreatedAt),
	}
}

// CategorySummary is a category together with the number of items it holds.
type CategorySummary struct {
	Category

	ItemCount int64 `db:"item_count"`
}

// CategoryResponse is the category as exposed by the JSON API.
type CategoryResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UserID    int64  `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

// SortOrder orders category listings by creation.
type SortOrder string

const (
	SortLatest SortOrder = "latest"
	SortOlder  SortOrder = "older"
)

// ParseSortOrder maps a query value to a SortOrder. Unknown values mean SortLatest.
func ParseSortOrder(value string) SortOrder {
	if SortOrder(value) == SortOlder {
		return SortOlder
	}

	return SortLatest
}
