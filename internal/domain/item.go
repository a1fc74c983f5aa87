package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrItemNotFound is returned when looking up a non-existent item.
var ErrItemNotFound = errors.New("item not found")

// ItemTimeLayout is how item pages print the creation time.
const ItemTimeLayout = "2006-01-02 15:04:05"

// Item belongs to a category. CategoryOwnerID is loaded with the item so
// ownership can be checked without a second query.
type Item struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	CategoryID      int64  `db:"category_id"`
	CreatedAt       int64  `db:"created_at"`
	CategoryOwnerID int64  `db:"owner_id"`
}

// OwnerID implements Owned.
func (i *Item) OwnerID() int64 {
	return i.CategoryOwnerID
}

// CreatedAtString formats CreatedAt with ItemTimeLayout in local time.
func (i *Item) CreatedAtString() string {
	return time.Unix(i.CreatedAt, 0).Format(ItemTimeLayout)
}

// DescriptionChanged compares descriptions ignoring &nbsp; entities and spaces,
// which rich text editors insert without a visible change.
func (i *Item) DescriptionChanged(description string) bool {
	return normalizeDescription(i.Description) != normalizeDescription(description)
}

func normalizeDescription(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", "")

	return strings.Join(strings.Fields(s), "")
}

// Response returns the JSON representation of the item.
func (i *Item) Response() ItemResponse {
	return ItemResponse{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		CategoryID:  i.CategoryID,
		CreatedAt:   FormatTimestamp(i.CreatedAt),
	}
}

// ItemResponse is the item as exposed by the JSON API.
type ItemResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id"`
	CreatedAt   string `json:"created_at"`
}
