package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

func TestCanModify(t *testing.T) {
	t.Parallel()

	owner := &domain.User{ID: 1, Username: "alice"}
	other := &domain.User{ID: 2, Username: "bob"}

	category := &domain.Category{ID: 10, Name: "Books", UserID: owner.ID}
	item := &domain.Item{ID: 20, Name: "Dune", CategoryID: category.ID, CategoryOwnerID: owner.ID}

	tests := []struct {
		name     string
		actor    *domain.User
		resource domain.Owned
		want     bool
	}{
		{name: "owner may modify category", actor: owner, resource: category, want: true},
		{name: "owner may modify item", actor: owner, resource: item, want: true},
		{name: "other user may not modify category", actor: other, resource: category, want: false},
		{name: "other user may not modify item", actor: other, resource: item, want: false},
		{name: "anonymous may not modify", actor: nil, resource: category, want: false},
		{name: "nil resource", actor: owner, resource: nil, want: false},
		{name: "unsaved actor", actor: &domain.User{}, resource: &domain.Category{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, domain.CanModify(tt.actor, tt.resource))
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	t.Parallel()

	tests := map[string]domain.SortOrder{
		"latest":  domain.SortLatest,
		"older":   domain.SortOlder,
		"":        domain.SortLatest,
		"oldest":  domain.SortLatest,
		"OLDER":   domain.SortLatest,
		"1; drop": domain.SortLatest,
	}

	for value, want := range tests {
		assert.Equal(t, want, domain.ParseSortOrder(value), "value %q", value)
	}
}

func TestItemDescriptionChanged(t *testing.T) {
	t.Parallel()

	item := &domain.Item{Description: "A desert&nbsp;planet"}

	assert.False(t, item.DescriptionChanged("A desert planet"))
	assert.False(t, item.DescriptionChanged("  A   desert planet&nbsp;"))
	assert.True(t, item.DescriptionChanged("A desert moon"))
}

func TestResponses(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: 3, Username: "alice", Email: "alice@x.com", Avatar: domain.DefaultAvatar, CreatedAt: 0}
	resp := user.Response()

	assert.Equal(t, int64(3), resp.ID)
	assert.Equal(t, "1970-01-01T00:00:00Z", resp.CreatedAt)
	assert.True(t, user.HasDefaultAvatar())

	category := &domain.Category{ID: 1, Name: "Books", UserID: 3, CreatedAt: 86400}
	assert.Equal(t, "1970-01-02T00:00:00Z", category.Response().CreatedAt)
}
