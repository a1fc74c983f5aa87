package catalogsvc_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/repo/category"
	"github.com/mkrupp/itemcatalog/internal/repo/item"
	"github.com/mkrupp/itemcatalog/internal/repo/store/storetest"
	"github.com/mkrupp/itemcatalog/internal/repo/user"

	. "github.com/mkrupp/itemcatalog/internal/svc/catalogsvc"
)

type testEnv struct {
	svc   *CatalogService
	alice *domain.User
	bob   *domain.User
}

func setupTestService(t *testing.T) testEnv {
	t.Helper()

	db := storetest.Open(t)
	users := user.NewSQLiteUserRepository(db.DB())

	//nolint:exhaustruct
	alice := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: []byte("hash")}
	require.NoError(t, users.Create(context.Background(), alice))

	//nolint:exhaustruct
	bob := &domain.User{Username: "bob", Email: "bob@x.com", PasswordHash: []byte("hash")}
	require.NoError(t, users.Create(context.Background(), bob))

	svc := NewCatalogService(
		db,
		category.SQLiteCategoryRepositoryFactory,
		item.SQLiteItemRepositoryFactory,
		user.SQLiteUserRepositoryFactory,
	)

	return testEnv{svc: svc, alice: alice, bob: bob}
}

func TestCatalogService_DeleteCategoryCascades(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	books, err := env.svc.CreateCategory(ctx, env.alice, "Books")
	require.NoError(t, err)

	games, err := env.svc.CreateCategory(ctx, env.alice, "Games")
	require.NoError(t, err)

	for n := range 3 {
		_, err := env.svc.CreateItem(ctx, env.alice, ItemInput{
			Name:        fmt.Sprintf("Book %d", n),
			Description: "A book",
			CategoryID:  books.ID,
		})
		require.NoError(t, err)
	}

	_, err = env.svc.CreateItem(ctx, env.alice, ItemInput{Name: "Chess", Description: "A game", CategoryID: games.ID})
	require.NoError(t, err)

	deleted, count, err := env.svc.DeleteCategory(ctx, env.alice, books.ID)
	require.NoError(t, err)
	assert.Equal(t, "Books", deleted.Name)
	assert.Equal(t, int64(3), count)

	_, err = env.svc.GetCategory(ctx, books.ID)
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	stats, err := env.svc.Stats(ctx, env.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, Stats{Categories: 1, Items: 1}, stats)

	empty, err := env.svc.CreateCategory(ctx, env.alice, "Empty")
	require.NoError(t, err)

	_, count, err = env.svc.DeleteCategory(ctx, env.alice, empty.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCatalogService_NonOwnerCannotMutate(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	books, err := env.svc.CreateCategory(ctx, env.alice, "Books")
	require.NoError(t, err)

	dune, err := env.svc.CreateItem(ctx, env.alice, ItemInput{Name: "Dune", Description: "Sand", CategoryID: books.ID})
	require.NoError(t, err)

	bobs, err := env.svc.CreateCategory(ctx, env.bob, "Bob's")
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "rename category",
			call: func() error {
				_, err := env.svc.RenameCategory(ctx, env.bob, books.ID, "Mine")

				return err
			},
		},
		{
			name: "delete category",
			call: func() error {
				_, _, err := env.svc.DeleteCategory(ctx, env.bob, books.ID)

				return err
			},
		},
		{
			name: "add item to foreign category",
			call: func() error {
				_, err := env.svc.CreateItem(ctx, env.bob, ItemInput{Name: "X", Description: "x", CategoryID: books.ID})

				return err
			},
		},
		{
			name: "update item",
			call: func() error {
				_, err := env.svc.UpdateItem(ctx, env.bob, books.ID, dune.ID,
					ItemInput{Name: "Dune!", Description: "Sand", CategoryID: books.ID})

				return err
			},
		},
		{
			name: "move item into foreign category",
			call: func() error {
				_, err := env.svc.UpdateItem(ctx, env.alice, books.ID, dune.ID,
					ItemInput{Name: "Dune", Description: "Sand", CategoryID: bobs.ID})

				return err
			},
		},
		{
			name: "delete item",
			call: func() error {
				_, err := env.svc.DeleteItem(ctx, env.bob, books.ID, dune.ID)

				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.call(), domain.ErrForbidden)
		})
	}

	detail, err := env.svc.GetItem(ctx, books.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", detail.Item.Name)
	assert.Equal(t, "Books", detail.Category.Name)
	assert.Equal(t, env.alice.ID, detail.Owner.ID)
}

func TestCatalogService_OwnedItem(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	books, err := env.svc.CreateCategory(ctx, env.alice, "Books")
	require.NoError(t, err)

	games, err := env.svc.CreateCategory(ctx, env.alice, "Games")
	require.NoError(t, err)

	dune, err := env.svc.CreateItem(ctx, env.alice, ItemInput{Name: "Dune", Description: "Sand", CategoryID: books.ID})
	require.NoError(t, err)

	got, err := env.svc.OwnedItem(ctx, env.alice, books.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, dune.ID, got.ID)

	_, err = env.svc.OwnedItem(ctx, env.alice, games.ID, dune.ID)
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	_, err = env.svc.OwnedItem(ctx, env.alice, books.ID, dune.ID+100)
	require.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = env.svc.OwnedItem(ctx, nil, books.ID, dune.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.svc.OwnedCategory(ctx, env.bob, books.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.svc.OwnedCategory(ctx, env.alice, 999)
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func TestCatalogService_UpdateItemMovesCategory(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	books, err := env.svc.CreateCategory(ctx, env.alice, "Books")
	require.NoError(t, err)

	games, err := env.svc.CreateCategory(ctx, env.alice, "Games")
	require.NoError(t, err)

	chess, err := env.svc.CreateItem(ctx, env.alice, ItemInput{Name: "Chess", Description: "Board", CategoryID: books.ID})
	require.NoError(t, err)

	moved, err := env.svc.UpdateItem(ctx, env.alice, books.ID, chess.ID,
		ItemInput{Name: "Chess", Description: "Board game", CategoryID: games.ID})
	require.NoError(t, err)
	assert.Equal(t, games.ID, moved.CategoryID)

	_, items, err := env.svc.CategoryItems(ctx, games.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Board game", items[0].Description)

	_, items, err = env.svc.CategoryItems(ctx, books.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCatalogService_NamesAreGloballyUnique(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	books, err := env.svc.CreateCategory(ctx, env.alice, "Books")
	require.NoError(t, err)

	_, err = env.svc.CreateCategory(ctx, env.bob, "Books")
	require.ErrorIs(t, err, domain.ErrNameTaken)

	taken, err := env.svc.CategoryNameTaken(ctx, "Books", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = env.svc.CategoryNameTaken(ctx, "Books", books.ID)
	require.NoError(t, err)
	assert.False(t, taken, "the edited category may keep its name")

	dune, err := env.svc.CreateItem(ctx, env.alice, ItemInput{Name: "Dune", Description: "Sand", CategoryID: books.ID})
	require.NoError(t, err)

	taken, err = env.svc.ItemNameTaken(ctx, "Dune", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = env.svc.ItemNameTaken(ctx, "Dune", dune.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	renamed, err := env.svc.RenameCategory(ctx, env.alice, books.ID, "Novels")
	require.NoError(t, err)
	assert.Equal(t, "Novels", renamed.Name)
}

func TestCatalogService_UserCategoriesAndChoices(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)
	ctx := context.Background()

	choices, err := env.svc.CategoryChoices(ctx, env.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []Choice{{Value: NoCategory, Label: "There's No Categories yet !"}}, choices)

	books, err := env.svc.CreateCategory(ctx, env.alice, "Books")
	require.NoError(t, err)

	_, err = env.svc.CreateCategory(ctx, env.alice, "Games")
	require.NoError(t, err)

	_, err = env.svc.CreateItem(ctx, env.alice, ItemInput{Name: "Dune", Description: "Sand", CategoryID: books.ID})
	require.NoError(t, err)

	choices, err = env.svc.CategoryChoices(ctx, env.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []Choice{
		{Value: NoCategory, Label: "No Category Selected."},
		{Value: books.ID + 1, Label: "Games - [0]"},
		{Value: books.ID, Label: "Books - [1]"},
	}, choices)

	older, err := env.svc.UserCategories(ctx, env.alice.ID, domain.ParseSortOrder("older"))
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "Books", older[0].Name)

	unknown, err := env.svc.UserCategories(ctx, env.alice.ID, domain.ParseSortOrder("bogus"))
	require.NoError(t, err)
	require.Len(t, unknown, 2)
	assert.Equal(t, "Games", unknown[0].Name)

	all, err := env.svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := env.svc.UserCategories(ctx, env.bob.ID, domain.SortLatest)
	require.NoError(t, err)
	assert.Empty(t, none)
}
