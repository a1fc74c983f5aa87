// Package catalogsvc implements reading and owner-only editing of categories and items.
package catalogsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/repo/category"
	"github.com/mkrupp/itemcatalog/internal/repo/item"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
	"github.com/mkrupp/itemcatalog/internal/repo/user"
)

// NoCategory is the select value meaning no category was chosen.
const NoCategory int64 = -1

const (
	noCategorySelected = "No Category Selected."
	noCategoriesYet    = "There's No Categories yet !"
)

// ItemInput holds the editable fields of an item.
type ItemInput struct {
	Name        string
	Description string
	CategoryID  int64
}

// ItemDetail is an item together with its category and the category's owner.
type ItemDetail struct {
	Item     *domain.Item
	Category *domain.Category
	Owner    *domain.User
}

// Stats counts what a user has created.
type Stats struct {
	Categories int64
	Items      int64
}

// Choice is one option of the category select of item forms.
type Choice struct {
	Value int64
	Label string
}

// CatalogService reads and mutates categories and items. Every mutation runs
// in one transaction and checks ownership with domain.CanModify.
type CatalogService struct {
	store      *store.Store
	categories category.RepositoryFactory
	items      item.RepositoryFactory
	users      user.RepositoryFactory
	log        logging.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	db *store.Store,
	categories category.RepositoryFactory,
	items item.RepositoryFactory,
	users user.RepositoryFactory,
) *CatalogService {
	return &CatalogService{
		store:      db,
		categories: categories,
		items:      items,
		users:      users,
		log:        logging.GetLogger("svc.catalogsvc.catalog_service"),
	}
}

// ListCategories returns all categories, newest first.
func (svc *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := svc.categories(svc.store.DB()).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}

// GetCategory returns domain.ErrCategoryNotFound if there is no such category.
func (svc *CatalogService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c, err := svc.categories(svc.store.DB()).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	return c, nil
}

// CategoryItems returns a category and its items, newest first.
func (svc *CatalogService) CategoryItems(ctx context.Context, id int64) (*domain.Category, []domain.Item, error) {
	db := svc.store.DB()

	c, err := svc.categories(db).GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get category: %w", err)
	}

	items, err := svc.items(db).ListByCategory(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list items: %w", err)
	}

	return c, items, nil
}

// GetItem returns the item itemID of category categoryID with its category and owner.
// Returns domain.ErrItemNotFound if the item does not exist in that category.
func (svc *CatalogService) GetItem(ctx context.Context, categoryID, itemID int64) (*ItemDetail, error) {
	db := svc.store.DB()

	i, err := svc.items(db).GetInCategory(ctx, categoryID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	c, err := svc.categories(db).GetByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	owner, err := svc.users(db).GetByID(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}

	return &ItemDetail{Item: i, Category: c, Owner: owner}, nil
}

// UserCategories lists the categories of userID with item counts in the given order.
func (svc *CatalogService) UserCategories(
	ctx context.Context,
	userID int64,
	order domain.SortOrder,
) ([]domain.CategorySummary, error) {
	categories, err := svc.categories(svc.store.DB()).ListByUser(ctx, userID, order)
	if err != nil {
		return nil, fmt.Errorf("list user categories: %w", err)
	}

	return categories, nil
}

// Stats returns how many categories and items userID owns.
func (svc *CatalogService) Stats(ctx context.Context, userID int64) (Stats, error) {
	db := svc.store.DB()

	categories, err := svc.categories(db).CountByUser(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("count categories: %w", err)
	}

	items, err := svc.items(db).CountByUser(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("count items: %w", err)
	}

	return Stats{Categories: categories, Items: items}, nil
}

// CategoryChoices returns the options of the category select: a NoCategory
// placeholder followed by the user's categories, newest first, with item counts.
func (svc *CatalogService) CategoryChoices(ctx context.Context, userID int64) ([]Choice, error) {
	categories, err := svc.UserCategories(ctx, userID, domain.SortLatest)
	if err != nil {
		return nil, err
	}

	placeholder := noCategorySelected
	if len(categories) == 0 {
		placeholder = noCategoriesYet
	}

	choices := make([]Choice, 0, len(categories)+1)
	choices = append(choices, Choice{Value: NoCategory, Label: placeholder})

	for _, c := range categories {
		choices = append(choices, Choice{
			Value: c.ID,
			Label: fmt.Sprintf("%s - [%d]", c.Name, c.ItemCount),
		})
	}

	return choices, nil
}

// CategoryNameTaken reports whether name is used by a category other than exceptID.
func (svc *CatalogService) CategoryNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	c, err := svc.categories(svc.store.DB()).GetByName(ctx, name)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("get category: %w", err)
	}

	return c.ID != exceptID, nil
}

// ItemNameTaken reports whether name is used by an item other than exceptID.
func (svc *CatalogService) ItemNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	i, err := svc.items(svc.store.DB()).GetByName(ctx, name)
	if errors.Is(err, domain.ErrItemNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("get item: %w", err)
	}

	return i.ID != exceptID, nil
}

// OwnedCategory returns category id if actor may modify it.
// Returns domain.ErrCategoryNotFound or domain.ErrForbidden otherwise.
func (svc *CatalogService) OwnedCategory(ctx context.Context, actor *domain.User, id int64) (*domain.Category, error) {
	return ownedCategory(ctx, svc.categories(svc.store.DB()), actor, id)
}

func ownedCategory(
	ctx context.Context,
	categories category.Repository,
	actor *domain.User,
	id int64,
) (*domain.Category, error) {
	c, err := categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	if !domain.CanModify(actor, c) {
		return nil, fmt.Errorf("category %d: %w", id, domain.ErrForbidden)
	}

	return c, nil
}

// OwnedItem returns item itemID if actor may modify it and it belongs to categoryID.
// Returns domain.ErrItemNotFound, domain.ErrForbidden or, for a different
// category, domain.ErrCategoryNotFound.
func (svc *CatalogService) OwnedItem(
	ctx context.Context,
	actor *domain.User,
	categoryID, itemID int64,
) (*domain.Item, error) {
	return ownedItem(ctx, svc.items(svc.store.DB()), actor, categoryID, itemID)
}

func ownedItem(
	ctx context.Context,
	items item.Repository,
	actor *domain.User,
	categoryID, itemID int64,
) (*domain.Item, error) {
	i, err := items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	if !domain.CanModify(actor, i) {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrForbidden)
	}

	if i.CategoryID != categoryID {
		return nil, fmt.Errorf("item %d in category %d: %w", itemID, categoryID, domain.ErrCategoryNotFound)
	}

	return i, nil
}

// CreateCategory adds a category owned by actor.
func (svc *CatalogService) CreateCategory(ctx context.Context, actor *domain.User, name string) (c *domain.Category, err error) {
	log := svc.log.With(logging.Group("category", "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create category failed", "error", err)
		} else {
			log.InfoContext(ctx, "category created", "id", c.ID)
		}
	}()

	//nolint:exhaustruct
	c = &domain.Category{Name: name, UserID: actor.ID}

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		return svc.categories(tx).Create(ctx, c)
	}); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return c, nil
}

// RenameCategory renames a category of actor.
func (svc *CatalogService) RenameCategory(
	ctx context.Context,
	actor *domain.User,
	id int64,
	name string,
) (c *domain.Category, err error) {
	log := svc.log.With(logging.Group("category", "id", id, "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "rename category failed", "error", err)
		} else {
			log.InfoContext(ctx, "category renamed")
		}
	}()

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		categories := svc.categories(tx)

		if c, err = ownedCategory(ctx, categories, actor, id); err != nil {
			return err
		}

		if err := categories.Rename(ctx, id, name); err != nil {
			return fmt.Errorf("rename: %w", err)
		}

		c.Name = name

		return nil
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// DeleteCategory removes a category of actor together with all its items and
// returns the category and the number of removed items.
func (svc *CatalogService) DeleteCategory(
	ctx context.Context,
	actor *domain.User,
	id int64,
) (c *domain.Category, deletedItems int64, err error) {
	log := svc.log.With(logging.Group("category", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete category failed", "error", err)
		} else {
			log.InfoContext(ctx, "category deleted", "items", deletedItems)
		}
	}()

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		categories := svc.categories(tx)

		if c, err = ownedCategory(ctx, categories, actor, id); err != nil {
			return err
		}

		if deletedItems, err = svc.items(tx).DeleteByCategory(ctx, id); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		if err := categories.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}

		return nil
	}); err != nil {
		return nil, 0, err
	}

	return c, deletedItems, nil
}

// CreateItem adds an item to a category of actor.
func (svc *CatalogService) CreateItem(ctx context.Context, actor *domain.User, input ItemInput) (i *domain.Item, err error) {
	log := svc.log.With(logging.Group("item", "name", input.Name, "category", input.CategoryID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create item failed", "error", err)
		} else {
			log.InfoContext(ctx, "item created", "id", i.ID)
		}
	}()

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		c, err := ownedCategory(ctx, svc.categories(tx), actor, input.CategoryID)
		if err != nil {
			return err
		}

		//nolint:exhaustruct
		i = &domain.Item{
			Name:            input.Name,
			Description:     input.Description,
			CategoryID:      c.ID,
			CategoryOwnerID: c.UserID,
		}

		return svc.items(tx).Create(ctx, i)
	}); err != nil {
		return nil, err
	}

	return i, nil
}

// UpdateItem changes name, description and category of an item of actor.
// The target category must belong to actor as well.
func (svc *CatalogService) UpdateItem(
	ctx context.Context,
	actor *domain.User,
	categoryID, itemID int64,
	input ItemInput,
) (i *domain.Item, err error) {
	log := svc.log.With(logging.Group("item", "id", itemID, "category", input.CategoryID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update item failed", "error", err)
		} else {
			log.InfoContext(ctx, "item updated")
		}
	}()

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		items := svc.items(tx)

		if i, err = ownedItem(ctx, items, actor, categoryID, itemID); err != nil {
			return err
		}

		if input.CategoryID != i.CategoryID {
			if _, err := ownedCategory(ctx, svc.categories(tx), actor, input.CategoryID); err != nil {
				return err
			}
		}

		i.Name = input.Name
		i.Description = input.Description
		i.CategoryID = input.CategoryID

		return items.Update(ctx, i)
	}); err != nil {
		return nil, err
	}

	return i, nil
}

// DeleteItem removes an item of actor and returns it.
func (svc *CatalogService) DeleteItem(
	ctx context.Context,
	actor *domain.User,
	categoryID, itemID int64,
) (i *domain.Item, err error) {
	log := svc.log.With(logging.Group("item", "id", itemID, "category", categoryID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete item failed", "error", err)
		} else {
			log.InfoContext(ctx, "item deleted")
		}
	}()

	if err := svc.store.WithTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		items := svc.items(tx)

		if i, err = ownedItem(ctx, items, actor, categoryID, itemID); err != nil {
			return err
		}

		return items.Delete(ctx, itemID)
	}); err != nil {
		return nil, err
	}

	return i, nil
}
