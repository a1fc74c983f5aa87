package websvc

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/svc/authsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/catalogsvc"
)

const (
	profileURL     = "/dashboard/profile/"
	categoriesURL  = "/dashboard/categories/"
	addCategoryURL = "/dashboard/add/category/"
	addItemURL     = "/dashboard/add/item/"
)

func editCategoryURL(id int64) string {
	return fmt.Sprintf("/dashboard/edit/category/%d", id)
}

func editItemURL(itemID, categoryID int64) string {
	return fmt.Sprintf("/dashboard/edit/item/%d/%d", itemID, categoryID)
}

// handleDashboard shows how many categories and items the actor owns.
func (ht *HTTPTransport) handleDashboard(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	stats, err := ht.catalog.Stats(r.Context(), actor.ID)
	if err != nil {
		return serverError(w, err)
	}

	return ht.render(w, r, "dashboard/statistics.html", page{Title: "Statistics", Data: stats}) //nolint:exhaustruct
}

// handleProfile renders and processes the profile form.
func (ht *HTTPTransport) handleProfile(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	if r.Method != http.MethodPost {
		form := &ProfileForm{Username: actor.Username, Email: actor.Email} //nolint:exhaustruct

		return ht.render(w, r, "dashboard/profile.html", page{Title: "Profile", Form: form}) //nolint:exhaustruct
	}

	r.Body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(ht.cfg.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return redirectFlash(w, r, profileURL, FlashDanger, msgAvatarTooLarge)
	}

	form := parseProfileForm(r)

	upload, err := readUpload(r, "avatar")
	if err != nil {
		return retry(w, r, profileURL, err)
	} else if upload != nil {
		form.AvatarFilename = upload.Filename
	}

	if form.Username == actor.Username && form.Email == actor.Email && upload == nil {
		return redirect(w, r, profileURL)
	}

	errs, err := form.Validate(r.Context(), ht.accounts, actor)
	if err != nil {
		return retry(w, r, profileURL, err)
	}

	if len(errs) == 0 {
		_, err = ht.accounts.UpdateProfile(r.Context(), actor, authsvc.ProfileUpdate{
			Username: form.Username,
			Email:    form.Email,
			Avatar:   upload,
		})

		switch {
		case errors.Is(err, domain.ErrUsernameTaken):
			errs.Add("username", msgUsernameTaken)
		case errors.Is(err, domain.ErrEmailTaken):
			errs.Add("email", msgEmailTaken)
		case errors.Is(err, domain.ErrImageTooLarge):
			errs.Add("avatar", msgAvatarTooLarge)
		case errors.Is(err, domain.ErrImageTypeNotSupported):
			errs.Add("avatar", msgAvatarExtension)
		case errors.Is(err, domain.ErrImageTypeMismatch):
			errs.Add("avatar", msgAvatarInvalid)
		case err != nil:
			return retry(w, r, profileURL, err)
		default:
			return redirectFlash(w, r, profileURL, FlashSuccess, "Your account has been updated !")
		}
	}

	return ht.render(w, r, "dashboard/profile.html", page{Title: "Profile", Form: form, Errors: errs}) //nolint:exhaustruct
}

// readUpload returns the uploaded file field, or nil when none was sent.
func readUpload(r *http.Request, field string) (*authsvc.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil //nolint:nilnil
	} else if err != nil {
		return nil, fmt.Errorf("form file: %w", err)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, nil //nolint:nilnil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &authsvc.Upload{Filename: header.Filename, Data: data}, nil
}

// handleDeleteAvatar resets the actor's avatar to the default.
func (ht *HTTPTransport) handleDeleteAvatar(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	deleted, err := ht.avatars.Delete(r.Context(), actor, true)
	if err != nil {
		return retry(w, r, profileURL, err)
	}

	if deleted {
		addFlash(w, r, FlashInfo, "Avatar deleted !")
	}

	return redirect(w, r, profileURL)
}

// handleAddCategory renders and processes the new category form.
func (ht *HTTPTransport) handleAddCategory(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	if r.Method != http.MethodPost {
		return ht.render(w, r, "dashboard/add_category.html", page{Title: "Add Category", Form: &CategoryForm{}}) //nolint:exhaustruct
	}

	if err := r.ParseForm(); err != nil {
		return retry(w, r, addCategoryURL, fmt.Errorf("parse form: %w", err))
	}

	form := parseCategoryForm(r)

	errs, err := form.Validate(r.Context(), ht.catalog, 0)
	if err != nil {
		return retry(w, r, addCategoryURL, err)
	}

	if len(errs) == 0 {
		_, err = ht.catalog.CreateCategory(r.Context(), actor, form.Name)

		switch {
		case errors.Is(err, domain.ErrNameTaken):
			errs.Add("name", msgCategoryTaken)
		case err != nil:
			return retry(w, r, addCategoryURL, err)
		default:
			return redirectFlash(w, r, addCategoryURL, FlashSuccess, "Created Category: "+form.Name)
		}
	}

	return ht.render(w, r, "dashboard/add_category.html", page{Title: "Add Category", Form: form, Errors: errs}) //nolint:exhaustruct
}

// itemPage is the data of the add and edit item pages.
type itemPage struct {
	Choices  []catalogsvc.Choice
	Selected int64
}

// handleAddItem renders and processes the new item form.
func (ht *HTTPTransport) handleAddItem(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	choices, err := ht.catalog.CategoryChoices(r.Context(), actor.ID)
	if err != nil {
		return serverError(w, err)
	}

	if r.Method != http.MethodPost {
		form := &ItemForm{CategoryID: catalogsvc.NoCategory} //nolint:exhaustruct

		return ht.render(w, r, "dashboard/add_item.html", page{ //nolint:exhaustruct
			Title: "Add Item",
			Form:  form,
			Data:  itemPage{Choices: choices, Selected: form.CategoryID},
		})
	}

	if err := r.ParseForm(); err != nil {
		return retry(w, r, addItemURL, fmt.Errorf("parse form: %w", err))
	}

	form := parseItemForm(r)

	errs, err := form.Validate(r.Context(), ht.catalog, ht.catalog, actor, 0)
	if err != nil {
		return retry(w, r, addItemURL, err)
	}

	if len(errs) == 0 {
		_, err = ht.catalog.CreateItem(r.Context(), actor, form.Input())

		switch {
		case errors.Is(err, domain.ErrNameTaken):
			errs.Add("name", msgItemTaken)
		case errors.Is(err, domain.ErrCategoryNotFound):
			errs.Add("category", msgInvalidCategory)
		case errors.Is(err, domain.ErrForbidden):
			errs.Add("category", msgForeignCategory)
		case err != nil:
			return retry(w, r, addItemURL, err)
		default:
			return redirectFlash(w, r, addItemURL, FlashSuccess, fmt.Sprintf("Item %s Created", form.Name))
		}
	}

	return ht.render(w, r, "dashboard/add_item.html", page{ //nolint:exhaustruct
		Title:  "Add Item",
		Form:   form,
		Errors: errs,
		Data:   itemPage{Choices: choices, Selected: form.CategoryID},
	})
}

// categoriesPage is the data of the category listing.
type categoriesPage struct {
	Categories []domain.CategorySummary
	SortBy     string
}

// handleCategories lists the actor's categories, sorted by sort_by.
func (ht *HTTPTransport) handleCategories(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	order := domain.ParseSortOrder(r.URL.Query().Get("sort_by"))

	categories, err := ht.catalog.UserCategories(r.Context(), actor.ID, order)
	if err != nil {
		return serverError(w, err)
	}

	return ht.render(w, r, "dashboard/categories.html", page{ //nolint:exhaustruct
		Title: "Categories",
		Data:  categoriesPage{Categories: categories, SortBy: string(order)},
	})
}

// guardCategory answers ownership check failures of category routes.
func guardCategory(w http.ResponseWriter, r *http.Request, err error) error {
	if errors.Is(err, domain.ErrCategoryNotFound) || errors.Is(err, domain.ErrForbidden) {
		return redirectFlash(w, r, categoriesURL, FlashDanger, flashInvalidCategory)
	}

	return retry(w, r, categoriesURL, err)
}

// guardItem answers ownership check failures of item routes.
func guardItem(w http.ResponseWriter, r *http.Request, categoryID int64, err error) error {
	target := categoryItemsURL(categoryID)

	switch {
	case errors.Is(err, domain.ErrCategoryNotFound):
		return redirectFlash(w, r, target, FlashDanger, flashInvalidCategory)
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrForbidden):
		return redirectFlash(w, r, target, FlashDanger, flashInvalidItem)
	default:
		return retry(w, r, target, err)
	}
}

// handleEditCategory renders and processes the rename form of an owned category.
func (ht *HTTPTransport) handleEditCategory(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	id := pathID(r, "id")

	c, err := ht.catalog.OwnedCategory(r.Context(), actor, id)
	if err != nil {
		return guardCategory(w, r, err)
	}

	if r.Method != http.MethodPost {
		return ht.render(w, r, "dashboard/edit_category.html", page{ //nolint:exhaustruct
			Title: "Edit Category",
			Form:  &CategoryForm{Name: c.Name},
		})
	}

	if err := r.ParseForm(); err != nil {
		return retry(w, r, editCategoryURL(id), fmt.Errorf("parse form: %w", err))
	}

	form := parseCategoryForm(r)
	if form.Name == c.Name {
		return redirect(w, r, editCategoryURL(id))
	}

	errs, err := form.Validate(r.Context(), ht.catalog, id)
	if err != nil {
		return retry(w, r, editCategoryURL(id), err)
	}

	if len(errs) == 0 {
		_, err = ht.catalog.RenameCategory(r.Context(), actor, id, form.Name)

		switch {
		case errors.Is(err, domain.ErrNameTaken):
			errs.Add("name", msgCategoryTaken)
		case err != nil:
			return guardCategory(w, r, err)
		default:
			return redirectFlash(w, r, editCategoryURL(id), FlashInfo, fmt.Sprintf("Updated to %s !", form.Name))
		}
	}

	return ht.render(w, r, "dashboard/edit_category.html", page{ //nolint:exhaustruct
		Title:  "Edit Category",
		Form:   form,
		Errors: errs,
	})
}

// handleEditItem renders and processes the edit form of an owned item.
func (ht *HTTPTransport) handleEditItem(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	categoryID, itemID := pathID(r, "id"), pathID(r, "itemID")

	i, err := ht.catalog.OwnedItem(r.Context(), actor, categoryID, itemID)
	if err != nil {
		return guardItem(w, r, categoryID, err)
	}

	choices, err := ht.catalog.CategoryChoices(r.Context(), actor.ID)
	if err != nil {
		return serverError(w, err)
	}

	if r.Method != http.MethodPost {
		form := &ItemForm{Name: i.Name, Description: i.Description, CategoryID: i.CategoryID}

		return ht.render(w, r, "dashboard/edit_item.html", page{ //nolint:exhaustruct
			Title: "Edit Item",
			Form:  form,
			Data:  itemPage{Choices: choices, Selected: form.CategoryID},
		})
	}

	if err := r.ParseForm(); err != nil {
		return retry(w, r, editItemURL(itemID, categoryID), fmt.Errorf("parse form: %w", err))
	}

	form := parseItemForm(r)
	if form.Name == i.Name && !i.DescriptionChanged(form.Description) && form.CategoryID == i.CategoryID {
		return redirect(w, r, editItemURL(itemID, categoryID))
	}

	errs, err := form.Validate(r.Context(), ht.catalog, ht.catalog, actor, itemID)
	if err != nil {
		return retry(w, r, editItemURL(itemID, categoryID), err)
	}

	if len(errs) == 0 {
		updated, err := ht.catalog.UpdateItem(r.Context(), actor, categoryID, itemID, form.Input())

		switch {
		case errors.Is(err, domain.ErrNameTaken):
			errs.Add("name", msgItemTaken)
		case err != nil:
			return guardItem(w, r, categoryID, err)
		default:
			return redirectFlash(w, r, editItemURL(itemID, updated.CategoryID), FlashSuccess, "Item have been Updated !")
		}
	}

	return ht.render(w, r, "dashboard/edit_item.html", page{ //nolint:exhaustruct
		Title:  "Edit Item",
		Form:   form,
		Errors: errs,
		Data:   itemPage{Choices: choices, Selected: form.CategoryID},
	})
}

// handleDeleteCategory deletes an owned category with all its items.
func (ht *HTTPTransport) handleDeleteCategory(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	c, deletedItems, err := ht.catalog.DeleteCategory(r.Context(), actor, pathID(r, "id"))
	if err != nil {
		return guardCategory(w, r, err)
	}

	message := fmt.Sprintf("Category %s have been deleted !", c.Name)
	if deletedItems > 0 {
		message = fmt.Sprintf("Category %s have been deleted and items [%d]", c.Name, deletedItems)
	}

	return redirectFlash(w, r, categoriesURL, FlashInfo, message)
}

// handleDeleteItem deletes an owned item.
func (ht *HTTPTransport) handleDeleteItem(w http.ResponseWriter, r *http.Request, actor *domain.User) error {
	categoryID := pathID(r, "id")

	i, err := ht.catalog.DeleteItem(r.Context(), actor, categoryID, pathID(r, "itemID"))
	if err != nil {
		return guardItem(w, r, categoryID, err)
	}

	return redirectFlash(w, r, categoryItemsURL(categoryID), FlashInfo, fmt.Sprintf("Item %s have been deleted", i.Name))
}
