package websvc

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

// handleMain lists all categories, newest first.
func (ht *HTTPTransport) handleMain(w http.ResponseWriter, r *http.Request) error {
	categories, err := ht.catalog.ListCategories(r.Context())
	if err != nil {
		return serverError(w, err)
	}

	return ht.render(w, r, "index.html", page{ //nolint:exhaustruct
		Title: "Home",
		Data: map[string]any{
			"Categories": categories,
			"Count":      len(categories),
		},
	})
}

// handleCategory lists the items of one category.
func (ht *HTTPTransport) handleCategory(w http.ResponseWriter, r *http.Request) error {
	c, items, err := ht.catalog.CategoryItems(r.Context(), pathID(r, "id"))
	if errors.Is(err, domain.ErrCategoryNotFound) {
		return redirectFlash(w, r, "/", FlashDanger, "Category Not Found.")
	} else if err != nil {
		return serverError(w, err)
	}

	return ht.render(w, r, "items.html", page{ //nolint:exhaustruct
		Title: c.Name,
		Data: map[string]any{
			"Category": c,
			"Items":    items,
		},
	})
}

// handleItem shows one item of a category.
func (ht *HTTPTransport) handleItem(w http.ResponseWriter, r *http.Request) error {
	categoryID := pathID(r, "id")

	detail, err := ht.catalog.GetItem(r.Context(), categoryID, pathID(r, "itemID"))
	if errors.Is(err, domain.ErrItemNotFound) || errors.Is(err, domain.ErrCategoryNotFound) {
		return redirectFlash(w, r, categoryItemsURL(categoryID), FlashDanger, "Item Not Found.")
	} else if err != nil {
		return serverError(w, err)
	}

	return ht.render(w, r, "item.html", page{ //nolint:exhaustruct
		Title: "item",
		Data: map[string]any{
			"Item":      detail.Item,
			"Category":  detail.Category,
			"Owner":     detail.Owner,
			"CreatedAt": detail.Item.CreatedAtString(),
		},
	})
}

// handleAvatar serves a stored avatar image.
func (ht *HTTPTransport) handleAvatar(w http.ResponseWriter, r *http.Request) error {
	name := mux.Vars(r)["name"]

	avatar, mimeType, err := ht.avatars.Fetch(r.Context(), name)
	if errors.Is(err, domain.ErrAvatarNotFound) {
		http.NotFound(w, r)

		return nil
	} else if err != nil {
		return serverError(w, err)
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, avatar.Name, time.Time{}, bytes.NewReader(avatar.Body))

	return nil
}
