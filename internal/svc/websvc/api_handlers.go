package websvc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

type categoriesResponse struct {
	Category []domain.CategoryResponse `json:"Category"`
}

type categoryItemsResponse struct {
	Category domain.CategoryResponse `json:"Category"`
	Items    []domain.ItemResponse   `json:"Items"`
}

type itemResponse struct {
	Category domain.CategoryResponse `json:"Category"`
	Item     domain.ItemResponse     `json:"Item"`
	User     domain.UserResponse     `json:"User"`
}

type existsResponse struct {
	Exists bool `json:"Exists"`
}

func (ht *HTTPTransport) handleAPIMain(w http.ResponseWriter, r *http.Request) error {
	categories, err := ht.catalog.ListCategories(r.Context())
	if err != nil {
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: flashSomethingWrong})

		return err
	}

	resp := categoriesResponse{Category: make([]domain.CategoryResponse, 0, len(categories))}
	for _, c := range categories {
		resp.Category = append(resp.Category, c.Response())
	}

	return writeJSON(w, http.StatusOK, resp)
}

func (ht *HTTPTransport) handleAPICategory(w http.ResponseWriter, r *http.Request) error {
	c, items, err := ht.catalog.CategoryItems(r.Context(), pathID(r, "id"))
	if errors.Is(err, domain.ErrCategoryNotFound) {
		return writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrCategoryNotFound.Error()})
	} else if err != nil {
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: flashSomethingWrong})

		return err
	}

	resp := categoryItemsResponse{
		Category: c.Response(),
		Items:    make([]domain.ItemResponse, 0, len(items)),
	}
	for _, i := range items {
		resp.Items = append(resp.Items, i.Response())
	}

	return writeJSON(w, http.StatusOK, resp)
}

func (ht *HTTPTransport) handleAPIItem(w http.ResponseWriter, r *http.Request) error {
	detail, err := ht.catalog.GetItem(r.Context(), pathID(r, "id"), pathID(r, "itemID"))
	if errors.Is(err, domain.ErrItemNotFound) || errors.Is(err, domain.ErrCategoryNotFound) {
		return writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrItemNotFound.Error()})
	} else if err != nil {
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: flashSomethingWrong})

		return err
	}

	return writeJSON(w, http.StatusOK, itemResponse{
		Category: detail.Category.Response(),
		Item:     detail.Item.Response(),
		User:     detail.Owner.Response(),
	})
}

// handleAPICheckUser tells the sign-in script whether an email has an account.
func (ht *HTTPTransport) handleAPICheckUser(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		_ = writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid form"})

		return fmt.Errorf("parse form: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(r.PostFormValue("email")))
	if email == "" {
		return writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email required"})
	}

	exists, err := ht.accounts.CheckUser(r.Context(), email)
	if err != nil {
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: flashSomethingWrong})

		return err
	}

	return writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}
