package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arrowtech/storefront/api/responses"
	"github.com/arrowtech/storefront/api/validators"
	"github.com/arrowtech/storefront/internal/products"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
	"github.com/arrowtech/storefront/pkg/pagination"
)

const maxSearchLength = 100

type productListResponse struct {
	Products   []products.Product `json:"products"`
	Categories []string           `json:"categories"`
	Category   string             `json:"category"`
	SortBy     string             `json:"sortBy"`
	Search     string             `json:"search,omitempty"`
	Total      int                `json:"total"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

// ProductList filters the catalog by category, sort and q. limit and cursor page through
// the filtered list.
func ProductList(catalog *products.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := catalog.View()
		if category := validators.ParseQueryString(r, "category", 64); category != "" {
			view.SetCategory(category)
		}
		if sortBy := validators.ParseQueryString(r, "sort", 32); sortBy != "" {
			view.SetSortBy(sortBy)
		}
		view.SetSearchQuery(validators.ParseQueryString(r, "q", maxSearchLength))

		filtered := view.Filtered()
		page, next, err := pagination.Page(filtered, pagination.Params{
			Limit:  limit,
			Cursor: validators.ParseQueryString(r, "cursor", 64),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		if page == nil {
			page = []products.Product{}
		}
		query := view.Query()
		responses.WriteSuccess(w, productListResponse{
			Products:   page,
			Categories: catalog.Categories(),
			Category:   query.Category,
			SortBy:     query.SortBy.String(),
			Search:     query.Search,
			Total:      len(filtered),
			NextCursor: next,
		})
	}
}

// ProductFeatured lists featured products in catalog order.
func ProductFeatured(catalog *products.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, catalog.Featured())
	}
}

// ProductDetail returns one product or 404.
func ProductDetail(catalog *products.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, ok := catalog.ByID(chi.URLParam(r, "productId"))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, product)
	}
}
