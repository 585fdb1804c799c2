package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arrowtech/storefront/api/middleware"
	"github.com/arrowtech/storefront/api/responses"
	"github.com/arrowtech/storefront/api/validators"
	cartsvc "github.com/arrowtech/storefront/internal/cart"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=99"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=99"`
}

// CartFetch returns the cart named by X-Cart-Id.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		return svc.Get(r.Context(), cartID)
	})
}

// CartAddItem adds a catalog product to the cart.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), cartID, payload.ProductID, payload.Quantity)
	})
}

// CartUpdateItem sets an item's quantity; zero or less removes it.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateQuantity(r.Context(), cartID, chi.URLParam(r, "itemId"), *payload.Quantity)
	})
}

// CartRemoveItem deletes an item from the cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		return svc.RemoveItem(r.Context(), cartID, chi.URLParam(r, "itemId"))
	})
}

// CartClear empties the cart and persists the empty snapshot.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		return svc.Clear(r.Context(), cartID)
	})
}

// CartReset empties the cart and drops its persisted snapshot.
func CartReset(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, func(r *http.Request, cartID string) (*cartsvc.View, error) {
		return svc.Reset(r.Context(), cartID)
	})
}

func cartHandler(svc cartsvc.Service, logg *logger.Logger, fn func(*http.Request, string) (*cartsvc.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartID := middleware.CartIDFromContext(r.Context())
		if cartID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-Cart-Id header required"))
			return
		}

		view, err := fn(r, cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
