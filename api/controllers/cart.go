package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gomarketplace/api/responses"
	"github.com/angelmondragon/gomarketplace/api/validators"
	"github.com/angelmondragon/gomarketplace/internal/cart"
	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
)

const maxTextLen = 512

type addItemRequest struct {
	ID       string          `json:"id" validate:"required,max=256"`
	Title    string          `json:"title"`
	ImageURL string          `json:"image_url"`
	Price    decimal.Decimal `json:"price"`
}

type cartResponse struct {
	Version       uint64          `json:"version"`
	Phase         string          `json:"phase"`
	Items         []cart.LineItem `json:"items"`
	TotalQuantity int             `json:"total_quantity"`
}

func newCartResponse(store *cart.Store) cartResponse {
	snap := store.Snapshot()
	total := 0
	for _, item := range snap.Items {
		total += item.Quantity
	}
	return cartResponse{
		Version:       snap.Version,
		Phase:         store.Phase().String(),
		Items:         snap.Items,
		TotalQuantity: total,
	}
}

// CartFetch returns the current cart.
func CartFetch(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cart.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartAddItem adds a product or bumps its quantity.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cart.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Price.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"price": "must not be negative"}))
			return
		}

		product := cart.Product{
			ID:       validators.SanitizeString(payload.ID, validators.MaxIDLen),
			Title:    validators.SanitizeString(payload.Title, maxTextLen),
			ImageURL: validators.SanitizeString(payload.ImageURL, maxTextLen),
			Price:    payload.Price,
		}
		if err := store.AddToCart(r.Context(), product); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartIncrement bumps the quantity of the item named in the path. Unknown ids
// leave the cart unchanged.
func CartIncrement(logg *logger.Logger) http.HandlerFunc {
	return quantityHandler(logg, (*cart.Store).Increment)
}

// CartDecrement lowers the quantity of the item named in the path, never
// below zero.
func CartDecrement(logg *logger.Logger) http.HandlerFunc {
	return quantityHandler(logg, (*cart.Store).Decrement)
}

func quantityHandler(logg *logger.Logger, op func(*cart.Store, context.Context, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cart.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		op(store, r.Context(), id)
		responses.WriteSuccess(w, newCartResponse(store))
	}
}

// CartFlush blocks until the latest cart snapshot is written.
func CartFlush(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cart.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Flush(r.Context()); err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flush cart")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store))
	}
}
