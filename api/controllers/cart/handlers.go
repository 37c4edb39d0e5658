package cart

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/packfinderz-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/packfinderz-cart/api/responses"
	"github.com/angelmondragon/packfinderz-cart/api/validators"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/provider"
	pkgerrors "github.com/angelmondragon/packfinderz-cart/pkg/errors"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
)

// Opener loads the cart a request belongs to.
type Opener interface {
	Open(w http.ResponseWriter, r *http.Request) (*provider.Cart, error)
}

// CartFetch returns the caller's cart, creating an empty one on first contact.
func CartFetch(opener Opener, logg *logger.Logger) http.HandlerFunc {
	return withCart(opener, logg, func(w http.ResponseWriter, r *http.Request, c *provider.Cart) {
		responses.WriteSuccess(w, newCartResponse(c))
	})
}

// CartAddItem adds a line or merges its quantity into the existing line.
func CartAddItem(opener Opener, logg *logger.Logger) http.HandlerFunc {
	return withCart(opener, logg, func(w http.ResponseWriter, r *http.Request, c *provider.Cart) {
		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := c.AddItem(r.Context(), toAddItemOptions(payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, cartdto.ItemMutationResponse{Item: item, Cart: newCartResponse(c)})
	})
}

// CartUpdateItem merges the payload into an existing line. A zero quantity removes it.
func CartUpdateItem(opener Opener, logg *logger.Logger) http.HandlerFunc {
	return withCart(opener, logg, func(w http.ResponseWriter, r *http.Request, c *provider.Cart) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := c.UpdateItem(r.Context(), itemID, toUpdateItemOptions(payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartdto.ItemMutationResponse{Item: item, Cart: newCartResponse(c)})
	})
}

// CartRemoveItem removes a line. Unknown ids leave the cart untouched.
func CartRemoveItem(opener Opener, logg *logger.Logger) http.HandlerFunc {
	return withCart(opener, logg, func(w http.ResponseWriter, r *http.Request, c *provider.Cart) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := c.RemoveItem(r.Context(), itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c))
	})
}

// CartClear empties the cart and its backing storage.
func CartClear(opener Opener, logg *logger.Logger) http.HandlerFunc {
	return withCart(opener, logg, func(w http.ResponseWriter, r *http.Request, c *provider.Cart) {
		if err := c.ClearCart(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c))
	})
}

// CartPreview computes totals with overridden rates. Nothing is saved.
func CartPreview(opener Opener, logg *logger.Logger) http.HandlerFunc {
	return withCart(opener, logg, func(w http.ResponseWriter, r *http.Request, c *provider.Cart) {
		var payload cartdto.PreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rates := applyPreview(c.Store().Rates(), payload)
		responses.WriteSuccess(w, cartdto.PreviewResponse{Rates: rates, Totals: c.Store().PreviewTotals(rates)})
	})
}

func withCart(opener Opener, logg *logger.Logger, fn func(http.ResponseWriter, *http.Request, *provider.Cart)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opener == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart provider unavailable"))
			return
		}

		c, err := opener.Open(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "open cart"))
			return
		}
		defer c.Close()

		fn(w, r, c)
	}
}

func itemIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "itemID")
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid item id")
	}
	return id, nil
}
