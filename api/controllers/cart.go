package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmcart-sync/api/responses"
	"github.com/angelmondragon/farmcart-sync/api/validators"
	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/readmodel"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/types"
)

// CartGateway applies cart mutations locally and remotely.
type CartGateway interface {
	AddItem(ctx context.Context, in cart.LineInput, display *cart.DisplayFields) (*cart.Cart, error)
	UpdateItem(ctx context.Context, lineID string, update cart.ItemUpdate) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, lineID string, delta int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, lineID string) (*cart.Cart, error)
	Clear(ctx context.Context) (*cart.Cart, error)
}

// CartViews renders the cart for the UI.
type CartViews interface {
	Cart(ctx context.Context) readmodel.CartView
}

type addCartItemRequest struct {
	ListingID string               `json:"listing_id" validate:"required,max=128"`
	Quantity  int                  `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal      `json:"unit_price"`
	Details   types.ListingDetails `json:"type_specific_details"`
	Display   *cart.DisplayFields  `json:"display,omitempty"`
}

type updateCartItemRequest struct {
	Quantity  *int                  `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	UnitPrice *decimal.Decimal      `json:"unit_price,omitempty"`
	Details   *types.ListingDetails `json:"type_specific_details,omitempty"`
	Display   *cart.DisplayFields   `json:"display,omitempty"`
}

func (r updateCartItemRequest) toUpdate() (cart.ItemUpdate, error) {
	if r.Quantity == nil && r.UnitPrice == nil && r.Details == nil && r.Display == nil {
		return cart.ItemUpdate{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one field is required")
	}
	if r.UnitPrice != nil && r.UnitPrice.IsNegative() {
		return cart.ItemUpdate{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"unit_price": "must be greater than or equal to 0"})
	}
	return cart.ItemUpdate{
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Details:   r.Details,
		Display:   r.Display,
	}, nil
}

type adjustQuantityRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

// cartMutationResponse carries the cart after a mutation. Pending counts the
// lines that only exist locally until the next sync.
type cartMutationResponse struct {
	Cart    *cart.Cart `json:"cart"`
	Pending int        `json:"pending"`
	Warning string     `json:"warning,omitempty"`
}

func pendingLines(c *cart.Cart) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, item := range c.Items {
		if !item.Synced {
			n++
		}
	}
	return n
}

// writeCartMutation reports a remote failure as a warning when the local change was kept.
func writeCartMutation(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, c *cart.Cart, err error) {
	if err == nil {
		responses.WriteSuccess(w, cartMutationResponse{Cart: c, Pending: pendingLines(c)})
		return
	}
	if c != nil && pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		responses.WriteSuccessStatus(w, http.StatusAccepted, cartMutationResponse{Cart: c, Pending: pendingLines(c), Warning: err.Error()})
		return
	}
	responses.WriteError(ctx, logg, w, err)
}

func lineIDParam(r *http.Request) (string, error) {
	return validators.PathID(chi.URLParam(r, "lineId"), "line_id")
}

func CartGet(views CartViews, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart views unavailable"))
			return
		}
		ctx, cancel, err := viewContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cancel()
		responses.WriteSuccess(w, views.Cart(ctx))
	}
}

func CartAddItem(gw CartGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart gateway unavailable"))
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := gw.AddItem(r.Context(), cart.LineInput{
			ListingRef: validators.SanitizeString(payload.ListingID, 128),
			Quantity:   payload.Quantity,
			UnitPrice:  payload.UnitPrice,
			Details:    payload.Details,
		}, payload.Display)
		writeCartMutation(r.Context(), logg, w, c, err)
	}
}

func CartUpdateItem(gw CartGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart gateway unavailable"))
			return
		}
		lineID, err := lineIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		update, err := payload.toUpdate()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := gw.UpdateItem(r.Context(), lineID, update)
		if err == nil && c == nil {
			err = pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		writeCartMutation(r.Context(), logg, w, c, err)
	}
}

func CartAdjustQuantity(gw CartGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart gateway unavailable"))
			return
		}
		lineID, err := lineIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := gw.UpdateQuantity(r.Context(), lineID, payload.Delta)
		if err == nil && c == nil {
			err = pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		writeCartMutation(r.Context(), logg, w, c, err)
	}
}

func CartRemoveItem(gw CartGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart gateway unavailable"))
			return
		}
		lineID, err := lineIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := gw.RemoveItem(r.Context(), lineID)
		writeCartMutation(r.Context(), logg, w, c, err)
	}
}

func CartClear(gw CartGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart gateway unavailable"))
			return
		}
		c, err := gw.Clear(r.Context())
		writeCartMutation(r.Context(), logg, w, c, err)
	}
}
