package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/craftista/checkout/internal/domain/cart"
	"github.com/craftista/checkout/internal/domain/discount"
	"github.com/craftista/checkout/internal/domain/order"
	"github.com/craftista/checkout/internal/domain/product"
)

// respondError maps domain errors onto HTTP status codes. Anything not in
// the taxonomy is logged and reported as a generic 500 so internals never
// leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyLines),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrCurrencyMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
		return

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return

	case errors.Is(err, discount.ErrCouponNotFound),
		errors.Is(err, discount.ErrOfferNotFound),
		errors.Is(err, discount.ErrCouponExpired),
		errors.Is(err, discount.ErrOfferNotApplicable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return

	case errors.Is(err, order.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, http.StatusBadRequest, iqErr.Error())
		return
	}

	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	var itErr *order.InvalidTransitionError
	if errors.As(err, &itErr) {
		writeError(w, http.StatusConflict, itErr.Error())
		return
	}

	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
