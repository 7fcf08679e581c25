package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/craftista/checkout/internal/domain/auth"
	"github.com/craftista/checkout/internal/domain/order"
)

// IdempotencyKeyHeader lets clients resubmit a checkout safely: the same key
// returns the order created by the first submission.
const IdempotencyKeyHeader = "Idempotency-Key"

const defaultOrderListLimit = 50

func (h *Handler) respondOrder(w http.ResponseWriter, status int, o *order.Order) {
	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, status, e)
}

// PlaceOrder prices and persists an order for the caller as one atomic unit.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Items []struct {
			ProductID string `json:"product_id"`
			Size      string `json:"size"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
		CouponCode string `json:"coupon_code"`
		OfferID    string `json:"offer_id"`
		AddressID  string `json:"address_id"`
		Payment    struct {
			PaymentID string `json:"payment_id"`
			OrderID   string `json:"order_id"`
		} `json:"payment"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]order.LineInput, len(req.Items))
	for i, item := range req.Items {
		lines[i] = order.LineInput{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		}
	}

	o, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:     info.UserID,
		Lines:      lines,
		CouponCode: req.CouponCode,
		OfferID:    req.OfferID,
		AddressID:  req.AddressID,
		Gateway: order.GatewayRef{
			PaymentID: req.Payment.PaymentID,
			OrderID:   req.Payment.OrderID,
		},
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondOrder(w, http.StatusCreated, o)
}

// ListOrders serves the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	limit := defaultOrderListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	orders, err := h.orders.ListForUser(r.Context(), info.UserID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e)
}

// GetOrder serves a single order. Non-admin callers only see their own
// orders; anything else reads as not found.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if o.UserID != info.UserID && !info.HasScope(auth.ScopeAdmin) {
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	h.respondOrder(w, http.StatusOK, o)
}

// UpdateOrderStatus moves an order along its lifecycle. Admin only.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := order.Status(req.Status)
	if !st.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), st)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondOrder(w, http.StatusOK, o)
}

// RefundOrder refunds a delivered order. Admin only.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Refund(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondOrder(w, http.StatusOK, o)
}
