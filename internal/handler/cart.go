package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/craftista/checkout/internal/domain/auth"
	"github.com/craftista/checkout/internal/domain/cart"
)

func identity(w http.ResponseWriter, r *http.Request) (*auth.APIKeyInfo, bool) {
	info, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return info, true
}

func (h *Handler) respondCart(w http.ResponseWriter, status int, c *cart.Cart) {
	e := &jx.Encoder{}
	encodeCart(e, c)
	writeJSON(w, status, e)
}

// GetCart serves the caller's cart, empty if none exists yet.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Get(r.Context(), info.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

// AddCartItem adds a quantity of a product to the caller's cart, merging
// into an existing line.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.carts.AddOrIncrement(r.Context(), info.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

// UpdateCartItem replaces the quantity of an existing line. Zero or below
// removes the line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.carts.SetQuantity(r.Context(), info.UserID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}

// RemoveCartItem deletes a product's line from the caller's cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	info, ok := identity(w, r)
	if !ok {
		return
	}

	c, err := h.carts.RemoveLine(r.Context(), info.UserID, chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, http.StatusOK, c)
}
