package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// ListProducts serves the product catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for i := range products {
		h.encodeProduct(e, &products[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e)
}

// GetProduct serves a single product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	h.encodeProduct(e, p)
	writeJSON(w, http.StatusOK, e)
}
