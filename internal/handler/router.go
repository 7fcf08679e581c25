package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/craftista/checkout/internal/domain/auth"
)

// Routes builds the API router. The catalog is public; cart and order
// operations require a valid API key, and lifecycle operations additionally
// require the admin scope.
func (h *Handler) Routes(sec *Security) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(sec.Authenticate)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Put("/cart/items/{productID}", h.UpdateCartItem)
			r.Delete("/cart/items/{productID}", h.RemoveCartItem)

			r.Post("/orders", h.PlaceOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{orderID}", h.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireScope(auth.ScopeAdmin))
				r.Post("/orders/{orderID}/status", h.UpdateOrderStatus)
				r.Post("/orders/{orderID}/refund", h.RefundOrder)
			})
		})
	})

	return r
}
