// Package handler exposes the checkout core over HTTP. Routing is plain chi;
// responses are encoded by hand with jx. Authentication and scope checks live
// in Security, applied per route group.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/craftista/checkout/internal/domain/cart"
	"github.com/craftista/checkout/internal/domain/order"
	"github.com/craftista/checkout/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the public API, delegating business logic to the domain
// services.
type Handler struct {
	products     product.Repository
	carts        *cart.Service
	orders       *order.Service
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// decodeBody unmarshals a JSON request body into dst, limiting the read to a
// megabyte.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}
