package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/craftista/checkout/internal/domain/cart"
	"github.com/craftista/checkout/internal/domain/order"
	"github.com/craftista/checkout/internal/domain/product"
)

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, e)
}

func (h *Handler) imageURL(p *product.Product) string {
	if h.imageBaseURL == "" || p.ImageURL == "" || strings.HasPrefix(p.ImageURL, "http") {
		return p.ImageURL
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(p.ImageURL, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Float64(p.Price.InexactFloat64())
	e.FieldStart("currency")
	e.Str(p.Currency)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("creator_id")
	e.Str(p.CreatorID)
	e.FieldStart("sales_count")
	e.Int64(p.SalesCount)
	if img := h.imageURL(p); img != "" {
		e.FieldStart("image")
		e.Str(img)
	}
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("user_id")
	e.Str(c.UserID)
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range c.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	if !c.UpdatedAt.IsZero() {
		e.FieldStart("updated_at")
		e.Str(c.UpdatedAt.Format(time.RFC3339))
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("user_id")
	e.Str(o.UserID)
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		if l.Size != "" {
			e.FieldStart("size")
			e.Str(l.Size)
		}
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Float64(l.UnitPrice.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	if o.OfferID != "" {
		e.FieldStart("offer_id")
		e.Str(o.OfferID)
	}
	e.FieldStart("total_amount")
	e.Float64(o.TotalAmount.InexactFloat64())
	e.FieldStart("amount_paid")
	e.Float64(o.AmountPaid.InexactFloat64())
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("address_id")
	e.Str(o.AddressID)
	e.FieldStart("transaction_id")
	e.Str(o.TransactionID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}
