package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a user has no cart yet.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidQuantity is returned when an add carries a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrLineNotFound is returned when a mutation targets a product that has
	// no line in the cart.
	ErrLineNotFound = errors.New("cart line not found")
)

// Line is one (product, quantity) entry. Quantity is strictly positive while
// the line exists; setting it to zero or below removes the line instead.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is the single active cart of one user. It is created lazily on the
// first add and holds at most one line per product.
type Cart struct {
	UserID    string
	Lines     []Line
	UpdatedAt time.Time
}

// line returns a pointer to the line for the given product, or nil.
func (c *Cart) line(productID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// addOrIncrement merges the quantity into an existing line or appends one.
func (c *Cart) addOrIncrement(productID string, qty int) {
	if l := c.line(productID); l != nil {
		l.Quantity += qty
		return
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: qty})
}

// removeLine deletes the line for the given product, reporting whether it existed.
func (c *Cart) removeLine(productID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Repository defines persistence for carts. A cart is a single document, so
// mutations do not require the cross-entity transaction used by checkout.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, userID string) error
}
