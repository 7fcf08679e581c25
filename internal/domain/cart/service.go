package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/craftista/checkout/internal/domain/product"
)

// Service owns cart mutations. Every mutation that references a product
// validates the product exists before writing, so a cart can never hold a
// dangling product id.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the user's cart. A user without a cart gets an empty one; the
// cart document itself is only created on the first add.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Cart{UserID: userID}, nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddOrIncrement adds qty of the product to the cart, merging into an
// existing line rather than duplicating it.
func (s *Service) AddOrIncrement(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrap(err, "check product")
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.addOrIncrement(productID, qty)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero
// or below removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrap(err, "check product")
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if qty <= 0 {
		if !c.removeLine(productID) {
			return nil, ErrLineNotFound
		}
	} else {
		l := c.line(productID)
		if l == nil {
			return nil, ErrLineNotFound
		}
		l.Quantity = qty
	}

	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveLine deletes the product's line from the cart.
func (s *Service) RemoveLine(ctx context.Context, userID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.removeLine(productID) {
		return nil, ErrLineNotFound
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear deletes the user's cart entirely. Clearing an absent cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Delete(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}
