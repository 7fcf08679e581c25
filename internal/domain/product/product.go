package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item. The checkout core treats the catalog as a read
// model plus two counters (sales_count here, total_sales on the creator) that
// are incremented as order side effects.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Currency   string
	Category   string
	CreatorID  string
	SalesCount int64
	ImageURL   string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
