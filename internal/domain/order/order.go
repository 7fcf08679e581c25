package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/craftista/checkout/internal/domain/discount"
	"github.com/craftista/checkout/internal/domain/product"
	"github.com/craftista/checkout/internal/domain/transaction"
)

// Status is the order lifecycle state. Orders always start at pending and
// move through the bounded state machine below; everything else about an
// order is immutable after creation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving to the given
// status. Cancelled and refunded are terminal.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Sentinel errors for order validation.
var (
	ErrEmptyLines       = errors.New("order lines required")
	ErrNotFound         = errors.New("order not found")
	ErrAddressNotFound  = errors.New("shipping address not found")
	ErrCurrencyMismatch = errors.New("order lines mix currencies")

	// ErrConflict marks a checkout unit aborted by the store under concurrent
	// access. The coordinator retries it a bounded number of times; when it
	// still surfaces, the request is safe for the client to resubmit.
	ErrConflict = errors.New("transaction aborted, safe to retry")
)

// InvalidQuantityError indicates a line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates an ordered product that does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidTransitionError indicates a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Line is one ordered (product, size, quantity) tuple, with the unit price
// captured from the catalog inside the checkout transaction.
type Line struct {
	ProductID string          `json:"product_id"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is the immutable record of a priced checkout. TotalAmount is the
// pre-discount sum; AmountPaid is the post-discount amount actually charged,
// never greater than TotalAmount.
type Order struct {
	ID             string
	UserID         string
	Lines          []Line
	CouponCode     string
	OfferID        string
	TotalAmount    decimal.Decimal
	AmountPaid     decimal.Decimal
	Currency       string
	AddressID      string
	TransactionID  string
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
}

// Repository defines read access to persisted orders.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
}

// Ledger is the atomic-commit boundary of checkout. InTx runs fn inside one
// storage transaction at snapshot-or-higher isolation: either every write
// performed through the LedgerTx becomes visible at once, or none do.
// Implementations map concurrency aborts to ErrConflict.
type Ledger interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx exposes the reads and writes available inside the atomic unit.
// Reads observe a snapshot consistent with the eventual writes, so a coupon
// cannot expire nor an offer change between validation and commit.
type LedgerTx interface {
	ProductsByIDs(ctx context.Context, ids []string) ([]product.Product, error)
	CouponByCode(ctx context.Context, code string) (*discount.Coupon, error)
	OfferByID(ctx context.Context, id string) (*discount.Offer, error)
	AddressExists(ctx context.Context, id string) (bool, error)

	OrderByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	// AddProductSales and AddCreatorSales must be implemented as atomic
	// in-place increments, not read-modify-write.
	AddProductSales(ctx context.Context, productID string, qty int) error
	AddCreatorSales(ctx context.Context, creatorID string, amount decimal.Decimal) error
	InsertTransaction(ctx context.Context, t *transaction.Transaction) error

	OrderForUpdate(ctx context.Context, id string) (*Order, error)
	SetOrderStatus(ctx context.Context, id string, status Status) error
	TransactionByOrder(ctx context.Context, orderID string) (*transaction.Transaction, error)
}
