package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a payment transaction. The gateway collaborator owns the payment
// lifecycle; this core only records the outcome it was handed.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// Transaction is an immutable payment record linked 1:1 to an order at
// creation time. A refund never mutates the original row: it appends a new
// transaction whose RefundOf references the one being reversed, preserving
// the audit trail.
type Transaction struct {
	ID               string
	OrderID          string
	Amount           decimal.Decimal
	Currency         string
	Status           Status
	GatewayPaymentID string
	GatewayOrderID   string
	RefundOf         string
	CreatedAt        time.Time
}
