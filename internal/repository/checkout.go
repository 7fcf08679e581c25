package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/craftista/checkout/internal/domain/discount"
	"github.com/craftista/checkout/internal/domain/order"
	"github.com/craftista/checkout/internal/domain/product"
	"github.com/craftista/checkout/internal/domain/transaction"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_percent, end_at, active
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	getOfferByIDSQL = `SELECT id, name, discount_percent, applicable_on, active
		FROM offers WHERE id = $1 AND active = TRUE`

	addressExistsSQL = `SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1)`

	insertOrderSQL = `INSERT INTO orders (id, user_id, lines, coupon_code, offer_id,
			total_amount, amount_paid, currency, address_id, transaction_id, status,
			idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	addProductSalesSQL = `UPDATE products SET sales_count = sales_count + $2 WHERE id = $1`

	addCreatorSalesSQL = `UPDATE creators SET total_sales = total_sales + $2 WHERE id = $1`

	insertTransactionSQL = `INSERT INTO transactions (id, order_id, amount, currency,
			status, gateway_payment_id, gateway_order_id, refund_of, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	orderForUpdateSQL = selectOrderSQL + ` WHERE id = $1 FOR UPDATE`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	transactionByOrderSQL = `SELECT id, order_id, amount, currency, status,
			gateway_payment_id, gateway_order_id, COALESCE(refund_of, ''), created_at
		FROM transactions WHERE order_id = $1 AND refund_of IS NULL`

	orderByIdempotencyKeySQL = selectOrderSQL + ` WHERE user_id = $1 AND idempotency_key = $2`
)

var _ order.LedgerTx = (*ledgerTx)(nil)

// ledgerTx exposes the checkout reads and writes on one pgx transaction.
// Everything it does becomes visible atomically at commit, or not at all.
type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) ProductsByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := t.tx.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (t *ledgerTx) CouponByCode(ctx context.Context, code string) (*discount.Coupon, error) {
	rows, err := t.tx.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

func (t *ledgerTx) OfferByID(ctx context.Context, id string) (*discount.Offer, error) {
	rows, err := t.tx.Query(ctx, getOfferByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding offer %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrOfferNotFound
		}
		return nil, fmt.Errorf("finding offer %q: %w", id, err)
	}
	return &o, nil
}

func (t *ledgerTx) AddressExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, addressExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking address %q: %w", id, err)
	}
	return exists, nil
}

func (t *ledgerTx) OrderByIdempotencyKey(ctx context.Context, userID, key string) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, orderByIdempotencyKeySQL, userID, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	return &o, nil
}

func (t *ledgerTx) InsertOrder(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	var idemKey *string
	if o.IdempotencyKey != "" {
		idemKey = &o.IdempotencyKey
	}

	_, err = t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, linesJSON, o.CouponCode, o.OfferID,
		o.TotalAmount, o.AmountPaid, o.Currency, o.AddressID, o.TransactionID,
		string(o.Status), idemKey, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (t *ledgerTx) AddProductSales(ctx context.Context, productID string, qty int) error {
	tag, err := t.tx.Exec(ctx, addProductSalesSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("incrementing sales count for product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) AddCreatorSales(ctx context.Context, creatorID string, amount decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, addCreatorSalesSQL, creatorID, amount)
	if err != nil {
		return fmt.Errorf("incrementing total sales for creator %q: %w", creatorID, err)
	}
	return nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, txn *transaction.Transaction) error {
	var refundOf *string
	if txn.RefundOf != "" {
		refundOf = &txn.RefundOf
	}

	_, err := t.tx.Exec(ctx, insertTransactionSQL,
		txn.ID, txn.OrderID, txn.Amount, txn.Currency, string(txn.Status),
		txn.GatewayPaymentID, txn.GatewayOrderID, refundOf, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transaction %q: %w", txn.ID, err)
	}
	return nil
}

func (t *ledgerTx) OrderForUpdate(ctx context.Context, id string) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, orderForUpdateSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}
	return &o, nil
}

func (t *ledgerTx) SetOrderStatus(ctx context.Context, id string, status order.Status) error {
	_, err := t.tx.Exec(ctx, setOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return nil
}

func (t *ledgerTx) TransactionByOrder(ctx context.Context, orderID string) (*transaction.Transaction, error) {
	rows, err := t.tx.Query(ctx, transactionByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding transaction for order %q: %w", orderID, err)
	}

	txn, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("finding transaction for order %q: %w", orderID, err)
	}
	return &txn, nil
}

func scanCoupon(row pgx.CollectableRow) (discount.Coupon, error) {
	var c discount.Coupon
	err := row.Scan(&c.Code, &c.DiscountPercent, &c.EndAt, &c.Active)
	return c, err
}

func scanOffer(row pgx.CollectableRow) (discount.Offer, error) {
	var o discount.Offer
	err := row.Scan(&o.ID, &o.Name, &o.DiscountPercent, &o.ApplicableOn, &o.Active)
	return o, err
}

func scanTransaction(row pgx.CollectableRow) (transaction.Transaction, error) {
	var (
		txn    transaction.Transaction
		status string
	)
	err := row.Scan(
		&txn.ID, &txn.OrderID, &txn.Amount, &txn.Currency, &status,
		&txn.GatewayPaymentID, &txn.GatewayOrderID, &txn.RefundOf, &txn.CreatedAt,
	)
	txn.Status = transaction.Status(status)
	return txn, err
}
