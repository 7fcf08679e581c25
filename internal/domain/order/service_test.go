package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftista/checkout/internal/domain/discount"
	"github.com/craftista/checkout/internal/domain/product"
	"github.com/craftista/checkout/internal/domain/transaction"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Fake ledger ---
//
// fakeLedger mimics the storage transaction: writes go to a staging copy that
// is applied only when the whole function succeeds. This lets tests assert
// the all-or-nothing property directly.

type ledgerState struct {
	orders       map[string]*Order
	transactions []transaction.Transaction
	productSales map[string]int
	creatorSales map[string]decimal.Decimal
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		orders:       make(map[string]*Order),
		productSales: make(map[string]int),
		creatorSales: make(map[string]decimal.Decimal),
	}
}

func (s *ledgerState) clone() *ledgerState {
	cp := newLedgerState()
	for k, v := range s.orders {
		o := *v
		cp.orders[k] = &o
	}
	cp.transactions = append(cp.transactions, s.transactions...)
	for k, v := range s.productSales {
		cp.productSales[k] = v
	}
	for k, v := range s.creatorSales {
		cp.creatorSales[k] = v
	}
	return cp
}

type fakeLedger struct {
	products  map[string]product.Product
	coupons   map[string]*discount.Coupon
	offers    map[string]*discount.Offer
	addresses map[string]bool

	state *ledgerState

	// failure injection
	failAddSales      error
	failInsertTxn     error
	conflictsBeforeOK int
	inTxCalls         int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		products:  make(map[string]product.Product),
		coupons:   make(map[string]*discount.Coupon),
		offers:    make(map[string]*discount.Offer),
		addresses: make(map[string]bool),
		state:     newLedgerState(),
	}
}

func (f *fakeLedger) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	f.inTxCalls++
	if f.conflictsBeforeOK > 0 {
		f.conflictsBeforeOK--
		return ErrConflict
	}
	staged := &fakeTx{ledger: f, state: f.state.clone()}
	if err := fn(ctx, staged); err != nil {
		return err // rollback: staged copy discarded
	}
	f.state = staged.state
	return nil
}

type fakeTx struct {
	ledger *fakeLedger
	state  *ledgerState
}

func (t *fakeTx) ProductsByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := t.ledger.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *fakeTx) CouponByCode(_ context.Context, code string) (*discount.Coupon, error) {
	c, ok := t.ledger.coupons[code]
	if !ok {
		return nil, discount.ErrCouponNotFound
	}
	return c, nil
}

func (t *fakeTx) OfferByID(_ context.Context, id string) (*discount.Offer, error) {
	o, ok := t.ledger.offers[id]
	if !ok {
		return nil, discount.ErrOfferNotFound
	}
	return o, nil
}

func (t *fakeTx) AddressExists(_ context.Context, id string) (bool, error) {
	return t.ledger.addresses[id], nil
}

func (t *fakeTx) OrderByIdempotencyKey(_ context.Context, userID, key string) (*Order, error) {
	for _, o := range t.state.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (t *fakeTx) InsertOrder(_ context.Context, o *Order) error {
	cp := *o
	t.state.orders[o.ID] = &cp
	return nil
}

func (t *fakeTx) AddProductSales(_ context.Context, productID string, qty int) error {
	if t.ledger.failAddSales != nil {
		return t.ledger.failAddSales
	}
	t.state.productSales[productID] += qty
	return nil
}

func (t *fakeTx) AddCreatorSales(_ context.Context, creatorID string, amount decimal.Decimal) error {
	t.state.creatorSales[creatorID] = t.state.creatorSales[creatorID].Add(amount)
	return nil
}

func (t *fakeTx) InsertTransaction(_ context.Context, txn *transaction.Transaction) error {
	if t.ledger.failInsertTxn != nil {
		return t.ledger.failInsertTxn
	}
	t.state.transactions = append(t.state.transactions, *txn)
	return nil
}

func (t *fakeTx) OrderForUpdate(_ context.Context, id string) (*Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *fakeTx) SetOrderStatus(_ context.Context, id string, status Status) error {
	o, ok := t.state.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (t *fakeTx) TransactionByOrder(_ context.Context, orderID string) (*transaction.Transaction, error) {
	for i := range t.state.transactions {
		if t.state.transactions[i].OrderID == orderID && t.state.transactions[i].RefundOf == "" {
			cp := t.state.transactions[i]
			return &cp, nil
		}
	}
	return nil, errors.New("transaction not found")
}

type fakeOrderRepo struct{ ledger *fakeLedger }

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := r.ledger.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string, _ int) ([]Order, error) {
	var out []Order
	for _, o := range r.ledger.state.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeCartClearer struct {
	cleared []string
	err     error
}

func (c *fakeCartClearer) Clear(_ context.Context, userID string) error {
	if c.err != nil {
		return c.err
	}
	c.cleared = append(c.cleared, userID)
	return nil
}

// --- Helpers ---

func seedCatalog(f *fakeLedger) {
	f.products["prod-a"] = product.Product{
		ID: "prod-a", Name: "Walnut bowl", Price: dec("100"), Currency: "USD", CreatorID: "maker-1",
	}
	f.products["prod-b"] = product.Product{
		ID: "prod-b", Name: "Oak coaster", Price: dec("50"), Currency: "USD", CreatorID: "maker-2",
	}
	f.addresses["addr-1"] = true
}

func baseRequest() CheckoutRequest {
	return CheckoutRequest{
		UserID: "u1",
		Lines: []LineInput{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 1},
		},
		AddressID: "addr-1",
		Gateway:   GatewayRef{PaymentID: "pay_123", OrderID: "gw_456"},
	}
}

func newCheckoutService(f *fakeLedger) (*Service, *fakeCartClearer) {
	carts := &fakeCartClearer{}
	svc := NewService(f, &fakeOrderRepo{ledger: f}, carts, 3)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc, carts
}

// --- Checkout tests ---

func TestCheckout_NoDiscounts(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, carts := newCheckoutService(f)

	o, err := svc.Checkout(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.True(t, dec("250").Equal(o.TotalAmount), "total = %s", o.TotalAmount)
	assert.True(t, o.TotalAmount.Equal(o.AmountPaid))
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "USD", o.Currency)

	// Side effects committed together with the order.
	assert.Equal(t, 2, f.state.productSales["prod-a"])
	assert.Equal(t, 1, f.state.productSales["prod-b"])
	assert.True(t, dec("200").Equal(f.state.creatorSales["maker-1"]))
	assert.True(t, dec("50").Equal(f.state.creatorSales["maker-2"]))
	require.Len(t, f.state.transactions, 1)
	assert.Equal(t, o.TransactionID, f.state.transactions[0].ID)
	assert.Equal(t, "pay_123", f.state.transactions[0].GatewayPaymentID)

	assert.Equal(t, []string{"u1"}, carts.cleared)
}

func TestCheckout_OfferThenCouponCompound(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	f.offers["summer-10"] = &discount.Offer{
		ID: "summer-10", DiscountPercent: dec("10"),
		ApplicableOn: []string{"prod-a", "prod-b"}, Active: true,
	}
	f.coupons["SAVE5"] = &discount.Coupon{
		Code: "SAVE5", DiscountPercent: dec("5"),
		EndAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
	}
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.OfferID = "summer-10"
	req.CouponCode = "SAVE5"

	o, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	// 250 -> 225 after offer -> 213.75 after coupon.
	assert.True(t, dec("250").Equal(o.TotalAmount))
	assert.True(t, dec("213.75").Equal(o.AmountPaid), "amountPaid = %s", o.AmountPaid)

	// Creator totals use the pre-discount unit price.
	assert.True(t, dec("200").Equal(f.state.creatorSales["maker-1"]))
}

func TestCheckout_OfferIneligibleRejectsWholeOrder(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	f.offers["a-only"] = &discount.Offer{
		ID: "a-only", DiscountPercent: dec("10"), ApplicableOn: []string{"prod-a"}, Active: true,
	}
	svc, carts := newCheckoutService(f)

	req := baseRequest()
	req.OfferID = "a-only"

	_, err := svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, discount.ErrOfferNotApplicable)

	// Failed checkout writes nothing and does not touch the cart.
	assert.Empty(t, f.state.orders)
	assert.Empty(t, f.state.transactions)
	assert.Empty(t, f.state.productSales)
	assert.Empty(t, carts.cleared)
}

func TestCheckout_ExpiredCoupon(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	f.coupons["OLD"] = &discount.Coupon{
		Code: "OLD", DiscountPercent: dec("5"),
		EndAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Active: true,
	}
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.CouponCode = "OLD"

	_, err := svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, discount.ErrCouponExpired)
	assert.Empty(t, f.state.orders)
}

func TestCheckout_UnknownCouponIsNotFound(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.CouponCode = "GHOST"

	_, err := svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, discount.ErrCouponNotFound)
}

func TestCheckout_ProductNotFound(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.Lines = append(req.Lines, LineInput{ProductID: "ghost", Quantity: 1})

	_, err := svc.Checkout(context.Background(), req)
	var pnf *ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "ghost", pnf.ProductID)
	assert.Empty(t, f.state.orders)
}

func TestCheckout_EmptyLines(t *testing.T) {
	f := newFakeLedger()
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.Lines = nil

	_, err := svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyLines)
	assert.Zero(t, f.inTxCalls, "validation failures must not open a transaction")
}

func TestCheckout_NonPositiveQuantity(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.Lines[0].Quantity = 0

	_, err := svc.Checkout(context.Background(), req)
	var iq *InvalidQuantityError
	require.ErrorAs(t, err, &iq)
}

func TestCheckout_MissingAddress(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.AddressID = "nowhere"

	_, err := svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrAddressNotFound)
	assert.Empty(t, f.state.orders)
}

func TestCheckout_AllWritesOrNone(t *testing.T) {
	// Inject a failure after the order insert and the counter increments:
	// nothing may remain visible.
	f := newFakeLedger()
	seedCatalog(f)
	f.failInsertTxn = errors.New("disk full")
	svc, _ := newCheckoutService(f)

	_, err := svc.Checkout(context.Background(), baseRequest())
	require.Error(t, err)

	assert.Empty(t, f.state.orders)
	assert.Empty(t, f.state.productSales)
	assert.Empty(t, f.state.creatorSales)
	assert.Empty(t, f.state.transactions)
}

func TestCheckout_FailureBeforeCountersWritesNothing(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	f.failAddSales = errors.New("counter update failed")
	svc, _ := newCheckoutService(f)

	_, err := svc.Checkout(context.Background(), baseRequest())
	require.Error(t, err)
	assert.Empty(t, f.state.orders)
	assert.Empty(t, f.state.transactions)
}

func TestCheckout_RetriesConflictsThenSucceeds(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	f.conflictsBeforeOK = 2
	svc, _ := newCheckoutService(f)

	o, err := svc.Checkout(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 3, f.inTxCalls)
}

func TestCheckout_SurfacesConflictAfterBoundedRetries(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	f.conflictsBeforeOK = 100
	svc, _ := newCheckoutService(f)

	_, err := svc.Checkout(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 4, f.inTxCalls) // initial attempt + 3 retries
}

func TestCheckout_IdempotencyKeyReplaysExistingOrder(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)

	req := baseRequest()
	req.IdempotencyKey = "attempt-1"

	first, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.state.orders, 1)
	// Replay performs no second round of side effects.
	assert.Equal(t, 2, f.state.productSales["prod-a"])
}

func TestCheckout_CartClearFailureDoesNotFailOrder(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	carts := &fakeCartClearer{err: errors.New("cart store down")}
	svc := NewService(f, &fakeOrderRepo{ledger: f}, carts, 3)

	o, err := svc.Checkout(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
}

func TestCheckout_MixedCurrencies(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	p := f.products["prod-b"]
	p.Currency = "EUR"
	f.products["prod-b"] = p
	svc, _ := newCheckoutService(f)

	_, err := svc.Checkout(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

// --- Status machine tests ---

func placeTestOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	o, err := svc.Checkout(context.Background(), baseRequest())
	require.NoError(t, err)
	return o
}

func TestUpdateStatus_HappyPath(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)
	o := placeTestOrder(t, svc)
	ctx := context.Background()

	for _, st := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		updated, err := svc.UpdateStatus(ctx, o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, updated.Status)
	}
}

func TestUpdateStatus_ForbiddenJump(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)
	o := placeTestOrder(t, svc)

	_, err := svc.UpdateStatus(context.Background(), o.ID, StatusDelivered)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusPending, ite.From)
}

func TestUpdateStatus_TerminalStates(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)
	o := placeTestOrder(t, svc)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o.ID, StatusProcessing)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	f := newFakeLedger()
	svc, _ := newCheckoutService(f)

	_, err := svc.UpdateStatus(context.Background(), "missing", StatusProcessing)
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Refund tests ---

func deliverOrder(t *testing.T, svc *Service, id string) {
	t.Helper()
	ctx := context.Background()
	for _, st := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		_, err := svc.UpdateStatus(ctx, id, st)
		require.NoError(t, err)
	}
}

func TestRefund_FromDelivered(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)
	o := placeTestOrder(t, svc)
	deliverOrder(t, svc, o.ID)

	refunded, err := svc.Refund(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)

	// Refund appends a new transaction referencing the original.
	require.Len(t, f.state.transactions, 2)
	refundTxn := f.state.transactions[1]
	assert.Equal(t, o.TransactionID, refundTxn.RefundOf)
	assert.True(t, o.AmountPaid.Equal(refundTxn.Amount))
	assert.Equal(t, transaction.StatusSuccessful, refundTxn.Status)
}

func TestRefund_RejectedFromPending(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)
	o := placeTestOrder(t, svc)

	_, err := svc.Refund(context.Background(), o.ID)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusPending, ite.From)
	assert.Equal(t, StatusRefunded, ite.To)

	// Nothing written by the failed refund.
	require.Len(t, f.state.transactions, 1)
}

func TestRefund_IsTerminal(t *testing.T) {
	f := newFakeLedger()
	seedCatalog(f)
	svc, _ := newCheckoutService(f)
	o := placeTestOrder(t, svc)
	deliverOrder(t, svc, o.ID)

	_, err := svc.Refund(context.Background(), o.ID)
	require.NoError(t, err)
	_, err = svc.Refund(context.Background(), o.ID)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}
