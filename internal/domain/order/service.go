package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftista/checkout/internal/domain/discount"
	"github.com/craftista/checkout/internal/domain/pricing"
	"github.com/craftista/checkout/internal/domain/product"
	"github.com/craftista/checkout/internal/domain/transaction"
)

// CartClearer empties a user's cart after a successful checkout. Satisfied by
// the cart service; kept as a local interface so the clear stays best-effort
// and outside the atomic unit.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// LineInput is one requested order line before pricing.
type LineInput struct {
	ProductID string
	Size      string
	Quantity  int
}

// GatewayRef carries the payment references handed over by the external
// payment-gateway collaborator. The core never calls a payment API itself.
type GatewayRef struct {
	PaymentID string
	OrderID   string
}

// CheckoutRequest is the input for placing an order.
type CheckoutRequest struct {
	UserID         string
	Lines          []LineInput
	CouponCode     string
	OfferID        string
	AddressID      string
	Gateway        GatewayRef
	IdempotencyKey string
}

// Service orchestrates checkout: validation, discount eligibility, pricing,
// and the atomic multi-entity commit. It also owns the order status machine
// and the refund transition.
type Service struct {
	ledger  Ledger
	orders  Repository
	carts   CartClearer
	retries int
	now     func() time.Time
}

// NewService creates an order Service. retries bounds how often an aborted
// checkout transaction is re-run before the conflict is surfaced.
func NewService(ledger Ledger, orders Repository, carts CartClearer, retries int) *Service {
	if retries < 0 {
		retries = 0
	}
	return &Service{
		ledger:  ledger,
		orders:  orders,
		carts:   carts,
		retries: retries,
		now:     time.Now,
	}
}

// Checkout prices and persists an order as one atomic unit. Any validation
// failure aborts the whole unit: no partial order, no partial counter
// increments, no dangling transaction rows. Store-level conflicts are retried
// up to the configured bound.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if err := validateLines(req.Lines); err != nil {
		return nil, err
	}

	var (
		o   *Order
		err error
	)
	for attempt := 0; ; attempt++ {
		o, err = s.tryCheckout(ctx, req)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) || attempt >= s.retries {
			return nil, err
		}
		zctx.From(ctx).Debug("Checkout conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("user_id", req.UserID),
		)
	}

	// The cart is mutated outside the atomic boundary; failing to clear it
	// must not fail an already-committed order.
	if s.carts != nil {
		if err := s.carts.Clear(ctx, req.UserID); err != nil {
			zctx.From(ctx).Warn("Clearing cart after checkout failed",
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
		}
	}

	return o, nil
}

func (s *Service) tryCheckout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var placed *Order

	err := s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		// Duplicate submission carrying the same idempotency key returns the
		// order created by the first one.
		if req.IdempotencyKey != "" {
			existing, err := tx.OrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return errors.Wrap(err, "idempotency lookup")
			}
			if existing != nil {
				placed = existing
				return nil
			}
		}

		lines, productIDs, creatorByProduct, currency, err := s.priceLines(ctx, tx, req.Lines)
		if err != nil {
			return err
		}

		offerPercent := decimal.Zero
		if req.OfferID != "" {
			offer, err := tx.OfferByID(ctx, req.OfferID)
			if err != nil {
				return errors.Wrap(err, "load offer")
			}
			if err := discount.ValidateOffer(offer, productIDs); err != nil {
				return err
			}
			offerPercent = offer.DiscountPercent
		}

		couponPercent := decimal.Zero
		if req.CouponCode != "" {
			coupon, err := tx.CouponByCode(ctx, req.CouponCode)
			if err != nil {
				return errors.Wrap(err, "load coupon")
			}
			if err := discount.ValidateCoupon(coupon, s.now()); err != nil {
				return err
			}
			couponPercent = coupon.DiscountPercent
		}

		priced := make([]pricing.Line, len(lines))
		for i, l := range lines {
			priced[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
		}
		quote := pricing.Compute(priced, offerPercent, couponPercent)

		ok, err := tx.AddressExists(ctx, req.AddressID)
		if err != nil {
			return errors.Wrap(err, "check address")
		}
		if !ok {
			return ErrAddressNotFound
		}

		txnID := uuid.New().String()
		o := &Order{
			ID:             uuid.New().String(),
			UserID:         req.UserID,
			Lines:          lines,
			CouponCode:     req.CouponCode,
			OfferID:        req.OfferID,
			TotalAmount:    quote.Total,
			AmountPaid:     quote.AmountToPay,
			Currency:       currency,
			AddressID:      req.AddressID,
			TransactionID:  txnID,
			Status:         StatusPending,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      s.now(),
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}

		// Dependent aggregates: per-product sales counters and per-creator
		// running totals, using the pre-discount unit price.
		for _, l := range lines {
			if err := tx.AddProductSales(ctx, l.ProductID, l.Quantity); err != nil {
				return errors.Wrapf(err, "increment sales for product %s", l.ProductID)
			}
			lineAmount := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
			if err := tx.AddCreatorSales(ctx, creatorByProduct[l.ProductID], lineAmount); err != nil {
				return errors.Wrapf(err, "increment creator sales for product %s", l.ProductID)
			}
		}

		if err := tx.InsertTransaction(ctx, &transaction.Transaction{
			ID:               txnID,
			OrderID:          o.ID,
			Amount:           quote.AmountToPay,
			Currency:         currency,
			Status:           transaction.StatusSuccessful,
			GatewayPaymentID: req.Gateway.PaymentID,
			GatewayOrderID:   req.Gateway.OrderID,
			CreatedAt:        o.CreatedAt,
		}); err != nil {
			return errors.Wrap(err, "insert transaction")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// priceLines re-reads the current catalog price of every ordered product
// inside the transaction (never trusting a client-supplied price) and builds
// the priced order lines.
func (s *Service) priceLines(ctx context.Context, tx LedgerTx, inputs []LineInput) (
	lines []Line, distinctIDs []string, creatorByProduct map[string]string, currency string, err error,
) {
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if _, ok := seen[in.ProductID]; ok {
			continue
		}
		seen[in.ProductID] = struct{}{}
		distinctIDs = append(distinctIDs, in.ProductID)
	}

	fetched, err := tx.ProductsByIDs(ctx, distinctIDs)
	if err != nil {
		return nil, nil, nil, "", errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	creatorByProduct = make(map[string]string, len(byID))
	lines = make([]Line, len(inputs))
	for i, in := range inputs {
		p, ok := byID[in.ProductID]
		if !ok {
			return nil, nil, nil, "", &ProductNotFoundError{ProductID: in.ProductID}
		}
		if currency == "" {
			currency = p.Currency
		} else if p.Currency != currency {
			return nil, nil, nil, "", ErrCurrencyMismatch
		}
		creatorByProduct[p.ID] = p.CreatorID
		lines[i] = Line{
			ProductID: in.ProductID,
			Size:      in.Size,
			Quantity:  in.Quantity,
			UnitPrice: p.Price,
		}
	}
	return lines, distinctIDs, creatorByProduct, currency, nil
}

// UpdateStatus moves an order along the state machine. The read and write
// share one atomic unit so concurrent transitions serialize.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, &InvalidTransitionError{To: to}
	}

	var updated *Order
	err := s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(to) {
			return &InvalidTransitionError{From: o.Status, To: to}
		}
		if err := tx.SetOrderStatus(ctx, orderID, to); err != nil {
			return errors.Wrap(err, "set status")
		}
		o.Status = to
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Refund transitions a delivered order to refunded and appends a new
// transaction referencing the original payment, inside one atomic unit
// scoped to the order and its transactions.
func (s *Service) Refund(ctx context.Context, orderID string) (*Order, error) {
	var refunded *Order
	err := s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusDelivered {
			return &InvalidTransitionError{From: o.Status, To: StatusRefunded}
		}

		original, err := tx.TransactionByOrder(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "load original transaction")
		}

		if err := tx.SetOrderStatus(ctx, orderID, StatusRefunded); err != nil {
			return errors.Wrap(err, "set status")
		}
		if err := tx.InsertTransaction(ctx, &transaction.Transaction{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			Amount:    o.AmountPaid,
			Currency:  o.Currency,
			Status:    transaction.StatusSuccessful,
			RefundOf:  original.ID,
			CreatedAt: s.now(),
		}); err != nil {
			return errors.Wrap(err, "insert refund transaction")
		}

		o.Status = StatusRefunded
		refunded = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// Get returns a persisted order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID, limit)
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrEmptyLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: l.ProductID}
		}
	}
	return nil
}
