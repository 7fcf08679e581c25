package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Lookup failures are distinct from eligibility failures so callers can tell
// "does not exist" apart from "not applicable to this order".
var (
	// ErrCouponNotFound is returned when no active coupon matches the code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrOfferNotFound is returned when no active offer matches the id.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrCouponExpired is returned when a coupon is past its end time.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrOfferNotApplicable is returned when the order contains at least one
	// product outside the offer's applicable set.
	ErrOfferNotApplicable = errors.New("offer not applicable to all ordered products")
)

// Coupon is a whole-order percentage discount, time-bounded by expiry.
type Coupon struct {
	Code            string
	DiscountPercent decimal.Decimal
	EndAt           time.Time
	Active          bool
}

// Offer is a percentage discount restricted to a fixed set of eligible
// products. It applies all-or-nothing: every product in the order must be in
// the applicable set.
type Offer struct {
	ID              string
	Name            string
	DiscountPercent decimal.Decimal
	ApplicableOn    []string
	Active          bool
}

// Applies reports whether the given product is in the offer's applicable set.
func (o *Offer) Applies(productID string) bool {
	for _, id := range o.ApplicableOn {
		if id == productID {
			return true
		}
	}
	return false
}

// Repository provides lookup of discount definitions. Implementations used
// during checkout must read within the same transaction as the order write so
// a coupon cannot expire or an offer change between validation and commit.
type Repository interface {
	CouponByCode(ctx context.Context, code string) (*Coupon, error)
	OfferByID(ctx context.Context, id string) (*Offer, error)
}
