package discount

import "time"

// ValidateCoupon checks that the coupon is usable at the given instant.
// Expiry is evaluated at order-creation time, not cart-mutation time, so a
// coupon that lapses while the cart sits idle still fails the checkout.
func ValidateCoupon(c *Coupon, now time.Time) error {
	if now.After(c.EndAt) {
		return ErrCouponExpired
	}
	return nil
}

// ValidateOffer checks that every distinct ordered product is in the offer's
// applicable set. A single ineligible product rejects the offer for the whole
// order; there is no partial line-level discount.
func ValidateOffer(o *Offer, orderedProductIDs []string) error {
	seen := make(map[string]struct{}, len(orderedProductIDs))
	for _, id := range orderedProductIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if !o.Applies(id) {
			return ErrOfferNotApplicable
		}
	}
	return nil
}
