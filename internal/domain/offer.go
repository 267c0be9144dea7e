package domain

import "time"

// UnboundedSupply is the sentinel used when an offer has no supply or
// per-account limit. Large enough that it never constrains a plan.
const UnboundedSupply int64 = 1_000_000_000_000

// OfferCandidate is a validated, purchasable offer. Instances are only
// produced by the offers package; price and id are guaranteed positive.
type OfferCandidate struct {
	OfferID         int64
	Price           int64 // unit price in stars
	TotalSupply     int64 // UnboundedSupply when not supply-limited
	AvailableAmount int64
	PerAccountCap   int64 // UnboundedSupply when not individually capped
	RequirePremium  bool

	// Locks maps account id to the moment before which this offer must not
	// be purchased by that account. Times are UTC.
	Locks map[int64]time.Time
}

// PriorityKey orders candidates for planning: scarce supply first, then
// higher price, then lower id. Lower key means higher priority.
func (c *OfferCandidate) PriorityKey() (int64, int64, int64) {
	supply := c.TotalSupply
	if supply <= 0 {
		supply = UnboundedSupply
	}
	return supply, -c.Price, c.OfferID
}

// LockedUntil returns the lock deadline for an account, if one exists.
func (c *OfferCandidate) LockedUntil(accountID int64) (time.Time, bool) {
	t, ok := c.Locks[accountID]
	return t, ok
}
