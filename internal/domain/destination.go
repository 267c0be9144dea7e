package domain

import "fmt"

// DestinationRule is a configured delivery target with admission constraints.
// Destination ids live in a negative range so they can never collide with
// user or account ids.
type DestinationRule struct {
	ID            int64
	UserID        int64
	DestinationID int64

	// Optional admission ranges. Nil means the bound is not configured.
	PriceMin  *int64
	PriceMax  *int64
	SupplyMin *int64
	SupplyMax *int64
}

// Validate checks rule invariants: negative destination id, non-negative
// bounds, min <= max for both ranges.
func (r *DestinationRule) Validate() error {
	if r.DestinationID >= 0 {
		return fmt.Errorf("destination rule %d: destination id must be negative, got %d", r.ID, r.DestinationID)
	}
	for name, b := range map[string]*int64{
		"price_min": r.PriceMin, "price_max": r.PriceMax,
		"supply_min": r.SupplyMin, "supply_max": r.SupplyMax,
	} {
		if b != nil && *b < 0 {
			return fmt.Errorf("destination rule %d: %s must be non-negative, got %d", r.ID, name, *b)
		}
	}
	if r.PriceMin != nil && r.PriceMax != nil && *r.PriceMin > *r.PriceMax {
		return fmt.Errorf("destination rule %d: price min %d > max %d", r.ID, *r.PriceMin, *r.PriceMax)
	}
	if r.SupplyMin != nil && r.SupplyMax != nil && *r.SupplyMin > *r.SupplyMax {
		return fmt.Errorf("destination rule %d: supply min %d > max %d", r.ID, *r.SupplyMin, *r.SupplyMax)
	}
	return nil
}

// Matches reports whether the candidate's price and total supply fall inside
// the configured ranges.
func (r *DestinationRule) Matches(c *OfferCandidate) bool {
	return within(c.Price, r.PriceMin, r.PriceMax) &&
		within(c.TotalSupply, r.SupplyMin, r.SupplyMax)
}

// SupplyRangeWidth is the width of the configured supply band. Unconfigured
// bounds extend the band, so tightly targeted rules sort first.
func (r *DestinationRule) SupplyRangeWidth() int64 {
	hi := UnboundedSupply
	if r.SupplyMax != nil {
		hi = *r.SupplyMax
	}
	var lo int64
	if r.SupplyMin != nil {
		lo = *r.SupplyMin
	}
	return hi - lo
}

// PriceCeiling returns the configured price maximum, or 0 when absent.
func (r *DestinationRule) PriceCeiling() int64 {
	if r.PriceMax != nil {
		return *r.PriceMax
	}
	return 0
}

func within(value int64, lo, hi *int64) bool {
	if lo != nil && value < *lo {
		return false
	}
	if hi != nil && value > *hi {
		return false
	}
	return true
}
