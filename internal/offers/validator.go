package offers

import (
	"fmt"
	"sort"

	"giftbuyer/internal/domain"
)

// Rejection records why a raw offer was excluded before planning.
type Rejection struct {
	OfferID int64    `json:"offer_id"`
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

// Validator filters and normalizes raw offer records into candidates.
type Validator struct {
	// allowUnlimited admits offers without the supply-limited flag.
	// Default is to reject them with reason "unlimited".
	allowUnlimited bool
}

// NewValidator creates a validator that rejects unlimited offers.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorAllowUnlimited creates a validator admitting unlimited offers.
func NewValidatorAllowUnlimited() *Validator {
	return &Validator{allowUnlimited: true}
}

// ValidateAll converts raw records into candidates sorted by ascending
// priority key (scarce supply first, then price descending, then id), plus a
// parallel list of rejections.
func (v *Validator) ValidateAll(raw []RawOffer) ([]*domain.OfferCandidate, []Rejection) {
	candidates := make([]*domain.OfferCandidate, 0, len(raw))
	var rejected []Rejection
	for _, item := range raw {
		c, rej := v.validate(item)
		if rej != nil {
			rejected = append(rejected, *rej)
			continue
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, pi, gi := candidates[i].PriorityKey()
		sj, pj, gj := candidates[j].PriorityKey()
		if si != sj {
			return si < sj
		}
		if pi != pj {
			return pi < pj
		}
		return gi < gj
	})
	return candidates, rejected
}

func (v *Validator) validate(raw RawOffer) (*domain.OfferCandidate, *Rejection) {
	offerID := raw.ID()
	if offerID <= 0 {
		return nil, &Rejection{OfferID: offerID, Reason: domain.ReasonInvalidID}
	}
	price := raw.Price()
	if price <= 0 {
		return nil, &Rejection{
			OfferID: offerID,
			Reason:  domain.ReasonInvalidPrice,
			Details: []string{fmt.Sprintf("price=%d", price)},
		}
	}

	limited := raw.IsLimited()
	if !limited && !v.allowUnlimited {
		return nil, &Rejection{OfferID: offerID, Reason: domain.ReasonUnlimited}
	}

	totalSupply := domain.UnboundedSupply
	if limited {
		supply, ok := raw.TotalAmount()
		if !ok {
			return nil, &Rejection{OfferID: offerID, Reason: domain.ReasonNoSupplyForLimited}
		}
		if supply < 0 {
			supply = 0
		}
		totalSupply = supply
	}

	return &domain.OfferCandidate{
		OfferID:         offerID,
		Price:           price,
		TotalSupply:     totalSupply,
		AvailableAmount: max64(raw.AvailableAmount(), 0),
		PerAccountCap:   perAccountCap(raw),
		RequirePremium:  asBool(raw["require_premium"]),
		Locks:           parseLocks(raw["locks"]),
	}, nil
}

// perAccountCap resolves the per-account limit from the two legacy field
// names, preferring per_user_available over per_user_remains. Offers that are
// not individually capped get the unbounded sentinel.
func perAccountCap(raw RawOffer) int64 {
	if !asBool(raw["limited_per_user"]) {
		return domain.UnboundedSupply
	}
	if limit, ok := asInt64(raw["per_user_available"]); ok && limit > 0 {
		return limit
	}
	if limit, ok := asInt64(raw["per_user_remains"]); ok {
		return max64(limit, 0)
	}
	return 0
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
