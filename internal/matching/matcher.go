// Package matching selects the best destination rule for a candidate.
package matching

import (
	"sort"

	"giftbuyer/internal/domain"
)

// Matcher finds the best destination for a candidate among a user's rules.
// Rules are loaded once per run; the matcher itself is stateless beyond them.
type Matcher struct {
	rules []*domain.DestinationRule
}

// New creates a matcher over the given rules.
func New(rules []*domain.DestinationRule) *Matcher {
	return &Matcher{rules: rules}
}

// BestFor returns the rule the candidate should be delivered to, or nil.
//
// When forcedID is set, the configured rule with that destination id is
// returned if present, else nil — the caller falls back to treating the
// forced id as a synthetic destination. Otherwise rules admitting the
// candidate compete on (supply range width, -price ceiling, rule id): the
// narrowest configured band wins, then the highest price ceiling, then the
// lowest rule id as a stable tiebreak.
func (m *Matcher) BestFor(c *domain.OfferCandidate, forcedID *int64) *domain.DestinationRule {
	if forcedID != nil {
		for _, r := range m.rules {
			if r.DestinationID == *forcedID {
				return r
			}
		}
		return nil
	}

	var matching []*domain.DestinationRule
	for _, r := range m.rules {
		if r.Matches(c) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return nil
	}
	sort.Slice(matching, func(i, j int) bool {
		wi, wj := matching[i].SupplyRangeWidth(), matching[j].SupplyRangeWidth()
		if wi != wj {
			return wi < wj
		}
		pi, pj := matching[i].PriceCeiling(), matching[j].PriceCeiling()
		if pi != pj {
			return pi > pj
		}
		return matching[i].ID < matching[j].ID
	})
	return matching[0]
}
