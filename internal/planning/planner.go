// Package planning produces the ordered purchase plan for one run.
package planning

import (
	"fmt"
	"sort"
	"time"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/matching"
	"giftbuyer/internal/stats"
)

// Planner allocates validated candidates across funded accounts. The
// algorithm is greedy, single-pass and deterministic: not globally optimal,
// but reproducible and bounded by O(accounts x offers) matching work plus
// O(plan size) emission.
type Planner struct {
	matcher *matching.Matcher
	stats   *stats.RunStats
	now     func() time.Time
}

// Options configures a Planner. Now defaults to time.Now.
type Options struct {
	Matcher *matching.Matcher
	Stats   *stats.RunStats
	Now     func() time.Time
}

// New creates a planner.
func New(opts Options) *Planner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Planner{matcher: opts.Matcher, stats: opts.Stats, now: now}
}

// Input is one planning request.
type Input struct {
	Accounts   []*domain.AccountSnapshot
	Candidates []*domain.OfferCandidate // already priority-sorted by the validator

	// Budgets maps account id to its current star budget.
	Budgets map[int64]int64

	// ForcedDestinationID routes purchases to a single destination. When
	// FallbackOnly is false the forced id preempts normal matching
	// entirely; when true, normal matching runs first and the forced id is
	// used only for candidates no configured rule admits.
	ForcedDestinationID *int64
	FallbackOnly        bool
}

// Plan processes accounts in descending budget order (richest first, so the
// most contended offers are exhausted before poorer accounts compete for
// leftovers) and candidates in priority order, emitting one operation per
// unit. Skips and deferrals are recorded on the shared run statistics.
func (p *Planner) Plan(in Input) *domain.PurchasePlan {
	remaining := make(map[int64]int64, len(in.Candidates))
	for _, c := range in.Candidates {
		remaining[c.OfferID] = c.AvailableAmount
	}
	already := make(map[[2]int64]int64)
	now := p.now()

	accounts := append([]*domain.AccountSnapshot(nil), in.Accounts...)
	sort.SliceStable(accounts, func(i, j int) bool {
		bi, bj := in.Budgets[accounts[i].ID], in.Budgets[accounts[j].ID]
		if bi != bj {
			return bi > bj
		}
		return accounts[i].ID < accounts[j].ID
	})

	for _, account := range accounts {
		budget := in.Budgets[account.ID]
		if budget <= 0 {
			continue
		}
		for _, c := range in.Candidates {
			if remaining[c.OfferID] <= 0 {
				continue
			}

			destinationID, ok := p.resolveDestination(c, in.ForcedDestinationID, in.FallbackOnly)
			if !ok {
				p.stats.RecordPlanSkip(c.OfferID, domain.ReasonNoChannelMatch,
					fmt.Sprintf("supply=%d price=%d", c.TotalSupply, c.Price))
				continue
			}

			if lockedUntil, locked := c.LockedUntil(account.ID); locked && lockedUntil.After(now) {
				p.stats.RecordDeferred(c.OfferID, account.ID, c.Price, lockedUntil)
				continue
			}

			capLeft := c.PerAccountCap - already[pair(account.ID, c.OfferID)]
			if capLeft <= 0 {
				p.stats.RecordPlanSkip(c.OfferID, domain.ReasonPerUserCapReached,
					fmt.Sprintf("acc=%d cap=%d", account.ID, c.PerAccountCap))
				continue
			}

			maxQty := min64(remaining[c.OfferID], budget/c.Price, capLeft)
			if maxQty <= 0 {
				if budget < c.Price {
					p.stats.RecordPlanSkip(c.OfferID, domain.ReasonNotEnoughStars,
						fmt.Sprintf("acc=%d bal=%d need=%d", account.ID, budget, c.Price))
				}
				continue
			}

			for qty := int64(0); qty < maxQty; qty++ {
				p.stats.RecordPlanned(domain.PurchaseOperation{
					AccountID:     account.ID,
					DestinationID: destinationID,
					OfferID:       c.OfferID,
					Price:         c.Price,
					Supply:        c.TotalSupply,
				})
				budget -= c.Price
				remaining[c.OfferID]--
				already[pair(account.ID, c.OfferID)]++
				if budget < c.Price || remaining[c.OfferID] <= 0 ||
					already[pair(account.ID, c.OfferID)] >= c.PerAccountCap {
					break
				}
			}
		}
	}
	return p.stats.Plan()
}

// resolveDestination applies the forced-id semantics of the planner: preempt
// when fallback mode is off, fall back after a match failure when it is on.
// The second result is false only when nothing resolves and no forced id
// exists.
func (p *Planner) resolveDestination(c *domain.OfferCandidate, forcedID *int64, fallbackOnly bool) (int64, bool) {
	if forcedID != nil && !fallbackOnly {
		if rule := p.matcher.BestFor(c, forcedID); rule != nil {
			return rule.DestinationID, true
		}
		// Forced id absent from the configured rules: treat it as a
		// synthetic destination.
		return *forcedID, true
	}
	if rule := p.matcher.BestFor(c, nil); rule != nil {
		return rule.DestinationID, true
	}
	if forcedID != nil {
		return *forcedID, true
	}
	return 0, false
}

func pair(accountID, offerID int64) [2]int64 {
	return [2]int64{accountID, offerID}
}

func min64(values ...int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
