package stats

import "giftbuyer/internal/domain"

// Snapshot is the plain serializable form of RunStats, produced once at the
// end of a run for reporting and for the orchestrator's return value.
type Snapshot struct {
	Destinations map[int64]*DestinationLedger `json:"destinations"`
	Accounts     map[int64]*AccountLedger     `json:"accounts"`
	GlobalSkips  []SkipRecord                 `json:"global_skips"`
	PlanSkips    []SkipRecord                 `json:"plan_skips"`
	Deferred     []DeferredEntry              `json:"deferred"`
	Plan         []domain.PurchaseOperation   `json:"plan"`
}

// Snapshot copies the live ledgers into their serializable form.
func (s *RunStats) Snapshot() Snapshot {
	snap := Snapshot{
		Destinations: make(map[int64]*DestinationLedger, len(s.destinations)),
		Accounts:     make(map[int64]*AccountLedger, len(s.accounts)),
		GlobalSkips:  append([]SkipRecord(nil), s.globalSkips...),
		PlanSkips:    append([]SkipRecord(nil), s.planSkips...),
		Deferred:     append([]DeferredEntry(nil), s.deferred...),
		Plan:         append([]domain.PurchaseOperation(nil), s.plan.Operations()...),
	}
	for id, d := range s.destinations {
		cp := *d
		cp.Purchased = append([]PurchaseRecord(nil), d.Purchased...)
		cp.Failed = append([]FailureRecord(nil), d.Failed...)
		cp.Reasons = append([]FailureRecord(nil), d.Reasons...)
		snap.Destinations[id] = &cp
	}
	for id, a := range s.accounts {
		cp := *a
		snap.Accounts[id] = &cp
	}
	return snap
}

// EmptySnapshot builds the structure returned by reason-tagged early exits:
// no ledgers, the validator rejections, and one run-level skip reason.
func EmptySnapshot(rejected []SkipRecord, runReason string) Snapshot {
	skips := append([]SkipRecord(nil), rejected...)
	skips = append(skips, SkipRecord{Reason: runReason})
	return Snapshot{
		Destinations: map[int64]*DestinationLedger{},
		Accounts:     map[int64]*AccountLedger{},
		GlobalSkips:  skips,
		PlanSkips:    []SkipRecord{},
		Deferred:     []DeferredEntry{},
		Plan:         []domain.PurchaseOperation{},
	}
}

// PurchasedTotal counts successful purchases across all destinations.
func (s Snapshot) PurchasedTotal() int {
	var n int
	for _, d := range s.Destinations {
		n += len(d.Purchased)
	}
	return n
}
