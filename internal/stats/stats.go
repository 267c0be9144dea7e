// Package stats holds the mutable run-scoped ledger of planning and
// execution outcomes. One RunStats instance is owned by a single
// orchestration run and is never shared across runs.
package stats

import (
	"time"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/offers"
)

// PurchaseRecord is one successful purchase in a destination ledger.
type PurchaseRecord struct {
	OfferID   int64 `json:"offer_id"`
	Price     int64 `json:"price"`
	Supply    int64 `json:"supply"`
	AccountID int64 `json:"account_id"`
}

// FailureRecord is one failed or skipped operation in a destination ledger.
// Balance and Need are set for balance-related reasons, Code carries the
// opaque reason code of a port failure.
type FailureRecord struct {
	OfferID   int64  `json:"offer_id"`
	Price     int64  `json:"price"`
	AccountID int64  `json:"account_id"`
	Reason    string `json:"reason"`
	Code      string `json:"code,omitempty"`
	Balance   *int64 `json:"balance,omitempty"`
	Need      *int64 `json:"need,omitempty"`
}

// SkipRecord is an offer excluded before or during planning.
type SkipRecord struct {
	OfferID int64    `json:"offer_id"`
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

// DeferredEntry is a plan-eligible purchase withheld by an active time lock,
// to be retried later by an external scheduler.
type DeferredEntry struct {
	OfferID   int64  `json:"offer_id"`
	AccountID int64  `json:"account_id"`
	Price     int64  `json:"price"`
	RunAt     string `json:"run_at"` // RFC 3339 UTC
	Reason    string `json:"reason"`
}

// DestinationLedger aggregates outcomes for one destination.
type DestinationLedger struct {
	RuleID    *int64           `json:"rule_id"` // nil for synthetic forced destinations
	Planned   int              `json:"planned"`
	Purchased []PurchaseRecord `json:"purchased"`
	Failed    []FailureRecord  `json:"failed"`
	Reasons   []FailureRecord  `json:"reasons"`
}

// AccountLedger aggregates outcomes for one account.
type AccountLedger struct {
	BalanceStart int64 `json:"balance_start"`
	BalanceEnd   int64 `json:"balance_end"`
	Spent        int64 `json:"spent"`
	Purchases    int   `json:"purchases"`
	Planned      int   `json:"planned"`
}

// RunStats is the canonical plan holder and outcome ledger for one run.
type RunStats struct {
	destinations map[int64]*DestinationLedger
	accounts     map[int64]*AccountLedger
	globalSkips  []SkipRecord
	planSkips    []SkipRecord
	deferred     []DeferredEntry
	deferredSeen map[pairKey]struct{}
	plan         domain.PurchasePlan
}

type pairKey struct {
	offerID   int64
	accountID int64
}

// New creates run statistics seeded from the initial destination and account
// sets.
func New(destinations []*domain.DestinationRule, accounts []*domain.AccountSnapshot) *RunStats {
	s := &RunStats{
		destinations: make(map[int64]*DestinationLedger, len(destinations)),
		accounts:     make(map[int64]*AccountLedger, len(accounts)),
		deferredSeen: make(map[pairKey]struct{}),
	}
	for _, d := range destinations {
		ruleID := d.ID
		s.destinations[d.DestinationID] = &DestinationLedger{RuleID: &ruleID}
	}
	for _, a := range accounts {
		s.accounts[a.ID] = &AccountLedger{BalanceStart: a.Balance, BalanceEnd: a.Balance}
	}
	return s
}

// Plan returns the plan accumulated by RecordPlanned, in order.
func (s *RunStats) Plan() *domain.PurchasePlan { return &s.plan }

// Deferred returns the deferral entries recorded so far.
func (s *RunStats) Deferred() []DeferredEntry { return s.deferred }

// RecordGlobalSkip records an offer rejected before planning.
func (s *RunStats) RecordGlobalSkip(offerID int64, reason string, details ...string) {
	s.globalSkips = append(s.globalSkips, SkipRecord{OfferID: offerID, Reason: reason, Details: details})
}

// RecordRejections copies validator rejections into the global-skip list.
func (s *RunStats) RecordRejections(rejected []offers.Rejection) {
	for _, r := range rejected {
		s.globalSkips = append(s.globalSkips, SkipRecord{OfferID: r.OfferID, Reason: r.Reason, Details: r.Details})
	}
}

// RecordPlanSkip records an offer/account pair rejected during planning.
func (s *RunStats) RecordPlanSkip(offerID int64, reason string, details ...string) {
	s.planSkips = append(s.planSkips, SkipRecord{OfferID: offerID, Reason: reason, Details: details})
}

// RecordPlanned appends the operation to the plan and bumps the planned
// counters, creating ledgers for synthetic destinations on demand.
func (s *RunStats) RecordPlanned(op domain.PurchaseOperation) {
	s.plan.Append(op)
	s.destination(op.DestinationID).Planned++
	acc, ok := s.accounts[op.AccountID]
	if !ok {
		acc = &AccountLedger{}
		s.accounts[op.AccountID] = acc
	}
	acc.Planned++
}

// RecordPurchase records a successful purchase and the account's new balance.
func (s *RunStats) RecordPurchase(op domain.PurchaseOperation, balanceAfter int64) {
	s.destination(op.DestinationID).Purchased = append(s.destination(op.DestinationID).Purchased, PurchaseRecord{
		OfferID:   op.OfferID,
		Price:     op.Price,
		Supply:    op.Supply,
		AccountID: op.AccountID,
	})
	if acc, ok := s.accounts[op.AccountID]; ok {
		acc.Spent += op.Price
		acc.Purchases++
		acc.BalanceEnd = balanceAfter
	}
}

// RecordFailure records a hard failure from the purchase port with its
// opaque reason code.
func (s *RunStats) RecordFailure(op domain.PurchaseOperation, code string) {
	d := s.destination(op.DestinationID)
	d.Failed = append(d.Failed, FailureRecord{
		OfferID:   op.OfferID,
		Price:     op.Price,
		AccountID: op.AccountID,
		Reason:    domain.ReasonSendGiftFailed,
		Code:      code,
	})
}

// RecordReason records a soft skip of an executable operation, with the
// balance shortfall that caused it.
func (s *RunStats) RecordReason(op domain.PurchaseOperation, reason string, balance, need int64) {
	d := s.destination(op.DestinationID)
	d.Reasons = append(d.Reasons, FailureRecord{
		OfferID:   op.OfferID,
		Price:     op.Price,
		AccountID: op.AccountID,
		Reason:    reason,
		Balance:   &balance,
		Need:      &need,
	})
}

// RecordDeferred records one deferral for the (offer, account) pair. Repeat
// deferrals of the same pair are dropped; returns whether an entry was added.
func (s *RunStats) RecordDeferred(offerID, accountID, price int64, runAt time.Time) bool {
	key := pairKey{offerID: offerID, accountID: accountID}
	if _, seen := s.deferredSeen[key]; seen {
		return false
	}
	s.deferredSeen[key] = struct{}{}
	s.deferred = append(s.deferred, DeferredEntry{
		OfferID:   offerID,
		AccountID: accountID,
		Price:     price,
		RunAt:     offers.FormatUTC(runAt),
		Reason:    domain.ReasonLockedUntil,
	})
	return true
}

func (s *RunStats) destination(destinationID int64) *DestinationLedger {
	d, ok := s.destinations[destinationID]
	if !ok {
		d = &DestinationLedger{}
		s.destinations[destinationID] = d
	}
	return d
}
