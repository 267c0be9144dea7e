// Package orchestrator coordinates one full autobuy run for one user.
// Flow: load settings/accounts/destinations → refresh balances →
// validation → planning → execution → audit → report delivery.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/execution"
	"giftbuyer/internal/matching"
	"giftbuyer/internal/observability"
	"giftbuyer/internal/offers"
	"giftbuyer/internal/planning"
	"giftbuyer/internal/reporting"
	"giftbuyer/internal/stats"
	"giftbuyer/internal/storage"
)

// Orchestrator composes the purchase engine per user-run. Concurrency across
// users is achieved by running independent orchestrations concurrently; each
// run owns its statistics and account snapshots, nothing is shared.
type Orchestrator struct {
	accountStore     storage.AccountStore
	destinationStore storage.DestinationStore
	settingsStore    storage.SettingsStore
	eventStore       storage.PurchaseEventStore

	purchase PurchasePort
	notifier NotificationPort

	allowUnlimited bool
	metrics        *observability.Metrics
	logger         *zap.Logger
	now            func() time.Time
	newRunID       func() string
}

// Options for creating an Orchestrator.
type Options struct {
	// Required stores and ports
	AccountStore     storage.AccountStore
	DestinationStore storage.DestinationStore
	SettingsStore    storage.SettingsStore
	Purchase         PurchasePort

	// Optional collaborators
	EventStore storage.PurchaseEventStore // audit sink, best-effort
	Notifier   NotificationPort           // report delivery, best-effort
	Metrics    *observability.Metrics

	// Options
	AllowUnlimited bool // accept unbounded-supply offers
	Logger         *zap.Logger
	Now            func() time.Time
	NewRunID       func() string
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Orchestrator{
		accountStore:     opts.AccountStore,
		destinationStore: opts.DestinationStore,
		settingsStore:    opts.SettingsStore,
		eventStore:       opts.EventStore,
		purchase:         opts.Purchase,
		notifier:         opts.Notifier,
		allowUnlimited:   opts.AllowUnlimited,
		metrics:          opts.Metrics,
		logger:           logger,
		now:              now,
		newRunID:         newRunID,
	}
}

// Input is one autobuy request for one user.
type Input struct {
	UserID int64
	Offers []offers.RawOffer

	// Optional forced destination. When nil the user's configured default
	// applies, if any.
	ForcedDestinationID *int64
	ForcedFallbackOnly  bool
}

// Outcome is the structured result of one run. It always succeeds
// structurally: business conditions surface as reason-tagged statistics,
// never as errors.
type Outcome struct {
	RunID        string                     `json:"run_id"`
	Purchased    []domain.PurchaseOperation `json:"purchased"`
	SkippedCount int                        `json:"skipped_count"`
	Statistics   stats.Snapshot             `json:"statistics"`
	Deferred     []stats.DeferredEntry      `json:"deferred"`
}

// Run executes one full autobuy run. Only collaborator infrastructure
// failures (store reads) and context cancellation return an error; every
// business condition is folded into the outcome.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Outcome, error) {
	runID := o.newRunID()
	started := o.now()
	logger := o.logger.With(zap.String("run_id", runID), zap.Int64("user_id", in.UserID))

	settings, err := o.loadSettings(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !settings.AutobuyEnabled {
		logger.Info("autobuy disabled, skipping run")
		return o.emptyOutcome(runID, nil, domain.ReasonAutobuyDisabled), nil
	}

	forced, fallbackOnly := in.ForcedDestinationID, in.ForcedFallbackOnly
	if forced == nil && settings.ForcedDestinationID != nil {
		forced = settings.ForcedDestinationID
		fallbackOnly = settings.ForcedFallbackOnly
	}

	accounts, err := o.accountStore.ListForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	validator := offers.NewValidator()
	if o.allowUnlimited {
		validator = offers.NewValidatorAllowUnlimited()
	}
	candidates, rejected := validator.ValidateAll(in.Offers)
	o.observeValidation(candidates, rejected)

	if len(accounts) == 0 {
		logger.Info("no funded accounts, skipping run")
		return o.emptyOutcome(runID, rejected, domain.ReasonNoAccounts), nil
	}

	rules, err := o.destinationStore.ListForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 && forced == nil {
		logger.Info("no destinations configured, skipping run")
		return o.emptyOutcome(runID, rejected, domain.ReasonNoDestinations), nil
	}

	accounts = o.refreshBalances(ctx, logger, accounts)

	st := stats.New(rules, accounts)
	st.RecordRejections(rejected)

	budgets := make(map[int64]int64, len(accounts))
	index := make(map[int64]*domain.AccountSnapshot, len(accounts))
	for _, a := range accounts {
		budgets[a.ID] = a.Balance
		index[a.ID] = a
	}

	planner := planning.New(planning.Options{
		Matcher: matching.New(rules),
		Stats:   st,
		Now:     o.now,
	})
	plan := planner.Plan(planning.Input{
		Accounts:            accounts,
		Candidates:          candidates,
		Budgets:             budgets,
		ForcedDestinationID: forced,
		FallbackOnly:        fallbackOnly,
	})
	logger.Info("plan ready",
		zap.Int("operations", plan.Len()),
		zap.Int("candidates", len(candidates)),
		zap.Int("rejected", len(rejected)))

	engine := execution.New(execution.Options{
		Port:   o.purchase,
		Stats:  st,
		Logger: logger,
	})
	runErr := engine.Run(ctx, plan, index)

	snap := st.Snapshot()
	outcome := o.assemble(runID, plan, snap)
	o.observeRun(started, outcome, runErr)

	if runErr != nil {
		// Cancelled between operations; partial outcome is still valid,
		// audit and reporting are skipped.
		return outcome, runErr
	}

	o.auditPurchases(ctx, logger, runID, in.UserID, outcome.Purchased)
	o.deliverReport(ctx, logger, settings, accounts, snap, in.Offers)

	logger.Info("run finished",
		zap.Int("purchased", len(outcome.Purchased)),
		zap.Int("skipped", outcome.SkippedCount),
		zap.Int("deferred", len(outcome.Deferred)))
	return outcome, nil
}

// loadSettings treats an unconfigured user as disabled.
func (o *Orchestrator) loadSettings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	settings, err := o.settingsStore.GetUserSettings(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// refreshBalances fetches live balances in parallel; the calls are read-only
// and independent. An account whose fetch fails keeps a zero balance so the
// run continues without it.
func (o *Orchestrator) refreshBalances(ctx context.Context, logger *zap.Logger, accounts []*domain.AccountSnapshot) []*domain.AccountSnapshot {
	refreshed := make([]*domain.AccountSnapshot, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range accounts {
		g.Go(func() error {
			balance, err := o.purchase.FetchBalance(gctx, a)
			if err != nil {
				logger.Warn("balance fetch failed, treating as zero",
					zap.Int64("account_id", a.ID), zap.Error(err))
				balance = 0
			}
			refreshed[i] = a.WithBalance(balance)
			return nil
		})
	}
	_ = g.Wait()
	return refreshed
}

func (o *Orchestrator) emptyOutcome(runID string, rejected []offers.Rejection, reason string) *Outcome {
	skips := make([]stats.SkipRecord, 0, len(rejected))
	for _, r := range rejected {
		skips = append(skips, stats.SkipRecord{OfferID: r.OfferID, Reason: r.Reason, Details: r.Details})
	}
	if o.metrics != nil {
		o.metrics.RunsTotal.WithLabelValues(reason).Inc()
	}
	return &Outcome{
		RunID:      runID,
		Purchased:  []domain.PurchaseOperation{},
		Statistics: stats.EmptySnapshot(skips, reason),
		Deferred:   []stats.DeferredEntry{},
	}
}

// assemble flattens purchases across destinations into execution order and
// derives the skipped count as planned minus purchased.
func (o *Orchestrator) assemble(runID string, plan *domain.PurchasePlan, snap stats.Snapshot) *Outcome {
	purchased := make([]domain.PurchaseOperation, 0, snap.PurchasedTotal())
	remaining := purchasedCounts(snap)
	for _, op := range plan.Operations() {
		key := [2]int64{op.AccountID, op.OfferID}
		if remaining[key] > 0 {
			remaining[key]--
			purchased = append(purchased, op)
		}
	}

	return &Outcome{
		RunID:        runID,
		Purchased:    purchased,
		SkippedCount: plan.Len() - len(purchased),
		Statistics:   snap,
		Deferred:     snap.Deferred,
	}
}

func purchasedCounts(snap stats.Snapshot) map[[2]int64]int {
	counts := make(map[[2]int64]int)
	for _, d := range snap.Destinations {
		for _, p := range d.Purchased {
			counts[[2]int64{p.AccountID, p.OfferID}]++
		}
	}
	return counts
}

// auditPurchases writes one append-only event per (account, destination,
// offer) with the unit count. Best-effort: an audit failure never affects
// the purchase outcome.
func (o *Orchestrator) auditPurchases(ctx context.Context, logger *zap.Logger, runID string, userID int64, purchased []domain.PurchaseOperation) {
	if o.eventStore == nil || len(purchased) == 0 {
		return
	}

	at := o.now().UTC()
	var events []*domain.PurchaseEvent
	index := make(map[[3]int64]*domain.PurchaseEvent)
	for _, op := range purchased {
		key := [3]int64{op.AccountID, op.DestinationID, op.OfferID}
		if e, ok := index[key]; ok {
			e.Quantity++
			continue
		}
		e := &domain.PurchaseEvent{
			RunID:         runID,
			UserID:        userID,
			AccountID:     op.AccountID,
			DestinationID: op.DestinationID,
			OfferID:       op.OfferID,
			Price:         op.Price,
			Supply:        op.Supply,
			Quantity:      1,
			PurchasedAt:   at,
		}
		index[key] = e
		events = append(events, e)
	}
	if err := o.eventStore.InsertBulk(ctx, events); err != nil {
		logger.Warn("purchase audit insert failed", zap.Error(err))
	}
}

// deliverReport renders and dispatches the run report. Absence of a token or
// recipients, and any delivery failure, silently skip reporting.
func (o *Orchestrator) deliverReport(ctx context.Context, logger *zap.Logger, settings *domain.UserSettings, accounts []*domain.AccountSnapshot, snap stats.Snapshot, considered []offers.RawOffer) {
	if o.notifier == nil || settings.DeliveryToken == "" {
		return
	}

	recipients, err := o.purchase.ResolveRecipientIDs(ctx, accounts)
	if err != nil {
		logger.Warn("recipient resolution failed, skipping report", zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	lines := reporting.Build(snap, considered)
	chunks := reporting.SplitChunks(lines, reporting.MessageLimit)
	if err := o.notifier.Deliver(ctx, settings.DeliveryToken, recipients, chunks); err != nil {
		logger.Warn("report delivery failed", zap.Error(err))
		if o.metrics != nil {
			o.metrics.ReportFailures.Inc()
		}
		return
	}
	if o.metrics != nil {
		o.metrics.ReportChunksSent.Add(float64(len(chunks)))
	}
}

func (o *Orchestrator) observeValidation(candidates []*domain.OfferCandidate, rejected []offers.Rejection) {
	if o.metrics == nil {
		return
	}
	o.metrics.OffersValidated.Add(float64(len(candidates)))
	for _, r := range rejected {
		o.metrics.OffersRejected.WithLabelValues(r.Reason).Inc()
	}
}

func (o *Orchestrator) observeRun(started time.Time, out *Outcome, runErr error) {
	if o.metrics == nil {
		return
	}
	o.metrics.RunDuration.Observe(o.now().Sub(started).Seconds())
	o.metrics.OperationsPlanned.Add(float64(len(out.Statistics.Plan)))
	o.metrics.PurchasesTotal.Add(float64(len(out.Purchased)))
	o.metrics.Deferrals.Add(float64(len(out.Deferred)))
	for _, op := range out.Purchased {
		o.metrics.StarsSpent.Add(float64(op.Price))
	}
	for _, s := range out.Statistics.PlanSkips {
		o.metrics.PlanSkips.WithLabelValues(s.Reason).Inc()
	}
	for _, d := range out.Statistics.Destinations {
		for _, f := range d.Failed {
			o.metrics.PurchaseFailures.WithLabelValues(f.Code).Inc()
		}
	}
	switch {
	case runErr != nil:
		o.metrics.RunsTotal.WithLabelValues("cancelled").Inc()
	default:
		o.metrics.RunsTotal.WithLabelValues("completed").Inc()
		o.metrics.LastSuccessfulRun.SetToCurrentTime()
	}
}
