// Package scheduler re-runs purchases that were deferred by account locks
// once their unlock time arrives.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"giftbuyer/internal/offers"
	"giftbuyer/internal/stats"
)

// idlePark bounds how long the loop sleeps with nothing due.
const idlePark = time.Minute

// RunFunc receives the entries whose unlock time has passed.
type RunFunc func(ctx context.Context, due []stats.DeferredEntry)

// Options configures a Scheduler.
type Options struct {
	// Run is invoked with due entries. Required.
	Run RunFunc

	Logger *zap.Logger

	// Now overrides the clock.
	Now func() time.Time
}

type key struct {
	offerID   int64
	accountID int64
}

type item struct {
	entry stats.DeferredEntry
	runAt time.Time
}

// Scheduler holds deferred (offer, account) retries and dispatches them when
// their run time arrives.
type Scheduler struct {
	run    RunFunc
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[key]item

	wake chan struct{}
	wg   sync.WaitGroup
}

// New creates a Scheduler. Call Start to begin dispatching.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		run:     opts.Run,
		logger:  logger,
		now:     now,
		pending: make(map[key]item),
		wake:    make(chan struct{}, 1),
	}
}

// Schedule queues deferred entries. A second entry for the same offer and
// account keeps the earlier run time. Entries with an unparseable run time
// are dropped.
func (s *Scheduler) Schedule(entries []stats.DeferredEntry) {
	s.mu.Lock()
	for _, e := range entries {
		runAt, ok := offers.ParseLockValue(e.RunAt)
		if !ok {
			s.logger.Warn("deferred entry has unparseable run time",
				zap.Int64("offer_id", e.OfferID),
				zap.Int64("account_id", e.AccountID),
				zap.String("run_at", e.RunAt))
			continue
		}
		k := key{offerID: e.OfferID, accountID: e.AccountID}
		if cur, exists := s.pending[k]; exists && !runAt.Before(cur.runAt) {
			continue
		}
		s.pending[k] = item{entry: e, runAt: runAt}
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many retries are queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Start launches the dispatch loop. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the dispatch loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(idlePark)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.nextWait())

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}

		due := s.takeDue()
		if len(due) > 0 {
			s.logger.Info("dispatching deferred purchases", zap.Int("count", len(due)))
			s.run(ctx, due)
		}
	}
}

// nextWait returns the time until the earliest pending entry, capped at
// idlePark.
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := idlePark
	now := s.now()
	for _, it := range s.pending {
		d := it.runAt.Sub(now)
		if d < 0 {
			d = 0
		}
		if d < wait {
			wait = d
		}
	}
	return wait
}

// takeDue removes and returns entries whose run time has passed, ordered by
// run time then offer id.
func (s *Scheduler) takeDue() []stats.DeferredEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []item
	for k, it := range s.pending {
		if !it.runAt.After(now) {
			due = append(due, it)
			delete(s.pending, k)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].runAt.Equal(due[j].runAt) {
			return due[i].runAt.Before(due[j].runAt)
		}
		return due[i].entry.OfferID < due[j].entry.OfferID
	})

	entries := make([]stats.DeferredEntry, len(due))
	for i, it := range due {
		entries[i] = it.entry
	}
	return entries
}
