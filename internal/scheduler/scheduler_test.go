package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"giftbuyer/internal/offers"
	"giftbuyer/internal/stats"
)

type runRecorder struct {
	mu    sync.Mutex
	calls [][]stats.DeferredEntry
	fired chan struct{}
}

func newRunRecorder() *runRecorder {
	return &runRecorder{fired: make(chan struct{}, 8)}
}

func (r *runRecorder) run(_ context.Context, due []stats.DeferredEntry) {
	r.mu.Lock()
	r.calls = append(r.calls, due)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *runRecorder) lastCall() []stats.DeferredEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func entry(offerID, accountID int64, runAt time.Time) stats.DeferredEntry {
	return stats.DeferredEntry{
		OfferID:   offerID,
		AccountID: accountID,
		Price:     25,
		RunAt:     offers.FormatUTC(runAt),
		Reason:    "locked_until",
	}
}

func TestScheduler_DispatchesWhenDue(t *testing.T) {
	rec := newRunRecorder()
	s := New(Options{Run: rec.run})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	runAt := time.Now().Add(20 * time.Millisecond)
	s.Schedule([]stats.DeferredEntry{entry(10, 1, runAt), entry(11, 1, runAt)})
	if got := s.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred entries never dispatched")
	}

	due := rec.lastCall()
	if len(due) != 2 {
		t.Fatalf("dispatched %d entries, want 2", len(due))
	}
	if due[0].OfferID != 10 || due[1].OfferID != 11 {
		t.Fatalf("dispatch order = %d, %d, want 10, 11", due[0].OfferID, due[1].OfferID)
	}
	if got := s.Pending(); got != 0 {
		t.Fatalf("Pending() after dispatch = %d, want 0", got)
	}
}

func TestScheduler_DuplicateKeepsEarlierRunTime(t *testing.T) {
	s := New(Options{Run: func(context.Context, []stats.DeferredEntry) {}})

	later := time.Now().Add(time.Hour)
	earlier := time.Now().Add(time.Minute)
	s.Schedule([]stats.DeferredEntry{entry(10, 1, later)})
	s.Schedule([]stats.DeferredEntry{entry(10, 1, earlier)})
	s.Schedule([]stats.DeferredEntry{entry(10, 1, later)})

	if got := s.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	due := s.takeDueAt(earlier.Add(time.Second))
	if len(due) != 1 {
		t.Fatalf("due at earlier time = %d entries, want 1", len(due))
	}
}

// takeDueAt drains entries due at a fixed moment, for tests only.
func (s *Scheduler) takeDueAt(at time.Time) []stats.DeferredEntry {
	saved := s.now
	s.now = func() time.Time { return at }
	defer func() { s.now = saved }()
	return s.takeDue()
}

func TestScheduler_NotDueStaysPending(t *testing.T) {
	rec := newRunRecorder()
	s := New(Options{Run: rec.run})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Schedule([]stats.DeferredEntry{entry(10, 1, time.Now().Add(time.Hour))})

	select {
	case <-rec.fired:
		t.Fatal("entry dispatched before its run time")
	case <-time.After(50 * time.Millisecond):
	}
	if got := s.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
}

func TestScheduler_DropsUnparseableRunTime(t *testing.T) {
	s := New(Options{Run: func(context.Context, []stats.DeferredEntry) {}})

	s.Schedule([]stats.DeferredEntry{{OfferID: 10, AccountID: 1, RunAt: "soon"}})

	if got := s.Pending(); got != 0 {
		t.Fatalf("Pending() = %d, want 0", got)
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	s := New(Options{Run: func(context.Context, []stats.DeferredEntry) {}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}
