package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// PurchaseEventStore is an in-memory implementation of storage.PurchaseEventStore.
type PurchaseEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PurchaseEvent // keyed by (run_id, account_id, offer_id)
}

// NewPurchaseEventStore creates a new in-memory purchase event store.
func NewPurchaseEventStore() *PurchaseEventStore {
	return &PurchaseEventStore{
		data: make(map[string]*domain.PurchaseEvent),
	}
}

// Compile-time interface check.
var _ storage.PurchaseEventStore = (*PurchaseEventStore)(nil)

func eventKey(e *domain.PurchaseEvent) string {
	return fmt.Sprintf("%s:%d:%d", e.RunID, e.AccountID, e.OfferID)
}

// InsertBulk adds multiple events atomically. Fails the entire batch on any
// duplicate (run_id, account_id, offer_id).
func (s *PurchaseEventStore) InsertBulk(_ context.Context, events []*domain.PurchaseEvent) error {
	for _, e := range events {
		if e == nil || e.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the full batch before writing anything.
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		key := eventKey(e)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, e := range events {
		eventCopy := *e
		s.data[eventKey(e)] = &eventCopy
	}
	return nil
}

// GetByRunID retrieves all events of one run, ordered by purchased_at ASC.
func (s *PurchaseEventStore) GetByRunID(_ context.Context, runID string) ([]*domain.PurchaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PurchaseEvent
	for _, e := range s.data {
		if e.RunID == runID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PurchasedAt.Equal(result[j].PurchasedAt) {
			return result[i].PurchasedAt.Before(result[j].PurchasedAt)
		}
		return result[i].OfferID < result[j].OfferID
	})

	return result, nil
}
