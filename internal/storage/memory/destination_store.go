package memory

import (
	"context"
	"sort"
	"sync"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// DestinationStore is an in-memory implementation of storage.DestinationStore.
type DestinationStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.DestinationRule // keyed by rule id
}

// NewDestinationStore creates a new in-memory destination store.
func NewDestinationStore() *DestinationStore {
	return &DestinationStore{
		data: make(map[int64]*domain.DestinationRule),
	}
}

// Compile-time interface check.
var _ storage.DestinationStore = (*DestinationStore)(nil)

// Insert adds a new rule. Returns ErrDuplicateKey if the id exists and
// ErrInvalidInput if the rule fails validation.
func (s *DestinationStore) Insert(_ context.Context, r *domain.DestinationRule) error {
	if r == nil || r.ID == 0 {
		return storage.ErrInvalidInput
	}
	if err := r.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	ruleCopy := *r
	s.data[r.ID] = &ruleCopy
	return nil
}

// ListForUser retrieves all rules of a user, ordered by id ASC.
func (s *DestinationStore) ListForUser(_ context.Context, userID int64) ([]*domain.DestinationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DestinationRule
	for _, r := range s.data {
		if r.UserID == userID {
			ruleCopy := *r
			result = append(result, &ruleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Delete removes a rule. Returns ErrNotFound if not exists.
func (s *DestinationStore) Delete(_ context.Context, ruleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[ruleID]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, ruleID)
	return nil
}
