package memory

import (
	"context"
	"sort"
	"sync"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.AccountSnapshot // keyed by account id
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		data: make(map[int64]*domain.AccountSnapshot),
	}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Insert adds a new account. Returns ErrDuplicateKey if the id exists.
func (s *AccountStore) Insert(_ context.Context, a *domain.AccountSnapshot) error {
	if a == nil || a.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	accountCopy := *a
	s.data[a.ID] = &accountCopy
	return nil
}

// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
func (s *AccountStore) GetByID(_ context.Context, accountID int64) (*domain.AccountSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[accountID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	accountCopy := *a
	return &accountCopy, nil
}

// ListForUser retrieves all accounts of a user, ordered by id ASC.
func (s *AccountStore) ListForUser(_ context.Context, userID int64) ([]*domain.AccountSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AccountSnapshot
	for _, a := range s.data {
		if a.UserID == userID {
			accountCopy := *a
			result = append(result, &accountCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}
