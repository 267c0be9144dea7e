package memory

import (
	"context"
	"sync"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// SettingsStore is an in-memory implementation of storage.SettingsStore.
type SettingsStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.UserSettings // keyed by user id
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		data: make(map[int64]*domain.UserSettings),
	}
}

// Compile-time interface check.
var _ storage.SettingsStore = (*SettingsStore)(nil)

// Upsert creates or replaces the settings row for s.UserID.
func (s *SettingsStore) Upsert(_ context.Context, settings *domain.UserSettings) error {
	if settings == nil || settings.UserID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settingsCopy := *settings
	if settings.ForcedDestinationID != nil {
		forced := *settings.ForcedDestinationID
		settingsCopy.ForcedDestinationID = &forced
	}
	s.data[settings.UserID] = &settingsCopy
	return nil
}

// GetUserSettings retrieves settings for a user. Returns ErrNotFound if the
// user has never been configured.
func (s *SettingsStore) GetUserSettings(_ context.Context, userID int64) (*domain.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	settingsCopy := *settings
	if settings.ForcedDestinationID != nil {
		forced := *settings.ForcedDestinationID
		settingsCopy.ForcedDestinationID = &forced
	}
	return &settingsCopy, nil
}
