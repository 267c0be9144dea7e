package postgres

import (
	"context"
	"fmt"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/storage"
)

// SettingsStore implements storage.SettingsStore using PostgreSQL.
type SettingsStore struct {
	pool *Pool
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(pool *Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SettingsStore = (*SettingsStore)(nil)

// Upsert creates or replaces the settings row for settings.UserID.
func (s *SettingsStore) Upsert(ctx context.Context, settings *domain.UserSettings) error {
	if settings == nil || settings.UserID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO user_settings (
			user_id, autobuy_enabled, delivery_token, forced_destination_id, forced_fallback_only, updated_at
		) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			autobuy_enabled = EXCLUDED.autobuy_enabled,
			delivery_token = EXCLUDED.delivery_token,
			forced_destination_id = EXCLUDED.forced_destination_id,
			forced_fallback_only = EXCLUDED.forced_fallback_only,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		settings.UserID, settings.AutobuyEnabled, settings.DeliveryToken,
		settings.ForcedDestinationID, settings.ForcedFallbackOnly,
	)
	if err != nil {
		return fmt.Errorf("upsert user settings: %w", err)
	}
	return nil
}

// GetUserSettings retrieves settings for a user. Returns ErrNotFound if the
// user has never been configured.
func (s *SettingsStore) GetUserSettings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	query := `
		SELECT user_id, autobuy_enabled, delivery_token, forced_destination_id, forced_fallback_only
		FROM user_settings
		WHERE user_id = $1
	`

	settings := &domain.UserSettings{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&settings.UserID, &settings.AutobuyEnabled, &settings.DeliveryToken,
		&settings.ForcedDestinationID, &settings.ForcedFallbackOnly,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return settings, nil
}
