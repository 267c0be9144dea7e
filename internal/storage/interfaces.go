package storage

import (
	"context"

	"giftbuyer/internal/domain"
)

// AccountStore provides access to purchase accounts.
type AccountStore interface {
	// Insert adds a new account. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.AccountSnapshot) error

	// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, accountID int64) (*domain.AccountSnapshot, error)

	// ListForUser retrieves all accounts of a user, ordered by id ASC.
	ListForUser(ctx context.Context, userID int64) ([]*domain.AccountSnapshot, error)
}

// DestinationStore provides access to destination matching rules.
type DestinationStore interface {
	// Insert adds a new rule. Returns ErrDuplicateKey if the id exists and
	// ErrInvalidInput if the rule fails validation.
	Insert(ctx context.Context, r *domain.DestinationRule) error

	// ListForUser retrieves all rules of a user, ordered by id ASC.
	ListForUser(ctx context.Context, userID int64) ([]*domain.DestinationRule, error)

	// Delete removes a rule. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, ruleID int64) error
}

// SettingsStore provides access to per-user autobuy settings.
type SettingsStore interface {
	// Upsert creates or replaces the settings row for settings.UserID.
	Upsert(ctx context.Context, s *domain.UserSettings) error

	// GetUserSettings retrieves settings for a user. Returns ErrNotFound if
	// the user has never been configured.
	GetUserSettings(ctx context.Context, userID int64) (*domain.UserSettings, error)
}

// PurchaseEventStore provides access to the append-only purchase audit log.
type PurchaseEventStore interface {
	// InsertBulk adds multiple events. Fails the entire batch on any
	// duplicate (run_id, account_id, offer_id).
	InsertBulk(ctx context.Context, events []*domain.PurchaseEvent) error

	// GetByRunID retrieves all events of one run, ordered by purchased_at ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.PurchaseEvent, error)
}
