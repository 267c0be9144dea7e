package domain

import "time"

// UserSettings carries the per-user knobs the orchestrator needs.
type UserSettings struct {
	UserID         int64
	AutobuyEnabled bool
	DeliveryToken  string // bot token used for report delivery, may be empty

	// Optional default forced destination applied when a run does not
	// supply one explicitly.
	ForcedDestinationID *int64
	ForcedFallbackOnly  bool
}

// PurchaseEvent is an append-only audit record of the successful purchases
// one account made of one offer within a run. Quantity counts the units.
type PurchaseEvent struct {
	RunID         string
	UserID        int64
	AccountID     int64
	DestinationID int64
	OfferID       int64
	Price         int64
	Supply        int64
	Quantity      int64
	PurchasedAt   time.Time
}
