package domain

// Machine-readable rejection and skip reasons. These accumulate in run
// statistics and never raise out of the engine.
const (
	// Validation rejections (before planning).
	ReasonInvalidID         = "invalid/id"
	ReasonInvalidPrice      = "invalid/price"
	ReasonUnlimited         = "unlimited"
	ReasonNoSupplyForLimited = "no_supply_for_limited"

	// Planning skips.
	ReasonNoChannelMatch       = "no_channel_match"
	ReasonPerUserCapReached    = "per_user_cap_reached"
	ReasonNotEnoughStars       = "not_enough_stars_account"
	ReasonLockedUntil          = "locked_until"

	// Execution outcomes.
	ReasonInsufficientBalance = "insufficient_account_balance"
	ReasonSendGiftFailed      = "send_gift_failed"

	// Early-exit run reasons.
	ReasonAutobuyDisabled = "autobuy_disabled"
	ReasonNoAccounts      = "no_accounts"
	ReasonNoDestinations  = "no_destinations"
)
