package orchestrator

import (
	"context"

	"giftbuyer/internal/domain"
)

// PurchasePort is the external purchase collaborator. Send is
// at-least-once-unsafe: a timeout after dispatch is an unknown outcome and
// must surface as an error, never be retried here.
type PurchasePort interface {
	// FetchBalance returns the live star balance of an account.
	FetchBalance(ctx context.Context, account *domain.AccountSnapshot) (int64, error)

	// Send dispatches exactly one purchase operation.
	Send(ctx context.Context, op domain.PurchaseOperation, account *domain.AccountSnapshot) error

	// ResolveRecipientIDs resolves the self-chat ids used as report recipients.
	ResolveRecipientIDs(ctx context.Context, accounts []*domain.AccountSnapshot) ([]int64, error)
}

// NotificationPort delivers rendered report chunks. Failures are logged by
// the caller, never propagated.
type NotificationPort interface {
	Deliver(ctx context.Context, token string, recipientIDs []int64, chunks []string) error
}
