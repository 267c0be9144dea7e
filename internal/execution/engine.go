// Package execution drains a purchase plan against the external purchase
// port with per-operation failure isolation.
package execution

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/stats"
)

// PurchasePort is the narrow contract the engine needs: send exactly one
// operation. The port is at-least-once-unsafe — a timeout after dispatch is
// an unknown outcome and must surface as an error, never be retried here.
type PurchasePort interface {
	Send(ctx context.Context, op domain.PurchaseOperation, account *domain.AccountSnapshot) error
}

// SendError is a purchase-port failure carrying an opaque reason code.
type SendError struct {
	Code    string
	Message string
}

func (e *SendError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Engine replays a plan strictly sequentially and in plan order. Earlier
// operations can exhaust an account's balance, causing later operations on
// the same account to be skipped deterministically.
type Engine struct {
	port   PurchasePort
	stats  *stats.RunStats
	logger *zap.Logger
}

// Options configures an Engine.
type Options struct {
	Port   PurchasePort
	Stats  *stats.RunStats
	Logger *zap.Logger
}

// New creates an execution engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{port: opts.Port, stats: opts.Stats, logger: logger}
}

// Run executes every operation in plan order. One operation's failure never
// aborts the batch; only context cancellation does, and only between
// operations so no operation is left with an unrecorded outcome.
func (e *Engine) Run(ctx context.Context, plan *domain.PurchasePlan, accounts map[int64]*domain.AccountSnapshot) error {
	for _, op := range plan.Operations() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		account, ok := accounts[op.AccountID]
		if !ok {
			e.logger.Error("planned operation references unknown account",
				zap.Int64("account_id", op.AccountID), zap.Int64("offer_id", op.OfferID))
			continue
		}
		if account.Balance < op.Price {
			e.stats.RecordReason(op, domain.ReasonInsufficientBalance, account.Balance, op.Price)
			continue
		}

		if err := e.port.Send(ctx, op, account); err != nil {
			e.stats.RecordFailure(op, failureCode(err))
			e.logger.Warn("send failed",
				zap.Int64("account_id", op.AccountID),
				zap.Int64("destination_id", op.DestinationID),
				zap.Int64("offer_id", op.OfferID),
				zap.Error(err))
			continue
		}

		if err := account.Debit(op.Price); err != nil {
			// Cannot happen after the balance check above.
			e.logger.Error("debit failed after successful send", zap.Error(err))
			continue
		}
		e.stats.RecordPurchase(op, account.Balance)
	}
	return nil
}

const maxFailureCodeLen = 200

func failureCode(err error) string {
	var se *SendError
	if errors.As(err, &se) {
		return se.Code
	}
	code := err.Error()
	if len(code) > maxFailureCodeLen {
		code = code[:maxFailureCodeLen]
	}
	return code
}
