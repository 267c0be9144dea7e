// Package resilience wraps the purchase port with retries and a circuit
// breaker. Read-only calls are retried with exponential backoff; Send is
// dispatched at most once because a timed-out send may still have landed.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/orchestrator"
)

const (
	defaultMaxRetries       = 3
	defaultInitialInterval  = 200 * time.Millisecond
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Options configures a resilient Port.
type Options struct {
	// Port is the wrapped purchase collaborator.
	Port orchestrator.PurchasePort

	// MaxRetries bounds retry attempts for read-only calls.
	MaxRetries uint64

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold uint32

	// Cooldown is how long the breaker stays open before a half-open probe.
	Cooldown time.Duration

	Logger *zap.Logger
}

// Port decorates an orchestrator.PurchasePort. All calls flow through one
// shared circuit breaker; only FetchBalance and ResolveRecipientIDs retry.
type Port struct {
	inner           orchestrator.PurchasePort
	breaker         *gobreaker.CircuitBreaker
	maxRetries      uint64
	initialInterval time.Duration
	logger          *zap.Logger
}

var _ orchestrator.PurchasePort = (*Port)(nil)

// New wraps opts.Port. Zero option fields fall back to defaults.
func New(opts Options) *Port {
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	interval := opts.InitialInterval
	if interval <= 0 {
		interval = defaultInitialInterval
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "purchase-port",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Port{
		inner:           opts.Port,
		breaker:         breaker,
		maxRetries:      maxRetries,
		initialInterval: interval,
		logger:          logger,
	}
}

// FetchBalance retries transient failures with exponential backoff.
func (p *Port) FetchBalance(ctx context.Context, account *domain.AccountSnapshot) (int64, error) {
	var balance int64
	err := backoff.Retry(func() error {
		v, err := p.breaker.Execute(func() (interface{}, error) {
			return p.inner.FetchBalance(ctx, account)
		})
		if err != nil {
			return p.classify(err)
		}
		balance = v.(int64)
		return nil
	}, p.newBackOff(ctx))
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Send dispatches exactly once. An open breaker short-circuits the call.
func (p *Port) Send(ctx context.Context, op domain.PurchaseOperation, account *domain.AccountSnapshot) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.inner.Send(ctx, op, account)
	})
	return err
}

// ResolveRecipientIDs retries transient failures with exponential backoff.
func (p *Port) ResolveRecipientIDs(ctx context.Context, accounts []*domain.AccountSnapshot) ([]int64, error) {
	var ids []int64
	err := backoff.Retry(func() error {
		v, err := p.breaker.Execute(func() (interface{}, error) {
			return p.inner.ResolveRecipientIDs(ctx, accounts)
		})
		if err != nil {
			return p.classify(err)
		}
		ids = v.([]int64)
		return nil
	}, p.newBackOff(ctx))
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// classify marks open-breaker errors permanent so retries stop immediately.
func (p *Port) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return backoff.Permanent(err)
	}
	return err
}

func (p *Port) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, p.maxRetries), ctx)
}
