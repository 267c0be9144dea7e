// Package giftapi is the HTTP client for the external gift purchase service.
package giftapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/execution"
	"giftbuyer/internal/observability"
	"giftbuyer/internal/orchestrator"
)

const defaultTimeout = 15 * time.Second

// Client implements orchestrator.PurchasePort against the gift service API.
type Client struct {
	rest    *resty.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Options for creating a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// New creates a gift API client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rest := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{rest: rest, logger: logger, metrics: opts.Metrics}
}

// Compile-time interface check.
var _ orchestrator.PurchasePort = (*Client)(nil)

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type sendRequest struct {
	AccountID     int64 `json:"account_id"`
	DestinationID int64 `json:"destination_id"`
	OfferID       int64 `json:"offer_id"`
	Price         int64 `json:"price"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type resolveRequest struct {
	AccountIDs []int64 `json:"account_ids"`
}

type resolveResponse struct {
	RecipientIDs []int64 `json:"recipient_ids"`
}

// FetchBalance returns the live star balance of an account.
func (c *Client) FetchBalance(ctx context.Context, account *domain.AccountSnapshot) (int64, error) {
	var out balanceResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Account-Credentials", account.Credentials).
		SetResult(&out).
		Get(fmt.Sprintf("/api/accounts/%d/balance", account.ID))
	if err != nil {
		return 0, fmt.Errorf("fetch balance for account %d: %w", account.ID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("fetch balance for account %d: status %d", account.ID, resp.StatusCode())
	}
	return out.Balance, nil
}

// Send dispatches exactly one purchase operation. A non-2xx response carrying
// a machine-readable code surfaces as *execution.SendError.
func (c *Client) Send(ctx context.Context, op domain.PurchaseOperation, account *domain.AccountSnapshot) error {
	started := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.SendLatency.Observe(time.Since(started).Seconds())
		}
	}()

	var apiErr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Account-Credentials", account.Credentials).
		SetBody(sendRequest{
			AccountID:     op.AccountID,
			DestinationID: op.DestinationID,
			OfferID:       op.OfferID,
			Price:         op.Price,
		}).
		SetError(&apiErr).
		Post("/api/gifts/send")
	if err != nil {
		return fmt.Errorf("send gift %d: %w", op.OfferID, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	if apiErr.Code != "" {
		return &execution.SendError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return &execution.SendError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode())}
}

// ResolveRecipientIDs resolves the self-chat ids used as report recipients.
func (c *Client) ResolveRecipientIDs(ctx context.Context, accounts []*domain.AccountSnapshot) ([]int64, error) {
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	var out resolveResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(resolveRequest{AccountIDs: ids}).
		SetResult(&out).
		Post("/api/accounts/resolve")
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("resolve recipients: status %d", resp.StatusCode())
	}
	return out.RecipientIDs, nil
}
