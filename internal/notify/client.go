// Package notify delivers rendered report chunks through the bot messaging API.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"giftbuyer/internal/orchestrator"
)

const defaultTimeout = 10 * time.Second

// Client implements orchestrator.NotificationPort over the bot HTTP API.
// Each chunk is sent as one message to every recipient, in order.
type Client struct {
	rest   *resty.Client
	logger *zap.Logger
}

// Options for creating a Client.
type Options struct {
	BaseURL string // e.g. https://api.telegram.org
	Timeout time.Duration
	Logger  *zap.Logger
}

// New creates a notification client.
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
	return &Client{rest: rest, logger: logger}
}

// Compile-time interface check.
var _ orchestrator.NotificationPort = (*Client)(nil)

type message struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Deliver sends every chunk to every recipient. The first failure aborts
// delivery; the caller treats it as best-effort and only logs it.
func (c *Client) Deliver(ctx context.Context, token string, recipientIDs []int64, chunks []string) error {
	if token == "" {
		return fmt.Errorf("deliver: empty token")
	}

	path := fmt.Sprintf("/bot%s/sendMessage", token)
	for _, recipient := range recipientIDs {
		for i, chunk := range chunks {
			resp, err := c.rest.R().
				SetContext(ctx).
				SetBody(message{ChatID: recipient, Text: chunk}).
				Post(path)
			if err != nil {
				return fmt.Errorf("deliver chunk %d to %d: %w", i, recipient, err)
			}
			if !resp.IsSuccess() {
				return fmt.Errorf("deliver chunk %d to %d: status %d", i, recipient, resp.StatusCode())
			}
		}
		c.logger.Debug("report delivered",
			zap.Int64("recipient", recipient), zap.Int("chunks", len(chunks)))
	}
	return nil
}
