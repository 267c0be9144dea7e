// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the watcher service configuration.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// UserID is the owner whose accounts and rules drive the runs.
	UserID int64 `envconfig:"USER_ID" required:"true"`

	// FeedURL is the websocket endpoint streaming offer batches.
	FeedURL string `envconfig:"FEED_URL" required:"true"`

	// GiftAPIURL is the purchase backend base URL.
	GiftAPIURL string `envconfig:"GIFT_API_URL" required:"true"`

	// NotifyAPIURL is the bot API base URL used for report delivery.
	NotifyAPIURL string `envconfig:"NOTIFY_API_URL" default:"https://api.telegram.org"`

	// PostgresDSN selects the durable store. Empty runs on in-memory stores.
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// ClickhouseDSN selects the purchase audit sink. Empty disables auditing.
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// AllowUnlimited admits offers without the supply-limited flag.
	AllowUnlimited bool `envconfig:"ALLOW_UNLIMITED"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
}

// Load reads .env when present and maps the environment onto Config.
func Load() (*Config, error) {
	// .env is optional; production sets real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
