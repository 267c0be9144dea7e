package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("USER_ID", "42")
	t.Setenv("FEED_URL", "ws://feed.local/offers")
	t.Setenv("GIFT_API_URL", "http://gifts.local")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.UserID != 42 {
		t.Errorf("UserID = %d, want 42", cfg.UserID)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.NotifyAPIURL != "https://api.telegram.org" {
		t.Errorf("NotifyAPIURL = %q", cfg.NotifyAPIURL)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.PostgresDSN != "" {
		t.Errorf("PostgresDSN = %q, want empty", cfg.PostgresDSN)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("ALLOW_UNLIMITED", "true")
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/gifts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if !cfg.AllowUnlimited {
		t.Error("AllowUnlimited = false, want true")
	}
	if cfg.PostgresDSN != "postgres://localhost:5432/gifts" {
		t.Errorf("PostgresDSN = %q", cfg.PostgresDSN)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("USER_ID", "")
	t.Setenv("FEED_URL", "")
	t.Setenv("GIFT_API_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without required variables")
	}
}
