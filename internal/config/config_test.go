package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load with defaults failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if !cfg.StartingBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected starting balance 100, got %s", cfg.StartingBalance)
	}
	if !cfg.MinNotional.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected min notional 10, got %s", cfg.MinNotional)
	}
	if !cfg.ProfitThreshold.Equal(decimal.NewFromFloat(0.05)) {
		t.Errorf("expected profit threshold 0.05, got %s", cfg.ProfitThreshold)
	}
	if !cfg.SellFraction.Equal(decimal.NewFromFloat(0.2)) {
		t.Errorf("expected sell fraction 0.2, got %s", cfg.SellFraction)
	}
	if cfg.PriceRefreshInterval != 5*time.Minute {
		t.Errorf("expected 5m price refresh, got %s", cfg.PriceRefreshInterval)
	}
	if cfg.DecisionPollInterval != 30*time.Second {
		t.Errorf("expected 30s decision poll, got %s", cfg.DecisionPollInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STARTING_BALANCE", "2500.50")
	t.Setenv("DECISION_POLL_INTERVAL", "5s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.StartingBalance.Equal(decimal.NewFromFloat(2500.50)) {
		t.Errorf("expected balance 2500.50, got %s", cfg.StartingBalance)
	}
	if cfg.DecisionPollInterval != 5*time.Second {
		t.Errorf("expected 5s poll, got %s", cfg.DecisionPollInterval)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STARTING_BALANCE", "not-a-number"},
		{"STARTING_BALANCE", "-5"},
		{"SELL_FRACTION", "0"},
		{"SELL_FRACTION", "1.5"},
		{"PRICE_REFRESH_INTERVAL", "soon"},
		{"DECISION_POLL_INTERVAL", "-10s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := config.Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
