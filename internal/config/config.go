// Package config loads engine configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds every tunable of the trading engine. All fields have
// defaults; only malformed values fail loading.
type Config struct {
	Port        string
	DatabaseURL string // empty → in-memory store
	RedisURL    string // empty → no snapshot cache

	PriceFeedURL string // empty → public CoinGecko API
	OracleURL    string // decision service base URL

	AccountID string // opaque, already-authenticated session identity

	StartingBalance decimal.Decimal
	MinNotional     decimal.Decimal
	ProfitThreshold decimal.Decimal
	SellFraction    decimal.Decimal

	PriceRefreshInterval time.Duration
	DecisionPollInterval time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:         envDefault("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		PriceFeedURL: os.Getenv("PRICE_FEED_URL"),
		OracleURL:    envDefault("ORACLE_URL", "http://localhost:8000"),
		AccountID:    envDefault("ACCOUNT_ID", "demo"),
	}

	var errs []error

	cfg.StartingBalance = envDecimal("STARTING_BALANCE", "100", &errs)
	cfg.MinNotional = envDecimal("MIN_NOTIONAL", "10", &errs)
	cfg.ProfitThreshold = envDecimal("PROFIT_THRESHOLD", "0.05", &errs)
	cfg.SellFraction = envDecimal("SELL_FRACTION", "0.2", &errs)

	cfg.PriceRefreshInterval = envDuration("PRICE_REFRESH_INTERVAL", 5*time.Minute, &errs)
	cfg.DecisionPollInterval = envDuration("DECISION_POLL_INTERVAL", 30*time.Second, &errs)

	if cfg.StartingBalance.IsNegative() {
		errs = append(errs, errors.New("STARTING_BALANCE must not be negative"))
	}
	if cfg.MinNotional.IsNegative() {
		errs = append(errs, errors.New("MIN_NOTIONAL must not be negative"))
	}
	if cfg.SellFraction.LessThanOrEqual(decimal.Zero) || cfg.SellFraction.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("SELL_FRACTION must be in (0, 1]"))
	}

	return cfg, errors.Join(errs...)
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDecimal(key, fallback string, errs *[]error) decimal.Decimal {
	raw := envDefault(key, fallback)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid decimal %q", key, raw))
		return decimal.Zero
	}
	return d
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return fallback
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: duration must be positive", key))
		return fallback
	}
	return d
}
