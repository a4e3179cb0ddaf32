// Package autotrade runs the per-coin auto-trading decision loop.
//
// On every tick the controller asks the decision oracle for a signal for
// each enabled coin and, when the signal is actionable, synthesizes a trade
// and submits it to the ledger through the exact same ExecuteTrade path as
// manual trading. There is no separate mutation path for automatic trades.
package autotrade

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/coin"
	"github.com/josh-wjp/hodlbot-engine/internal/ledger"
	"github.com/josh-wjp/hodlbot-engine/internal/metrics"
	"github.com/josh-wjp/hodlbot-engine/internal/model"
	"github.com/josh-wjp/hodlbot-engine/internal/oracle"
	"github.com/josh-wjp/hodlbot-engine/internal/rules"
)

// Config holds the sizing and gating policy for automatic trades.
type Config struct {
	// MinNotional is the minimum purchase value; buys are sized so the
	// notional meets it: quantity = ceil(MinNotional / referencePrice).
	MinNotional decimal.Decimal

	// ProfitThreshold gates automatic sells: the reference price must be
	// at least averageCost × (1 + ProfitThreshold). Default 0.05.
	ProfitThreshold decimal.Decimal

	// SellFraction is the share of the holding sold per signal, floored to
	// whole units with a minimum of 1. Default 0.2.
	SellFraction decimal.Decimal

	// PollInterval is the tick period of the decision loop.
	PollInterval time.Duration

	// OracleTimeout bounds each oracle query. Default 10s.
	OracleTimeout time.Duration
}

// Controller owns the per-coin auto-trading on/off state and the decision
// polling loop. Oracle failures and ledger rejections are reported and the
// coin stays enabled; nothing in the loop is fatal.
type Controller struct {
	ledger  *ledger.Ledger
	oracle  oracle.Client
	toggler oracle.Toggler
	cfg     Config

	state   *State
	errs    chan error
	onTrade func(*model.Transaction)
}

// NewController creates a controller. toggler may be nil when enable/disable
// propagation to the decision service is not needed (tests).
func NewController(lg *ledger.Ledger, oc oracle.Client, toggler oracle.Toggler, cfg Config) *Controller {
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 10 * time.Second
	}
	return &Controller{
		ledger:  lg,
		oracle:  oc,
		toggler: toggler,
		cfg:     cfg,
		state:   NewState(),
		errs:    make(chan error, 64),
	}
}

// NotifyTrades registers a hook invoked after every accepted automatic
// trade (e.g. for WebSocket broadcasting). Must be set before Run.
func (c *Controller) NotifyTrades(fn func(*model.Transaction)) {
	c.onTrade = fn
}

// Errors returns the channel on which asynchronous loop errors are
// surfaced. The channel is buffered; errors are dropped when nobody drains.
func (c *Controller) Errors() <-chan error {
	return c.errs
}

// Enable turns auto-trading on for a coin. The toggle is propagated to the
// decision service first; on propagation failure the local state is left
// unchanged and the error returned.
func (c *Controller) Enable(ctx context.Context, symbol string) error {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return err
	}
	if c.state.Enabled(s) {
		return nil
	}
	if c.toggler != nil {
		if err := c.toggler.Start(ctx, s); err != nil {
			return err
		}
	}
	c.state.Set(s, true)
	metrics.AutoTradingCoins.Set(float64(len(c.state.EnabledCoins())))
	slog.Info("auto-trading enabled", "coin", s)
	return nil
}

// Disable turns auto-trading off for a coin. Takes effect no later than the
// next tick; a decision already fetched for this tick will not be submitted
// because enablement is re-checked immediately before ExecuteTrade.
func (c *Controller) Disable(ctx context.Context, symbol string) error {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return err
	}
	if !c.state.Enabled(s) {
		return nil
	}
	if c.toggler != nil {
		if err := c.toggler.Stop(ctx, s); err != nil {
			return err
		}
	}
	c.state.Set(s, false)
	metrics.AutoTradingCoins.Set(float64(len(c.state.EnabledCoins())))
	slog.Info("auto-trading disabled", "coin", s)
	return nil
}

// Enabled reports whether auto-trading is on for a coin.
func (c *Controller) Enabled(symbol string) bool {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return false
	}
	return c.state.Enabled(s)
}

// Status returns a copy of the per-coin enabled map.
func (c *Controller) Status() map[string]bool {
	return c.state.All()
}

// Run executes the polling loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one iteration over all enabled coins. Exported so tests and
// alternative schedulers can drive the loop directly.
func (c *Controller) Tick(ctx context.Context) {
	for _, symbol := range c.state.EnabledCoins() {
		c.pollCoin(ctx, symbol)
	}
}

func (c *Controller) pollCoin(ctx context.Context, symbol string) {
	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.OracleTimeout)
	sig, err := c.oracle.Decision(queryCtx, symbol)
	cancel()
	if err != nil {
		metrics.OraclePolls.WithLabelValues("error").Inc()
		slog.Warn("oracle query failed, will retry next tick", "coin", symbol, "err", err)
		c.report(err)
		return
	}
	metrics.OraclePolls.WithLabelValues("ok").Inc()

	req, actionable := c.planTrade(symbol, sig)
	if !actionable {
		return
	}

	// Disabling a coin must win over an in-flight decision: re-check
	// enablement immediately before submitting.
	if !c.state.Enabled(symbol) {
		slog.Info("auto-trade dropped, coin disabled mid-tick", "coin", symbol)
		return
	}

	tx, err := c.ledger.ExecuteTrade(req)
	if err != nil {
		if reason, ok := rules.ReasonOf(err); ok {
			metrics.TradeRejections.WithLabelValues(string(reason)).Inc()
			slog.Info("auto-trade rejected", "coin", symbol, "reason", string(reason))
		} else {
			slog.Warn("auto-trade failed", "coin", symbol, "err", err)
		}
		c.report(err)
		return
	}

	metrics.TradesTotal.WithLabelValues(string(tx.Type), string(tx.Origin)).Inc()
	if c.onTrade != nil {
		c.onTrade(tx)
	}
	slog.Info("auto-trade executed",
		"coin", tx.Coin,
		"side", string(tx.Type),
		"qty", tx.Quantity.String(),
		"price", tx.Price.String(),
		"realized", tx.RealizedProfit.String(),
	)
}

// planTrade converts an oracle signal into a trade request, applying the
// buy sizing and sell gating policy. Returns false when no trade should
// be submitted for this signal.
func (c *Controller) planTrade(symbol string, sig model.Signal) (model.TradeRequest, bool) {
	one := decimal.NewFromInt(1)

	switch sig.Decision {
	case model.DecisionBuy:
		// Size the buy so its notional meets the minimum purchase value.
		qty := c.cfg.MinNotional.Div(sig.Price).Ceil()
		if qty.LessThan(one) {
			qty = one
		}
		return model.TradeRequest{
			Type:     model.Buy,
			Coin:     symbol,
			Quantity: qty,
			Price:    sig.Price,
			Origin:   model.OriginAuto,
		}, true

	case model.DecisionSell:
		holding, ok := c.ledger.Holding(symbol)
		if !ok {
			return model.TradeRequest{}, false
		}
		// Only sell once the reference price clears the profit threshold.
		floor := holding.AverageCost.Mul(one.Add(c.cfg.ProfitThreshold))
		if sig.Price.LessThan(floor) {
			return model.TradeRequest{}, false
		}
		qty := holding.Quantity.Mul(c.cfg.SellFraction).Floor()
		if qty.LessThan(one) {
			qty = one
		}
		return model.TradeRequest{
			Type:     model.Sell,
			Coin:     symbol,
			Quantity: qty,
			Price:    sig.Price,
			Origin:   model.OriginAuto,
		}, true
	}

	// HOLD: no action.
	return model.TradeRequest{}, false
}

func (c *Controller) report(err error) {
	select {
	case c.errs <- err:
	default:
		// Drop when nobody is draining; the loop must never block.
	}
}
