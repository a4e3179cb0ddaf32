// Package trade provides the HTTP handlers for executing trades, querying
// the portfolio and transaction history, and toggling auto-trading.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/autotrade"
	"github.com/josh-wjp/hodlbot-engine/internal/ledger"
	"github.com/josh-wjp/hodlbot-engine/internal/metrics"
	"github.com/josh-wjp/hodlbot-engine/internal/model"
	"github.com/josh-wjp/hodlbot-engine/internal/prices"
	"github.com/josh-wjp/hodlbot-engine/internal/rules"
	"github.com/josh-wjp/hodlbot-engine/internal/store"
)

// Service wires the ledger, price cache, and auto-trading controller to the
// HTTP surface consumed by the UI.
type Service struct {
	ledger     *ledger.Ledger
	cache      *prices.Cache
	controller *autotrade.Controller
	st         store.Store // optional durable persistence
	accountID  string
	wsHub      *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service. Pass nil for st if persistence is
// not configured and nil for hub if WebSocket broadcasting is not needed.
func NewService(lg *ledger.Ledger, cache *prices.Cache, ctrl *autotrade.Controller, st store.Store, accountID string, hub *WSHub) *Service {
	return &Service{
		ledger:     lg,
		cache:      cache,
		controller: ctrl,
		st:         st,
		accountID:  accountID,
		wsHub:      hub,
	}
}

// --- Request/Response types ---

// ExecuteRequest is the JSON body for POST /api/v1/trade.
// Price is optional: when omitted the last cached feed price is used.
type ExecuteRequest struct {
	Coin     string          `json:"coin"`
	Type     model.TradeType `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ExecuteResponse is returned from POST /api/v1/trade on acceptance.
type ExecuteResponse struct {
	Transaction model.Transaction `json:"transaction"`
	CashBalance decimal.Decimal   `json:"cash_balance"`
	Holding     *model.Holding    `json:"holding,omitempty"`
}

// HoldingView is one position with mark-to-market valuation.
type HoldingView struct {
	Coin          string           `json:"coin"`
	Quantity      decimal.Decimal  `json:"quantity"`
	AverageCost   decimal.Decimal  `json:"average_cost"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
}

// PortfolioResponse is the body of GET /api/v1/portfolio.
type PortfolioResponse struct {
	AccountID         string                     `json:"account_id"`
	CashBalance       decimal.Decimal            `json:"cash_balance"`
	Holdings          []HoldingView              `json:"holdings"`
	RealizedPnL       map[string]decimal.Decimal `json:"realized_pnl"`
	TotalRealizedPnL  decimal.Decimal            `json:"total_realized_pnl"`
	AggregateUSDValue decimal.Decimal            `json:"aggregate_usd_value"` // Σ qty×price over priced holdings
}

// ToggleRequest is the JSON body for POST /api/v1/trading/{start,stop}.
type ToggleRequest struct {
	Coin string `json:"coin"`
}

// --- HTTP Handlers ---

// ExecuteTrade handles POST /api/v1/trade. Manual trades go through the
// exact same ledger path as automatic ones; a validation rejection is an
// expected outcome and maps to 422 with a machine-readable reason.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Coin == "" {
		writeError(w, "coin is required", http.StatusBadRequest)
		return
	}
	if req.Type != model.Buy && req.Type != model.Sell {
		writeError(w, "type must be BUY or SELL", http.StatusBadRequest)
		return
	}

	price := req.Price
	if price.IsZero() {
		cached, ok := s.cache.Price(req.Coin)
		if !ok {
			writeError(w, "no price available for "+req.Coin, http.StatusConflict)
			return
		}
		price = cached
	}

	tx, err := s.ledger.ExecuteTrade(model.TradeRequest{
		Type:     req.Type,
		Coin:     req.Coin,
		Quantity: req.Quantity,
		Price:    price,
		Origin:   model.OriginManual,
	})
	if err != nil {
		if reason, ok := rules.ReasonOf(err); ok {
			metrics.TradeRejections.WithLabelValues(string(reason)).Inc()
			writeRejection(w, reason, err)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.TradesTotal.WithLabelValues(string(tx.Type), string(tx.Origin)).Inc()
	slog.Info("trade executed",
		"trade_id", tx.ID,
		"coin", tx.Coin,
		"side", string(tx.Type),
		"qty", tx.Quantity.String(),
		"price", tx.Price.String(),
		"realized", tx.RealizedProfit.String(),
	)

	s.RecordTrade(r.Context(), tx)
	s.BroadcastTrade(tx)

	resp := ExecuteResponse{
		Transaction: *tx,
		CashBalance: s.ledger.CashBalance(),
	}
	if h, ok := s.ledger.Holding(tx.Coin); ok {
		resp.Holding = &h
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPortfolio handles GET /api/v1/portfolio. Holdings are marked to market
// against the price cache when a price is known.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	holdings := s.ledger.Holdings()

	views := make([]HoldingView, 0, len(holdings))
	aggregate := decimal.Zero
	for symbol, h := range holdings {
		view := HoldingView{
			Coin:        symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
		}
		if price, ok := s.cache.Price(symbol); ok {
			value := h.Quantity.Mul(price)
			unrealized := price.Sub(h.AverageCost).Mul(h.Quantity)
			view.CurrentPrice = &price
			view.MarketValue = &value
			view.UnrealizedPnL = &unrealized
			aggregate = aggregate.Add(value)
		}
		views = append(views, view)
	}

	resp := PortfolioResponse{
		AccountID:         s.accountID,
		CashBalance:       s.ledger.CashBalance(),
		Holdings:          views,
		RealizedPnL:       s.ledger.RealizedPnL(),
		TotalRealizedPnL:  s.ledger.TotalRealizedPnL(),
		AggregateUSDValue: aggregate,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetTransactions handles GET /api/v1/transactions.
// Returns the log most-recent-first for display; the log itself remains
// insertion-ordered truth.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs := s.ledger.Transactions()
	out := make([]model.Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// GetPrices handles GET /api/v1/prices.
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.cache.All())
}

// StartAutoTrading handles POST /api/v1/trading/start.
// The toggle is propagated to the decision service before local state
// changes; a propagation failure leaves the coin disabled.
func (s *Service) StartAutoTrading(w http.ResponseWriter, r *http.Request) {
	s.toggleAutoTrading(w, r, true)
}

// StopAutoTrading handles POST /api/v1/trading/stop.
func (s *Service) StopAutoTrading(w http.ResponseWriter, r *http.Request) {
	s.toggleAutoTrading(w, r, false)
}

func (s *Service) toggleAutoTrading(w http.ResponseWriter, r *http.Request, enable bool) {
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Coin == "" {
		writeError(w, "coin is required", http.StatusBadRequest)
		return
	}

	var err error
	if enable {
		err = s.controller.Enable(r.Context(), req.Coin)
	} else {
		err = s.controller.Disable(r.Context(), req.Coin)
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"coin":         req.Coin,
		"auto_trading": s.controller.Enabled(req.Coin),
	})
}

// GetAutoTradingStatus handles GET /api/v1/trading/status.
func (s *Service) GetAutoTradingStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.controller.Status())
}

// BroadcastTrade pushes an executed trade to WebSocket clients. Also used
// by the auto-trading controller's trade hook.
func (s *Service) BroadcastTrade(tx *model.Transaction) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:           "trade_executed",
		Coin:           tx.Coin,
		Side:           string(tx.Type),
		Origin:         string(tx.Origin),
		Quantity:       tx.Quantity.String(),
		Price:          tx.Price.String(),
		RealizedProfit: tx.RealizedProfit.String(),
		CashBalance:    s.ledger.CashBalance().String(),
	})
}

// RecordTrade persists an accepted trade and the updated snapshot,
// best-effort: the in-memory ledger stays authoritative on store failure.
// Shared by the manual path and the auto-trading controller's trade hook.
func (s *Service) RecordTrade(ctx context.Context, tx *model.Transaction) {
	if s.st == nil {
		return
	}
	if err := s.st.AppendTransaction(ctx, s.accountID, tx); err != nil {
		slog.Warn("transaction persist failed", "account", s.accountID, "seq", tx.Seq, "err", err)
	}
	if err := s.st.SaveSnapshot(ctx, s.accountID, s.ledger.Snapshot()); err != nil {
		slog.Warn("snapshot persist failed", "account", s.accountID, "err", err)
	}
}

func writeRejection(w http.ResponseWriter, reason rules.Reason, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  err.Error(),
		"reason": string(reason),
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
