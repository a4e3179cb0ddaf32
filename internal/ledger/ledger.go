// Package ledger owns the paper-trading account state: cash balance,
// per-coin holdings with average cost basis, realized P&L, and the ordered
// transaction log. It is the only component permitted to mutate that state,
// and ExecuteTrade is its only mutating operation.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/coin"
	"github.com/josh-wjp/hodlbot-engine/internal/model"
	"github.com/josh-wjp/hodlbot-engine/internal/rules"
)

// Ledger is the single source of truth for one account's mock portfolio.
// Uses a mutex for serialized trade execution: no two ExecuteTrade calls
// may interleave their read-modify-write of cash and holdings.
type Ledger struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	holdings  map[string]model.Holding
	realized  map[string]decimal.Decimal
	log       []model.Transaction
	nextSeq   int64
	validator *rules.Validator
}

// New creates a ledger with the given starting cash balance.
func New(startingBalance decimal.Decimal, validator *rules.Validator) *Ledger {
	return &Ledger{
		cash:      startingBalance,
		holdings:  make(map[string]model.Holding),
		realized:  make(map[string]decimal.Decimal),
		nextSeq:   1,
		validator: validator,
	}
}

// ExecuteTrade validates and applies one trade. On acceptance it returns the
// appended Transaction; on rejection it returns a *rules.Rejection (or a
// coin normalization error) and leaves every field of ledger state unchanged.
// Application is all-or-nothing: no mutation happens before validation passes.
func (l *Ledger) ExecuteTrade(req model.TradeRequest) (*model.Transaction, error) {
	symbol, err := coin.Normalize(req.Coin)
	if err != nil {
		return nil, err
	}
	origin := req.Origin
	if origin == "" {
		origin = model.OriginManual
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	holding := l.holdings[symbol] // zero Holding when absent

	if err := l.validator.Check(req.Type, req.Quantity, req.Price, l.cash, holding); err != nil {
		return nil, err
	}

	notional := req.Quantity.Mul(req.Price)
	realizedProfit := decimal.Zero

	switch req.Type {
	case model.Buy:
		l.cash = l.cash.Sub(notional)
		newQty := holding.Quantity.Add(req.Quantity)
		// Weighted average over all buys since the position was opened.
		newAvg := req.Price
		if holding.Quantity.IsPositive() {
			totalCost := holding.Quantity.Mul(holding.AverageCost).Add(notional)
			newAvg = totalCost.Div(newQty)
		}
		l.holdings[symbol] = model.Holding{Quantity: newQty, AverageCost: newAvg}

	case model.Sell:
		l.cash = l.cash.Add(notional)
		realizedProfit = req.Price.Sub(holding.AverageCost).Mul(req.Quantity)
		newQty := holding.Quantity.Sub(req.Quantity)
		if newQty.IsNegative() {
			// Validator guarantees quantity ≤ held; reaching here is a core bug.
			panic(fmt.Sprintf("ledger: holding %s went negative (%s)", symbol, newQty))
		}
		if newQty.IsZero() {
			// Position fully closed; no zero-quantity entries persist.
			delete(l.holdings, symbol)
		} else {
			// Average cost is a property of purchase history, unaffected by sells.
			l.holdings[symbol] = model.Holding{Quantity: newQty, AverageCost: holding.AverageCost}
		}
		l.realized[symbol] = l.realized[symbol].Add(realizedProfit)
	}

	tx := model.Transaction{
		ID:             uuid.New().String(),
		Seq:            l.nextSeq,
		Type:           req.Type,
		Coin:           symbol,
		Quantity:       req.Quantity,
		Price:          req.Price,
		RealizedProfit: realizedProfit,
		Origin:         origin,
		Timestamp:      time.Now().UTC(),
	}
	l.nextSeq++
	l.log = append(l.log, tx)

	return &tx, nil
}

// CashBalance returns the current cash balance.
func (l *Ledger) CashBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Holding returns the position for a coin, or false when not held.
// The symbol is normalized before lookup.
func (l *Ledger) Holding(symbol string) (model.Holding, bool) {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return model.Holding{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holdings[s]
	return h, ok
}

// Holdings returns a copy of all current positions.
func (l *Ledger) Holdings() map[string]model.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]model.Holding, len(l.holdings))
	for k, v := range l.holdings {
		out[k] = v
	}
	return out
}

// RealizedPnL returns a copy of realized profit per coin.
func (l *Ledger) RealizedPnL() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(l.realized))
	for k, v := range l.realized {
		out[k] = v
	}
	return out
}

// TotalRealizedPnL sums realized profit across all coins.
func (l *Ledger) TotalRealizedPnL() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, v := range l.realized {
		total = total.Add(v)
	}
	return total
}

// Transactions returns a copy of the transaction log in insertion order.
func (l *Ledger) Transactions() []model.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Transaction, len(l.log))
	copy(out, l.log)
	return out
}

// Snapshot captures the full ledger state as plain serializable data.
func (l *Ledger) Snapshot() *model.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &model.Snapshot{
		CashBalance:  l.cash,
		Holdings:     make(map[string]model.Holding, len(l.holdings)),
		RealizedPnL:  make(map[string]decimal.Decimal, len(l.realized)),
		Transactions: make([]model.Transaction, len(l.log)),
		NextSeq:      l.nextSeq,
	}
	for k, v := range l.holdings {
		snap.Holdings[k] = v
	}
	for k, v := range l.realized {
		snap.RealizedPnL[k] = v
	}
	copy(snap.Transactions, l.log)
	return snap
}

// Restore replaces the ledger state from a snapshot. Used at startup to
// reload a persisted session; not called while trading is live.
func (l *Ledger) Restore(snap *model.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = snap.CashBalance
	l.holdings = make(map[string]model.Holding, len(snap.Holdings))
	for k, v := range snap.Holdings {
		if v.Quantity.IsPositive() {
			l.holdings[k] = v
		}
	}
	l.realized = make(map[string]decimal.Decimal, len(snap.RealizedPnL))
	for k, v := range snap.RealizedPnL {
		l.realized[k] = v
	}
	l.log = make([]model.Transaction, len(snap.Transactions))
	copy(l.log, snap.Transactions)
	l.nextSeq = snap.NextSeq
	if l.nextSeq < int64(len(l.log))+1 {
		l.nextSeq = int64(len(l.log)) + 1
	}
}
