// Package model defines the core domain types shared across the trading engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType is the direction of a trade.
type TradeType string

const (
	Buy  TradeType = "BUY"
	Sell TradeType = "SELL"
)

// Origin records which path submitted a trade. Display-only provenance;
// manual and automatic trades execute through the same ledger path.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginAuto   Origin = "auto"
)

// Decision is the oracle's verdict for one coin.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Holding is a position in one coin. AverageCost is the quantity-weighted
// average purchase price since the position was last fully closed.
// A Holding with zero quantity is never stored; it is removed instead.
type Holding struct {
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"`
}

// Transaction is an immutable record of an executed trade.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID             string          `json:"id" db:"id"`
	Seq            int64           `json:"seq" db:"seq"` // monotonic, order of creation
	Type           TradeType       `json:"type" db:"type"`
	Coin           string          `json:"coin" db:"coin"` // case-normalized symbol
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	Price          decimal.Decimal `json:"price" db:"price"` // execution price per unit
	RealizedProfit decimal.Decimal `json:"realized_profit" db:"realized_profit"` // nonzero only for SELL
	Origin         Origin          `json:"origin" db:"origin"`
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
}

// TradeRequest is a request to execute one trade against the ledger.
type TradeRequest struct {
	Type     TradeType       `json:"type"`
	Coin     string          `json:"coin"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Origin   Origin          `json:"origin"`
}

// Signal is a validated oracle decision for one coin.
type Signal struct {
	Coin     string          `json:"coin"`
	Decision Decision        `json:"decision"`
	Price    decimal.Decimal `json:"price"` // reference price, > 0
}

// Snapshot is the full serializable state of a ledger. Used for durable
// persistence keyed by account and for the portfolio API.
type Snapshot struct {
	CashBalance  decimal.Decimal            `json:"cash_balance"`
	Holdings     map[string]Holding         `json:"holdings"`
	RealizedPnL  map[string]decimal.Decimal `json:"realized_pnl"`
	Transactions []Transaction              `json:"transactions"`
	NextSeq      int64                      `json:"next_seq"`
}
