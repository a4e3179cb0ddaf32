package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// holdings and per-coin P&L ride along as JSONB.
//
// Schema:
//
//	CREATE TABLE portfolios (
//	    account_id   TEXT PRIMARY KEY,
//	    cash_balance NUMERIC NOT NULL,
//	    holdings     JSONB NOT NULL DEFAULT '{}',
//	    realized_pnl JSONB NOT NULL DEFAULT '{}',
//	    next_seq     BIGINT NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE transactions (
//	    id              TEXT PRIMARY KEY,
//	    account_id      TEXT NOT NULL,
//	    seq             BIGINT NOT NULL,
//	    type            TEXT NOT NULL,
//	    coin            TEXT NOT NULL,
//	    quantity        NUMERIC NOT NULL,
//	    price           NUMERIC NOT NULL,
//	    realized_profit NUMERIC NOT NULL,
//	    origin          TEXT NOT NULL,
//	    timestamp       TIMESTAMPTZ NOT NULL,
//	    UNIQUE (account_id, seq)
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, accountID string, snap *model.Snapshot) error {
	holdings, err := json.Marshal(snap.Holdings)
	if err != nil {
		return fmt.Errorf("save snapshot %s: marshal holdings: %w", accountID, err)
	}
	realized, err := json.Marshal(snap.RealizedPnL)
	if err != nil {
		return fmt.Errorf("save snapshot %s: marshal pnl: %w", accountID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO portfolios (account_id, cash_balance, holdings, realized_pnl, next_seq, updated_at)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5, NOW())
		 ON CONFLICT (account_id) DO UPDATE SET
		     cash_balance = EXCLUDED.cash_balance,
		     holdings     = EXCLUDED.holdings,
		     realized_pnl = EXCLUDED.realized_pnl,
		     next_seq     = EXCLUDED.next_seq,
		     updated_at   = NOW()`,
		accountID, snap.CashBalance.String(), holdings, realized, snap.NextSeq,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", accountID, err)
	}
	return nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, accountID string) (*model.Snapshot, error) {
	var cash string
	var holdings, realized []byte
	var nextSeq int64

	err := s.pool.QueryRow(ctx,
		`SELECT cash_balance::TEXT, holdings, realized_pnl, next_seq
		 FROM portfolios WHERE account_id = $1`, accountID).
		Scan(&cash, &holdings, &realized, &nextSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", accountID, err)
	}

	snap := &model.Snapshot{NextSeq: nextSeq}
	if snap.CashBalance, err = decimal.NewFromString(cash); err != nil {
		return nil, fmt.Errorf("load snapshot %s: cash: %w", accountID, err)
	}
	if err := json.Unmarshal(holdings, &snap.Holdings); err != nil {
		return nil, fmt.Errorf("load snapshot %s: holdings: %w", accountID, err)
	}
	if err := json.Unmarshal(realized, &snap.RealizedPnL); err != nil {
		return nil, fmt.Errorf("load snapshot %s: pnl: %w", accountID, err)
	}

	if snap.Transactions, err = s.Transactions(ctx, accountID); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, accountID string, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, account_id, seq, type, coin, quantity, price, realized_profit, origin, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9, $10)`,
		tx.ID, accountID, tx.Seq, string(tx.Type), tx.Coin,
		tx.Quantity.String(), tx.Price.String(), tx.RealizedProfit.String(),
		string(tx.Origin), tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append transaction %s/%d: %w", accountID, tx.Seq, err)
	}
	return nil
}

func (s *PostgresStore) Transactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, type, coin,
		        quantity::TEXT, price::TEXT, realized_profit::TEXT,
		        origin, timestamp
		 FROM transactions WHERE account_id = $1 ORDER BY seq ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("transactions %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var typ, origin, quantity, price, profit string

		if err := rows.Scan(&tx.ID, &tx.Seq, &typ, &tx.Coin,
			&quantity, &price, &profit, &origin, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("transactions %s: scan: %w", accountID, err)
		}
		tx.Type = model.TradeType(typ)
		tx.Origin = model.Origin(origin)
		if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("transactions %s: quantity: %w", accountID, err)
		}
		if tx.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("transactions %s: price: %w", accountID, err)
		}
		if tx.RealizedProfit, err = decimal.NewFromString(profit); err != nil {
			return nil, fmt.Errorf("transactions %s: profit: %w", accountID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
