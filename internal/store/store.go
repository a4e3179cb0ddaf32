// Package store defines optional durable persistence for ledger state,
// keyed by account identity. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
//
// The ledger itself is in-memory truth; the trade service persists a
// snapshot after each accepted trade and restores it at startup. A store
// failure degrades the engine to memory-only operation.
package store

import (
	"context"
	"errors"

	"github.com/josh-wjp/hodlbot-engine/internal/model"
)

// ErrNotFound is returned when no snapshot exists for an account.
var ErrNotFound = errors.New("store: snapshot not found")

// Store persists ledger snapshots and the append-only transaction log.
type Store interface {
	// SaveSnapshot upserts the full ledger state for an account.
	SaveSnapshot(ctx context.Context, accountID string, snap *model.Snapshot) error

	// LoadSnapshot retrieves the ledger state for an account.
	// Returns ErrNotFound when the account has no persisted state.
	LoadSnapshot(ctx context.Context, accountID string) (*model.Snapshot, error)

	// AppendTransaction records one immutable trade for an account.
	AppendTransaction(ctx context.Context, accountID string, tx *model.Transaction) error

	// Transactions returns an account's trades in insertion order.
	Transactions(ctx context.Context, accountID string) ([]model.Transaction, error)
}
