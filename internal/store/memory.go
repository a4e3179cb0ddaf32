package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
	ledger    map[string][]model.Transaction
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*model.Snapshot),
		ledger:    make(map[string][]model.Transaction),
	}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, accountID string, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[accountID] = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, accountID string) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snap), nil
}

func (s *MemoryStore) AppendTransaction(_ context.Context, accountID string, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[accountID] = append(s.ledger[accountID], *tx)
	return nil
}

func (s *MemoryStore) Transactions(_ context.Context, accountID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := s.ledger[accountID]
	out := make([]model.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

// copySnapshot stores/returns copies to avoid external mutation.
func copySnapshot(snap *model.Snapshot) *model.Snapshot {
	out := &model.Snapshot{
		CashBalance:  snap.CashBalance,
		Holdings:     make(map[string]model.Holding, len(snap.Holdings)),
		RealizedPnL:  make(map[string]decimal.Decimal, len(snap.RealizedPnL)),
		Transactions: make([]model.Transaction, len(snap.Transactions)),
		NextSeq:      snap.NextSeq,
	}
	for k, v := range snap.Holdings {
		out.Holdings[k] = v
	}
	for k, v := range snap.RealizedPnL {
		out.RealizedPnL[k] = v
	}
	copy(out.Transactions, snap.Transactions)
	return out
}
