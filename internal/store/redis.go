package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/josh-wjp/hodlbot-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for snapshots. Writes go to the primary store and refresh the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) SaveSnapshot(ctx context.Context, accountID string, snap *model.Snapshot) error {
	if err := s.primary.SaveSnapshot(ctx, accountID, snap); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, accountID, snap)
	return nil
}

func (s *CachedStore) LoadSnapshot(ctx context.Context, accountID string) (*model.Snapshot, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, snapshotKey(accountID)).Bytes()
	if err == nil {
		var snap model.Snapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := s.primary.LoadSnapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, accountID, snap)
	return snap, nil
}

func (s *CachedStore) AppendTransaction(ctx context.Context, accountID string, tx *model.Transaction) error {
	if err := s.primary.AppendTransaction(ctx, accountID, tx); err != nil {
		return err
	}
	// Invalidate; next snapshot save re-populates.
	s.rdb.Del(ctx, snapshotKey(accountID))
	return nil
}

func (s *CachedStore) Transactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	return s.primary.Transactions(ctx, accountID)
}

func (s *CachedStore) cacheSnapshot(ctx context.Context, accountID string, snap *model.Snapshot) {
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(accountID), data, s.ttl)
	}
}

func snapshotKey(accountID string) string { return fmt.Sprintf("portfolio:%s", accountID) }
