// Package prices maintains the latest known price per coin, refreshed
// periodically from an external feed.
package prices

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/coin"
)

// Cache holds the most recent price per coin symbol. Each successful
// refresh fully replaces the contents; on a failed fetch the old values
// are retained (stale but usable) — no partial updates.
type Cache struct {
	mu          sync.RWMutex
	prices      map[string]decimal.Decimal
	refreshedAt time.Time
}

// NewCache creates an empty price cache.
func NewCache() *Cache {
	return &Cache{prices: make(map[string]decimal.Decimal)}
}

// ReplaceAll swaps in a complete new price set.
func (c *Cache) ReplaceAll(prices map[string]decimal.Decimal) {
	next := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		s, err := coin.Normalize(symbol)
		if err != nil {
			continue
		}
		next[s] = price
	}

	c.mu.Lock()
	c.prices = next
	c.refreshedAt = time.Now().UTC()
	c.mu.Unlock()
}

// Price returns the last known price for a coin, or false when unknown.
func (c *Cache) Price(symbol string) (decimal.Decimal, bool) {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return decimal.Decimal{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[s]
	return p, ok
}

// All returns a copy of the current price map.
func (c *Cache) All() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// RefreshedAt reports when the cache last accepted a full refresh.
// Zero time means no refresh has succeeded yet.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
