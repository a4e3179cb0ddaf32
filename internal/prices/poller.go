package prices

import (
	"context"
	"log/slog"
	"time"

	"github.com/josh-wjp/hodlbot-engine/internal/metrics"
)

// Poller refreshes a Cache from a Feed on a fixed interval. Fetch failures
// leave the cache stale and are retried on the next tick; they never stop
// the loop.
type Poller struct {
	feed      Feed
	cache     *Cache
	interval  time.Duration
	timeout   time.Duration
	onRefresh func(coins int)
}

// NewPoller creates a poller refreshing cache from feed every interval.
func NewPoller(feed Feed, cache *Cache, interval time.Duration) *Poller {
	return &Poller{
		feed:     feed,
		cache:    cache,
		interval: interval,
		timeout:  15 * time.Second,
	}
}

// NotifyRefresh registers a hook invoked after every successful refresh
// (e.g. for WebSocket broadcasting). Must be set before Run.
func (p *Poller) NotifyRefresh(fn func(coins int)) {
	p.onRefresh = fn
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fetched, err := p.feed.FetchPrices(fetchCtx)
	if err != nil {
		metrics.PriceRefreshes.WithLabelValues("error").Inc()
		slog.Warn("price refresh failed, keeping stale cache", "err", err)
		return
	}

	p.cache.ReplaceAll(fetched)
	metrics.PriceRefreshes.WithLabelValues("ok").Inc()
	if p.onRefresh != nil {
		p.onRefresh(len(fetched))
	}
	slog.Info("price cache refreshed", "coins", len(fetched))
}
