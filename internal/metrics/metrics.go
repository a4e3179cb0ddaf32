// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts accepted trades, partitioned by side and origin.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodlbot_trades_total",
		Help: "Total number of trades accepted by the ledger",
	}, []string{"side", "origin"})

	// TradeRejections counts trades rejected by the validator, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodlbot_trade_rejections_total",
		Help: "Trades rejected by the trade validator",
	}, []string{"reason"})

	// OraclePolls counts decision oracle queries by outcome.
	OraclePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodlbot_oracle_polls_total",
		Help: "Decision oracle queries",
	}, []string{"outcome"})

	// PriceRefreshes counts price feed refresh attempts by outcome.
	PriceRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodlbot_price_refreshes_total",
		Help: "Price feed refresh attempts",
	}, []string{"outcome"})

	// AutoTradingCoins tracks the number of coins with auto-trading enabled.
	AutoTradingCoins = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hodlbot_autotrading_coins",
		Help: "Number of coins with auto-trading enabled",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hodlbot_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodlbot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hodlbot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
