package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/josh-wjp/hodlbot-engine/internal/autotrade"
	"github.com/josh-wjp/hodlbot-engine/internal/config"
	"github.com/josh-wjp/hodlbot-engine/internal/ledger"
	"github.com/josh-wjp/hodlbot-engine/internal/metrics"
	"github.com/josh-wjp/hodlbot-engine/internal/model"
	"github.com/josh-wjp/hodlbot-engine/internal/oracle"
	"github.com/josh-wjp/hodlbot-engine/internal/prices"
	"github.com/josh-wjp/hodlbot-engine/internal/rules"
	"github.com/josh-wjp/hodlbot-engine/internal/store"
	"github.com/josh-wjp/hodlbot-engine/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis snapshot cache enabled")
		}
	} else {
		st = store.NewMemoryStore()
		slog.Warn("DATABASE_URL not set, ledger state will not persist across restarts")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger ---
	validator := rules.NewValidator(cfg.MinNotional)
	lg := ledger.New(cfg.StartingBalance, validator)

	if st != nil {
		snap, err := st.LoadSnapshot(ctx, cfg.AccountID)
		switch {
		case err == nil:
			lg.Restore(snap)
			slog.Info("ledger restored", "account", cfg.AccountID,
				"cash", snap.CashBalance.String(), "transactions", len(snap.Transactions))
		case errors.Is(err, store.ErrNotFound):
			slog.Info("no persisted ledger, starting fresh",
				"account", cfg.AccountID, "balance", cfg.StartingBalance.String())
		default:
			slog.Warn("ledger restore failed, starting fresh", "err", err)
		}
	}

	// --- Price cache + poller ---
	cache := prices.NewCache()
	feed := prices.NewCoinGeckoFeed(cfg.PriceFeedURL)
	poller := prices.NewPoller(feed, cache, cfg.PriceRefreshInterval)

	// --- Decision oracle + auto-trading controller ---
	oracleClient := oracle.NewHTTPClient(cfg.OracleURL)
	ctrl := autotrade.NewController(lg, oracleClient, oracleClient, autotrade.Config{
		MinNotional:     cfg.MinNotional,
		ProfitThreshold: cfg.ProfitThreshold,
		SellFraction:    cfg.SellFraction,
		PollInterval:    cfg.DecisionPollInterval,
	})

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()
	poller.NotifyRefresh(func(coins int) {
		wsHub.Broadcast(trade.WSMessage{Type: "prices_refreshed", Coins: coins})
	})

	// --- Trade service ---
	tradeSvc := trade.NewService(lg, cache, ctrl, st, cfg.AccountID, wsHub)
	ctrl.NotifyTrades(func(tx *model.Transaction) {
		tradeSvc.RecordTrade(ctx, tx)
		tradeSvc.BroadcastTrade(tx)
	})

	go poller.Run(ctx)
	go ctrl.Run(ctx)
	go func() {
		// Drain asynchronous controller errors; they are already logged at
		// the source, this keeps the buffer from filling.
		for range ctrl.Errors() {
		}
	}()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"hodlbot-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade and price events.
		r.Get("/ws", wsHub.HandleWS)

		// Trade execution and portfolio queries.
		r.Post("/trade", tradeSvc.ExecuteTrade)
		r.Get("/portfolio", tradeSvc.GetPortfolio)
		r.Get("/transactions", tradeSvc.GetTransactions)
		r.Get("/prices", tradeSvc.GetPrices)

		// Auto-trading toggles.
		r.Post("/trading/start", tradeSvc.StartAutoTrading)
		r.Post("/trading/stop", tradeSvc.StopAutoTrading)
		r.Get("/trading/status", tradeSvc.GetAutoTradingStatus)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("hodlbot-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down hodlbot-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("hodlbot-engine stopped")
}
