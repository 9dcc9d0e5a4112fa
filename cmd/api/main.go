package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/quorix-finance/deposits-backend/internal/api"
	"github.com/quorix-finance/deposits-backend/internal/config"
	"github.com/quorix-finance/deposits-backend/internal/email"
	"github.com/quorix-finance/deposits-backend/internal/events"
	"github.com/quorix-finance/deposits-backend/internal/ledger"
	"github.com/quorix-finance/deposits-backend/internal/paystack"
	"github.com/quorix-finance/deposits-backend/internal/store"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.NewPostgres(pool)

	// ── Ledger ────────────────────────────────────────────────────────────────
	ledgerSvc := ledger.New(st, ledger.Config{StoreTimeout: cfg.StoreTimeout}, logger)

	// ── Paystack ──────────────────────────────────────────────────────────────
	paystackClient := paystack.NewClient(cfg.PaystackSecretKey)

	// ── Events ────────────────────────────────────────────────────────────────
	// Kafka when brokers are configured, otherwise a no-op. Publishing is
	// best-effort either way.
	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info("events: publishing to kafka", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("events: no brokers configured, events disabled")
	}

	// ── Email ─────────────────────────────────────────────────────────────────
	var mailer email.Sender = email.Noop{}
	if cfg.ResendAPIKey != "" {
		mailer = email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFromAddr, cfg.EmailFromName)
		logger.Info("email: receipts enabled", "from", cfg.EmailFromAddr)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		ledgerSvc,
		st,
		paystackClient,
		publisher,
		mailer,
		api.Config{
			PaystackWebhookSecret: cfg.PaystackSecretKey,
			APIKey:                cfg.APIKey,
			Currency:              cfg.Currency,
			Env:                   cfg.Env,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight webhook deliveries up to 20 seconds to finish — cutting
	// one off mid-credit is safe (the store transaction rolls back and the
	// processor redelivers) but wasteful.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and verifies it is reachable before the
// server starts taking webhook traffic.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
