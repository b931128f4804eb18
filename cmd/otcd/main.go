// Command otcd serves the OTC swap lifecycle over HTTP with a websocket event feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otc-swaps/internal/api"
	"otc-swaps/internal/config"
	"otc-swaps/internal/escrow"
	"otc-swaps/internal/feed"
	"otc-swaps/internal/observability"
	"otc-swaps/internal/storage"
	chstore "otc-swaps/internal/storage/clickhouse"
	"otc-swaps/internal/storage/memory"
	"otc-swaps/internal/storage/migrations"
	pgstore "otc-swaps/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "otcd: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[otcd] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := createStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create store: %v", err)
	}
	defer cleanup()

	hub := feed.NewHub(&feed.HubConfig{
		SendBuffer:   cfg.Feed.SendBuffer,
		PingInterval: cfg.Feed.PingInterval,
		WriteTimeout: cfg.Feed.WriteTimeout,
		ReadTimeout:  cfg.Feed.ReadTimeout,
	}, log.New(os.Stdout, "[feed] ", log.LstdFlags))

	notifiers := escrow.Notifiers{hub, escrow.LogNotifier{Logger: log.New(os.Stdout, "[events] ", log.LstdFlags)}}
	if cfg.ClickhouseDSN != "" {
		mirror, closeMirror, err := createMirror(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to create clickhouse mirror: %v", err)
		}
		defer closeMirror()
		notifiers = append(notifiers, mirror)
		logger.Println("Mirroring events to ClickHouse")
	}

	engine, err := escrow.NewEngine(escrow.Options{
		ProgramID: cfg.ProgramIdentity(),
		Runtime:   store,
		Notifier:  notifiers,
		Logger:    log.New(os.Stdout, "[escrow] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}

	srv, err := api.New(api.Config{
		Engine:       engine,
		Swaps:        store,
		Events:       store,
		Feed:         hub,
		Ledger:       store,
		DevMode:      cfg.DevMode,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		logger.Fatalf("Failed to create API: %v", err)
	}

	if active, err := store.ListActiveSwaps(ctx); err != nil {
		logger.Printf("Warning: could not count active swaps: %v", err)
	} else {
		observability.SetActiveSwaps(len(active))
		logger.Printf("Loaded %d active swaps", len(active))
	}

	go trackUptime(ctx)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s (storage=%s dev=%t)", cfg.ListenAddr, cfg.Storage, cfg.DevMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		if err != nil {
			logger.Printf("HTTP server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Websocket connections are hijacked, so Shutdown does not wait for them.
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Graceful shutdown failed: %v", err)
	}
	cancel()

	logger.Println("Shutdown complete")
}

// createStore opens the configured backend. Postgres schemas are migrated on start.
func createStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Println("Using in-memory storage")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	for _, file := range applied {
		logger.Printf("Applied migration %s", file)
	}

	go reportPoolStats(ctx, pool)

	logger.Println("Using PostgreSQL storage")
	return pgstore.NewStore(pool), pool.Close, nil
}

// createMirror migrates the analytics schema and returns the event mirror.
func createMirror(ctx context.Context, dsn string) (*chstore.EventStore, func(), error) {
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return chstore.NewEventStore(conn), func() { conn.Close() }, nil
}

func trackUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			observability.AddUptime(now.Sub(last).Seconds())
			last = now
		}
	}
}

func reportPoolStats(ctx context.Context, pool *pgstore.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			observability.UpdateDBConnections("postgres", int(stat.IdleConns()), int(stat.AcquiredConns()))
		}
	}
}
