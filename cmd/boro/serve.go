package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/boro/internal/activity"
	"github.com/erazemk/boro/internal/api"
	"github.com/erazemk/boro/internal/auth"
	"github.com/erazemk/boro/internal/db"
	"github.com/erazemk/boro/internal/eventlog"
	"github.com/erazemk/boro/internal/lending"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/ratelimit"
	"github.com/erazemk/boro/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. A missing database is created on first run together
with an admin account whose password is printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringP("addr", "a", "", "listen address (env BORO_ADDR, default :8080)")
	f.String("state-dir", "", "directory for the activity log (env BORO_STATE_DIR, default boro-state)")
	f.StringP("admin-user", "u", "", "admin username on first run (env BORO_ADMIN_USER, default admin)")
	f.StringSlice("allowed-origins", nil, "origins allowed to call the API from a browser (env BORO_ALLOWED_ORIGINS)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		database, password, err := initDatabase(ctx, cfg.DB, cfg.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.DB, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	logger.Info("database ready", "path", cfg.DB)

	if n, err := store.PruneRevokedTokens(ctx, database, time.Now()); err != nil {
		logger.Warn("pruning revoked tokens", "error", err)
	} else if n > 0 {
		logger.Debug("pruned revoked tokens", "count", n)
	}

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}

	events, err := eventlog.Open(cfg.StateDir, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	hub := live.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub.Start(hubCtx)

	registry := activity.NewRegistry(hub, activity.StoreFetcher{DB: database}, events, logger)

	handler := api.NewRouter(api.Deps{
		DB:             database,
		Issuer:         auth.NewIssuer(jwtSecret, cfg.TokenExpiry),
		Hub:            hub,
		Lending:        lending.NewService(database, hub, logger),
		Activity:       registry,
		Logger:         logger,
		LoginLimiter:   ratelimit.New(cfg.LoginRate, cfg.LoginBurst),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// No read or write timeouts: activity streams stay open indefinitely.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			registry.Close()
			hub.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	}

	// Streams are hijacked connections the server does not wait for; closing
	// the registry ends them.
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	hub.Shutdown()
	logger.Info("server stopped, closing database")
	return nil
}
