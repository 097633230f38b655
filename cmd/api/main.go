// Package main is the entry point for the mealweek API server.
//
// It loads configuration, connects the database pool, wires the domain
// services (entitlement, quota, generation, auth, billing webhook) into the
// HTTP chassis, and serves until a shutdown signal arrives.
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

	"mealweek/internal/api/handlers"
	"mealweek/internal/auth"
	"mealweek/internal/config"
	"mealweek/internal/core"
	"mealweek/internal/db"
	"mealweek/internal/entitlement"
	"mealweek/internal/external"
	"mealweek/internal/generation"
	"mealweek/internal/metrics"
	"mealweek/internal/quota"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("mealweek API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database pool.
	pool, err := db.NewPool(startupCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	// Repositories.
	subRepo := db.NewSubscriptionRepo(pool, logger)
	usageRepo := db.NewUsageRepo(pool)
	planRepo := db.NewPlanRepo(pool)
	userRepo := db.NewUserRepo(pool)
	sessionRepo := db.NewSessionRepo(pool)

	// Domain services.
	entitlementSvc := entitlement.NewService(subRepo, entitlement.NewResolver(nil), logger)
	ledger := quota.NewLedger(usageRepo, logger)
	authSvc := auth.NewService(userRepo, sessionRepo, logger)

	// Background sweep for sessions that expire without ever being presented
	// again; ResolveToken only cleans up the ones it sees.
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go pruneSessionsLoop(pruneCtx, authSvc, logger)

	completer := external.NewCompletionClient(
		&http.Client{Timeout: cfg.Generation.Timeout},
		external.CompletionClientConfig{
			APIKey:  cfg.Generation.APIKey,
			Model:   cfg.Generation.Model,
			BaseURL: cfg.Generation.BaseURL,
			Logger:  logger,
		},
	)

	// Telemetry. Disabled collectors are nil-safe no-ops.
	var collector *metrics.Collector
	if cfg.Observability.EnableMetrics {
		collector, err = metrics.NewCollectorFromEnv(
			startupCtx,
			cfg.Observability.AWSRegion,
			cfg.Observability.MetricNamespace,
			logger,
		)
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
	}

	orchestrator := generation.NewOrchestrator(
		entitlementSvc,
		ledger,
		completer,
		planRepo,
		collector,
		logger,
	)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = authSvc
	if collector != nil {
		srv.Metrics = collector
	}
	srv.OnShutdown(pool.Close)

	// Handlers.
	planHandler := handlers.NewPlanHandler(orchestrator, planRepo, srv.Validator, logger)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementSvc, ledger, logger)
	authHandler := handlers.NewAuthHandler(authSvc, srv.Validator, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		external.StripeVerifier{},
		subRepo,
		cfg.Billing.StripeWebhookSecret,
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { planHandler.RegisterRoutes(r) },
		func(r chi.Router) { entitlementHandler.RegisterRoutes(r) },
		func(r chi.Router) { authHandler.RegisterRoutes(r) },
	)
	srv.WebhookRouteRegistrars = append(srv.WebhookRouteRegistrars,
		func(r chi.Router) { webhookHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// sessionPruneInterval is how often expired login sessions are swept.
const sessionPruneInterval = time.Hour

// pruneSessionsLoop periodically removes expired sessions until ctx is done.
func pruneSessionsLoop(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.PruneExpiredSessions(ctx); err != nil {
				logger.Error("session prune failed", "error", err)
			}
		}
	}
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with the configured deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Shutdown server resources (DB pool, etc.).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
