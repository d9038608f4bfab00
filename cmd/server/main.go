package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/router"
	"github.com/anonto42/nano-feed/backend/pkg/cache"
	"github.com/anonto42/nano-feed/backend/pkg/config"
	"github.com/anonto42/nano-feed/backend/pkg/events"
	"github.com/anonto42/nano-feed/backend/pkg/firebase"
	"github.com/anonto42/nano-feed/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := config.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("close store", "error", err)
		}
	}()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	var profileCache cache.Cache = cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
	if cfg.MemcacheURL != "" {
		profileCache = cache.NewMemcache(cfg.MemcacheURL, cfg.CacheTTL, logger)
		logger.Info("using memcached profile cache", "servers", cfg.MemcacheURL)
	}

	bus := events.NewBus(logger)
	if cfg.NatsURL != "" {
		if err := bus.Connect(cfg.NatsURL, cfg.NatsSubject); err != nil {
			// Without NATS other instances only miss invalidations until TTL.
			logger.Warn("cannot connect to NATS", "url", cfg.NatsURL, "error", err)
		} else {
			logger.Info("connected to NATS", "subject", cfg.NatsSubject)
		}
	}
	defer bus.Close()

	repos := repositories.NewSet(store, repositories.Options{Cache: profileCache, Events: bus})
	bus.Subscribe(func(e events.Event) {
		switch e.Kind {
		case events.ProfileUpdated:
			repos.Profiles.Invalidate(e.UserID)
		case events.FollowToggled:
			repos.Profiles.Invalidate(e.UserID, e.TargetID)
		}
	})

	deps := router.Dependencies{
		Repositories: repos,
		Feed:         feed.NewService(repos, logger),
	}
	switch cfg.AuthMode {
	case config.AuthFirebase:
		client, err := firebase.NewAuthClient(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return fmt.Errorf("init firebase: %w", err)
		}
		deps.Sessions = middleware.NewFirebaseVerifier(client)
	default:
		issuer := middleware.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
		deps.Sessions = issuer
		deps.Issuer = issuer
		if cfg.FirebaseCredentialsPath != "" {
			client, err := firebase.NewAuthClient(ctx, cfg.FirebaseCredentialsPath)
			if err != nil {
				return fmt.Errorf("init firebase: %w", err)
			}
			deps.Firebase = middleware.NewFirebaseVerifier(client)
		}
	}

	// Counter reconciliation
	scheduler := cron.New()
	reconciler := repositories.NewReconciler(store, repos, bus, logger)
	if _, err := reconciler.Schedule(scheduler, cfg.ReconcileSchedule, 5*time.Minute); err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	router.SetupMiddleware(e, logger)
	router.SetupRoutes(e, deps)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited with error", "error", err)
		}
	}()

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited with error", "error", err)
			cancel()
		}
	}()
	logger.Info("server started", "port", cfg.Port, "metrics_port", cfg.MetricsPort, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down metrics server", "error", err)
	}
	return nil
}
