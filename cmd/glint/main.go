package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/glintapp/glint-core/internal/adapter/genai"
	glinthttp "github.com/glintapp/glint-core/internal/adapter/http"
	glintnats "github.com/glintapp/glint-core/internal/adapter/nats"
	glintotel "github.com/glintapp/glint-core/internal/adapter/otel"
	"github.com/glintapp/glint-core/internal/adapter/postgres"
	"github.com/glintapp/glint-core/internal/adapter/ristretto"
	"github.com/glintapp/glint-core/internal/adapter/ws"
	"github.com/glintapp/glint-core/internal/config"
	"github.com/glintapp/glint-core/internal/logger"
	"github.com/glintapp/glint-core/internal/middleware"
	"github.com/glintapp/glint-core/internal/resilience"
	"github.com/glintapp/glint-core/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"poll_interval", cfg.Scheduler.PollInterval,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := glintotel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(sctx)
	}()

	metrics, err := glintotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	bus, err := glintnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = bus.Drain() }()

	// Cache
	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// Generation backend
	backend := genai.NewClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout)
	backend.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	engine := service.NewEngine(store, backend, backend)
	engine.SetBus(bus)
	engine.SetHub(hub)
	engine.SetCache(cache)
	engine.SetMetrics(metrics)
	engine.SetExecuteTimeout(cfg.Scheduler.ExecuteTimeout)

	sched := service.NewScheduler(engine, cfg.Scheduler.PollInterval)
	engine.AttachScheduler(sched)
	defer sched.Shutdown()

	works := service.NewWorkListService(store, cache, engine, cfg.Cache.WorkListTTL)

	// --- HTTP ---
	handlers := glinthttp.NewHandlers(engine, works)

	r := chi.NewRouter()

	r.Use(glinthttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(glinthttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(glintotel.Middleware(cfg.Logging.Service))
	r.Use(middleware.Auth(apiKeyLookup(store), cfg.Auth.Enabled))

	glinthttp.MountRoutes(r, handlers, hub)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// apiKeyLookup adapts the postgres store to the auth middleware.
func apiKeyLookup(store *postgres.Store) middleware.KeyLookup {
	return func(ctx context.Context, keyID string) (string, error) {
		k, err := store.GetAPIKey(ctx, keyID)
		if err != nil {
			return "", err
		}
		return k.KeyHash, nil
	}
}
