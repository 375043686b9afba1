// Package main is the entrypoint for the RowForge API server.
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

	"github.com/rowforge/rowforge/internal/ai"
	"github.com/rowforge/rowforge/internal/api"
	"github.com/rowforge/rowforge/internal/api/handler"
	mw "github.com/rowforge/rowforge/internal/api/middleware"
	"github.com/rowforge/rowforge/internal/api/response"
	"github.com/rowforge/rowforge/internal/cache"
	"github.com/rowforge/rowforge/internal/config"
	"github.com/rowforge/rowforge/internal/filestore"
	"github.com/rowforge/rowforge/internal/gate"
	"github.com/rowforge/rowforge/internal/processing"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/internal/transform"
	"github.com/rowforge/rowforge/internal/waitlist"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create the AI interpreter
	interpreter, err := ai.NewInterpreter(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI interpreter: %w", err)
	}
	slog.Info("AI interpreter initialized", "provider", interpreter.Name())

	// 6. Assemble the processing pipeline
	pgStore := store.NewPostgresStore(pool)
	files, err := filestore.New(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("create filestore: %w", err)
	}

	accessGate := gate.New(pgStore)
	transformer := transform.New(interpreter, cfg.AI.InferenceTimeout)
	processingSvc := processing.NewService(accessGate, pgStore, files, transformer, redisCache)
	waitlistSvc := waitlist.NewService(pgStore, redisCache)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		SubmitHandler:    handler.NewSubmitHandler(processingSvc, cfg.Upload.MaxBytes),
		JobStatusHandler: handler.NewJobStatusHandler(processingSvc),
		ListJobsHandler:  handler.NewListJobsHandler(processingSvc),
		ResultHandler:    handler.NewResultHandler(processingSvc),
		ValidateHandler:  handler.NewValidateHandler(accessGate),

		WaitlistJoinHandler:  handler.NewWaitlistJoinHandler(waitlistSvc),
		WaitlistStatsHandler: handler.NewWaitlistStatsHandler(waitlistSvc),

		CreateUserHandler: handler.NewCreateUserHandler(pgStore),
		GetUserHandler:    handler.NewGetUserHandler(pgStore),
		CreateKeyHandler:  handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:   handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:  handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
