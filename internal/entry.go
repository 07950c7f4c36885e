// Package internal provides the main application initialization and runtime logic.
package internal

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
	"golang.org/x/sync/errgroup"

	"github.com/calden/knowld/internal/api"
	"github.com/calden/knowld/internal/mcpserver"
	"github.com/calden/knowld/internal/render"
	"github.com/calden/knowld/internal/seed"
	"github.com/calden/knowld/internal/service"
	"github.com/calden/knowld/internal/sse"
	"github.com/calden/knowld/internal/store"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("base_path", cfg.Render.BasePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Rendering pipeline, built once and shared.
	renderer := render.New(render.Config{
		BasePath:     cfg.Render.BasePath,
		GlossaryBase: cfg.Render.GlossaryBase,
	})
	svc := service.New(db, render.NewAssembler(renderer), cfg.Maintenance.LockTimeout, broker.PublishKnowlEvent)

	// Seed import, if configured.
	var importer *seed.Importer
	if cfg.Seed.Enabled() {
		if err := os.MkdirAll(cfg.Seed.Path, 0o755); err != nil {
			return fmt.Errorf("create seed dir: %w", err)
		}
		importer = seed.New(svc, db, cfg.Seed.Path, logger)
		if err := importer.Sync(ctx); err != nil {
			logger.Warn("initial seed sync failed", slog.String("error", err.Error()))
		}
	}

	apiRouter := api.NewRouter(svc, renderer.Links(), cfg.Render.BasePath,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.Auth.AdminToken, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Keep seed files flowing in while the server runs.
	if importer != nil && cfg.Seed.Watch {
		g.Go(func() error {
			return importer.Watch(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio with the given options.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// MCP talks JSON-RPC on stdout; keep the log on stderr.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	renderer := render.New(render.Config{
		BasePath:     cfg.Render.BasePath,
		GlossaryBase: cfg.Render.GlossaryBase,
	})
	svc := service.New(db, render.NewAssembler(renderer), cfg.Maintenance.LockTimeout, nil)

	logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc).ServeStdio()
}
