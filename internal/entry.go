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

	"github.com/starford/noteforge/internal/api"
	"github.com/starford/noteforge/internal/apperr"
	"github.com/starford/noteforge/internal/notify"
	"github.com/starford/noteforge/internal/noteservice"
	"github.com/starford/noteforge/internal/store"
	"github.com/starford/noteforge/internal/transfer"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Duration("autosave_interval", cfg.Autosave.Interval()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Open the note store.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// Verify the search index against the notes table; repair drift
	// before serving any queries.
	notes, indexRows, err := db.Counts(ctx)
	if err != nil {
		return fmt.Errorf("verify index: %w", err)
	}
	if notes != indexRows {
		logger.Warn("search index out of sync, rebuilding",
			slog.Int64("notes", notes), slog.Int64("index_rows", indexRows))
		if err := db.Rebuild(ctx); err != nil {
			var corrupt *apperr.IndexCorruptionError
			if errors.As(err, &corrupt) {
				return fmt.Errorf("rebuild index: %w", err)
			}
			logger.Error("index rebuild failed", slog.String("error", err.Error()))
		}
	}

	// Event broker for SSE subscribers.
	broker := notify.NewBroker(2 * time.Second)
	defer broker.Close()

	// Import/export worker plus the service facade that owns autosave.
	worker := transfer.NewWorker(db, logger)
	svc := noteservice.New(db, worker, broker, cfg.Autosave.Interval(), logger)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the import inbox when one is configured.
	if cfg.Import.InboxPath != "" {
		inbox := cfg.Import.InboxPath
		if err := os.MkdirAll(inbox, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		g.Go(func() error {
			err := transfer.Watch(gCtx, worker, inbox, logger, func(path string, rep transfer.Report, err error) {
				if err != nil {
					return
				}
				broker.Publish(notify.Event{Type: notify.EventImportCompleted, Data: rep})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("inbox watcher: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
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

		// Flush pending autosaves before the store closes.
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Error("autosave flush on shutdown failed", slog.String("error", err.Error()))
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
