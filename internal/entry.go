// Package internal wires configuration, storage and the pipeline into the
// commands exposed by cmd/app.
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

	"github.com/starford/study/internal/api"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/mcpserver"
	"github.com/starford/study/internal/noteservice"
	"github.com/starford/study/internal/sse"
)

const shutdownTimeout = 10 * time.Second

// Serve exposes the vault over HTTP until ctx is cancelled or a shutdown
// signal arrives. Vault changes, including those written by pipeline runs
// in other processes, are re-indexed and streamed to /api/events.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("serve: configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.Level().String()))

	store, db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	if res, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("serve: initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("serve: index synced", slog.Int("indexed", res.Indexed), slog.Int("removed", res.Removed))
	}

	svc := noteservice.NewService(store, db, cfg.Data.StatePath())
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, db, store, logger, broker.NoteChanged)
	})

	g.Go(func() error {
		logger.Info("serve: http server starting", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("serve: received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("serve: context cancelled, shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Streaming clients hold their connections open; closing the
		// broker ends them so Shutdown can finish.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("serve: http shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("serve: stopped with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("serve: stopped")
	return nil
}

// errShutdown ends the errgroup once the server has been shut down, which
// also stops the watcher.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the vault tools over stdio until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := index.Sync(db, store, app.logger); err != nil {
		app.logger.Warn("mcp: initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(noteservice.NewService(store, db, app.config.Data.StatePath()), app.version)
	app.logger.Info("mcp: serving on stdio", slog.String("vault_path", app.config.Vault.Path))
	return srv.ServeStdio()
}
