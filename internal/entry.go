// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gopher-mcp/internal/api"
	"github.com/starford/gopher-mcp/internal/mcpserver"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/sse"
)

// NewLogger returns the JSON logger used by every component. A nil out
// means stderr.
func NewLogger(level slog.Level, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}

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
	logger := NewLogger(cfg.App.LogLevel, app.logOutput)

	logger.Info("Configuration loaded",
		slog.String("transport", cfg.App.Transport),
		slog.Bool("tofu_enabled", cfg.Gemini.TOFU.Enabled),
		slog.Bool("client_certs_enabled", cfg.Gemini.ClientCerts.Enabled),
		slog.Int("cache_max_entries", cfg.Cache.MaxEntries),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var broker *sse.Broker
	var notifier models.Notifier = models.NopNotifier{}
	if cfg.App.Transport == TransportHTTP {
		broker = sse.NewBroker(2 * time.Second)
		defer broker.Close()
		notifier = broker
	}

	comps, err := Build(cfg, logger, notifier)
	if err != nil {
		return err
	}
	defer comps.Close()

	mcpSrv := mcpserver.New(comps.Gopher, comps.Gemini, logger)

	g, gCtx := errgroup.WithContext(ctx)

	if comps.Certs != nil {
		g.Go(func() error {
			err := comps.Certs.Watch(gCtx, func(names []string) {
				logger.Info("Client certificates reloaded", slog.Any("hosts", names))
			})
			if err != nil {
				logger.Warn("client certificate watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if cfg.App.Transport == TransportStdio {
		return runStdio(gCtx, g, mcpSrv, logger)
	}
	return runHTTP(gCtx, g, cfg, comps, mcpSrv, broker, logger)
}

func runStdio(ctx context.Context, g *errgroup.Group, mcpSrv *mcpserver.Server, logger *slog.Logger) error {
	stdioCtx, cancel := context.WithCancel(ctx)
	g.Go(func() error {
		defer cancel()
		logger.Info("Starting MCP stdio server")
		if err := mcpSrv.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server error: %w", err)
		}
		return nil
	})

	// The stdio server returns on EOF or a signal; stop the watcher with it.
	g.Go(func() error {
		<-stdioCtx.Done()
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

func runHTTP(ctx context.Context, g *errgroup.Group, cfg *Config, comps *Components, mcpSrv *mcpserver.Server,
	broker *sse.Broker, logger *slog.Logger) error {
	var trust api.TrustReader
	if comps.Trust != nil {
		trust = comps.Trust
	}
	svc := api.NewService(comps.Gopher, comps.Gemini, trust)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
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

	r.Mount("/api", apiRouter)
	r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).Handle("/mcp", mcpSrv.HTTPHandler())

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-ctx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stops the certificate watcher.
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
