package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"nudger/internal/config"
	"nudger/internal/httpapi"
	"nudger/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitInvalidConfig)
	}

	log := logging.New(cfg.LogLevel, os.Stdout)
	log.Info().Str("version", version).Str("commit", commit).Msg("nudger starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, log)
	if err := app.startup(ctx); err != nil {
		app.shutdown(context.Background())
		return err
	}

	handler := httpapi.NewHandler(app, cfg.AllowedOrigins, log)
	if cfg.MetricsEnabled {
		handler.WithMetrics(cfg.MetricsPath, promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		log.Info().Str("path", cfg.MetricsPath).Msg("Metrics enabled")
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	// Stop accepting requests first, then drain fires, then close the store.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	app.shutdown(shutdownCtx)

	return runErr
}
