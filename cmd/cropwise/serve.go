package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mimir-aip/cropwise/pkg/api"
	"github.com/mimir-aip/cropwise/pkg/auth"
	"github.com/mimir-aip/cropwise/pkg/history"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	log.Info().Str("environment", cfg.Environment).Msg("Starting cropwise")

	svc, err := buildServices(cfg, nil)
	if err != nil {
		return err
	}
	log.Info().Strs("models", svc.registry.Names()).Str("primary", svc.registry.PrimaryName()).Msg("Model registry ready")

	store, err := history.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := history.NewRecorder(store, cfg.HistoryQueueSize)

	var retention *history.Retention
	if age := cfg.RetentionAge(); age > 0 {
		retention, err = history.NewRetention(store, age, cfg.HistoryRetentionSchedule)
		if err != nil {
			return err
		}
		retention.Start()
	}

	server := api.NewServer(api.Dependencies{
		Runner:    svc.runner,
		Predictor: svc.predictor,
		Weather:   svc.weather,
		Models:    svc.registry,
		Auth:      auth.NewManager(cfg.JWTSecret, cfg.TokenExpiry, store),
		History:   store,
		Recorder:  recorder,
	}, api.Options{
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}
	if retention != nil {
		retention.Stop()
	}
	if err := recorder.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("History queue not fully drained")
	}

	log.Info().Msg("Server exited")
	return nil
}
