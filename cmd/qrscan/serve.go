package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"qrscan-service/internal/camera"
	httpapi "qrscan-service/internal/http"
	"qrscan-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scanner HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	devices, err := camera.New(cfg.CameraDevices(), log)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	var publicOrigin *url.URL
	if cfg.HTTP.PublicOrigin != "" {
		publicOrigin, err = url.Parse(cfg.HTTP.PublicOrigin)
		if err != nil {
			return fmt.Errorf("public origin: %w", err)
		}
	}

	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	scanners := service.NewScannerService(devices, cfg.Scanner, publicOrigin, log)
	handler := httpapi.NewHandler(scanners, log)
	router := httpapi.NewRouter(handler, cfg.HTTP.CORSOrigins, cfg.Auth.JWTSecret, log)

	// Cancelling base ends open event streams so Shutdown can finish.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("camera", cfg.Camera.Type).
			Bool("auth", cfg.Auth.JWTSecret != "").
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	cancelBase()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	return scanners.Shutdown(shutdownCtx)
}
