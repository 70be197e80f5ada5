package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/wallplan/internal/config"
	"github.com/MeKo-Tech/wallplan/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis service",
		Long: `Start an HTTP server that exposes the analysis pipeline.

Endpoints:
  POST /v1/analyze     - analyze an uploaded drawing (multipart "file")
  POST /v1/manual      - build a layout from a JSON wall description
  POST /v1/estimate    - estimate blocks for a layout or wall size
  GET  /v1/ws/analyze  - websocket analysis with step progress
  GET  /health         - health check
  GET  /metrics        - Prometheus metrics

Examples:
  wallplan serve
  wallplan serve --host 0.0.0.0 --port 3000 --rate-limit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int("max-upload-size", 20, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("overlay-enable", true, "enable overlay image responses")
	f.Bool("rate-limit", false, "enable per-client rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("requests-per-day", 5000, "maximum requests per day per client")
	f.Int("max-upload-mb-per-day", 500, "maximum uploaded MB per day per client")

	v := a.loader.GetViper()
	for key, flag := range map[string]string{
		"server.host":                             "host",
		"server.port":                             "port",
		"server.cors_origin":                      "cors-origin",
		"server.max_upload_mb":                    "max-upload-size",
		"server.timeout_sec":                      "timeout",
		"server.shutdown_timeout":                 "shutdown-timeout",
		"server.overlay_enabled":                  "overlay-enable",
		"server.rate_limit.enabled":               "rate-limit",
		"server.rate_limit.requests_per_minute":   "requests-per-minute",
		"server.rate_limit.requests_per_hour":     "requests-per-hour",
		"server.rate_limit.requests_per_day":      "requests-per-day",
		"server.rate_limit.max_upload_mb_per_day": "max-upload-mb-per-day",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

// serverConfig maps the application configuration to the HTTP server's.
func serverConfig(cfg *config.Config) (server.Config, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return server.Config{}, err
	}
	sc := cfg.Server
	return server.Config{
		Host:           sc.Host,
		Port:           sc.Port,
		CORSOrigin:     sc.CORSOrigin,
		MaxUploadMB:    int64(sc.MaxUploadMB),
		TimeoutSec:     sc.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		OverlayEnabled: sc.OverlayEnabled,
		Render:         cfg.RenderOptions(),
		Catalog:        catalog,
		Estimate:       cfg.Blocks.Estimate,
		RateLimit: server.RateLimitConfig{
			Enabled:           sc.RateLimit.Enabled,
			RequestsPerMinute: sc.RateLimit.RequestsPerMinute,
			RequestsPerHour:   sc.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: sc.RateLimit.RequestsPerDay,
			MaxDataPerDay:     int64(sc.RateLimit.MaxUploadMBPerDay) << 20,
		},
	}, nil
}

func (a *app) runServe(cmd *cobra.Command) error {
	cfg := a.cfg
	sc, err := serverConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Leave room to write the response after a full-length analysis.
		WriteTimeout: timeout + 5*time.Second,
	}

	go func() {
		slog.Info("Starting wallplan server", "addr", httpServer.Addr, "rate_limit", sc.RateLimit.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
