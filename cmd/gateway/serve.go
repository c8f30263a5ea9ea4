package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/mfea-gateway/internal/config"
	"github.com/tjfontaine/mfea-gateway/internal/logging"
	"github.com/tjfontaine/mfea-gateway/internal/runtime"
	"github.com/tjfontaine/mfea-gateway/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interactions endpoint (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the gateway until ctx is done or the server fails, then shuts
// down HTTP, drains background work and flushes telemetry, in that order.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...runtime.Option) error {
	providers, flush, err := telemetry.Init(ctx, cfg.Telemetry, os.Stderr, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := flush(flushCtx); err != nil {
			logger.Error("failed to flush telemetry", slog.String("error", err.Error()))
		}
	}()

	opts = append([]runtime.Option{
		runtime.WithConfig(cfg),
		runtime.WithLogger(logger),
		runtime.WithMeter(providers.Meter("github.com/tjfontaine/mfea-gateway")),
	}, opts...)

	gw, err := runtime.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gateway")
	case runErr = <-gw.Err():
	}

	// The signal context is already done; shutdown gets its own budget.
	if err := gw.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
