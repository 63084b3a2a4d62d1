package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/handlers"
	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/memory"
	"media-ingest/internal/metrics"
	"media-ingest/internal/middleware"
	"media-ingest/internal/startup"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch the library, import new files and serve status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx.configPath())
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	cfg, err := startup.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	lock := flock.New(cfg.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", cfg.LockPath, err)
	}
	if !locked {
		return fmt.Errorf("another ingestd is already using %s", cfg.DataDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("Failed to release lock: %v", err)
		}
	}()

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(volumeResolver(cfg))

	startup.LogTranscoderInit()
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, falling back to Go decoders: %v", err)
	}
	defer media.ShutdownVips()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	svc, err := openServices(parent, cfg)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(svc, time.Minute)
	collector.Start()

	startup.LogPipelineInit(cfg)
	if err := svc.coordinator.Start(); err != nil {
		collector.Stop()
		closeServices(svc)
		return fmt.Errorf("start pipeline: %w", err)
	}
	startup.LogPipelineStarted()

	router := handlers.New(svc.coordinator).Router(cfg.MetricsEnabled)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks

	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           middleware.Logger(loggingConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		MetricsPort:     cfg.MetricsPort,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var runErr error
	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case <-parent.Done():
		startup.LogShutdownInitiated(parent.Err().Error())
	case err := <-serverErr:
		runErr = fmt.Errorf("status server: %w", err)
		startup.LogShutdownInitiated(runErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping pipeline")
	if err := svc.Close(shutdownCtx); err != nil {
		logging.Warn("Pipeline shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Pipeline stopped")
	}

	startup.LogShutdownComplete()
	return runErr
}

// closeServices releases svc with the standard shutdown budget.
func closeServices(svc *services) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		logging.Warn("Shutdown error: %v", err)
	}
}
