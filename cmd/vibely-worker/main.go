// Package main implements the entry point for the Vibely sync worker: the
// offline-first caching and synchronization layer that sits between the
// Vibely app and its backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/config"
	"github.com/Siddamnandas/Vibely-sub004/metric"
	"github.com/Siddamnandas/Vibely-sub004/natsclient"
	"github.com/Siddamnandas/Vibely-sub004/worker"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vibely-worker"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s (built %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting Vibely sync worker",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	ctx := context.Background()
	natsClient := connectNATS(ctx, cfg, logger)
	if natsClient != nil {
		defer func() { _ = natsClient.Close(ctx) }()
	}

	w, err := worker.New(worker.Options{
		Config:   config.NewSafeConfig(cfg),
		NATS:     natsClient,
		Registry: metric.NewMetricsRegistry(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("assemble worker: %w", err)
	}

	if err := w.Initialize(); err != nil {
		return fmt.Errorf("initialize worker: %w", err)
	}

	return runWithSignalHandling(ctx, w, cliCfg.ShutdownTimeout)
}

// loadConfig reads the configuration file, falling back to defaults when no
// path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		slog.Warn("no config file given, using defaults")
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// connectNATS dials the broker. The worker is offline-first: an unreachable
// broker degrades to in-memory storage instead of refusing to start.
func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) *natsclient.Client {
	opts := []natsclient.ClientOption{
		natsclient.WithClientName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		logger.Warn("NATS client rejected, running in memory", "error", err)
		return nil
	}

	slog.Info("connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		logger.Warn("NATS unreachable, running in memory", "error", err)
		return nil
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		logger.Warn("NATS connection timeout, running in memory", "error", err)
		_ = client.Close(ctx)
		return nil
	}
	return client
}

// runWithSignalHandling starts the worker and blocks until shutdown.
func runWithSignalHandling(ctx context.Context, w *worker.Worker, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := w.Start(signalCtx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	slog.Info("Vibely sync worker started")

	<-signalCtx.Done()
	slog.Info("received shutdown signal")

	if err := w.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("stop worker: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}
