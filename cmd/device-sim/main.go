package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mailboxhub/internal/config"
	"mailboxhub/internal/device"
	"mailboxhub/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, "json")
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// run returns before os.Exit so its deferred cleanup (Redis, listener) happens
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_error", "error", err.Error())
		stop()
		os.Exit(1)
	}
}

// run serves the simulated unit until ctx ends or the server fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Redis when configured, memory otherwise
	var store device.StateStore = device.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisStore, err := device.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis unavailable at %s: %w", cfg.RedisURL, err)
		}
		defer redisStore.Close()
		store = redisStore
	}

	mailbox, err := device.NewMailbox(ctx, store)
	if err != nil {
		return err
	}

	logger.Info("starting_device_simulator",
		"addr", cfg.SimAddr,
		"drop_interval", cfg.SimDropInterval.String(),
		"count", mailbox.State().Count,
		"redis", cfg.RedisURL != "",
	)

	server := device.NewServer(device.Config{
		Addr:         cfg.SimAddr,
		DropInterval: cfg.SimDropInterval,
		CommandRate:  cfg.SimCommandRate,
		CommandBurst: cfg.SimCommandBurst,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
	}, mailbox)
	if err := server.Listen(); err != nil {
		return err
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve()
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
		server.Stop()
		logger.Info("server_stopped_gracefully")
		return nil
	case err := <-errChan:
		server.Stop()
		return err
	}
}
