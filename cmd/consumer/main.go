package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	opts := &container.Options{
		RedisAddr:          getEnv("SERVICE_REDIS_ADDR", "localhost:6379"),
		DatabaseURL:        getEnv("SERVICE_DATABASE_URL", ""),
		MigrateOnStart:     getEnv("SERVICE_MIGRATE_ON_START", "true") == "true",
		LogFormat:          getEnv("SERVICE_LOG_FORMAT", "console"),
		LogLevel:           getEnv("SERVICE_LOG_LEVEL", "info"),
		TelemetryTransport: container.TransportStream,
		ConsumerGroup:      getEnv("SERVICE_CONSUMER_GROUP", "click-recorder"),
	}

	if opts.RedisAddr == "" || opts.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "SERVICE_REDIS_ADDR and SERVICE_DATABASE_URL are required")
		os.Exit(1)
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, cancel := context.WithCancel(context.Background())

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	_ = logger.Sync()
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultValue
}
