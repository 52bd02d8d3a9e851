package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-engine-base/internal/config"
	"github.com/aescanero/dago-engine-base/internal/dispatch"
	"github.com/aescanero/dago-engine-base/internal/registry"
	"github.com/aescanero/dago-engine-base/internal/worker"
	"github.com/aescanero/dago-engine-base/pkg/engine"
	"github.com/aescanero/dago-engine-base/pkg/resolve"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting render worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)

	// Log configuration (without sensitive data)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// Initialize engine adapters
	var resolver engine.ResolveFunc
	if cfg.Sanitize {
		resolver = resolve.Sanitize(nil)
		logger.Info("html sanitizing enabled")
	}
	reg, err := registry.New(registry.Options{
		TemplateFS: os.DirFS(cfg.TemplateDir),
		Resolver:   resolver,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize engines", zap.Error(err))
	}
	logger.Info("engines initialized", zap.Strings("engines", reg.Names()))

	// Initialize dispatcher
	rules := dispatch.Config{Fallback: cfg.DefaultEngine}
	if cfg.RulesFile != "" {
		rules, err = dispatch.LoadConfig(cfg.RulesFile)
		if err != nil {
			logger.Fatal("failed to load dispatch rules", zap.Error(err))
		}
		if rules.Fallback == "" {
			rules.Fallback = cfg.DefaultEngine
		}
	}
	dispatcher, err := dispatch.NewDispatcher(reg, rules, logger)
	if err != nil {
		logger.Fatal("failed to initialize dispatcher", zap.Error(err))
	}
	logger.Info("dispatcher initialized",
		zap.Int("rules", len(rules.Rules)),
		zap.String("fallback", rules.Fallback),
	)

	// Initialize worker
	w := worker.NewWorker(cfg, redisClient, worker.NewProcessor(dispatcher, logger), logger)

	// Start worker
	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	// Start health server
	healthServer := worker.NewHealthServer(cfg.HealthPort, redisClient, reg.Names, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("render worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop health server
	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	// Stop worker
	if err := w.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}

	// Close Redis connection
	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}

	logger.Info("worker stopped gracefully")
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
