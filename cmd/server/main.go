// Package main provides the entry point for the forensics engine server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/analyzer"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/api"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/config"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/intel"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/observability"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("forensics-engine %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	tel, err := observability.New(observability.Config{
		ServiceName:    "forensics-engine",
		ServiceVersion: Version,
		LogLevel:       cfg.Logging.Level,
		LogFormat:      cfg.Logging.Format,
		MetricsEnabled: cfg.Metrics.Enabled,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		os.Exit(1)
	}
	defer tel.Shutdown()
	logger := tel.Logger()

	logger.Info("starting forensics engine",
		zap.String("version", Version),
		zap.String("config", *configPath),
	)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: os.Getenv(cfg.Redis.PasswordEnv),
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()
	}

	var intelProvider intel.Provider
	if cfg.Intel.Enabled {
		gemini, err := intel.NewGeminiProvider(cfg.Intel)
		if err != nil {
			logger.Warn("intelligence provider disabled", zap.Error(err))
		} else {
			intelProvider = gemini
			if redisClient != nil {
				cache := intel.NewCache(redisClient, cfg.Redis.CacheTTL, logger)
				intelProvider = intel.NewCachedProvider(gemini, cache, logger)
			}
			logger.Info("intelligence provider ready", zap.String("provider", intelProvider.Name()))
		}
	}

	backend, err := analyzer.NewBackend(cfg.Analyzer)
	if err != nil {
		logger.Warn("analyzer backend disabled, heuristics only", zap.Error(err))
	} else if backend != nil {
		logger.Info("analyzer backend ready", zap.String("backend", backend.Name()))
	}

	var limiter *api.RateLimiter
	if redisClient != nil {
		limiter = api.NewRateLimiter(redisClient, 0, logger)
	}

	srv := api.New(cfg, tel, intelProvider, backend, limiter)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
