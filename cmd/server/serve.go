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

	"github.com/nulzo/anthropic-gateway/internal/analytics"
	"github.com/nulzo/anthropic-gateway/internal/cli"
	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/gateway"
	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/internal/platform/logger"
	"github.com/nulzo/anthropic-gateway/internal/platform/otel"
	"github.com/nulzo/anthropic-gateway/internal/server"
	"github.com/nulzo/anthropic-gateway/internal/store/sqlite"
	"github.com/nulzo/anthropic-gateway/internal/usage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) *zap.Logger {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	logger.Initialize(logCfg)
	return logger.Get()
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := initLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdownTracer, err := otel.InitTracer(cfg.Tracing.ServiceName, log, os.Stdout)
		if err != nil {
			return fmt.Errorf("failed to init tracer: %w", err)
		}
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	provider, err := llm.New(ctx, cfg.Provider, httpclient.New(cfg.Provider.Timeout))
	if err != nil {
		return fmt.Errorf("failed to create %s provider: %w", cfg.Provider.Kind, err)
	}
	log.Info("Provider ready", zap.String("provider", provider.Name()))

	var (
		reporters usage.Multi
		usageSvc  analytics.Service
		ingestor  analytics.Ingestor
		cleanup   []func()
	)

	if cfg.Usage.DSN != "" {
		repo, err := sqlite.NewSQLiteStorage(cfg.Usage.DSN, log)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { _ = repo.Close() })

		ingestor = analytics.NewIngestor(log, repo)
		ingestor.Start(context.Background())
		reporters = append(reporters, ingestor)
		usageSvc = analytics.NewService(repo)
	}

	if cfg.Usage.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Usage.Redis.Addr,
			Password: cfg.Usage.Redis.Password,
			DB:       cfg.Usage.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// counters are best effort, reports will log their own failures
			log.Warn("Redis unreachable at startup", zap.String("addr", cfg.Usage.Redis.Addr), zap.Error(err))
		}
		cleanup = append(cleanup, func() { _ = client.Close() })
		reporters = append(reporters, usage.NewRedisReporter(client, cfg.Usage.Redis.TTL))
	}

	var reporter usage.Reporter = usage.NoopReporter{}
	if len(reporters) > 0 {
		reporter = reporters
	}
	tap := usage.NewTap(reporter, log, cfg.Usage.Timeout)

	svc := gateway.NewService(log, provider, tap)
	srv := server.New(cfg, log, svc, usageSvc)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Log.Format != "json" {
		fmt.Fprintln(os.Stderr, cli.Banner("anthropic-gateway", AppVersion, httpServer.Addr, cfg.Provider.Kind))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting gateway", zap.String("addr", httpServer.Addr), zap.String("provider", cfg.Provider.Kind))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown timed out, closing open streams", zap.Error(err))
		_ = httpServer.Close()
	}

	// streams may have used up the shutdown budget, so reports get their own
	drainBudget := cfg.Usage.Timeout
	if drainBudget <= 0 {
		drainBudget = 5 * time.Second
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainBudget)
	defer cancelDrain()
	if err := tap.Drain(drainCtx); err != nil {
		log.Warn("Usage reports still in flight at exit", zap.Error(err))
	}
	if ingestor != nil {
		ingestor.Stop()
	}
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	log.Info("Gateway stopped")
	return nil
}
