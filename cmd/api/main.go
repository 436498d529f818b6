// Package main is the entry point for the back-office API server.
//
// It loads configuration, opens the PostgreSQL pool and the optional redis
// nickname cache, wires repositories, services and handlers onto the core
// HTTP chassis, and runs the server next to the CloudWatch metrics flusher
// until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/config"
	"backoffice/internal/db"
	"backoffice/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(os.Stdout, cfg)
	logger.Info("backoffice API starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
	)

	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:             cfg.Database.URL.Unmask(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		logger.Info("database schema applied")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL.Unmask())
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	} else {
		logger.Info("redis not configured, nickname cache disabled")
	}

	var collector *telemetry.Collector
	if cfg.Observability.EnableMetrics {
		cw, err := telemetry.NewCloudWatchClient(ctx, cfg.Observability.AWSRegion, cfg.Observability.AWSEndpointURL)
		if err != nil {
			return fmt.Errorf("creating cloudwatch client: %w", err)
		}
		collector = telemetry.NewCollector(telemetry.Config{
			Client:        cw,
			Namespace:     cfg.Observability.MetricNamespace,
			FlushInterval: cfg.Observability.FlushInterval,
			Logger:        logger,
		})
	}

	srv, err := buildServer(cfg, logger, deps{pool: pool, redis: rdb, metrics: collector})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", ":"+cfg.Server.Port)
		return srv.ListenAndServe(gctx)
	})
	if collector != nil {
		g.Go(func() error { return collector.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger builds the process logger: JSON by default, text when
// LOG_FORMAT=text.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", cfg.Service)
}
