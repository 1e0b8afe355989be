package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwygoda/bulkseo/internal/adapter/catalog"
	"github.com/cwygoda/bulkseo/internal/adapter/generator"
	httpAdapter "github.com/cwygoda/bulkseo/internal/adapter/http"
	"github.com/cwygoda/bulkseo/internal/adapter/sqlite"
	"github.com/cwygoda/bulkseo/internal/config"
	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/health"
	"github.com/cwygoda/bulkseo/internal/logging"
	"github.com/cwygoda/bulkseo/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var (
		port         int
		dbPath       string
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the batch worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("port") {
				c.cfg.Port = port
			}
			if flags.Changed("db") {
				c.cfg.DBPath = dbPath
			}
			if flags.Changed("poll-interval") {
				c.cfg.PollInterval = pollInterval
			}
			if err := c.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return serve(cmd.Context(), c.cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&dbPath, "db", config.DefaultDBPath(), "SQLite database path")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Worker poll interval")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting bulkseo",
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBPath))

	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer repo.Close()

	svc := domain.NewJobService(repo,
		domain.WithBatchDelay(cfg.BatchDelay),
		domain.WithDefaultBatchSize(cfg.DefaultBatchSize),
		domain.WithDefaultModel(cfg.Generation.DefaultModel),
	)

	// Requeue batches interrupted by a previous crash
	if recovered, err := svc.RecoverStale(ctx); err != nil {
		logger.Warn("failed to recover stale batches", zap.Error(err))
	} else if recovered > 0 {
		logger.Info("recovered stale batches", zap.Int64("count", recovered))
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	w := worker.New(svc, catalog.NewWooCommerce(cfg.Catalog.Timeout, logger), registry, worker.Config{
		PollInterval:  cfg.PollInterval,
		MaxConcurrent: cfg.MaxConcurrentJobs,
	}, logger)
	svc.SetWakeup(w.Wake)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := httpAdapter.NewServer(svc, health.NewAnalyzer(), addr, cfg.WebhookSecret, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildRegistry registers one generator per configured provider, in order.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*generator.Registry, error) {
	registry := generator.NewRegistry()
	for _, p := range cfg.Providers {
		g, err := generator.NewOpenAI(generator.Config{
			Name:              p.Name,
			Pattern:           p.Pattern,
			BaseURL:           p.BaseURL,
			APIKey:            p.ResolveAPIKey(),
			RequestsPerMinute: cfg.Generation.RequestsPerMinute,
			Timeout:           cfg.Generation.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		registry.Register(g)
	}
	return registry, nil
}
