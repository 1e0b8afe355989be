package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwygoda/bulkseo/internal/adapter/generator"
	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/metrics"
)

// Config holds worker settings.
type Config struct {
	PollInterval  time.Duration
	MaxConcurrent int // batches of different jobs running at once
}

// Worker polls for due batches and processes them.
type Worker struct {
	svc           *domain.JobService
	catalog       domain.Catalog
	registry      *generator.Registry
	pollInterval  time.Duration
	maxConcurrent int
	logger        *zap.Logger
	wake          chan struct{}
}

// New creates a new worker.
func New(svc *domain.JobService, catalog domain.Catalog, registry *generator.Registry, cfg Config, logger *zap.Logger) *Worker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Worker{
		svc:           svc,
		catalog:       catalog,
		registry:      registry,
		pollInterval:  cfg.PollInterval,
		maxConcurrent: cfg.MaxConcurrent,
		logger:        logger,
		wake:          make(chan struct{}, 1),
	}
}

// Wake triggers a poll without waiting for the next tick. It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run starts the worker loop until context is cancelled. It returns once
// every running batch has stopped.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("max_concurrent", w.maxConcurrent))
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	g := new(errgroup.Group)
	g.SetLimit(w.maxConcurrent)

	w.poll(ctx, g)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			_ = g.Wait()
			return
		case <-ticker.C:
			w.poll(ctx, g)
		case <-w.wake:
			w.poll(ctx, g)
		}
	}
}

func (w *Worker) poll(ctx context.Context, g *errgroup.Group) {
	batches, err := w.svc.DueBatches(ctx, w.maxConcurrent*2)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("poll failed", zap.Error(err))
			metrics.RecordError("poll", "persistence")
		}
		return
	}

	for _, b := range batches {
		if ctx.Err() != nil {
			return
		}
		// Full: the batch stays queued for the next poll.
		if !g.TryGo(func() error {
			w.runBatch(ctx, b)
			return nil
		}) {
			return
		}
	}
}

func (w *Worker) runBatch(ctx context.Context, b domain.Batch) {
	if err := w.svc.ClaimBatch(ctx, b.ID); err != nil {
		if !errors.Is(err, domain.ErrBatchNotFound) {
			w.logger.Error("claim failed", zap.Int64("batch_id", b.ID), zap.Error(err))
		}
		return
	}

	metrics.BatchesInFlight.Inc()
	defer metrics.BatchesInFlight.Dec()

	w.processBatch(ctx, b)
}
