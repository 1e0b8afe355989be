package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/metrics"
)

// processBatch runs the products of a claimed batch in order. Product
// failures are recorded on their results; any other failure fails the batch,
// which keeps later batches of the job from running.
//
// Cancellation stops the loop between products and leaves the batch
// processing; RecoverStale requeues it on the next start.
func (w *Worker) processBatch(ctx context.Context, b domain.Batch) {
	log := w.logger.With(
		zap.String("job_id", b.JobID),
		zap.Int64("batch_id", b.ID),
		zap.Int("batch_number", b.Number))
	// Writes after a cancelled run still land.
	store := context.WithoutCancel(ctx)

	job, err := w.svc.Get(store, b.JobID)
	if err != nil {
		w.failBatch(store, log, b, err)
		return
	}

	log.Info("batch started", zap.Int("products", len(b.ProductIDs)))
	for _, productID := range b.ProductIDs {
		if ctx.Err() != nil {
			log.Info("batch interrupted", zap.Int64("next_product_id", productID))
			return
		}

		res, err := w.svc.Result(store, job.ID, productID)
		if err != nil {
			w.failBatch(store, log, b, err)
			return
		}
		if res.Status.IsTerminal() {
			continue
		}

		if err := w.processProduct(store, job, productID); err != nil {
			log.Warn("product failed", zap.Int64("product_id", productID), zap.Error(err))
			if ferr := w.svc.FailProduct(store, job.ID, productID, err.Error()); ferr != nil {
				w.failBatch(store, log, b, ferr)
				return
			}
			metrics.RecordProduct(string(domain.ResultFailed))
			continue
		}
		metrics.RecordProduct(string(domain.ResultCompleted))
	}

	if err := w.svc.CompleteBatch(store, b.ID); err != nil {
		w.failBatch(store, log, b, err)
		return
	}
	metrics.RecordBatch(string(domain.BatchCompleted))
	log.Info("batch completed")

	finished, changed, err := w.svc.CheckCompletion(store, job.ID)
	if err != nil {
		log.Error("completion check failed", zap.Error(err))
		metrics.RecordError("check_completion", "persistence")
		return
	}
	if changed {
		log.Info("job finished",
			zap.String("status", string(finished.Status)),
			zap.Int("completed", finished.CompletedProducts),
			zap.Int("failed", finished.FailedProducts))
		metrics.RecordJob(string(finished.Status))
	}
}

func (w *Worker) failBatch(ctx context.Context, log *zap.Logger, b domain.Batch, cause error) {
	log.Error("batch failed", zap.Error(cause))
	metrics.RecordBatch(string(domain.BatchFailed))
	if err := w.svc.FailBatch(ctx, b.ID, cause.Error()); err != nil {
		log.Error("mark batch failed", zap.Error(err))
		metrics.RecordError("fail_batch", "persistence")
	}
}

// processProduct fetches one product, generates its content and stores it.
func (w *Worker) processProduct(ctx context.Context, job *domain.Job, productID int64) error {
	if err := w.svc.MarkProductProcessing(ctx, job.ID, productID); err != nil {
		return err
	}

	product, err := w.catalog.FetchProduct(ctx, job.Store, productID)
	if err != nil {
		return err
	}

	gen := w.registry.Match(job.Model)
	if gen == nil {
		return &domain.GenerationError{ProductID: productID, Detail: fmt.Sprintf("no generator for model %q", job.Model)}
	}

	start := time.Now()
	content, err := gen.Generate(ctx, domain.GenerationRequest{
		ProductID:        productID,
		Name:             product.Name,
		Description:      product.Description,
		ShortDescription: product.ShortDescription,
		Categories:       product.CategoryNames(),
		PromptTemplate:   job.PromptTemplate,
		Model:            job.Model,
		UserID:           job.UserID,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordGeneration(gen.Name(), status, time.Since(start).Seconds())
	if err != nil {
		var ge *domain.GenerationError
		if !errors.As(err, &ge) {
			err = &domain.GenerationError{ProductID: productID, Err: err}
		}
		return err
	}

	return w.svc.CompleteProduct(ctx, job.ID, productID, product.Name, content)
}
