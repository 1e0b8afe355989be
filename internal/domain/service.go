package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubmitParams describes a new job.
type SubmitParams struct {
	UserID         string
	ProductIDs     []int64
	BatchSize      int
	PromptTemplate string
	Model          string
	Store          StoreCredentials
}

// ServiceOption configures a JobService.
type ServiceOption func(*JobService)

// WithBatchDelay sets the stagger between consecutive batch start times.
func WithBatchDelay(d time.Duration) ServiceOption {
	return func(s *JobService) { s.batchDelay = d }
}

// WithDefaultModel sets the model used when a submission does not name one.
func WithDefaultModel(model string) ServiceOption {
	return func(s *JobService) { s.defaultModel = model }
}

// WithDefaultBatchSize sets the batch size used when a submission does not name one.
func WithDefaultBatchSize(n int) ServiceOption {
	return func(s *JobService) { s.defaultBatchSize = n }
}

// WithWakeup registers a callback invoked after a job starts, so the scheduler
// can pick up the first batch without waiting for its next poll.
func WithWakeup(fn func()) ServiceOption {
	return func(s *JobService) { s.wake = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *JobService) { s.now = now }
}

// JobService orchestrates job operations.
type JobService struct {
	repo             JobRepository
	batchDelay       time.Duration
	defaultModel     string
	defaultBatchSize int
	wake             func()
	now              func() time.Time
}

// NewJobService creates a new JobService.
func NewJobService(repo JobRepository, opts ...ServiceOption) *JobService {
	s := &JobService{
		repo:             repo,
		batchDelay:       DefaultBatchDelay,
		defaultBatchSize: DefaultBatchSize,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetWakeup registers the scheduler wakeup callback after construction.
func (s *JobService) SetWakeup(fn func()) {
	s.wake = fn
}

// Submit validates and persists a new pending job.
func (s *JobService) Submit(ctx context.Context, p SubmitParams) (*Job, error) {
	ids := dedupe(p.ProductIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no product ids", ErrInvalidJob)
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: product id %d", ErrInvalidJob, id)
		}
	}
	if _, err := url.ParseRequestURI(p.Store.URL); err != nil {
		return nil, fmt.Errorf("%w: store url", ErrInvalidJob)
	}
	if p.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrInvalidJob, p.BatchSize)
	}

	job := &Job{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		ProductIDs:     ids,
		BatchSize:      p.BatchSize,
		PromptTemplate: strings.TrimSpace(p.PromptTemplate),
		Model:          p.Model,
		Store:          p.Store,
		Status:         StatusPending,
		TotalProducts:  len(ids),
		CreatedAt:      s.now().UTC(),
	}
	if job.BatchSize == 0 {
		job.BatchSize = s.defaultBatchSize
	}
	if job.Model == "" {
		job.Model = s.defaultModel
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, Persistence("create job", err)
	}
	return job, nil
}

// Start moves a pending job to processing, creates its results and batches and
// hands the first batch to the scheduler. It returns the number of batches.
// A missing job is an invalid state that also matches ErrJobNotFound.
func (s *JobService) Start(ctx context.Context, id string) (int, error) {
	job, err := s.repo.GetJob(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return 0, fmt.Errorf("%w: %w", ErrInvalidJobState, err)
	}
	if err != nil {
		return 0, Persistence("get job", err)
	}
	if job.Status != StatusPending || len(job.ProductIDs) == 0 {
		return 0, fmt.Errorf("%w: job %s is %s", ErrInvalidJobState, id, job.Status)
	}

	now := s.now().UTC()
	batches := PartitionBatches(job.ID, job.ProductIDs, job.BatchSize, now, s.batchDelay)
	if err := s.repo.StartJob(ctx, job.ID, now, batches); err != nil {
		return 0, Persistence("start job", err)
	}
	if s.wake != nil {
		s.wake()
	}
	return len(batches), nil
}

// Get retrieves a job by ID.
func (s *JobService) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

// List returns the most recent jobs.
func (s *JobService) List(ctx context.Context, limit int) ([]Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

// Batches returns a job's batches ordered by number.
func (s *JobService) Batches(ctx context.Context, jobID string) ([]Batch, error) {
	if _, err := s.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.repo.ListBatches(ctx, jobID)
}

// Results returns a job's per-product results in submission order.
func (s *JobService) Results(ctx context.Context, jobID string) ([]Result, error) {
	if _, err := s.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.repo.ListResults(ctx, jobID)
}

// DueBatches returns batches ready to run.
func (s *JobService) DueBatches(ctx context.Context, limit int) ([]Batch, error) {
	return s.repo.FindDueBatches(ctx, s.now().UTC(), limit)
}

// ClaimBatch atomically moves a queued batch to processing.
func (s *JobService) ClaimBatch(ctx context.Context, id int64) error {
	return s.repo.ClaimBatch(ctx, id, s.now().UTC())
}

// CompleteBatch marks a batch completed.
func (s *JobService) CompleteBatch(ctx context.Context, id int64) error {
	return Persistence("complete batch", s.repo.CompleteBatch(ctx, id, s.now().UTC()))
}

// FailBatch marks a batch failed. Later batches of the job will not run.
func (s *JobService) FailBatch(ctx context.Context, id int64, reason string) error {
	return Persistence("fail batch", s.repo.FailBatch(ctx, id, reason, s.now().UTC()))
}

// Result returns the result row for a product of a job.
func (s *JobService) Result(ctx context.Context, jobID string, productID int64) (*Result, error) {
	return s.repo.GetResult(ctx, jobID, productID)
}

// MarkProductProcessing flags a product as in flight.
func (s *JobService) MarkProductProcessing(ctx context.Context, jobID string, productID int64) error {
	return Persistence("mark result processing", s.repo.MarkResultProcessing(ctx, jobID, productID))
}

// CompleteProduct records generated content and bumps the completed counter.
func (s *JobService) CompleteProduct(ctx context.Context, jobID string, productID int64, name string, content *GeneratedContent) error {
	return Persistence("complete result", s.repo.CompleteResult(ctx, jobID, productID, name, content))
}

// FailProduct records a product failure and bumps the failed counter.
func (s *JobService) FailProduct(ctx context.Context, jobID string, productID int64, reason string) error {
	return Persistence("fail result", s.repo.FailResult(ctx, jobID, productID, reason))
}

// CheckCompletion finalizes the job once every product has a terminal result.
// Calling it on a terminal job is a no-op.
func (s *JobService) CheckCompletion(ctx context.Context, jobID string) (*Job, bool, error) {
	changed, err := s.repo.FinalizeJob(ctx, jobID, s.now().UTC())
	if err != nil {
		return nil, false, Persistence("finalize job", err)
	}
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, Persistence("get job", err)
	}
	return job, changed, nil
}

// RecoverStale requeues batches left processing by a previous crash.
func (s *JobService) RecoverStale(ctx context.Context) (int64, error) {
	return s.repo.RecoverStale(ctx)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
