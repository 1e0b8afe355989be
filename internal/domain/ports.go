package domain

import (
	"context"
	"time"
)

// JobRepository is the driven port for job, batch and result persistence.
// Counter updates happen inside the store, never as client-side read-modify-write.
type JobRepository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)

	// StartJob moves a pending job to processing and creates its results and batches
	// in one transaction. Returns ErrInvalidJobState if the job is not pending.
	StartJob(ctx context.Context, id string, startedAt time.Time, batches []Batch) error

	ListBatches(ctx context.Context, jobID string) ([]Batch, error)
	// FindDueBatches returns queued batches whose scheduled time has passed, whose job
	// is processing and whose predecessors have all completed.
	FindDueBatches(ctx context.Context, now time.Time, limit int) ([]Batch, error)
	ClaimBatch(ctx context.Context, id int64, at time.Time) error
	CompleteBatch(ctx context.Context, id int64, at time.Time) error
	FailBatch(ctx context.Context, id int64, reason string, at time.Time) error

	ListResults(ctx context.Context, jobID string) ([]Result, error)
	GetResult(ctx context.Context, jobID string, productID int64) (*Result, error)
	MarkResultProcessing(ctx context.Context, jobID string, productID int64) error
	// CompleteResult and FailResult move a non-terminal result to its final state and
	// bump the matching job counter atomically.
	CompleteResult(ctx context.Context, jobID string, productID int64, productName string, content *GeneratedContent) error
	FailResult(ctx context.Context, jobID string, productID int64, reason string) error

	// FinalizeJob applies the completion rule. It reports whether the job changed.
	FinalizeJob(ctx context.Context, jobID string, at time.Time) (bool, error)

	RecoverStale(ctx context.Context) (int64, error)
}

// Catalog is the driven port for the external product store.
type Catalog interface {
	FetchProduct(ctx context.Context, store StoreCredentials, productID int64) (*Product, error)
}

// GenerationRequest is the input of a content generation call.
type GenerationRequest struct {
	ProductID        int64
	Name             string
	Description      string
	ShortDescription string
	Categories       []string
	PromptTemplate   string
	Model            string
	UserID           string
}

// ContentGenerator is the driven port for the AI content generation call.
type ContentGenerator interface {
	Name() string
	Match(model string) bool
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedContent, error)
}
