// Package domaintest provides in-memory implementations of the domain ports for tests.
package domaintest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwygoda/bulkseo/internal/domain"
)

// Repo is an in-memory domain.JobRepository.
type Repo struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	batches   map[int64]*domain.Batch
	results   map[string]map[int64]*domain.Result
	order     []string
	nextBatch int64
	nextRes   int64

	// GetJobErr, when set, is returned from GetJob.
	GetJobErr error
	// StartJobErr, when set, is returned by StartJob.
	StartJobErr error
}

// NewRepo creates an empty repository.
func NewRepo() *Repo {
	return &Repo{
		jobs:    make(map[string]*domain.Job),
		batches: make(map[int64]*domain.Batch),
		results: make(map[string]map[int64]*domain.Result),
	}
}

func (r *Repo) CreateJob(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	cp.ProductIDs = append([]int64(nil), job.ProductIDs...)
	r.jobs[job.ID] = &cp
	r.order = append(r.order, job.ID)
	return nil
}

func (r *Repo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GetJobErr != nil {
		return nil, r.GetJobErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *Repo) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Job
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *r.jobs[r.order[i]])
	}
	return out, nil
}

func (r *Repo) StartJob(ctx context.Context, id string, startedAt time.Time, batches []domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartJobErr != nil {
		return r.StartJobErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status != domain.StatusPending {
		return domain.ErrInvalidJobState
	}
	job.Status = domain.StatusProcessing
	job.StartedAt = &startedAt
	r.results[id] = make(map[int64]*domain.Result)
	for _, pid := range job.ProductIDs {
		r.nextRes++
		r.results[id][pid] = &domain.Result{ID: r.nextRes, JobID: id, ProductID: pid, Status: domain.ResultPending}
	}
	for _, b := range batches {
		r.nextBatch++
		cp := b
		cp.ID = r.nextBatch
		r.batches[cp.ID] = &cp
	}
	return nil
}

func (r *Repo) ListBatches(ctx context.Context, jobID string) ([]domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Batch
	for _, b := range r.batches {
		if b.JobID == jobID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *Repo) FindDueBatches(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Batch
	for _, b := range r.batches {
		if b.Status != domain.BatchQueued || b.ScheduledAt.After(now) {
			continue
		}
		if job := r.jobs[b.JobID]; job == nil || job.Status != domain.StatusProcessing {
			continue
		}
		blocked := false
		for _, p := range r.batches {
			if p.JobID == b.JobID && p.Number < b.Number && p.Status != domain.BatchCompleted {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) ClaimBatch(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status != domain.BatchQueued {
		return domain.ErrBatchNotFound
	}
	b.Status = domain.BatchProcessing
	b.StartedAt = &at
	return nil
}

func (r *Repo) CompleteBatch(ctx context.Context, id int64, at time.Time) error {
	return r.finishBatch(id, domain.BatchCompleted, "", at)
}

func (r *Repo) FailBatch(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.finishBatch(id, domain.BatchFailed, reason, at)
}

func (r *Repo) finishBatch(id int64, status domain.BatchStatus, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status == domain.BatchCompleted || b.Status == domain.BatchFailed {
		return domain.ErrBatchNotFound
	}
	b.Status = status
	b.Error = reason
	b.CompletedAt = &at
	return nil
}

func (r *Repo) ListResults(ctx context.Context, jobID string) ([]domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	var out []domain.Result
	for _, pid := range job.ProductIDs {
		if res, ok := r.results[jobID][pid]; ok {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *Repo) GetResult(ctx context.Context, jobID string, productID int64) (*domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[jobID][productID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *Repo) MarkResultProcessing(ctx context.Context, jobID string, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[jobID][productID]
	if !ok || res.Status.IsTerminal() {
		return domain.ErrResultNotFound
	}
	res.Status = domain.ResultProcessing
	return nil
}

func (r *Repo) CompleteResult(ctx context.Context, jobID string, productID int64, name string, content *domain.GeneratedContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[jobID][productID]
	if !ok || res.Status.IsTerminal() {
		return domain.ErrResultNotFound
	}
	res.Status = domain.ResultCompleted
	res.ProductName = name
	res.Content = content
	if job := r.jobs[jobID]; job != nil {
		job.CompletedProducts++
	}
	return nil
}

func (r *Repo) FailResult(ctx context.Context, jobID string, productID int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[jobID][productID]
	if !ok || res.Status.IsTerminal() {
		return domain.ErrResultNotFound
	}
	res.Status = domain.ResultFailed
	res.Error = reason
	if job := r.jobs[jobID]; job != nil {
		job.FailedProducts++
	}
	return nil
}

func (r *Repo) FinalizeJob(ctx context.Context, jobID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, domain.ErrJobNotFound
	}
	if job.Status != domain.StatusProcessing || !job.Done() {
		return false, nil
	}
	job.Status = job.FinalStatus()
	job.CompletedAt = &at
	return true, nil
}

func (r *Repo) RecoverStale(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.batches {
		if b.Status == domain.BatchProcessing {
			b.Status = domain.BatchQueued
			b.StartedAt = nil
			n++
		}
	}
	return n, nil
}

// Batch returns a copy of the stored batch.
func (r *Repo) Batch(id int64) domain.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.batches[id]
}

// DeleteJob removes a job, simulating an operator wiping it mid-run.
func (r *Repo) DeleteJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}
