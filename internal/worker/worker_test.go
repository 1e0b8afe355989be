package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwygoda/bulkseo/internal/adapter/generator"
	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/domain/domaintest"
)

// clock is a settable time source shared with worker goroutines.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo    *domaintest.Repo
	svc     *domain.JobService
	catalog *domaintest.Catalog
	gen     *domaintest.Generator
	clock   *clock
	worker  *Worker
}

func newFixture(t *testing.T, products []int64, failing ...int64) *fixture {
	t.Helper()
	f := &fixture{
		repo:    domaintest.NewRepo(),
		catalog: domaintest.NewCatalog(products...),
		gen:     domaintest.NewGenerator(failing...),
		clock:   newClock(),
	}
	f.svc = domain.NewJobService(f.repo, domain.WithClock(f.clock.Now))

	registry := generator.NewRegistry()
	registry.Register(f.gen)
	f.worker = New(f.svc, f.catalog, registry, Config{PollInterval: time.Hour, MaxConcurrent: 2}, zap.NewNop())
	return f
}

func (f *fixture) startJob(t *testing.T, batchSize int, products ...int64) *domain.Job {
	t.Helper()
	ctx := context.Background()
	job, err := f.svc.Submit(ctx, domain.SubmitParams{
		UserID:     "user-1",
		ProductIDs: products,
		BatchSize:  batchSize,
		Model:      "gpt-4o-mini",
		Store:      domain.StoreCredentials{URL: "https://shop.example.com"},
	})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, job.ID)
	require.NoError(t, err)
	return job
}

func (f *fixture) claimFirst(t *testing.T, jobID string) domain.Batch {
	t.Helper()
	batches, err := f.svc.Batches(context.Background(), jobID)
	require.NoError(t, err)
	require.NoError(t, f.svc.ClaimBatch(context.Background(), batches[0].ID))
	return batches[0]
}

func (f *fixture) pollOnce(t *testing.T) {
	t.Helper()
	g := new(errgroup.Group)
	g.SetLimit(2)
	f.worker.poll(context.Background(), g)
	require.NoError(t, g.Wait())
}

func TestWorker_ProcessBatch_PartialFailure(t *testing.T) {
	products := []int64{1, 2, 3, 4, 5}
	f := newFixture(t, products, 3)
	job := f.startJob(t, 5, products...)
	batch := f.claimFirst(t, job.ID)

	f.worker.processBatch(context.Background(), batch)

	results, err := f.svc.Results(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, res := range results {
		if res.ProductID == 3 {
			assert.Equal(t, domain.ResultFailed, res.Status)
			assert.Contains(t, res.Error, "model overloaded")
			assert.Nil(t, res.Content)
			continue
		}
		assert.Equal(t, domain.ResultCompleted, res.Status, "product %d", res.ProductID)
		assert.Equal(t, fmt.Sprintf("Product %d", res.ProductID), res.ProductName)
		require.NotNil(t, res.Content)
	}

	assert.Equal(t, domain.BatchCompleted, f.repo.Batch(batch.ID).Status)

	finished, err := f.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, finished.Status)
	assert.Equal(t, 4, finished.CompletedProducts)
	assert.Equal(t, 1, finished.FailedProducts)
	assert.Equal(t, finished.TotalProducts, finished.CompletedProducts+finished.FailedProducts)
	assert.NotNil(t, finished.CompletedAt)
}

func TestWorker_ProcessBatch_AllFailed(t *testing.T) {
	products := []int64{1, 2}
	f := newFixture(t, products, 1, 2)
	job := f.startJob(t, 5, products...)

	f.worker.processBatch(context.Background(), f.claimFirst(t, job.ID))

	finished, _ := f.svc.Get(context.Background(), job.ID)
	assert.Equal(t, domain.StatusFailed, finished.Status)
	assert.Equal(t, 2, finished.FailedProducts)
}

func TestWorker_ProcessBatch_FetchError(t *testing.T) {
	f := newFixture(t, []int64{1})
	job := f.startJob(t, 5, 1, 404)

	f.worker.processBatch(context.Background(), f.claimFirst(t, job.ID))

	res, err := f.svc.Result(context.Background(), job.ID, 404)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, res.Status)
	assert.Contains(t, res.Error, "404")

	// Generation is never attempted for a product that could not be fetched
	for _, req := range f.gen.Requests {
		assert.NotEqual(t, int64(404), req.ProductID)
	}
}

func TestWorker_ProcessBatch_NoGenerator(t *testing.T) {
	f := newFixture(t, []int64{1, 2})
	f.worker.registry = generator.NewRegistry()
	job := f.startJob(t, 5, 1, 2)

	f.worker.processBatch(context.Background(), f.claimFirst(t, job.ID))

	res, _ := f.svc.Result(context.Background(), job.ID, 1)
	assert.Equal(t, domain.ResultFailed, res.Status)
	assert.Contains(t, res.Error, `no generator for model "gpt-4o-mini"`)

	finished, _ := f.svc.Get(context.Background(), job.ID)
	assert.Equal(t, domain.StatusFailed, finished.Status)
}

func TestWorker_ProcessBatch_JobNotFound(t *testing.T) {
	f := newFixture(t, []int64{1})
	job := f.startJob(t, 5, 1)
	batch := f.claimFirst(t, job.ID)
	f.repo.DeleteJob(job.ID)

	f.worker.processBatch(context.Background(), batch)

	stored := f.repo.Batch(batch.ID)
	assert.Equal(t, domain.BatchFailed, stored.Status)
	assert.Equal(t, domain.ErrJobNotFound.Error(), stored.Error)
	assert.Empty(t, f.catalog.Fetched)
}

func TestWorker_ProcessBatch_SkipsTerminalResults(t *testing.T) {
	products := []int64{1, 2, 3}
	f := newFixture(t, products)
	job := f.startJob(t, 5, products...)
	ctx := context.Background()

	// Simulate a crash after the first product finished
	require.NoError(t, f.svc.CompleteProduct(ctx, job.ID, 1, "Product 1", &domain.GeneratedContent{MetaTitle: "kept"}))
	f.claimFirst(t, job.ID)
	n, err := f.svc.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f.pollOnce(t)

	assert.Equal(t, []int64{2, 3}, f.catalog.Fetched)
	res, _ := f.svc.Result(ctx, job.ID, 1)
	assert.Equal(t, "kept", res.Content.MetaTitle)

	finished, _ := f.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.StatusCompleted, finished.Status)
	assert.Equal(t, 3, finished.CompletedProducts)
}

func TestWorker_ProcessBatch_Cancelled(t *testing.T) {
	f := newFixture(t, []int64{1, 2})
	job := f.startJob(t, 5, 1, 2)
	batch := f.claimFirst(t, job.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.worker.processBatch(ctx, batch)

	assert.Empty(t, f.catalog.Fetched)
	assert.Equal(t, domain.BatchProcessing, f.repo.Batch(batch.ID).Status)
}

func TestWorker_Poll_RunsBatchesInOrder(t *testing.T) {
	products := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	f := newFixture(t, products)
	job := f.startJob(t, 5, products...)
	ctx := context.Background()

	f.pollOnce(t)
	assert.Len(t, f.catalog.Fetched, 5)

	// Batch 2 is not due yet
	f.pollOnce(t)
	assert.Len(t, f.catalog.Fetched, 5)

	// Both remaining batches are due, but only batch 2 may run
	f.clock.Advance(time.Minute)
	f.pollOnce(t)
	assert.Len(t, f.catalog.Fetched, 10)

	f.pollOnce(t)
	assert.Equal(t, products, f.catalog.Fetched)

	batches, _ := f.svc.Batches(ctx, job.ID)
	for _, b := range batches {
		assert.Equal(t, domain.BatchCompleted, b.Status)
	}
	finished, _ := f.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.StatusCompleted, finished.Status)
	assert.Equal(t, 12, finished.CompletedProducts)
}

func TestWorker_Poll_FailedBatchHaltsJob(t *testing.T) {
	products := []int64{1, 2, 3, 4}
	f := newFixture(t, products)
	job := f.startJob(t, 2, products...)
	ctx := context.Background()

	batches, _ := f.svc.Batches(ctx, job.ID)
	require.NoError(t, f.svc.ClaimBatch(ctx, batches[0].ID))
	require.NoError(t, f.svc.FailBatch(ctx, batches[0].ID, "boom"))

	f.clock.Advance(time.Minute)
	f.pollOnce(t)

	assert.Empty(t, f.catalog.Fetched)
	assert.Equal(t, domain.BatchQueued, f.repo.Batch(batches[1].ID).Status)
	got, _ := f.svc.Get(ctx, job.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestWorker_Wake(t *testing.T) {
	f := newFixture(t, []int64{1, 2})
	f.svc.SetWakeup(f.worker.Wake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	job := f.startJob(t, 5, 1, 2)

	assert.Eventually(t, func() bool {
		got, err := f.svc.Get(context.Background(), job.ID)
		return err == nil && got.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_Wake_NeverBlocks(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		f.worker.Wake()
	}
}

func TestWorker_Run_Cancellation(t *testing.T) {
	f := newFixture(t, nil)
	f.worker.pollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	// Let it run briefly
	time.Sleep(100 * time.Millisecond)

	// Cancel and verify it stops
	cancel()

	select {
	case <-done:
		// Good, worker stopped
	case <-time.After(time.Second):
		t.Error("worker did not stop after context cancellation")
	}
}
