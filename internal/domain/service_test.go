package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/domain/domaintest"
)

var store = domain.StoreCredentials{URL: "https://shop.example.com", ConsumerKey: "ck", ConsumerSecret: "cs"}

func fixedClock() func() time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestJobService_Submit(t *testing.T) {
	tests := []struct {
		name    string
		params  domain.SubmitParams
		wantErr error
	}{
		{
			name:   "valid job",
			params: domain.SubmitParams{ProductIDs: []int64{1, 2, 3}, Store: store},
		},
		{
			name:    "no products",
			params:  domain.SubmitParams{Store: store},
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "non-positive product id",
			params:  domain.SubmitParams{ProductIDs: []int64{1, 0}, Store: store},
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "invalid store url",
			params:  domain.SubmitParams{ProductIDs: []int64{1}, Store: domain.StoreCredentials{URL: "not a url"}},
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "negative batch size",
			params:  domain.SubmitParams{ProductIDs: []int64{1}, BatchSize: -1, Store: store},
			wantErr: domain.ErrInvalidJob,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := domain.NewJobService(domaintest.NewRepo())
			job, err := svc.Submit(context.Background(), tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, job.ID)
			assert.Equal(t, domain.StatusPending, job.Status)
		})
	}
}

func TestJobService_Submit_Defaults(t *testing.T) {
	svc := domain.NewJobService(domaintest.NewRepo(), domain.WithDefaultModel("gpt-4o-mini"), domain.WithDefaultBatchSize(7))

	job, err := svc.Submit(context.Background(), domain.SubmitParams{
		ProductIDs: []int64{4, 2, 4, 9, 2},
		Store:      store,
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{4, 2, 9}, job.ProductIDs)
	assert.Equal(t, 3, job.TotalProducts)
	assert.Equal(t, 7, job.BatchSize)
	assert.Equal(t, "gpt-4o-mini", job.Model)
}

func TestJobService_Start(t *testing.T) {
	repo := domaintest.NewRepo()
	woken := 0
	svc := domain.NewJobService(repo, domain.WithClock(fixedClock()), domain.WithWakeup(func() { woken++ }))
	ctx := context.Background()

	job, err := svc.Submit(ctx, domain.SubmitParams{ProductIDs: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, Store: store})
	require.NoError(t, err)

	n, err := svc.Start(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, woken)

	started, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, started.Status)
	require.NotNil(t, started.StartedAt)

	results, err := svc.Results(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, results, 12)
	for _, r := range results {
		assert.Equal(t, domain.ResultPending, r.Status)
	}

	batches, err := svc.Batches(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []int64{11, 12}, batches[2].ProductIDs)
	assert.Equal(t, batches[0].ScheduledAt.Add(10*time.Second), batches[2].ScheduledAt)

	// Only the first batch is due right away
	due, err := svc.DueBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Number)
}

func TestJobService_Start_InvalidState(t *testing.T) {
	svc := domain.NewJobService(domaintest.NewRepo())
	ctx := context.Background()

	job, _ := svc.Submit(ctx, domain.SubmitParams{ProductIDs: []int64{1}, Store: store})
	_, err := svc.Start(ctx, job.ID)
	require.NoError(t, err)

	_, err = svc.Start(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidJobState)
}

func TestJobService_Start_NotFound(t *testing.T) {
	svc := domain.NewJobService(domaintest.NewRepo())

	_, err := svc.Start(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrInvalidJobState)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobService_Start_PersistenceError(t *testing.T) {
	repo := domaintest.NewRepo()
	repo.GetJobErr = errors.New("disk I/O error")
	svc := domain.NewJobService(repo)

	_, err := svc.Start(context.Background(), "any")
	var pe *domain.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestJobService_CheckCompletion(t *testing.T) {
	tests := []struct {
		name       string
		fail       []int64
		wantStatus domain.JobStatus
	}{
		{"all completed", nil, domain.StatusCompleted},
		{"partial failure", []int64{2}, domain.StatusCompleted},
		{"all failed", []int64{1, 2}, domain.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := domain.NewJobService(domaintest.NewRepo())
			ctx := context.Background()

			job, _ := svc.Submit(ctx, domain.SubmitParams{ProductIDs: []int64{1, 2}, Store: store})
			_, err := svc.Start(ctx, job.ID)
			require.NoError(t, err)

			failing := map[int64]bool{}
			for _, id := range tt.fail {
				failing[id] = true
			}

			// First product only: not done yet
			if failing[1] {
				require.NoError(t, svc.FailProduct(ctx, job.ID, 1, "boom"))
			} else {
				require.NoError(t, svc.CompleteProduct(ctx, job.ID, 1, "One", &domain.GeneratedContent{}))
			}
			got, changed, err := svc.CheckCompletion(ctx, job.ID)
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Equal(t, domain.StatusProcessing, got.Status)

			if failing[2] {
				require.NoError(t, svc.FailProduct(ctx, job.ID, 2, "boom"))
			} else {
				require.NoError(t, svc.CompleteProduct(ctx, job.ID, 2, "Two", &domain.GeneratedContent{}))
			}
			got, changed, err = svc.CheckCompletion(ctx, job.ID)
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, got.TotalProducts, got.CompletedProducts+got.FailedProducts)
			require.NotNil(t, got.CompletedAt)

			// Idempotent once terminal
			again, changed, err := svc.CheckCompletion(ctx, job.ID)
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Equal(t, got.Status, again.Status)
			assert.Equal(t, *got.CompletedAt, *again.CompletedAt)
			assert.Equal(t, got.CompletedProducts, again.CompletedProducts)
			assert.Equal(t, got.FailedProducts, again.FailedProducts)
		})
	}
}

func TestJobService_ResultIsMonotonic(t *testing.T) {
	svc := domain.NewJobService(domaintest.NewRepo())
	ctx := context.Background()

	job, _ := svc.Submit(ctx, domain.SubmitParams{ProductIDs: []int64{1}, Store: store})
	_, _ = svc.Start(ctx, job.ID)

	require.NoError(t, svc.MarkProductProcessing(ctx, job.ID, 1))
	require.NoError(t, svc.CompleteProduct(ctx, job.ID, 1, "One", &domain.GeneratedContent{}))

	assert.ErrorIs(t, svc.MarkProductProcessing(ctx, job.ID, 1), domain.ErrResultNotFound)
	assert.ErrorIs(t, svc.FailProduct(ctx, job.ID, 1, "late"), domain.ErrResultNotFound)

	got, _ := svc.Get(ctx, job.ID)
	assert.Equal(t, 1, got.CompletedProducts)
	assert.Equal(t, 0, got.FailedProducts)
}

func TestJobService_Results_UnknownJob(t *testing.T) {
	svc := domain.NewJobService(domaintest.NewRepo())

	_, err := svc.Results(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
