package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/bulkseo/internal/domain"
	_ "modernc.org/sqlite"
)

// scheduled_at is unix milliseconds so due-batch comparisons are numeric.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL DEFAULT '',
    product_ids        TEXT NOT NULL,
    batch_size         INTEGER NOT NULL,
    prompt_template    TEXT NOT NULL DEFAULT '',
    model              TEXT NOT NULL DEFAULT '',
    store_url          TEXT NOT NULL,
    store_key          TEXT NOT NULL DEFAULT '',
    store_secret       TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'pending',
    total_products     INTEGER NOT NULL,
    completed_products INTEGER NOT NULL DEFAULT 0,
    failed_products    INTEGER NOT NULL DEFAULT 0,
    created_at         DATETIME NOT NULL,
    started_at         DATETIME,
    completed_at       DATETIME
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS batches (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id       TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
    batch_number INTEGER NOT NULL,
    product_ids  TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'queued',
    priority     INTEGER NOT NULL DEFAULT 0,
    error        TEXT,
    scheduled_at INTEGER NOT NULL,
    started_at   DATETIME,
    completed_at DATETIME,
    UNIQUE (job_id, batch_number)
);
CREATE INDEX IF NOT EXISTS idx_batches_due ON batches(status, scheduled_at);

CREATE TABLE IF NOT EXISTS results (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id       TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
    product_id   INTEGER NOT NULL,
    position     INTEGER NOT NULL,
    product_name TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'pending',
    content      TEXT,
    error        TEXT,
    updated_at   DATETIME NOT NULL,
    UNIQUE (job_id, product_id)
);
`

// Repository implements domain.JobRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// One writer at a time; jobs running in parallel queue on the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateJob inserts a new pending job.
func (r *Repository) CreateJob(ctx context.Context, job *domain.Job) error {
	ids, err := json.Marshal(job.ProductIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, product_ids, batch_size, prompt_template, model,
		 store_url, store_key, store_secret, status, total_products, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(ids), job.BatchSize, job.PromptTemplate, job.Model,
		job.Store.URL, job.Store.ConsumerKey, job.Store.ConsumerSecret,
		job.Status, job.TotalProducts, job.CreatedAt,
	)
	return err
}

const jobColumns = `id, user_id, product_ids, batch_size, prompt_template, model,
	store_url, store_key, store_secret, status, total_products, completed_products,
	failed_products, created_at, started_at, completed_at`

// GetJob retrieves a job by ID.
func (r *Repository) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns the most recently created jobs.
func (r *Repository) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// StartJob moves a pending job to processing and creates its results and batches.
func (r *Repository) StartJob(ctx context.Context, id string, startedAt time.Time, batches []domain.Batch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rawIDs string
	var status string
	err = tx.QueryRowContext(ctx, `SELECT product_ids, status FROM jobs WHERE id = ?`, id).Scan(&rawIDs, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return err
	}
	if domain.JobStatus(status) != domain.StatusPending {
		return domain.ErrInvalidJobState
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		domain.StatusProcessing, startedAt, id, domain.StatusPending,
	)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return domain.ErrInvalidJobState
	}

	var productIDs []int64
	if err := json.Unmarshal([]byte(rawIDs), &productIDs); err != nil {
		return fmt.Errorf("decode product ids: %w", err)
	}
	for i, pid := range productIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (job_id, product_id, position, status, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, pid, i, domain.ResultPending, startedAt,
		); err != nil {
			return err
		}
	}

	for _, b := range batches {
		ids, err := json.Marshal(b.ProductIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batches (job_id, batch_number, product_ids, status, priority, scheduled_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, b.Number, string(ids), domain.BatchQueued, b.Priority, b.ScheduledAt.UnixMilli(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const batchColumns = `b.id, b.job_id, b.batch_number, b.product_ids, b.status, b.priority,
	COALESCE(b.error, ''), b.scheduled_at, b.started_at, b.completed_at`

// ListBatches returns a job's batches ordered by number.
func (r *Repository) ListBatches(ctx context.Context, jobID string) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches b WHERE b.job_id = ? ORDER BY b.batch_number ASC`, jobID)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

// FindDueBatches returns runnable batches: queued, due, of a processing job, with
// every lower-numbered batch of that job completed.
func (r *Repository) FindDueBatches(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+batchColumns+`
		 FROM batches b JOIN jobs j ON j.id = b.job_id
		 WHERE b.status = ? AND b.scheduled_at <= ? AND j.status = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM batches p
		     WHERE p.job_id = b.job_id AND p.batch_number < b.batch_number AND p.status != ?
		   )
		 ORDER BY b.scheduled_at ASC, b.priority DESC
		 LIMIT ?`,
		domain.BatchQueued, now.UnixMilli(), domain.StatusProcessing, domain.BatchCompleted, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanBatches(rows)
}

// ClaimBatch atomically claims a queued batch for processing.
func (r *Repository) ClaimBatch(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		domain.BatchProcessing, at, id, domain.BatchQueued,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

// CompleteBatch marks a batch as completed.
func (r *Repository) CompleteBatch(ctx context.Context, id int64, at time.Time) error {
	return r.finishBatch(ctx, id, domain.BatchCompleted, nil, at)
}

// FailBatch marks a batch as failed.
func (r *Repository) FailBatch(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.finishBatch(ctx, id, domain.BatchFailed, &reason, at)
}

func (r *Repository) finishBatch(ctx context.Context, id int64, status domain.BatchStatus, reason *string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)`,
		status, reason, at, id, domain.BatchQueued, domain.BatchProcessing,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

const resultColumns = `id, job_id, product_id, product_name, status, content, COALESCE(error, ''), updated_at`

// ListResults returns a job's results in submission order.
func (r *Repository) ListResults(ctx context.Context, jobID string) ([]domain.Result, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE job_id = ? ORDER BY position ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// GetResult returns the result of one product.
func (r *Repository) GetResult(ctx context.Context, jobID string, productID int64) (*domain.Result, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE job_id = ? AND product_id = ?`, jobID, productID)
	return scanResult(row)
}

// MarkResultProcessing flags a non-terminal result as in flight.
func (r *Repository) MarkResultProcessing(ctx context.Context, jobID string, productID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE results SET status = ?, updated_at = ?
		 WHERE job_id = ? AND product_id = ? AND status IN (?, ?)`,
		domain.ResultProcessing, time.Now().UTC(), jobID, productID, domain.ResultPending, domain.ResultProcessing,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

// CompleteResult stores generated content and increments the completed counter.
func (r *Repository) CompleteResult(ctx context.Context, jobID string, productID int64, productName string, content *domain.GeneratedContent) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return r.finishResult(ctx, jobID, productID,
		`UPDATE results SET status = ?, product_name = ?, content = ?, error = NULL, updated_at = ?
		 WHERE job_id = ? AND product_id = ? AND status IN (?, ?)`,
		[]any{domain.ResultCompleted, productName, string(payload), time.Now().UTC(), jobID, productID, domain.ResultPending, domain.ResultProcessing},
		"completed_products",
	)
}

// FailResult records the failure reason and increments the failed counter.
func (r *Repository) FailResult(ctx context.Context, jobID string, productID int64, reason string) error {
	return r.finishResult(ctx, jobID, productID,
		`UPDATE results SET status = ?, error = ?, updated_at = ?
		 WHERE job_id = ? AND product_id = ? AND status IN (?, ?)`,
		[]any{domain.ResultFailed, reason, time.Now().UTC(), jobID, productID, domain.ResultPending, domain.ResultProcessing},
		"failed_products",
	)
}

// finishResult applies a terminal result transition and the counter bump in one transaction.
func (r *Repository) finishResult(ctx context.Context, jobID string, productID int64, update string, args []any, counter string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrResultNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET `+counter+` = `+counter+` + 1
		 WHERE id = ? AND completed_products + failed_products < total_products`, jobID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// FinalizeJob moves a processing job whose products are all terminal to its final state.
func (r *Repository) FinalizeJob(ctx context.Context, jobID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = CASE WHEN failed_products >= total_products THEN ? ELSE ? END, completed_at = ?
		 WHERE id = ? AND status = ? AND completed_products + failed_products >= total_products`,
		domain.StatusFailed, domain.StatusCompleted, at, jobID, domain.StatusProcessing,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?`, jobID).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, domain.ErrJobNotFound
	}
	return false, nil
}

// RecoverStale requeues batches left processing by a crash. Results keep their
// status; terminal ones are skipped when the batch runs again.
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, started_at = NULL WHERE status = ?`,
		domain.BatchQueued, domain.BatchProcessing,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var status, rawIDs string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.UserID, &rawIDs, &job.BatchSize, &job.PromptTemplate, &job.Model,
		&job.Store.URL, &job.Store.ConsumerKey, &job.Store.ConsumerSecret, &status,
		&job.TotalProducts, &job.CompletedProducts, &job.FailedProducts,
		&job.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rawIDs), &job.ProductIDs); err != nil {
		return nil, fmt.Errorf("decode product ids: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.StartedAt = nullTime(startedAt)
	job.CompletedAt = nullTime(completedAt)
	return &job, nil
}

func scanBatches(rows *sql.Rows) ([]domain.Batch, error) {
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		var b domain.Batch
		var status, rawIDs string
		var scheduled int64
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.JobID, &b.Number, &rawIDs, &status, &b.Priority, &b.Error,
			&scheduled, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rawIDs), &b.ProductIDs); err != nil {
			return nil, fmt.Errorf("decode batch product ids: %w", err)
		}
		b.Status = domain.BatchStatus(status)
		b.ScheduledAt = time.UnixMilli(scheduled).UTC()
		b.StartedAt = nullTime(startedAt)
		b.CompletedAt = nullTime(completedAt)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanResult(row scanner) (*domain.Result, error) {
	var res domain.Result
	var status string
	var content sql.NullString
	err := row.Scan(&res.ID, &res.JobID, &res.ProductID, &res.ProductName, &status, &content, &res.Error, &res.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Status = domain.ResultStatus(status)
	if content.Valid && content.String != "" {
		var c domain.GeneratedContent
		if err := json.Unmarshal([]byte(content.String), &c); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		res.Content = &c
	}
	return &res, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
