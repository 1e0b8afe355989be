package domain

import "time"

// JobStatus represents the processing state of a job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// BatchStatus represents the scheduling state of a batch.
type BatchStatus string

const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// ResultStatus represents the state of a single product within a job.
type ResultStatus string

const (
	ResultPending    ResultStatus = "pending"
	ResultProcessing ResultStatus = "processing"
	ResultCompleted  ResultStatus = "completed"
	ResultFailed     ResultStatus = "failed"
)

// IsTerminal reports whether the result can no longer change.
func (s ResultStatus) IsTerminal() bool {
	return s == ResultCompleted || s == ResultFailed
}

// StoreCredentials locate and authenticate against the product catalog.
type StoreCredentials struct {
	URL            string
	ConsumerKey    string
	ConsumerSecret string
}

// Job represents a bulk content generation request for a list of products.
type Job struct {
	ID                string
	UserID            string
	ProductIDs        []int64
	BatchSize         int
	PromptTemplate    string
	Model             string
	Store             StoreCredentials
	Status            JobStatus
	TotalProducts     int
	CompletedProducts int
	FailedProducts    int
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Done reports whether every product has reached a terminal result.
func (j *Job) Done() bool {
	return j.CompletedProducts+j.FailedProducts >= j.TotalProducts
}

// FinalStatus returns the terminal status implied by the counters.
func (j *Job) FinalStatus() JobStatus {
	if j.FailedProducts >= j.TotalProducts {
		return StatusFailed
	}
	return StatusCompleted
}

// Batch is a contiguous slice of a job's products, the unit of scheduling.
type Batch struct {
	ID          int64
	JobID       string
	Number      int
	ProductIDs  []int64
	Status      BatchStatus
	Priority    int
	Error       string
	ScheduledAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Result is the per-product outcome of a job.
type Result struct {
	ID          int64
	JobID       string
	ProductID   int64
	ProductName string
	Status      ResultStatus
	Content     *GeneratedContent
	Error       string
	UpdatedAt   time.Time
}

// GeneratedContent is the structured output of a generation call.
type GeneratedContent struct {
	ShortDescription string `json:"short_description"`
	LongDescription  string `json:"long_description"`
	MetaTitle        string `json:"meta_title"`
	MetaDescription  string `json:"meta_description"`
	AltText          string `json:"alt_text"`
	FocusKeywords    string `json:"focus_keywords"`
	Permalink        string `json:"permalink"`
}
