package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cwygoda/bulkseo/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// submitRequest is the request body for POST /jobs.
type submitRequest struct {
	UserID         string       `json:"user_id"`
	ProductIDs     []int64      `json:"product_ids"`
	BatchSize      int          `json:"batch_size"`
	PromptTemplate string       `json:"prompt_template"`
	Model          string       `json:"model"`
	Store          storeRequest `json:"store"`
	Start          bool         `json:"start"`
}

type storeRequest struct {
	URL            string `json:"url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

// jobResponse is the JSON response for job endpoints. Store secrets are never echoed.
type jobResponse struct {
	ID                string  `json:"id"`
	UserID            string  `json:"user_id,omitempty"`
	ProductIDs        []int64 `json:"product_ids"`
	BatchSize         int     `json:"batch_size"`
	Model             string  `json:"model"`
	StoreURL          string  `json:"store_url"`
	Status            string  `json:"status"`
	TotalProducts     int     `json:"total_products"`
	CompletedProducts int     `json:"completed_products"`
	FailedProducts    int     `json:"failed_products"`
	CreatedAt         string  `json:"created_at"`
	StartedAt         *string `json:"started_at,omitempty"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	Batches           int     `json:"batches,omitempty"`
}

type startResponse struct {
	JobID   string `json:"job_id"`
	Batches int    `json:"batches"`
}

type batchResponse struct {
	ID          int64   `json:"id"`
	Number      int     `json:"batch_number"`
	ProductIDs  []int64 `json:"product_ids"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
	Error       string  `json:"error,omitempty"`
	ScheduledAt string  `json:"scheduled_at"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type resultResponse struct {
	ProductID   int64                    `json:"product_id"`
	ProductName string                   `json:"product_name,omitempty"`
	Status      string                   `json:"status"`
	Content     *domain.GeneratedContent `json:"generated_content"`
	Error       string                   `json:"error_message,omitempty"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := s.svc.Submit(r.Context(), domain.SubmitParams{
		UserID:         req.UserID,
		ProductIDs:     req.ProductIDs,
		BatchSize:      req.BatchSize,
		PromptTemplate: req.PromptTemplate,
		Model:          req.Model,
		Store: domain.StoreCredentials{
			URL:            req.Store.URL,
			ConsumerKey:    req.Store.ConsumerKey,
			ConsumerSecret: req.Store.ConsumerSecret,
		},
	})
	if err != nil {
		s.writeServiceError(w, "submit", err)
		return
	}
	s.logger.Info("job submitted", zap.String("job_id", job.ID), zap.Int("products", job.TotalProducts))

	if !req.Start {
		s.writeJSON(w, http.StatusCreated, jobToResponse(job))
		return
	}

	// The job is already stored as pending; hand its id back so it can be started later.
	batches, err := s.svc.Start(r.Context(), job.ID)
	if err != nil {
		status, body := s.serviceError("start", err)
		body.JobID = job.ID
		s.writeJSON(w, status, body)
		return
	}
	started, err := s.svc.Get(r.Context(), job.ID)
	if err != nil {
		s.writeServiceError(w, "get job", err)
		return
	}
	resp := jobToResponse(started)
	resp.Batches = batches
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	batches, err := s.svc.Start(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "start", err)
		return
	}
	s.logger.Info("job started", zap.String("job_id", id), zap.Int("batches", batches))
	s.writeJSON(w, http.StatusAccepted, startResponse{JobID: id, Batches: batches})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get job", err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	jobs, err := s.svc.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, "list jobs", err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobToResponse(&jobs[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.svc.Batches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "list batches", err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchResponse{
			ID:          b.ID,
			Number:      b.Number,
			ProductIDs:  b.ProductIDs,
			Status:      string(b.Status),
			Priority:    b.Priority,
			Error:       b.Error,
			ScheduledAt: formatTime(b.ScheduledAt),
			StartedAt:   formatTimePtr(b.StartedAt),
			CompletedAt: formatTimePtr(b.CompletedAt),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "list results", err)
		return
	}
	out := make([]resultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, resultResponse{
			ProductID:   res.ProductID,
			ProductName: res.ProductName,
			Status:      string(res.Status),
			Content:     res.Content,
			Error:       res.Error,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func jobToResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:                job.ID,
		UserID:            job.UserID,
		ProductIDs:        job.ProductIDs,
		BatchSize:         job.BatchSize,
		Model:             job.Model,
		StoreURL:          job.Store.URL,
		Status:            string(job.Status),
		TotalProducts:     job.TotalProducts,
		CompletedProducts: job.CompletedProducts,
		FailedProducts:    job.FailedProducts,
		CreatedAt:         formatTime(job.CreatedAt),
		StartedAt:         formatTimePtr(job.StartedAt),
		CompletedAt:       formatTimePtr(job.CompletedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
