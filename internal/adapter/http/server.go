package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/health"
)

// Server is the HTTP adapter for the job and content health API.
type Server struct {
	svc      *domain.JobService
	analyzer *health.Analyzer
	router   chi.Router
	server   *http.Server
	secret   string
	logger   *zap.Logger
}

// NewServer creates a new HTTP server. An empty secret disables signature checks.
func NewServer(svc *domain.JobService, analyzer *health.Analyzer, addr string, secret string, logger *zap.Logger) *Server {
	s := &Server{
		svc:      svc,
		analyzer: analyzer,
		router:   chi.NewRouter(),
		secret:   secret,
		logger:   logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Route("/jobs", func(r chi.Router) {
		r.With(s.requireSignature).Post("/", s.handleSubmitJob)
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
		r.With(s.requireSignature).Post("/{id}/start", s.handleStartJob)
		r.Get("/{id}/batches", s.handleListBatches)
		r.Get("/{id}/results", s.handleListResults)
	})
	s.router.Post("/content-health", s.handleContentHealth)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

// errorResponse is the JSON error response. JobID is set when a job was
// persisted before the request failed.
type errorResponse struct {
	Error string `json:"error"`
	JobID string `json:"job_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status, body := s.serviceError(op, err)
	s.writeJSON(w, status, body)
}

func (s *Server) serviceError(op string, err error) (int, errorResponse) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, errorResponse{Error: "job not found"}
	case errors.Is(err, domain.ErrInvalidJob):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrInvalidJobState):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
