package http

import (
	"encoding/json"
	"net/http"

	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/health"
)

// maxHealthBody bounds content health requests, which carry full product records.
const maxHealthBody = 10 << 20

// contentHealthRequest is the request body for POST /content-health.
type contentHealthRequest struct {
	Plugin   string           `json:"seo_plugin"`
	Products []domain.Product `json:"products"`
}

type contentHealthResponse struct {
	Results []health.ProductHealth `json:"results"`
	Summary health.Summary         `json:"summary"`
}

func (s *Server) handleContentHealth(w http.ResponseWriter, r *http.Request) {
	var req contentHealthRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHealthBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !health.ValidPlugin(req.Plugin) {
		s.writeError(w, http.StatusBadRequest, "unknown seo_plugin "+req.Plugin)
		return
	}

	results := s.analyzer.AnalyzeBatch(req.Products, req.Plugin)
	s.writeJSON(w, http.StatusOK, contentHealthResponse{
		Results: results,
		Summary: health.GenerateSummary(results),
	})
}
