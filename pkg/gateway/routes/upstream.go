package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/normalizer"
)

// Upstream is the JSON surface of the scoring service.
type Upstream interface {
	GetJSON(ctx context.Context, path string) (interface{}, error)
	PostJSON(ctx context.Context, path string, body interface{}) (interface{}, error)
	Paths() config.UpstreamPaths
}

// ProxyHandler serves the read-only analytics endpoints whose payloads the
// gateway passes through untouched.
type ProxyHandler struct {
	upstream Upstream
}

func NewProxyHandler(upstream Upstream) *ProxyHandler {
	return &ProxyHandler{upstream: upstream}
}

func (h *ProxyHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics/fairness", h.passthroughGet(func(p config.UpstreamPaths) string { return p.Fairness })).Methods(http.MethodGet)
	r.HandleFunc("/shap/global", h.passthroughGet(func(p config.UpstreamPaths) string { return p.Shap })).Methods(http.MethodGet)
	r.HandleFunc("/cohorts/explore", h.handleCohorts).Methods(http.MethodPost)
}

func (h *ProxyHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upstream.GetJSON(r.Context(), h.upstream.Paths().Health)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":   "ok",
		"upstream": raw,
	})
}

func (h *ProxyHandler) passthroughGet(path func(config.UpstreamPaths) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := h.upstream.GetJSON(r.Context(), path(h.upstream.Paths()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, normalizer.Passthrough(raw))
	}
}

func (h *ProxyHandler) handleCohorts(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var query models.CohortQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		respondError(w, r, models.NewValidationError("invalid cohort query: %v", err))
		return
	}
	if err := query.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	raw, err := h.upstream.PostJSON(r.Context(), h.upstream.Paths().Cohorts, query.UpstreamPayload())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, normalizer.Passthrough(raw))
}
