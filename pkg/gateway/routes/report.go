package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
	"github.com/synaptica-ai/risk-gateway/pkg/report"
)

type ReportRenderer interface {
	Render(ctx context.Context, payload interface{}) ([]byte, bool)
}

// ReportHandler always answers with a PDF and status 200.
type ReportHandler struct {
	renderer        ReportRenderer
	featureDefaults map[string]float64
}

func NewReportHandler(renderer ReportRenderer, featureDefaults map[string]float64) *ReportHandler {
	return &ReportHandler{renderer: renderer, featureDefaults: featureDefaults}
}

func (h *ReportHandler) Register(r *mux.Router) {
	r.HandleFunc("/report.pdf", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/report.pdf", h.handlePost).Methods(http.MethodPost)
}

func (h *ReportHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, nil)
}

func (h *ReportHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	h.serve(w, r, h.reportPayload(r))
}

// reportPayload prefers validated features, then whatever object the client
// sent, then an empty object, so the upstream still receives a POST.
func (h *ReportHandler) reportPayload(r *http.Request) interface{} {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		return map[string]interface{}{}
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return map[string]interface{}{}
	}
	if features, err := models.DecodeFeatures(raw, h.featureDefaults); err == nil {
		return features
	}
	return raw
}

func (h *ReportHandler) serve(w http.ResponseWriter, r *http.Request, payload interface{}) {
	pdf, fallback := h.renderer.Render(r.Context(), payload)
	if fallback {
		metrics.IncReportFallbacks()
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="report.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		logger.Log.WithError(err).Warn("failed to write report")
	}
}
