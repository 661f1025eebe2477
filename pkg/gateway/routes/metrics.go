package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
)

type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (h *MetricsHandler) Register(r *mux.Router) {
	r.HandleFunc("/metrics", h.handleMetrics).Methods(http.MethodGet)
}

func (h *MetricsHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}
