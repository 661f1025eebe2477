package routes

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
	"github.com/synaptica-ai/risk-gateway/pkg/scoring"
)

type BatchForwarder interface {
	Forward(ctx context.Context, mr *multipart.Reader) (*scoring.Response, error)
}

type BatchHandler struct {
	forwarder BatchForwarder
}

func NewBatchHandler(forwarder BatchForwarder) *BatchHandler {
	return &BatchHandler{forwarder: forwarder}
}

func (h *BatchHandler) Register(r *mux.Router) {
	r.HandleFunc("/batch/upload", h.handleUpload).Methods(http.MethodPost)
}

func (h *BatchHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, r, models.NewValidationError("expected a multipart/form-data upload"))
		return
	}

	resp, err := h.forwarder.Forward(r.Context(), mr)
	if err != nil {
		respondError(w, r, err)
		return
	}
	metrics.IncBatchUploads()

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		logger.Log.WithError(err).Warn("failed to write batch response")
	}
}
