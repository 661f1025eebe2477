package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/risk"
)

type ThresholdsHandler struct {
	store *risk.ThresholdStore
}

func NewThresholdsHandler(store *risk.ThresholdStore) *ThresholdsHandler {
	return &ThresholdsHandler{store: store}
}

func (h *ThresholdsHandler) Register(r *mux.Router) {
	r.HandleFunc("/config/thresholds", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/config/thresholds", h.handleUpdate).Methods(http.MethodPost)
}

func (h *ThresholdsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Get())
}

func (h *ThresholdsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := decodeObject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	low, okLow := raw["low"].(float64)
	high, okHigh := raw["high"].(float64)
	if !okLow || !okHigh {
		respondError(w, r, models.NewValidationError("low and high must both be numbers"))
		return
	}

	updated, err := h.store.Update(models.ThresholdConfig{Low: low, High: high})
	if err != nil {
		respondError(w, r, err)
		return
	}
	logger.Log.WithFields(map[string]interface{}{
		"low":  updated.Low,
		"high": updated.High,
	}).Info("Risk thresholds updated")
	writeJSON(w, updated)
}
