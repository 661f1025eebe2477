package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
)

type Simulator interface {
	Run(ctx context.Context, scope string, base models.PatientFeatures, deltas map[string]float64) (models.WhatIfResult, error)
}

type WhatIfHandler struct {
	simulator       Simulator
	featureDefaults map[string]float64
}

func NewWhatIfHandler(simulator Simulator, featureDefaults map[string]float64) *WhatIfHandler {
	return &WhatIfHandler{simulator: simulator, featureDefaults: featureDefaults}
}

func (h *WhatIfHandler) Register(r *mux.Router) {
	r.HandleFunc("/whatif", h.handleWhatIf).Methods(http.MethodPost)
}

func (h *WhatIfHandler) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := decodeObject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	baseRaw, ok := raw["base"].(map[string]interface{})
	if !ok {
		respondError(w, r, models.NewValidationError("base must be an object of patient features"))
		return
	}
	base, err := models.DecodeFeatures(baseRaw, h.featureDefaults)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var deltaRaw map[string]interface{}
	if v, present := raw["deltas"]; present && v != nil {
		if deltaRaw, ok = v.(map[string]interface{}); !ok {
			respondError(w, r, models.NewValidationError("deltas must be an object"))
			return
		}
	}
	deltas, err := models.ParseDeltas(deltaRaw)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.simulator.Run(r.Context(), r.Header.Get(SessionHeader), base, deltas)
	if err != nil {
		respondError(w, r, err)
		return
	}
	metrics.IncWhatIf()
	writeJSON(w, result)
}
