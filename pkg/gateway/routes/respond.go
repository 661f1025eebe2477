package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/httperr"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
	"github.com/synaptica-ai/risk-gateway/pkg/scoring"
	"github.com/synaptica-ai/risk-gateway/pkg/whatif"
)

const SessionHeader = "X-Session-ID"

func writeJSON(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

// respondError maps a handler error onto the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *scoring.UpstreamError
	switch {
	case models.IsValidationError(err):
		metrics.IncValidationRejections()
		httperr.Write(w, http.StatusBadRequest, httperr.CodeValidation, err.Error())
	case errors.Is(err, whatif.ErrBasePredictionRequired):
		httperr.Write(w, http.StatusConflict, httperr.CodeBasePredictionRequired, err.Error())
	case errors.As(err, &upstream):
		metrics.ObserveUpstreamFailure(upstream.IsTimeout())
		logger.Log.WithError(err).WithField("path", r.URL.Path).Warn("Scoring service call failed")
		if upstream.IsTimeout() {
			httperr.Write(w, http.StatusGatewayTimeout, httperr.CodeUpstreamTimeout, "scoring service timed out")
			return
		}
		httperr.Write(w, http.StatusBadGateway, httperr.CodeUpstreamUnavailable, "scoring service unavailable")
	default:
		logger.Log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		httperr.Write(w, http.StatusInternalServerError, httperr.CodeInternal, "internal server error")
	}
}

// decodeObject reads a JSON object body. Any other JSON value, an empty
// body or an oversized body is a ValidationError.
func decodeObject(r *http.Request) (map[string]interface{}, error) {
	var raw interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, models.NewValidationError("request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return nil, models.NewValidationError("request body is required")
		default:
			return nil, models.NewValidationError("malformed JSON: %s", strings.TrimPrefix(err.Error(), "json: "))
		}
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, models.NewValidationError("request body must be a JSON object")
	}
	return obj, nil
}
