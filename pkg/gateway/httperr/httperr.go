// Package httperr writes the gateway's JSON error envelope.
package httperr

import (
	"encoding/json"
	"net/http"
)

const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeBasePredictionRequired = "BASE_PREDICTION_REQUIRED"
	CodeUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamTimeout        = "UPSTREAM_TIMEOUT"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeNotFound               = "NOT_FOUND"
	CodeInternal               = "INTERNAL_ERROR"
)

type Body struct {
	Error Detail `json:"error"`
}

type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Write(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: Detail{Code: code, Message: message}})
}
