package models

import (
	"time"
)

// Risk labels produced by the gateway's labeler. Upstream may supply its own
// label string, which is passed through unchanged.
const (
	LabelLow    = "Low"
	LabelMedium = "Medium"
	LabelHigh   = "High"
)

// PredictionResult is the canonical scoring response returned to the UI.
type PredictionResult struct {
	Prob         float64            `json:"prob"`
	Label        string             `json:"label"`
	Contribs     map[string]float64 `json:"contribs"`
	ModelVersion string             `json:"modelVersion,omitempty"`
}

// SessionRecord is one logged /predict outcome. Records are never updated.
type SessionRecord struct {
	ID              string             `json:"id"`
	CreatedAt       time.Time          `json:"createdAt"`
	ModelVersion    string             `json:"modelVersion"`
	PatientFeatures PatientFeatures    `json:"patientFeatures"`
	RiskLabel       string             `json:"riskLabel"`
	RiskScore       float64            `json:"riskScore"`
	Contribs        map[string]float64 `json:"contribs"`
}

type WhatIfRequest struct {
	Base   map[string]interface{} `json:"base"`
	Deltas map[string]interface{} `json:"deltas"`
}

type WhatIfResult struct {
	DeltaProb float64          `json:"delta_prob"`
	Base      PredictionResult `json:"base"`
	Tweaked   PredictionResult `json:"tweaked"`
}

type ThresholdConfig struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{Low: 0.33, High: 0.66}
}

// Event is the envelope published on the prediction topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const EventPredictionRecorded = "prediction.recorded"
