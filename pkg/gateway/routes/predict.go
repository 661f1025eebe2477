package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
	"github.com/synaptica-ai/risk-gateway/pkg/sessions"
	"github.com/synaptica-ai/risk-gateway/pkg/whatif"
)

const eventSource = "risk-gateway"

type Predictor interface {
	Predict(ctx context.Context, features models.PatientFeatures) (models.PredictionResult, error)
}

type ResultLabeler interface {
	Fill(result *models.PredictionResult)
}

// SessionPublisher announces recorded predictions. It may be nil.
type SessionPublisher interface {
	PublishSession(ctx context.Context, source string, record models.SessionRecord) error
}

type PredictionHandler struct {
	predictor       Predictor
	labeler         ResultLabeler
	sessions        sessions.Repository
	tracker         whatif.BaselineTracker
	publisher       SessionPublisher
	featureDefaults map[string]float64
	defaultModel    string
	appendTimeout   time.Duration
	now             func() time.Time
}

type PredictionOptions struct {
	FeatureDefaults     map[string]float64
	DefaultModelVersion string
	AppendTimeout       time.Duration
	Publisher           SessionPublisher
}

func NewPredictionHandler(predictor Predictor, labeler ResultLabeler, repo sessions.Repository, tracker whatif.BaselineTracker, opts PredictionOptions) *PredictionHandler {
	if opts.DefaultModelVersion == "" {
		opts.DefaultModelVersion = "unknown"
	}
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = 3 * time.Second
	}
	return &PredictionHandler{
		predictor:       predictor,
		labeler:         labeler,
		sessions:        repo,
		tracker:         tracker,
		publisher:       opts.Publisher,
		featureDefaults: opts.FeatureDefaults,
		defaultModel:    opts.DefaultModelVersion,
		appendTimeout:   opts.AppendTimeout,
		now:             time.Now,
	}
}

func (h *PredictionHandler) Register(r *mux.Router) {
	r.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
}

func (h *PredictionHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := decodeObject(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	features, err := models.DecodeFeatures(raw, h.featureDefaults)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.predictor.Predict(r.Context(), features)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.labeler.Fill(&result)

	// client went away: no session, no baseline, no event
	if r.Context().Err() != nil {
		logger.Log.WithField("request_id", r.Header.Get("X-Request-ID")).Info("Prediction abandoned by client")
		return
	}

	h.record(r.Header.Get(SessionHeader), features, result)
	metrics.IncPredictions()
	writeJSON(w, result)
}

// record runs the best-effort side effects of a successful prediction on a
// context detached from the request. Failures are logged and counted only.
func (h *PredictionHandler) record(scope string, features models.PatientFeatures, result models.PredictionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), h.appendTimeout)
	defer cancel()

	modelVersion := result.ModelVersion
	if modelVersion == "" {
		modelVersion = h.defaultModel
	}
	record := models.SessionRecord{
		ID:              uuid.New().String(),
		CreatedAt:       h.now().UTC(),
		ModelVersion:    modelVersion,
		PatientFeatures: features,
		RiskLabel:       result.Label,
		RiskScore:       result.Prob,
		Contribs:        result.Contribs,
	}

	if h.tracker != nil {
		if err := h.tracker.Mark(ctx, scope, features); err != nil {
			logger.Log.WithError(err).Warn("Failed to mark base prediction")
		}
	}

	if err := h.sessions.Append(ctx, record); err != nil {
		metrics.IncSessionAppendFailures()
		logger.Log.WithError(err).WithField("session_id", record.ID).Error("Failed to persist session")
	}

	if h.publisher != nil {
		if err := h.publisher.PublishSession(ctx, eventSource, record); err != nil {
			metrics.IncEventPublishFailures()
			logger.Log.WithError(err).WithField("session_id", record.ID).Warn("Failed to publish prediction event")
		}
	}
}
