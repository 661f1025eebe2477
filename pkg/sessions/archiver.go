package sessions

import (
	"context"

	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/normalizer"
	"github.com/synaptica-ai/risk-gateway/pkg/observability/metrics"
)

// Archiver copies prediction.recorded events from the event stream into a
// durable repository.
type Archiver struct {
	repo       Repository
	normalizer *normalizer.SessionNormalizer
}

func NewArchiver(repo Repository, classifier normalizer.Classifier) *Archiver {
	return &Archiver{
		repo:       repo,
		normalizer: normalizer.NewSessionNormalizer(classifier),
	}
}

// HandleEvent matches kafka.EventHandler. Other event types are ignored.
// A failed append is returned so the message is not committed.
func (a *Archiver) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != models.EventPredictionRecorded {
		return nil
	}

	record := a.normalizer.Session(event.Data)
	if err := a.repo.Append(ctx, record); err != nil {
		logger.Log.WithError(err).WithField("session_id", record.ID).Error("Failed to archive session")
		return err
	}

	metrics.IncSessionsArchived()
	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"session_id": record.ID,
	}).Debug("Session archived")
	return nil
}
