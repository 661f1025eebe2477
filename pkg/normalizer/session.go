package normalizer

import (
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

var (
	createdAtKeys    = []string{"createdAt", "when", "timestamp"}
	sessionModelKeys = []string{"modelVersion", "model"}
	riskScoreKeys    = []string{"riskScore", "score", "prob"}
	riskLabelKeys    = []string{"riskLabel", "label"}
	patientKeys      = []string{"patientFeatures", "patient"}
)

const unknownModelVersion = "unknown"

// Classifier derives a label from a score when a row carries none.
type Classifier interface {
	Label(prob float64) string
}

// SessionNormalizer decodes session rows written by any producer version.
type SessionNormalizer struct {
	classifier Classifier
	now        func() time.Time
}

func NewSessionNormalizer(classifier Classifier) *SessionNormalizer {
	return &SessionNormalizer{classifier: classifier, now: time.Now}
}

func (n *SessionNormalizer) Session(raw interface{}) models.SessionRecord {
	data, ok := extractMap(raw)
	if !ok {
		data = map[string]interface{}{}
	}

	record := models.SessionRecord{
		ID:           getString(data["id"]),
		ModelVersion: unknownModelVersion,
		Contribs:     Contributions(data),
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	record.CreatedAt = n.now().UTC()
	for _, key := range createdAtKeys {
		if t, ok := getTime(data[key]); ok {
			record.CreatedAt = t
			break
		}
	}

	if version, ok := firstString(data, sessionModelKeys...); ok {
		record.ModelVersion = version
	}

	record.RiskScore, _ = firstFloat(data, riskScoreKeys...)

	if label, ok := firstString(data, riskLabelKeys...); ok {
		record.RiskLabel = label
	} else if n.classifier != nil {
		record.RiskLabel = n.classifier.Label(record.RiskScore)
	}

	for _, key := range patientKeys {
		if snapshot, ok := extractMap(data[key]); ok {
			record.PatientFeatures = models.FeaturesFromMap(snapshot)
			break
		}
	}

	return record
}
