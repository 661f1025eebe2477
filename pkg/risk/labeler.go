package risk

import (
	"math"
	"sync/atomic"

	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

// Classify maps a probability onto the three risk bands. Each band includes
// its lower bound: prob == low is Medium, prob == high is High.
func Classify(prob float64, t models.ThresholdConfig) string {
	switch {
	case prob < t.Low:
		return models.LabelLow
	case prob < t.High:
		return models.LabelMedium
	default:
		return models.LabelHigh
	}
}

func ValidateThresholds(t models.ThresholdConfig) error {
	if math.IsNaN(t.Low) || math.IsNaN(t.High) || math.IsInf(t.Low, 0) || math.IsInf(t.High, 0) {
		return models.NewValidationError("thresholds must be finite numbers")
	}
	if t.Low < 0 || t.High > 1 {
		return models.NewValidationError("thresholds must lie within [0, 1]")
	}
	if t.Low > t.High {
		return models.NewValidationError("low threshold %.4f exceeds high threshold %.4f", t.Low, t.High)
	}
	return nil
}

// ThresholdStore holds the process-wide thresholds. Reads are lock-free and
// an Update is visible to the very next classification.
type ThresholdStore struct {
	current atomic.Pointer[models.ThresholdConfig]
}

func NewThresholdStore(initial models.ThresholdConfig) (*ThresholdStore, error) {
	if err := ValidateThresholds(initial); err != nil {
		return nil, err
	}
	s := &ThresholdStore{}
	s.current.Store(&initial)
	return s, nil
}

func (s *ThresholdStore) Get() models.ThresholdConfig {
	return *s.current.Load()
}

func (s *ThresholdStore) Update(next models.ThresholdConfig) (models.ThresholdConfig, error) {
	if err := ValidateThresholds(next); err != nil {
		return s.Get(), err
	}
	s.current.Store(&next)
	return next, nil
}

// Labeler classifies against the live thresholds on every call.
type Labeler struct {
	store *ThresholdStore
}

func NewLabeler(store *ThresholdStore) *Labeler {
	return &Labeler{store: store}
}

func (l *Labeler) Label(prob float64) string {
	return Classify(prob, l.store.Get())
}

// Fill sets result.Label when upstream left it empty.
func (l *Labeler) Fill(result *models.PredictionResult) {
	if result.Label == "" {
		result.Label = l.Label(result.Prob)
	}
}
