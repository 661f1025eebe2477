// Package whatif scores a patient against a perturbed copy of itself.
package whatif

import (
	"context"
	"errors"

	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"golang.org/x/sync/errgroup"
)

var ErrBasePredictionRequired = errors.New("base features have not been scored by /predict in this session")

// Scorer returns a normalized prediction for one feature vector.
type Scorer interface {
	Predict(ctx context.Context, features models.PatientFeatures) (models.PredictionResult, error)
}

// Labeler fills missing labels from the active thresholds.
type Labeler interface {
	Fill(result *models.PredictionResult)
}

type Simulator struct {
	scorer  Scorer
	labeler Labeler
	tracker BaselineTracker
}

func NewSimulator(scorer Scorer, labeler Labeler, tracker BaselineTracker) *Simulator {
	return &Simulator{scorer: scorer, labeler: labeler, tracker: tracker}
}

// Run scores base and base+deltas concurrently. delta_prob is always computed
// here from the two normalized probabilities.
func (s *Simulator) Run(ctx context.Context, scope string, base models.PatientFeatures, deltas map[string]float64) (models.WhatIfResult, error) {
	if s.tracker != nil {
		seen, err := s.tracker.Seen(ctx, scope, base)
		switch {
		case err != nil:
			logger.Log.WithError(err).Warn("Baseline tracker unavailable, skipping base prediction check")
		case !seen:
			return models.WhatIfResult{}, ErrBasePredictionRequired
		}
	}

	tweakedFeatures := base.Apply(deltas)

	var baseResult, tweakedResult models.PredictionResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseResult, err = s.scorer.Predict(gctx, base)
		return err
	})
	g.Go(func() error {
		var err error
		tweakedResult, err = s.scorer.Predict(gctx, tweakedFeatures)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.WhatIfResult{}, err
	}

	s.labeler.Fill(&baseResult)
	s.labeler.Fill(&tweakedResult)

	return models.WhatIfResult{
		DeltaProb: tweakedResult.Prob - baseResult.Prob,
		Base:      baseResult,
		Tweaked:   tweakedResult,
	}, nil
}
