package evaluation

import (
	"context"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// DefaultConfidenceWeights are the fusion weights for the confidence score
var DefaultConfidenceWeights = models.ConfidenceWeights{
	Probability: 0.5,
	Stability:   0.3,
	Agreement:   0.2,
}

// ConfidenceOptions selects which components feed the confidence score
type ConfidenceOptions struct {
	IncludeStability bool
	IncludeAgreement bool
	RSSRuns          int
	NoiseLevel       float64
}

// DefaultConfidenceOptions computes every component with the boundary defaults
func DefaultConfidenceOptions() ConfidenceOptions {
	return ConfidenceOptions{
		IncludeStability: true,
		IncludeAgreement: true,
		RSSRuns:          models.DefaultRSSRuns,
		NoiseLevel:       models.DefaultNoiseLevel,
	}
}

// levelThresholds are inclusive lower bounds, checked high to low
var levelThresholds = []struct {
	min   float64
	level models.ConfidenceLevel
}{
	{0.90, models.ConfidenceVeryHigh},
	{0.75, models.ConfidenceHigh},
	{0.60, models.ConfidenceMedium},
	{0.40, models.ConfidenceLow},
}

// LevelFor maps a confidence score to its human-readable band
func LevelFor(confidence float64) models.ConfidenceLevel {
	for _, t := range levelThresholds {
		if confidence >= t.min {
			return t.level
		}
	}
	return models.ConfidenceVeryLow
}

// Fuse combines the computed components into one score. Components left nil
// are dropped from both the weighted sum and the weight total.
func Fuse(c models.ConfidenceComponents, w models.ConfidenceWeights) float64 {
	sum := w.Probability * c.Probability
	total := w.Probability
	if c.Stability != nil {
		sum += w.Stability * *c.Stability
		total += w.Stability
	}
	if c.Agreement != nil {
		sum += w.Agreement * *c.Agreement
		total += w.Agreement
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// ComputeConfidence fuses the primary model's top-class probability with the
// optional stability and agreement components. An empty registry yields no
// agreement component rather than a zero one.
func (e *Evaluator) ComputeConfidence(ctx context.Context, v models.FeatureVector, opts ConfidenceOptions) (*models.ConfidenceReport, error) {
	if err := checkInput(ctx, v); err != nil {
		return nil, err
	}

	_, base, err := e.baseline(v)
	if err != nil {
		return nil, err
	}

	components := models.ConfidenceComponents{Probability: base.Probability()}

	if opts.IncludeStability {
		rss, err := e.ComputeRSS(ctx, v, opts.NoiseLevel, opts.RSSRuns)
		if err != nil {
			return nil, err
		}
		stability := rss.RSS
		components.Stability = &stability
	}

	if opts.IncludeAgreement {
		agreement, err := e.ComputeAgreement(ctx, v)
		if err != nil {
			return nil, err
		}
		if agreement.Failed() {
			e.log.Warn().Str("reason", agreement.Error).Msg("Agreement component left out of confidence")
		} else {
			ratio := agreement.AgreementRatio
			components.Agreement = &ratio
		}
	}

	confidence := Fuse(components, DefaultConfidenceWeights)
	return &models.ConfidenceReport{
		Label:      base.Label,
		Confidence: confidence,
		Level:      LevelFor(confidence),
		Components: components,
		Weights:    DefaultConfidenceWeights,
	}, nil
}
