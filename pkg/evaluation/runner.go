package evaluation

import (
	"context"
	"time"

	"github.com/mimir-aip/cropwise/pkg/metrics"
	"github.com/mimir-aip/cropwise/pkg/models"
)

// NoiseParams configures a noise evaluation
type NoiseParams struct {
	Percentage float64
	Runs       int
}

// DefaultNoiseParams returns 20% noise over 50 runs
func DefaultNoiseParams() NoiseParams {
	return NoiseParams{Percentage: models.DefaultNoisePercentage, Runs: models.DefaultNoiseRuns}
}

// FullParams configures a full evaluation
type FullParams struct {
	RSSRuns    int
	NoiseLevel float64
}

// DefaultFullParams returns 30 stability runs at 20% noise
func DefaultFullParams() FullParams {
	return FullParams{RSSRuns: models.DefaultRSSRuns, NoiseLevel: models.DefaultNoiseLevel}
}

// Runner exposes the boundary evaluation operations and records their metrics
type Runner struct {
	evaluator *Evaluator
}

// NewRunner wraps an evaluator
func NewRunner(evaluator *Evaluator) *Runner {
	return &Runner{evaluator: evaluator}
}

// Evaluator returns the underlying evaluator
func (r *Runner) Evaluator() *Evaluator {
	return r.evaluator
}

// EvaluateNoise computes the stability report
func (r *Runner) EvaluateNoise(ctx context.Context, v models.FeatureVector, p NoiseParams) (*models.StabilityReport, error) {
	defer observe("noise", time.Now())
	report, err := r.evaluator.ComputeRSS(ctx, v, p.Percentage, p.Runs)
	count("noise", err)
	return report, err
}

// EvaluateNoiseLevels computes one stability report per noise level
func (r *Runner) EvaluateNoiseLevels(ctx context.Context, v models.FeatureVector, levels []float64, runsPerLevel int) ([]*models.StabilityReport, error) {
	defer observe("noise_levels", time.Now())
	reports, err := r.evaluator.ComputeRSSMultiLevel(ctx, v, levels, runsPerLevel)
	count("noise_levels", err)
	return reports, err
}

// EvaluateMissing runs the default missing-feature sweep
func (r *Runner) EvaluateMissing(ctx context.Context, v models.FeatureVector) (*models.MissingFeatureReport, error) {
	defer observe("missing", time.Now())
	report, err := r.evaluator.EvaluateMissing(ctx, v, nil)
	count("missing", err)
	return report, err
}

// EvaluateAgreement compares every registered model
func (r *Runner) EvaluateAgreement(ctx context.Context, v models.FeatureVector) (*models.AgreementReport, error) {
	defer observe("agreement", time.Now())
	report, err := r.evaluator.ComputeAgreement(ctx, v)
	count("agreement", err)
	return report, err
}

// EvaluateAgreementStability measures how the ensemble majority holds under noise
func (r *Runner) EvaluateAgreementStability(ctx context.Context, v models.FeatureVector, p NoiseParams) (*models.AgreementStabilityReport, error) {
	defer observe("agreement_stability", time.Now())
	report, err := r.evaluator.ComputeAgreementStability(ctx, v, p.Percentage, p.Runs)
	count("agreement_stability", err)
	return report, err
}

// RunFull runs stability, missing-feature, agreement and confidence in
// sequence. Each step derives its own baseline; the first failure aborts.
func (r *Runner) RunFull(ctx context.Context, v models.FeatureVector, p FullParams) (*models.FullReport, error) {
	defer observe("full", time.Now())
	report, err := r.runFull(ctx, v, p)
	count("full", err)
	return report, err
}

func (r *Runner) runFull(ctx context.Context, v models.FeatureVector, p FullParams) (*models.FullReport, error) {
	e := r.evaluator

	noise, err := e.ComputeRSS(ctx, v, p.NoiseLevel, p.RSSRuns)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	missing, err := e.EvaluateMissing(ctx, v, nil)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agreement, err := e.ComputeAgreement(ctx, v)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	confidence, err := e.ComputeConfidence(ctx, v, ConfidenceOptions{
		IncludeStability: true,
		IncludeAgreement: true,
		RSSRuns:          p.RSSRuns,
		NoiseLevel:       p.NoiseLevel,
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("crop", confidence.Label).
		Float64("confidence", confidence.Confidence).
		Str("level", string(confidence.Level)).
		Msg("Full evaluation complete")

	return &models.FullReport{
		PredictedCrop:           confidence.Label,
		Confidence:              confidence.Confidence,
		ConfidenceLevel:         confidence.Level,
		RSSScore:                noise.RSS,
		MissingFeatureStability: missing.StabilityScore,
		ModelAgreementRatio:     agreement.AgreementRatio,
		NoiseTest:               noise,
		MissingFeatureTest:      missing,
		AgreementTest:           agreement,
		ConfidenceDetail:        confidence,
	}, nil
}

func observe(kind string, start time.Time) {
	metrics.EvaluationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func count(kind string, err error) {
	metrics.EvaluationsTotal.WithLabelValues(kind, metrics.Status(err)).Inc()
}
