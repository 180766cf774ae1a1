package evaluation

import (
	"context"
	"fmt"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// ComputeRSS measures the Recommendation Stability Score: the share of n
// independently perturbed runs whose label matches the baseline. The baseline
// is an extra call and is not counted in n.
func (e *Evaluator) ComputeRSS(ctx context.Context, v models.FeatureVector, percentage float64, n int) (*models.StabilityReport, error) {
	if n <= 0 {
		return nil, models.NewValidationFault("compute rss", fmt.Errorf("number of runs must be positive, got %d", n))
	}
	if err := validatePercentage(percentage); err != nil {
		return nil, err
	}
	if err := checkInput(ctx, v); err != nil {
		return nil, err
	}

	classifier, base, err := e.baseline(v)
	if err != nil {
		return nil, err
	}

	variants, err := e.injector.Variants(v, percentage, n, nil)
	if err != nil {
		return nil, err
	}

	report := &models.StabilityReport{
		BaselineLabel:   base.Label,
		NoisePercentage: percentage,
		TotalRuns:       n,
		Distribution:    make(map[string]int),
	}
	for i, variant := range variants {
		res, err := classifier.Predict(variant)
		if err != nil {
			return nil, fmt.Errorf("noisy run %d: %w", i, err)
		}
		report.Distribution[res.Label]++
		if res.Label == base.Label {
			report.Matches++
		}
	}
	report.PredictionChanges = n - report.Matches
	report.RSS = float64(report.Matches) / float64(n)

	e.log.Debug().
		Str("baseline", base.Label).
		Int("runs", n).
		Float64("noise", percentage).
		Float64("rss", report.RSS).
		Msg("Computed stability score")
	return report, nil
}

// ComputeRSSMultiLevel runs ComputeRSS once per noise level, in the order given
func (e *Evaluator) ComputeRSSMultiLevel(ctx context.Context, v models.FeatureVector, levels []float64, runsPerLevel int) ([]*models.StabilityReport, error) {
	if levels == nil {
		levels = DefaultNoiseLevels
	}
	if len(levels) == 0 {
		return nil, models.NewValidationFault("compute rss levels", fmt.Errorf("no noise levels given"))
	}
	for _, level := range levels {
		if err := validatePercentage(level); err != nil {
			return nil, err
		}
	}

	reports := make([]*models.StabilityReport, 0, len(levels))
	for _, level := range levels {
		r, err := e.ComputeRSS(ctx, v, level, runsPerLevel)
		if err != nil {
			return nil, fmt.Errorf("noise level %v: %w", level, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
