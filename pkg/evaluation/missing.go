package evaluation

import (
	"context"
	"fmt"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// DefaultMissingFeatures are swept when the caller names none. pH is left out
// because it is normally already the default value.
var DefaultMissingFeatures = []models.Feature{
	models.FeatureN,
	models.FeatureP,
	models.FeatureK,
	models.FeatureTemperature,
	models.FeatureHumidity,
	models.FeatureRainfall,
}

// EvaluateMissing replaces each feature in turn with its domain default and
// records how the primary model's prediction moves. A nil features slice
// selects DefaultMissingFeatures; an empty one is rejected.
func (e *Evaluator) EvaluateMissing(ctx context.Context, v models.FeatureVector, features []models.Feature) (*models.MissingFeatureReport, error) {
	if features == nil {
		features = DefaultMissingFeatures
	}
	tested, err := uniqueFeatures(features)
	if err != nil {
		return nil, err
	}
	if err := checkInput(ctx, v); err != nil {
		return nil, err
	}

	classifier, base, err := e.baseline(v)
	if err != nil {
		return nil, err
	}

	report := &models.MissingFeatureReport{
		Baseline:    models.FeatureOutcome{Label: base.Label, Probability: base.Probability()},
		PerFeature:  make(map[models.Feature]models.MissingFeatureOutcome, len(tested)),
		TestedCount: len(tested),
	}
	for _, f := range tested {
		substitute := models.FeatureDefaults[f]
		modified, err := v.With(f, substitute)
		if err != nil {
			return nil, err
		}
		res, err := classifier.Predict(modified)
		if err != nil {
			return nil, fmt.Errorf("missing %s: %w", f, err)
		}

		changed := res.Label != base.Label
		if changed {
			report.ChangedCount++
		}
		report.PerFeature[f] = models.MissingFeatureOutcome{
			Label:            res.Label,
			Probability:      res.Probability(),
			Changed:          changed,
			ProbabilityDrop:  base.Probability() - res.Probability(),
			SubstitutedValue: substitute,
		}
	}
	report.StabilityScore = 1 - float64(report.ChangedCount)/float64(report.TestedCount)

	e.log.Debug().
		Str("baseline", base.Label).
		Int("tested", report.TestedCount).
		Int("changed", report.ChangedCount).
		Msg("Evaluated missing features")
	return report, nil
}

func uniqueFeatures(features []models.Feature) ([]models.Feature, error) {
	if len(features) == 0 {
		return nil, models.NewValidationFault("evaluate missing", fmt.Errorf("feature list is empty"))
	}
	seen := make(map[models.Feature]bool, len(features))
	out := make([]models.Feature, 0, len(features))
	for _, f := range features {
		if _, ok := models.FeatureDefaults[f]; !ok {
			return nil, models.NewValidationFault("evaluate missing", fmt.Errorf("unknown feature %q", f))
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}
