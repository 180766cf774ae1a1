package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// NoModelsError is the error marker on the empty-registry agreement report
const NoModelsError = "no models available"

// ComputeAgreement asks every registered model for its top crop and reports
// how many agree with the most common answer. Ties go to the label that
// reached the winning count first in registry order; callers should not rely
// on a particular tie-break. With no models loaded it returns a report whose
// Error is set and whose ratio is 0 instead of failing.
func (e *Evaluator) ComputeAgreement(ctx context.Context, v models.FeatureVector) (*models.AgreementReport, error) {
	if err := checkInput(ctx, v); err != nil {
		return nil, err
	}
	return e.agreement(v)
}

func (e *Evaluator) agreement(v models.FeatureVector) (*models.AgreementReport, error) {
	classifiers := e.models.Classifiers()
	if len(classifiers) == 0 {
		e.log.Warn().Msg("Agreement requested with no models loaded")
		return &models.AgreementReport{Error: NoModelsError, AgreementRatio: 0}, nil
	}

	report := &models.AgreementReport{
		Predictions:  make(map[string]string, len(classifiers)),
		TotalModels:  len(classifiers),
		Distribution: make(map[string]int),
	}
	for _, c := range classifiers {
		res, err := c.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", c.Name(), err)
		}
		report.Predictions[c.Name()] = res.Label
		report.Distribution[res.Label]++
		if count := report.Distribution[res.Label]; count > report.MajorityCount {
			report.MajorityLabel = res.Label
			report.MajorityCount = count
		}
	}
	report.AgreementRatio = float64(report.MajorityCount) / float64(report.TotalModels)
	report.AllAgree = len(report.Distribution) == 1

	return report, nil
}

// ComputeAgreementStability checks whether the ensemble majority holds when
// the input is perturbed n times
func (e *Evaluator) ComputeAgreementStability(ctx context.Context, v models.FeatureVector, percentage float64, n int) (*models.AgreementStabilityReport, error) {
	if n <= 0 {
		return nil, models.NewValidationFault("agreement stability", fmt.Errorf("number of runs must be positive, got %d", n))
	}
	if err := validatePercentage(percentage); err != nil {
		return nil, err
	}

	base, err := e.ComputeAgreement(ctx, v)
	if err != nil {
		return nil, err
	}
	if base.Failed() {
		return nil, models.NewModelUnavailableFault("agreement stability", errors.New(NoModelsError))
	}

	variants, err := e.injector.Variants(v, percentage, n, nil)
	if err != nil {
		return nil, err
	}

	report := &models.AgreementStabilityReport{
		BaselineLabel:     base.MajorityLabel,
		BaselineAgreement: base.AgreementRatio,
		TotalRuns:         n,
	}
	total := 0.0
	for _, variant := range variants {
		r, err := e.agreement(variant)
		if err != nil {
			return nil, err
		}
		total += r.AgreementRatio
		if r.MajorityLabel == base.MajorityLabel {
			report.StablePredictions++
		}
	}
	report.AvgAgreementUnderNoise = total / float64(n)
	report.StabilityScore = float64(report.StablePredictions) / float64(n)
	return report, nil
}
