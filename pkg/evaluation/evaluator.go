// Package evaluation measures how trustworthy a crop recommendation is:
// stability under noise, sensitivity to missing features, agreement across
// the model ensemble, and the fused confidence score.
package evaluation

import (
	"context"
	"fmt"

	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/mlmodel"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/rs/zerolog"
)

// ModelProvider exposes the loaded classifiers
type ModelProvider interface {
	Primary() (mlmodel.Classifier, error)
	Classifiers() []mlmodel.Classifier
}

// Evaluator runs the individual robustness analyses against a model provider.
// It holds no per-request state.
type Evaluator struct {
	models   ModelProvider
	injector *Injector
	log      zerolog.Logger
}

// NewEvaluator creates an evaluator. A nil injector gets a clock-seeded one.
func NewEvaluator(provider ModelProvider, injector *Injector) *Evaluator {
	if injector == nil {
		injector = NewInjector(nil)
	}
	return &Evaluator{
		models:   provider,
		injector: injector,
		log:      logger.Component("evaluation"),
	}
}

// Injector returns the noise source shared by the evaluator
func (e *Evaluator) Injector() *Injector {
	return e.injector
}

// baseline classifies the untouched vector with the primary model
func (e *Evaluator) baseline(v models.FeatureVector) (mlmodel.Classifier, *models.PredictionResult, error) {
	c, err := e.models.Primary()
	if err != nil {
		return nil, nil, err
	}
	res, err := c.Predict(v)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline prediction: %w", err)
	}
	return c, res, nil
}

// checkInput rejects cancelled contexts and out-of-domain vectors before any model call
func checkInput(ctx context.Context, v models.FeatureVector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.Validate()
}
