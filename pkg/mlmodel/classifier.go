package mlmodel

import (
	"github.com/mimir-aip/cropwise/pkg/metrics"
	"github.com/mimir-aip/cropwise/pkg/models"
)

// Classifier maps a feature vector to a crop prediction.
// Implementations are read-only after construction and safe for concurrent use.
type Classifier interface {
	Name() string
	Predict(v models.FeatureVector) (*models.PredictionResult, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface
type ClassifierFunc struct {
	name string
	fn   func(models.FeatureVector) (*models.PredictionResult, error)
}

// NewClassifierFunc wraps fn as a named Classifier
func NewClassifierFunc(name string, fn func(models.FeatureVector) (*models.PredictionResult, error)) *ClassifierFunc {
	return &ClassifierFunc{name: name, fn: fn}
}

func (c *ClassifierFunc) Name() string { return c.name }

func (c *ClassifierFunc) Predict(v models.FeatureVector) (*models.PredictionResult, error) {
	return c.fn(v)
}

// instrumented counts invocations of the wrapped classifier
type instrumented struct {
	Classifier
}

func (c instrumented) Predict(v models.FeatureVector) (*models.PredictionResult, error) {
	res, err := c.Classifier.Predict(v)
	metrics.ModelPredictionsTotal.WithLabelValues(c.Name(), metrics.Status(err)).Inc()
	return res, err
}
