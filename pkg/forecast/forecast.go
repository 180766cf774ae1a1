// Package forecast predicts short-horizon daily market prices for crops from
// the national mandi price history.
package forecast

import (
	"context"
	"fmt"

	"github.com/mimir-aip/cropwise/pkg/models"
)

const (
	// DefaultPrice is quoted when no forecast value is available for a crop
	DefaultPrice = 2000.0

	// DefaultSequenceLength is the number of past days fed to the step model
	DefaultSequenceLength = 12

	// DefaultHorizon is the number of days forecast for a recommendation
	DefaultHorizon = 6
)

// Forecaster predicts the next horizon daily prices for a crop
type Forecaster interface {
	Forecast(ctx context.Context, crop string, horizon int) ([]float64, error)
}

// HistorySource supplies the most recent n daily prices for a crop
type HistorySource interface {
	LastSequence(crop string, n int) ([]float64, error)
}

// StepModel predicts the value following a window of observations
type StepModel interface {
	Next(window []float64) (float64, error)
}

func validateHorizon(horizon int) error {
	if horizon <= 0 {
		return models.NewValidationFault("forecast", fmt.Errorf("horizon must be positive, got %d", horizon))
	}
	return nil
}
