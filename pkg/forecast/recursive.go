package forecast

import (
	"context"
	"fmt"
	"strings"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// RecursiveForecaster predicts one day at a time, feeding each prediction
// back into the window for the next step
type RecursiveForecaster struct {
	History        HistorySource
	Model          StepModel
	SequenceLength int
}

// NewRecursiveForecaster uses the drift model over DefaultSequenceLength days
func NewRecursiveForecaster(history HistorySource) *RecursiveForecaster {
	return &RecursiveForecaster{
		History:        history,
		Model:          DriftModel{},
		SequenceLength: DefaultSequenceLength,
	}
}

func (f *RecursiveForecaster) Forecast(ctx context.Context, crop string, horizon int) ([]float64, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	op := "forecast " + strings.ToLower(crop)

	seq, err := f.History.LastSequence(crop, f.SequenceLength)
	if err != nil {
		return nil, models.NewUpstreamFault(op, err)
	}
	window, err := NewWindow(seq, f.SequenceLength)
	if err != nil {
		return nil, models.NewUpstreamFault(op, err)
	}

	prices := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := f.Model.Next(window.Values())
		if err != nil {
			return nil, models.NewUpstreamFault(op, fmt.Errorf("step %d: %w", i+1, err))
		}
		prices = append(prices, next)
		window.Push(next)
	}
	return prices, nil
}
