package forecast

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// DriftModel steps the window mean forward by its least-squares slope.
// Predictions never go below zero.
type DriftModel struct{}

// Next returns mean(window) + slope(window)
func (DriftModel) Next(window []float64) (float64, error) {
	if len(window) == 0 {
		return 0, errors.New("empty window")
	}
	mean := stat.Mean(window, nil)
	if len(window) == 1 {
		return clampPrice(mean), nil
	}

	x := make([]float64, len(window))
	for i := range x {
		x[i] = float64(i)
	}
	_, slope := stat.LinearRegression(x, window, nil, false)
	return clampPrice(mean + slope), nil
}

func clampPrice(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
