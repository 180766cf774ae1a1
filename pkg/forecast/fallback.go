package forecast

import (
	"context"
	"math"
	"strings"

	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/metrics"
	"github.com/rs/zerolog"
)

// trendPerDay is the upward drift applied to baseline prices
const trendPerDay = 20.0

var basePrices = map[string]float64{
	"rice":      2100,
	"wheat":     1800,
	"maize":     1500,
	"cotton":    3500,
	"sugarcane": 2800,
	"jute":      2200,
	"coffee":    4500,
	"tea":       3800,
	"potato":    1200,
	"onion":     1500,
	"tomato":    1800,
}

// BaselinePrices is the deterministic fallback series: the crop's base price
// plus a fixed daily trend
func BaselinePrices(crop string, horizon int) []float64 {
	base, ok := basePrices[strings.ToLower(crop)]
	if !ok {
		base = DefaultPrice
	}
	prices := make([]float64, horizon)
	for i := range prices {
		prices[i] = math.Round((base+trendPerDay*float64(i))*100) / 100
	}
	return prices
}

// FallbackForecaster serves the primary forecaster's output and switches to
// BaselinePrices whenever the primary fails. A nil primary always falls back.
type FallbackForecaster struct {
	primary Forecaster
	log     zerolog.Logger
}

func NewFallbackForecaster(primary Forecaster) *FallbackForecaster {
	return &FallbackForecaster{primary: primary, log: logger.Component("forecast")}
}

func (f *FallbackForecaster) Forecast(ctx context.Context, crop string, horizon int) ([]float64, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	if f.primary != nil {
		prices, err := f.primary.Forecast(ctx, crop, horizon)
		if err == nil && len(prices) == horizon {
			return prices, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.log.Warn().Err(err).Str("crop", crop).Msg("Price forecast failed, using baseline prices")
	}
	metrics.FallbacksTotal.WithLabelValues("forecast").Inc()
	return BaselinePrices(crop, horizon), nil
}
