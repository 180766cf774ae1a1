// Package prediction turns a farmer's soil and location inputs into ranked
// crop recommendations with expected market prices.
package prediction

import (
	"context"
	"fmt"
	"strings"

	"github.com/mimir-aip/cropwise/pkg/forecast"
	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/mlmodel"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/mimir-aip/cropwise/pkg/weather"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PrimaryProvider supplies the classifier that answers recommendations
type PrimaryProvider interface {
	Primary() (mlmodel.Classifier, error)
}

// SoilNutrients are typical N, P, K levels for a soil type
type SoilNutrients struct {
	N, P, K float64
}

// SoilDefaults are substituted for nutrient readings entered as zero
var SoilDefaults = map[string]SoilNutrients{
	"black":    {N: 70, P: 40, K: 50},
	"red":      {N: 40, P: 30, K: 35},
	"alluvial": {N: 60, P: 35, K: 40},
}

// OtherSoil applies to any soil type not in SoilDefaults
var OtherSoil = SoilNutrients{N: 50, P: 35, K: 40}

// ApplySoilDefaults replaces each zero reading with the soil type's typical level
func ApplySoilDefaults(soilType string, n, p, k float64) (float64, float64, float64) {
	d, ok := SoilDefaults[strings.ToLower(strings.TrimSpace(soilType))]
	if !ok {
		d = OtherSoil
	}
	if n == 0 {
		n = d.N
	}
	if p == 0 {
		p = d.P
	}
	if k == 0 {
		k = d.K
	}
	return n, p, k
}

// Service answers crop recommendations
type Service struct {
	models  PrimaryProvider
	weather weather.Provider
	prices  forecast.Forecaster
	horizon int
	log     zerolog.Logger
}

// NewService wires the recommendation collaborators. A nil forecaster quotes
// baseline prices.
func NewService(provider PrimaryProvider, w weather.Provider, prices forecast.Forecaster) *Service {
	if prices == nil {
		prices = forecast.NewFallbackForecaster(nil)
	}
	return &Service{
		models:  provider,
		weather: w,
		prices:  prices,
		horizon: forecast.DefaultHorizon,
		log:     logger.Component("prediction"),
	}
}

// Recommend ranks the top crops for the request and quotes the first
// forecast price for each
func (s *Service) Recommend(ctx context.Context, req *models.CropPredictionRequest) (*models.CropPredictionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n, p, k := ApplySoilDefaults(req.SoilType, req.N, req.P, req.K)
	w := s.weather.Current(ctx, req.Location)
	v := withWeather(models.FeatureVector{N: n, P: p, K: k, PH: phOrDefault(req.PH)}, w)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	c, err := s.models.Primary()
	if err != nil {
		return nil, err
	}
	res, err := c.Predict(v)
	if err != nil {
		return nil, fmt.Errorf("crop prediction: %w", err)
	}

	crops := make([]models.CropRecommendation, len(res.TopK))
	g, gctx := errgroup.WithContext(ctx)
	for i, cp := range res.TopK {
		crops[i] = models.CropRecommendation{
			Crop:        cp.Crop,
			Yield:       int(cp.Probability * 100),
			Probability: cp.Probability,
		}
		g.Go(func() error {
			crops[i].Price = s.price(gctx, cp.Crop)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("crop", res.Label).
		Float64("probability", res.Probability()).
		Str("soil", req.SoilType).
		Str("season", req.Season).
		Msg("Crop recommendation complete")

	return &models.CropPredictionResponse{RecommendedCrops: crops, Weather: w}, nil
}

func (s *Service) price(ctx context.Context, crop string) float64 {
	prices, err := s.prices.Forecast(ctx, crop, s.horizon)
	if err != nil || len(prices) == 0 {
		s.log.Warn().Err(err).Str("crop", crop).Msg("No price forecast, quoting default price")
		return forecast.DefaultPrice
	}
	return prices[0]
}

// FeaturesFor builds the evaluation vector for req. Weather fields the caller
// supplied win over the location lookup; pH defaults to models.DefaultPH.
func (s *Service) FeaturesFor(ctx context.Context, req *models.EvaluationRequest) (models.FeatureVector, models.Weather, error) {
	if err := req.Validate(); err != nil {
		return models.FeatureVector{}, models.Weather{}, err
	}

	var w models.Weather
	if req.HasWeather() {
		w = models.Weather{Temperature: *req.Temperature, Humidity: *req.Humidity, Rainfall: *req.Rainfall}
	} else {
		w = s.weather.Current(ctx, req.Location)
		if req.Temperature != nil {
			w.Temperature = *req.Temperature
		}
		if req.Humidity != nil {
			w.Humidity = *req.Humidity
		}
		if req.Rainfall != nil {
			w.Rainfall = *req.Rainfall
		}
	}

	v := withWeather(models.FeatureVector{N: req.N, P: req.P, K: req.K, PH: phOrDefault(req.PH)}, w)
	if err := v.Validate(); err != nil {
		return models.FeatureVector{}, models.Weather{}, err
	}
	return v, w, nil
}

// withWeather fills the weather features of v, clamped into their ranges.
// Caller-supplied readings are already range-checked; live ones such as a
// frost temperature are clamped rather than rejected.
func withWeather(v models.FeatureVector, w models.Weather) models.FeatureVector {
	v.Temperature = v.Clamp(models.FeatureTemperature, w.Temperature)
	v.Humidity = v.Clamp(models.FeatureHumidity, w.Humidity)
	v.Rainfall = v.Clamp(models.FeatureRainfall, w.Rainfall)
	return v
}

func phOrDefault(ph *float64) float64 {
	if ph == nil {
		return models.DefaultPH
	}
	return *ph
}
