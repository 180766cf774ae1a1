package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mimir-aip/cropwise/pkg/forecast"
	"github.com/mimir-aip/cropwise/pkg/mlmodel"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedWeather models.Weather

func (w fixedWeather) Current(ctx context.Context, location string) models.Weather {
	return models.Weather(w)
}

type priceTable map[string][]float64

func (p priceTable) Forecast(ctx context.Context, crop string, horizon int) ([]float64, error) {
	prices, ok := p[crop]
	if !ok {
		return nil, errors.New("unknown crop")
	}
	return prices, nil
}

func recordingRegistry(t *testing.T, seen *models.FeatureVector) *mlmodel.Registry {
	t.Helper()
	var reg mlmodel.Registry
	require.NoError(t, reg.Register(mlmodel.NewClassifierFunc("rf", func(v models.FeatureVector) (*models.PredictionResult, error) {
		*seen = v
		return models.NewPredictionResult(map[string]float64{"rice": 60, "maize": 25, "jute": 10, "tea": 5}, models.DefaultTopK)
	}), true))
	return &reg
}

func TestApplySoilDefaults(t *testing.T) {
	tests := []struct {
		soil    string
		n, p, k float64
		want    [3]float64
	}{
		{"black", 0, 0, 0, [3]float64{70, 40, 50}},
		{"Red", 0, 12, 0, [3]float64{40, 12, 35}},
		{" alluvial ", 90, 0, 20, [3]float64{90, 35, 20}},
		{"laterite", 0, 0, 0, [3]float64{50, 35, 40}},
		{"black", 1, 2, 3, [3]float64{1, 2, 3}},
	}
	for _, tt := range tests {
		n, p, k := ApplySoilDefaults(tt.soil, tt.n, tt.p, tt.k)
		assert.Equal(t, tt.want, [3]float64{n, p, k}, tt.soil)
	}
}

func TestRecommend(t *testing.T) {
	var seen models.FeatureVector
	w := fixedWeather{Temperature: 28, Humidity: 80, Rainfall: 210}
	svc := NewService(recordingRegistry(t, &seen), w, priceTable{"rice": {2150, 2170}, "maize": {1600}})

	resp, err := svc.Recommend(context.Background(), &models.CropPredictionRequest{
		SoilType: "black",
		Season:   "kharif",
		N:        0,
		P:        42,
		K:        0,
		Location: "Nagpur",
	})
	require.NoError(t, err)

	assert.Equal(t, models.FeatureVector{N: 70, P: 42, K: 50, Temperature: 28, Humidity: 80, PH: models.DefaultPH, Rainfall: 210}, seen)
	assert.Equal(t, models.Weather(w), resp.Weather)

	require.Len(t, resp.RecommendedCrops, 3)
	assert.Equal(t, models.CropRecommendation{Crop: "rice", Yield: 60, Probability: 0.6, Price: 2150}, resp.RecommendedCrops[0])
	assert.Equal(t, "maize", resp.RecommendedCrops[1].Crop)
	assert.Equal(t, 25, resp.RecommendedCrops[1].Yield)
	assert.Equal(t, 1600.0, resp.RecommendedCrops[1].Price)
	assert.Equal(t, "jute", resp.RecommendedCrops[2].Crop)
	assert.Equal(t, forecast.DefaultPrice, resp.RecommendedCrops[2].Price)
}

func TestRecommendBaselinePrices(t *testing.T) {
	var seen models.FeatureVector
	svc := NewService(recordingRegistry(t, &seen), fixedWeather{Temperature: 25, Humidity: 70, Rainfall: 100}, nil)
	resp, err := svc.Recommend(context.Background(), &models.CropPredictionRequest{
		SoilType: "red", Season: "rabi", N: 10, P: 10, K: 10, Location: "Pune",
	})
	require.NoError(t, err)
	assert.Equal(t, 2100.0, resp.RecommendedCrops[0].Price)
	assert.Equal(t, 1500.0, resp.RecommendedCrops[1].Price)
	assert.Equal(t, 2200.0, resp.RecommendedCrops[2].Price)
}

func TestRecommendErrors(t *testing.T) {
	var seen models.FeatureVector
	svc := NewService(recordingRegistry(t, &seen), fixedWeather{}, nil)

	_, err := svc.Recommend(context.Background(), &models.CropPredictionRequest{SoilType: "black", Season: "kharif", N: 200, Location: "Pune"})
	assert.True(t, models.IsFault(err, models.FaultValidation))

	empty := NewService(&mlmodel.Registry{}, fixedWeather{}, nil)
	_, err = empty.Recommend(context.Background(), &models.CropPredictionRequest{SoilType: "black", Season: "kharif", Location: "Pune"})
	assert.True(t, models.IsFault(err, models.FaultModelUnavailable))
}

func TestFeaturesFor(t *testing.T) {
	svc := NewService(&mlmodel.Registry{}, fixedWeather{Temperature: 25, Humidity: 70, Rainfall: 100, Fallback: true}, nil)
	temp, hum, rain, ph := 31.0, 55.0, 12.0, 7.2

	base := models.EvaluationRequest{SoilType: "red", Season: "kharif", N: 90, P: 42, K: 43, Location: "Pune"}

	v, w, err := svc.FeaturesFor(context.Background(), &base)
	require.NoError(t, err)
	assert.True(t, w.Fallback)
	assert.Equal(t, models.FeatureVector{N: 90, P: 42, K: 43, Temperature: 25, Humidity: 70, PH: models.DefaultPH, Rainfall: 100}, v)

	full := base
	full.Temperature, full.Humidity, full.Rainfall, full.PH = &temp, &hum, &rain, &ph
	v, w, err = svc.FeaturesFor(context.Background(), &full)
	require.NoError(t, err)
	assert.False(t, w.Fallback)
	assert.Equal(t, models.FeatureVector{N: 90, P: 42, K: 43, Temperature: 31, Humidity: 55, PH: 7.2, Rainfall: 12}, v)

	partial := base
	partial.Humidity = &hum
	v, _, err = svc.FeaturesFor(context.Background(), &partial)
	require.NoError(t, err)
	assert.Equal(t, 55.0, v.Humidity)
	assert.Equal(t, 25.0, v.Temperature)

	bad := base
	bad.Location = ""
	_, _, err = svc.FeaturesFor(context.Background(), &bad)
	assert.True(t, models.IsFault(err, models.FaultValidation))
}

type blockingPrices struct{}

func (blockingPrices) Forecast(ctx context.Context, crop string, horizon int) ([]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRecommendStopsWhenContextEnds(t *testing.T) {
	req := &models.CropPredictionRequest{SoilType: "black", Season: "kharif", N: 90, P: 42, K: 43, Location: "Nagpur"}
	w := fixedWeather{Temperature: 28, Humidity: 80, Rainfall: 210}

	t.Run("cancelled", func(t *testing.T) {
		var seen models.FeatureVector
		svc := NewService(recordingRegistry(t, &seen), w, priceTable{"rice": {2150}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Recommend(ctx, req)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("price lookups outlive the deadline", func(t *testing.T) {
		var seen models.FeatureVector
		svc := NewService(recordingRegistry(t, &seen), w, blockingPrices{})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := svc.Recommend(ctx, req)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestOutOfRangeWeatherIsClamped(t *testing.T) {
	tests := []struct {
		name    string
		weather models.Weather
		want    models.FeatureVector
	}{
		{
			name:    "frost",
			weather: models.Weather{Temperature: -3.2, Humidity: 64, Rainfall: 0},
			want:    models.FeatureVector{Temperature: 0, Humidity: 64, Rainfall: 0},
		},
		{
			name:    "heatwave and saturated air",
			weather: models.Weather{Temperature: 61.5, Humidity: 103, Rainfall: 12},
			want:    models.FeatureVector{Temperature: 60, Humidity: 100, Rainfall: 12},
		},
		{
			name:    "negative rainfall",
			weather: models.Weather{Temperature: 18, Humidity: 50, Rainfall: -1},
			want:    models.FeatureVector{Temperature: 18, Humidity: 50, Rainfall: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen models.FeatureVector
			svc := NewService(recordingRegistry(t, &seen), fixedWeather(tt.weather), priceTable{})

			resp, err := svc.Recommend(context.Background(), &models.CropPredictionRequest{
				SoilType: "red", Season: "rabi", N: 40, P: 30, K: 35, Location: "Shimla",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want.Temperature, seen.Temperature)
			assert.Equal(t, tt.want.Humidity, seen.Humidity)
			assert.Equal(t, tt.want.Rainfall, seen.Rainfall)
			assert.Equal(t, tt.weather, resp.Weather, "reported weather is the raw reading")

			v, _, err := svc.FeaturesFor(context.Background(), &models.EvaluationRequest{
				SoilType: "red", Season: "rabi", N: 40, P: 30, K: 35, Location: "Shimla",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want.Temperature, v.Temperature)
			assert.Equal(t, tt.want.Humidity, v.Humidity)
			assert.Equal(t, tt.want.Rainfall, v.Rainfall)
		})
	}
}
