package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mimir-aip/cropwise/pkg/config"
	"github.com/mimir-aip/cropwise/pkg/evaluation"
	"github.com/mimir-aip/cropwise/pkg/forecast"
	"github.com/mimir-aip/cropwise/pkg/mlmodel"
	"github.com/mimir-aip/cropwise/pkg/prediction"
	"github.com/mimir-aip/cropwise/pkg/weather"
)

// services are the components shared by the serve and evaluate commands
type services struct {
	registry  *mlmodel.Registry
	weather   *weather.Client
	runner    *evaluation.Runner
	predictor *prediction.Service
}

func loadRegistry(cfg *config.Config) (*mlmodel.Registry, error) {
	manifest, err := mlmodel.LoadManifest(cfg.ModelManifest)
	if err != nil {
		return nil, err
	}
	return mlmodel.NewRegistry(manifest)
}

// loadForecaster chains the history-driven forecaster, the baseline fallback
// and the cache. Without price data every quote comes from the baseline.
func loadForecaster(cfg *config.Config) forecast.Forecaster {
	var primary forecast.Forecaster
	if len(cfg.PriceData) > 0 {
		prices, err := forecast.LoadCSVHistory(cfg.PriceData...)
		if err != nil {
			log.Warn().Err(err).Strs("files", cfg.PriceData).Msg("Price history unavailable, quoting baseline prices")
		} else {
			log.Info().Strs("crops", prices.Crops()).Msg("Price history loaded")
			primary = forecast.NewRecursiveForecaster(prices)
		}
	}
	return forecast.NewCachedForecaster(forecast.NewFallbackForecaster(primary), forecast.DefaultCacheSize, cfg.PriceCacheTTL)
}

func buildServices(cfg *config.Config, injector *evaluation.Injector) (*services, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	wc := weather.NewClient(weather.Options{
		APIKey:  cfg.WeatherAPIKey,
		BaseURL: cfg.WeatherBaseURL,
		Rate:    cfg.WeatherRate,
		Timeout: 10 * time.Second,
	})

	return &services{
		registry:  registry,
		weather:   wc,
		runner:    evaluation.NewRunner(evaluation.NewEvaluator(registry, injector)),
		predictor: prediction.NewService(registry, wc, loadForecaster(cfg)),
	}, nil
}
