// Package weather looks up current conditions for a location from the
// OpenWeather API, falling back to typical growing-season values.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/metrics"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultTimeout = 10 * time.Second

	// DefaultRate is the request budget per second against the API
	DefaultRate  = 5
	DefaultBurst = 5
)

// Default conditions served when the API is unavailable
const (
	DefaultTemperature = 25.0
	DefaultHumidity    = 70.0
	DefaultRainfall    = 100.0
)

// ErrNoAPIKey is returned by Lookup when the client has no key configured
var ErrNoAPIKey = errors.New("weather api key not configured")

// Provider resolves the conditions used to fill in a recommendation
type Provider interface {
	Current(ctx context.Context, location string) models.Weather
}

// Options configures a Client
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Rate    float64
	Burst   int
}

// Client talks to the OpenWeather current-weather endpoint
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

type apiResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Rain map[string]float64 `json:"rain"`
}

// NewClient applies defaults for any zero option
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		log:     logger.Component("weather"),
	}
}

// Defaults returns the fallback conditions
func Defaults() models.Weather {
	return models.Weather{
		Temperature: DefaultTemperature,
		Humidity:    DefaultHumidity,
		Rainfall:    DefaultRainfall,
		Fallback:    true,
	}
}

// Current never fails: any lookup error is logged and the defaults returned
func (c *Client) Current(ctx context.Context, location string) models.Weather {
	w, err := c.Lookup(ctx, location)
	if err != nil {
		if errors.Is(err, ErrNoAPIKey) {
			c.log.Warn().Msg("Weather API key not configured, using default values")
		} else {
			c.log.Error().Err(err).Str("location", location).Msg("Weather lookup failed, using default values")
		}
		metrics.FallbacksTotal.WithLabelValues("weather").Inc()
		return Defaults()
	}
	c.log.Debug().
		Str("location", location).
		Float64("temperature", w.Temperature).
		Float64("humidity", w.Humidity).
		Float64("rainfall", w.Rainfall).
		Msg("Weather fetched")
	return w
}

// Lookup fetches current conditions. Rainfall is the last hour's, else the
// last three hours', else zero.
func (c *Client) Lookup(ctx context.Context, location string) (models.Weather, error) {
	if c.apiKey == "" {
		return models.Weather{}, ErrNoAPIKey
	}
	op := "weather " + location

	if err := c.limiter.Wait(ctx); err != nil {
		return models.Weather{}, models.NewUpstreamFault(op, err)
	}

	q := url.Values{}
	q.Set("q", strings.TrimSpace(location))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return models.Weather{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Weather{}, models.NewUpstreamFault(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Weather{}, models.NewUpstreamFault(op, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Weather{}, models.NewUpstreamFault(op, fmt.Errorf("error decoding response: %w", err))
	}

	rain := 0.0
	if v, ok := body.Rain["1h"]; ok {
		rain = v
	} else if v, ok := body.Rain["3h"]; ok {
		rain = v
	}

	return models.Weather{
		Temperature: round2(body.Main.Temp),
		Humidity:    round2(body.Main.Humidity),
		Rainfall:    round2(rain),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
