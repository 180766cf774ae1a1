package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"

	"github.com/mimir-aip/cropwise/pkg/logger"
)

// DefaultCacheSize is the freecache arena in bytes
const DefaultCacheSize = 1 << 20

// CachedForecaster memoizes forecasts per crop and horizon for a fixed TTL
type CachedForecaster struct {
	next  Forecaster
	cache *freecache.Cache
	ttl   int
	log   zerolog.Logger
}

// NewCachedForecaster wraps next. TTLs under a second disable expiry.
func NewCachedForecaster(next Forecaster, sizeBytes int, ttl time.Duration) *CachedForecaster {
	if sizeBytes <= 0 {
		sizeBytes = DefaultCacheSize
	}
	return &CachedForecaster{
		next:  next,
		cache: freecache.NewCache(sizeBytes),
		ttl:   int(ttl / time.Second),
		log:   logger.Component("forecast"),
	}
}

func (c *CachedForecaster) Forecast(ctx context.Context, crop string, horizon int) ([]float64, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	key := []byte(fmt.Sprintf("%s:%d", strings.ToLower(crop), horizon))

	if raw, err := c.cache.Get(key); err == nil {
		var prices []float64
		if json.Unmarshal(raw, &prices) == nil {
			return prices, nil
		}
	}

	prices, err := c.next.Forecast(ctx, crop, horizon)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(prices)
	if err == nil {
		err = c.cache.Set(key, raw, c.ttl)
	}
	if err != nil {
		// entries over 1/1024 of the arena are refused with freecache.ErrLargeEntry
		c.log.Warn().Err(err).Str("crop", crop).Int("horizon", horizon).Msg("Forecast not cached")
	}
	return prices, nil
}

// Stats reports cache hits and misses
func (c *CachedForecaster) Stats() (hits, misses int64) {
	return c.cache.HitCount(), c.cache.MissCount()
}
