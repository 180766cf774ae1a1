package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is accepted in development only
const DefaultJWTSecret = "change_me"

// Config holds the application configuration
type Config struct {
	Environment string `mapstructure:"app_env"`
	LogLevel    string `mapstructure:"log_level"`
	Port        string `mapstructure:"port"`

	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`

	WeatherAPIKey  string  `mapstructure:"weather_api_key"`
	WeatherBaseURL string  `mapstructure:"weather_base_url"`
	WeatherRate    float64 `mapstructure:"weather_rate"`

	ModelManifest string        `mapstructure:"model_manifest"`
	PriceData     []string      `mapstructure:"price_data"`
	PriceCacheTTL time.Duration `mapstructure:"price_cache_ttl"`

	DatabaseDriver           string `mapstructure:"database_driver"`
	DatabaseURL              string `mapstructure:"database_url"`
	HistoryQueueSize         int    `mapstructure:"history_queue_size"`
	HistoryRetentionDays     int    `mapstructure:"history_retention_days"`
	HistoryRetentionSchedule string `mapstructure:"history_retention_schedule"`

	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

var defaults = map[string]any{
	"app_env":                    "development",
	"log_level":                  "info",
	"port":                       "8000",
	"jwt_secret":                 DefaultJWTSecret,
	"token_expiry":               24 * time.Hour,
	"weather_api_key":            "",
	"weather_base_url":           "https://api.openweathermap.org/data/2.5/weather",
	"weather_rate":               5.0,
	"model_manifest":             "models.yaml",
	"price_data":                 []string{},
	"price_cache_ttl":            time.Hour,
	"database_driver":            "sqlite",
	"database_url":               "cropwise.db",
	"history_queue_size":         256,
	"history_retention_days":     90,
	"history_retention_schedule": "@daily",
	"cors_origins":               []string{"*"},
	"request_timeout":            60 * time.Second,
}

// LoadConfig reads .env, then the optional config file, then environment
// variables, later sources winning. An empty path skips the config file.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// bind explicitly so Unmarshal sees env-only values
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.PriceData = splitList(config.PriceData)
	config.CORSOrigins = splitList(config.CORSOrigins)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects unusable settings
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.HistoryRetentionDays < 0 {
		return fmt.Errorf("HISTORY_RETENTION_DAYS must not be negative")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RetentionAge is the history retention window, zero when pruning is off
func (c *Config) RetentionAge() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// splitList flattens comma-separated entries, since list values set from the
// environment arrive as one string
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
