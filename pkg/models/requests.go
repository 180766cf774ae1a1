package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Evaluation defaults used by the boundary operations
const (
	DefaultNoisePercentage = 0.2
	DefaultNoiseRuns       = 50
	DefaultRSSRuns         = 30
	DefaultNoiseLevel      = 0.2
	DefaultRunsPerLevel    = 10
)

// EvaluationRequest is the boundary input for every robustness evaluation.
// Weather fields are optional; when absent they are looked up for Location.
type EvaluationRequest struct {
	SoilType    string   `json:"soilType" validate:"required"`
	Season      string   `json:"season" validate:"required"`
	N           float64  `json:"N" validate:"gte=0,lte=140"`
	P           float64  `json:"P" validate:"gte=0,lte=140"`
	K           float64  `json:"K" validate:"gte=0,lte=140"`
	Location    string   `json:"location" validate:"required,min=2"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=60"`
	Humidity    *float64 `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Rainfall    *float64 `json:"rainfall,omitempty" validate:"omitempty,gte=0"`
	PH          *float64 `json:"ph,omitempty" validate:"omitempty,gte=0,lte=14"`

	NoisePercentage *float64 `json:"noise_percentage,omitempty" validate:"omitempty,gte=0,lte=1"`
	NumRuns         *int     `json:"num_runs,omitempty" validate:"omitempty,gte=1,lte=1000"`
	RSSRuns         *int     `json:"rss_runs,omitempty" validate:"omitempty,gte=1,lte=1000"`
	NoiseLevel      *float64 `json:"noise_level,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Levels selects the noise sweep; nil sweeps the default levels
	Levels []float64 `json:"levels,omitempty" validate:"omitempty,min=1,dive,gte=0,lte=1"`
}

// Validate checks the request against its field constraints
func (r *EvaluationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewValidationFault("evaluation request", err)
	}
	return nil
}

// HasWeather reports whether the caller supplied all weather fields
func (r *EvaluationRequest) HasWeather() bool {
	return r.Temperature != nil && r.Humidity != nil && r.Rainfall != nil
}

// CropPredictionRequest is the boundary input for a crop recommendation
type CropPredictionRequest struct {
	SoilType string   `json:"soilType" validate:"required"`
	Season   string   `json:"season" validate:"required"`
	N        float64  `json:"N" validate:"gte=0,lte=140"`
	P        float64  `json:"P" validate:"gte=0,lte=140"`
	K        float64  `json:"K" validate:"gte=0,lte=140"`
	Location string   `json:"location" validate:"required,min=2"`
	PH       *float64 `json:"ph,omitempty" validate:"omitempty,gte=0,lte=14"`
}

// Validate checks the request against its field constraints
func (r *CropPredictionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewValidationFault("crop prediction request", err)
	}
	return nil
}

// CropRecommendation is one ranked crop with its expected price
type CropRecommendation struct {
	Crop        string  `json:"crop"`
	Yield       int     `json:"yield"`
	Probability float64 `json:"probability"`
	Price       float64 `json:"price"`
}

// CropPredictionResponse lists the recommended crops
type CropPredictionResponse struct {
	RecommendedCrops []CropRecommendation `json:"recommendedCrops"`
	Weather          Weather              `json:"weather"`
}

// Weather holds the weather-derived features for a location
type Weather struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Rainfall    float64 `json:"rainfall"`
	Fallback    bool    `json:"fallback,omitempty"` // defaults were used
}

// RegisterRequest creates a user account
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// Validate checks the request against its field constraints
func (r *RegisterRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewValidationFault("register request", err)
	}
	return nil
}

// LoginRequest authenticates a user
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the request against its field constraints
func (r *LoginRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewValidationFault("login request", err)
	}
	return nil
}

// User is a registered account
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AuthResponse is returned after a successful register or login
type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// HistoryKind identifies what produced a history entry
type HistoryKind string

const (
	HistoryPrediction HistoryKind = "prediction"
	HistoryNoise      HistoryKind = "noise"
	HistoryMissing    HistoryKind = "missing"
	HistoryAgreement  HistoryKind = "agreement"
	HistoryFull       HistoryKind = "full"
)

// HistoryEntry records one successful request for a user
type HistoryEntry struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Kind      HistoryKind     `json:"kind" db:"kind"`
	Input     json.RawMessage `json:"input_payload" db:"input_payload"`
	Result    json.RawMessage `json:"result_payload" db:"result_payload"`
	CreatedAt time.Time       `json:"timestamp" db:"created_at"`
}
