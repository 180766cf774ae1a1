package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPredictionResult(t *testing.T) {
	res, err := NewPredictionResult(map[string]float64{
		"rice":   6,
		"maize":  2,
		"jute":   2,
		"coffee": 0,
	}, DefaultTopK)
	require.NoError(t, err)

	assert.Equal(t, "rice", res.Label)
	assert.InDelta(t, 0.6, res.Probability(), 1e-9)
	require.Len(t, res.TopK, 3)
	assert.Equal(t, "rice", res.TopK[0].Crop)
	// equal probabilities rank alphabetically
	assert.Equal(t, "jute", res.TopK[1].Crop)
	assert.Equal(t, "maize", res.TopK[2].Crop)

	sum := 0.0
	for _, p := range res.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestNewPredictionResultAllClasses(t *testing.T) {
	res, err := NewPredictionResult(map[string]float64{"a": 1, "b": 3}, 0)
	require.NoError(t, err)
	assert.Len(t, res.TopK, 2)
	assert.Equal(t, "b", res.Label)
}

func TestNewPredictionResultRejectsBadScores(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
	}{
		{"empty", map[string]float64{}},
		{"negative", map[string]float64{"a": -1, "b": 2}},
		{"zero sum", map[string]float64{"a": 0, "b": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPredictionResult(tt.scores, 3)
			assert.Error(t, err)
		})
	}
}

func TestFaultWrapping(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", NewUpstreamFault("weather", base))

	assert.True(t, IsFault(err, FaultUpstream))
	assert.False(t, IsFault(err, FaultValidation))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "upstream: weather: boom")
	assert.False(t, IsFault(base, FaultUpstream))
}

func TestEvaluationRequestValidate(t *testing.T) {
	valid := EvaluationRequest{SoilType: "black", Season: "kharif", N: 90, P: 42, K: 43, Location: "Pune"}
	assert.NoError(t, valid.Validate())

	tooMuchN := valid
	tooMuchN.N = 141
	assert.True(t, IsFault(tooMuchN.Validate(), FaultValidation))

	noLocation := valid
	noLocation.Location = "X"
	assert.True(t, IsFault(noLocation.Validate(), FaultValidation))

	runs := 0
	zeroRuns := valid
	zeroRuns.NumRuns = &runs
	assert.True(t, IsFault(zeroRuns.Validate(), FaultValidation))

	assert.False(t, valid.HasWeather())
	temp, hum, rain := 20.0, 80.0, 100.0
	valid.Temperature, valid.Humidity, valid.Rainfall = &temp, &hum, &rain
	assert.True(t, valid.HasWeather())
}

func TestRegisterRequestValidate(t *testing.T) {
	ok := RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1"}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Email = "not-an-email"
	assert.Error(t, bad.Validate())

	short := ok
	short.Password = "123"
	assert.Error(t, short.Validate())
}
