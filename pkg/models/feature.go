package models

import (
	"fmt"
	"math"
)

// Feature names one numeric input of the crop classifier
type Feature string

const (
	FeatureN           Feature = "N"
	FeatureP           Feature = "P"
	FeatureK           Feature = "K"
	FeatureTemperature Feature = "temperature"
	FeatureHumidity    Feature = "humidity"
	FeaturePH          Feature = "ph"
	FeatureRainfall    Feature = "rainfall"
)

// AllFeatures lists every feature in classifier column order
var AllFeatures = []Feature{
	FeatureN,
	FeatureP,
	FeatureK,
	FeatureTemperature,
	FeatureHumidity,
	FeaturePH,
	FeatureRainfall,
}

// DefaultPH is used whenever soil pH is not independently known
const DefaultPH = 6.5

// FeatureRange is the valid physical range of a feature
type FeatureRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Unbounded bool    `json:"unbounded"` // no upper bound
}

// Contains reports whether v lies inside the range
func (r FeatureRange) Contains(v float64) bool {
	if v < r.Min {
		return false
	}
	return r.Unbounded || v <= r.Max
}

// Clamp forces v into the range
func (r FeatureRange) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if !r.Unbounded && v > r.Max {
		return r.Max
	}
	return v
}

// FeatureRanges holds the documented physical bounds for every feature
var FeatureRanges = map[Feature]FeatureRange{
	FeatureN:           {Min: 0, Max: 140},
	FeatureP:           {Min: 0, Max: 140},
	FeatureK:           {Min: 0, Max: 140},
	FeatureTemperature: {Min: 0, Max: 60},
	FeatureHumidity:    {Min: 0, Max: 100},
	FeaturePH:          {Min: 0, Max: 14},
	FeatureRainfall:    {Min: 0, Unbounded: true},
}

// FeatureDefaults are the domain defaults substituted for an unavailable feature
var FeatureDefaults = map[Feature]float64{
	FeatureN:           50,
	FeatureP:           35,
	FeatureK:           40,
	FeatureTemperature: 25.0,
	FeatureHumidity:    70.0,
	FeaturePH:          DefaultPH,
	FeatureRainfall:    100.0,
}

// ParseFeature converts a name into a Feature
func ParseFeature(name string) (Feature, error) {
	f := Feature(name)
	if _, ok := FeatureRanges[f]; !ok {
		return "", NewValidationFault("parse feature", fmt.Errorf("unknown feature %q", name))
	}
	return f, nil
}

// FeatureVector is the seven-field soil/weather description fed to the classifier.
// It is a value type: every method that changes a field returns a copy.
type FeatureVector struct {
	N           float64 `json:"N"`
	P           float64 `json:"P"`
	K           float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// Get returns the value of a feature
func (v FeatureVector) Get(f Feature) (float64, error) {
	switch f {
	case FeatureN:
		return v.N, nil
	case FeatureP:
		return v.P, nil
	case FeatureK:
		return v.K, nil
	case FeatureTemperature:
		return v.Temperature, nil
	case FeatureHumidity:
		return v.Humidity, nil
	case FeaturePH:
		return v.PH, nil
	case FeatureRainfall:
		return v.Rainfall, nil
	}
	return 0, NewValidationFault("get feature", fmt.Errorf("unknown feature %q", f))
}

// With returns a copy of v with feature f set to value, clamped into its range
func (v FeatureVector) With(f Feature, value float64) (FeatureVector, error) {
	r, ok := FeatureRanges[f]
	if !ok {
		return v, NewValidationFault("set feature", fmt.Errorf("unknown feature %q", f))
	}
	value = r.Clamp(value)

	switch f {
	case FeatureN:
		v.N = value
	case FeatureP:
		v.P = value
	case FeatureK:
		v.K = value
	case FeatureTemperature:
		v.Temperature = value
	case FeatureHumidity:
		v.Humidity = value
	case FeaturePH:
		v.PH = value
	case FeatureRainfall:
		v.Rainfall = value
	}
	return v, nil
}

// Clamp forces value into the range of feature f; unknown features pass through
func (v FeatureVector) Clamp(f Feature, value float64) float64 {
	r, ok := FeatureRanges[f]
	if !ok {
		return value
	}
	return r.Clamp(value)
}

// Values returns the raw values in AllFeatures order
func (v FeatureVector) Values() []float64 {
	return []float64{v.N, v.P, v.K, v.Temperature, v.Humidity, v.PH, v.Rainfall}
}

// Map returns the vector keyed by feature name
func (v FeatureVector) Map() map[Feature]float64 {
	values := v.Values()
	out := make(map[Feature]float64, len(AllFeatures))
	for i, f := range AllFeatures {
		out[f] = values[i]
	}
	return out
}

// Validate rejects vectors with a value outside its physical domain
func (v FeatureVector) Validate() error {
	values := v.Values()
	for i, f := range AllFeatures {
		value := values[i]
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return NewValidationFault("validate features", fmt.Errorf("%s is not a finite number", f))
		}
		r := FeatureRanges[f]
		if !r.Contains(value) {
			if r.Unbounded {
				return NewValidationFault("validate features", fmt.Errorf("%s=%g must be >= %g", f, value, r.Min))
			}
			return NewValidationFault("validate features", fmt.Errorf("%s=%g outside [%g, %g]", f, value, r.Min, r.Max))
		}
	}
	return nil
}
