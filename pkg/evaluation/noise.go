package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// DefaultNoiseFields are perturbed when the caller names none
var DefaultNoiseFields = []models.Feature{models.FeatureN, models.FeatureP, models.FeatureK}

// DefaultNoiseLevels are swept by ComputeRSSMultiLevel when none are given
var DefaultNoiseLevels = []float64{0.1, 0.2, 0.3, 0.4}

// Injector draws uniform multiplicative noise. One instance may be shared
// across requests; the random source is guarded by a mutex.
type Injector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewInjector creates an injector over source. A nil source is seeded from the clock.
func NewInjector(source rand.Source) *Injector {
	if source == nil {
		source = rand.NewSource(rand.Int63())
	}
	return &Injector{rng: rand.New(source)}
}

// Perturb returns a copy of v with every field in fields shifted by a uniform
// delta in [-value*percentage, value*percentage] and clamped into range.
func (inj *Injector) Perturb(v models.FeatureVector, percentage float64, fields []models.Feature) (models.FeatureVector, error) {
	if err := validatePercentage(percentage); err != nil {
		return v, err
	}
	if fields == nil {
		fields = DefaultNoiseFields
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	out := v
	for _, f := range fields {
		value, err := out.Get(f)
		if err != nil {
			return v, err
		}
		span := value * percentage
		delta := (inj.rng.Float64()*2 - 1) * span
		if out, err = out.With(f, value+delta); err != nil {
			return v, err
		}
	}
	return out, nil
}

// Variants generates n independently perturbed copies of v
func (inj *Injector) Variants(v models.FeatureVector, percentage float64, n int, fields []models.Feature) ([]models.FeatureVector, error) {
	if n <= 0 {
		return nil, models.NewValidationFault("noise variants", fmt.Errorf("number of runs must be positive, got %d", n))
	}
	out := make([]models.FeatureVector, n)
	for i := range out {
		p, err := inj.Perturb(v, percentage, fields)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func validatePercentage(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return models.NewValidationFault("noise", fmt.Errorf("noise percentage must be a non-negative number, got %v", p))
	}
	return nil
}
