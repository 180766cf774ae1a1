package evaluation

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/mimir-aip/cropwise/pkg/mlmodel"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioInput() models.FeatureVector {
	return models.FeatureVector{N: 90, P: 42, K: 43, Temperature: 20.87, Humidity: 82.0, PH: 6.5, Rainfall: 202.93}
}

// fixed always predicts label with probability p
func fixed(name, label string, p float64) *mlmodel.ClassifierFunc {
	return mlmodel.NewClassifierFunc(name, func(models.FeatureVector) (*models.PredictionResult, error) {
		return models.NewPredictionResult(map[string]float64{label: p, "other": 1 - p}, models.DefaultTopK)
	})
}

// recorder remembers every vector it was asked to classify
type recorder struct {
	mu     sync.Mutex
	inputs []models.FeatureVector
	fn     func(models.FeatureVector) string
}

func (r *recorder) classifier() *mlmodel.ClassifierFunc {
	return mlmodel.NewClassifierFunc("recorder", func(v models.FeatureVector) (*models.PredictionResult, error) {
		r.mu.Lock()
		r.inputs = append(r.inputs, v)
		r.mu.Unlock()
		return models.NewPredictionResult(map[string]float64{r.fn(v): 0.8, "other": 0.2}, models.DefaultTopK)
	})
}

func newEvaluator(classifiers ...mlmodel.Classifier) *Evaluator {
	reg := &mlmodel.Registry{}
	for _, c := range classifiers {
		if err := reg.Register(c, false); err != nil {
			panic(err)
		}
	}
	return NewEvaluator(reg, NewInjector(rand.NewSource(1)))
}

func TestPerturbKeepsNPKInRange(t *testing.T) {
	inj := NewInjector(rand.NewSource(7))
	extremes := []models.FeatureVector{
		{N: 0, P: 0, K: 0, Temperature: 20, Humidity: 50, PH: 6.5, Rainfall: 10},
		{N: 140, P: 140, K: 140, Temperature: 20, Humidity: 50, PH: 6.5, Rainfall: 10},
		{N: 120, P: 5, K: 130, Temperature: 20, Humidity: 50, PH: 6.5, Rainfall: 10},
	}
	for _, v := range extremes {
		for _, p := range []float64{0.2, 1.0, 3.0} {
			for i := 0; i < 200; i++ {
				out, err := inj.Perturb(v, p, nil)
				require.NoError(t, err)
				for _, x := range []float64{out.N, out.P, out.K} {
					assert.GreaterOrEqual(t, x, 0.0)
					assert.LessOrEqual(t, x, 140.0)
				}
			}
		}
	}
}

func TestPerturbOnlyTouchesRequestedFields(t *testing.T) {
	inj := NewInjector(rand.NewSource(3))
	v := scenarioInput()

	out, err := inj.Perturb(v, 0.2, nil)
	require.NoError(t, err)
	assert.Equal(t, scenarioInput(), v, "input must not be mutated")
	assert.Equal(t, v.Temperature, out.Temperature)
	assert.Equal(t, v.Humidity, out.Humidity)
	assert.Equal(t, v.PH, out.PH)
	assert.Equal(t, v.Rainfall, out.Rainfall)

	out, err = inj.Perturb(v, 0.5, []models.Feature{models.FeatureRainfall})
	require.NoError(t, err)
	assert.Equal(t, v.N, out.N)
	assert.GreaterOrEqual(t, out.Rainfall, v.Rainfall*0.5)
	assert.LessOrEqual(t, out.Rainfall, v.Rainfall*1.5)

	same, err := inj.Perturb(v, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, v, same)
}

func TestPerturbRejectsBadParameters(t *testing.T) {
	inj := NewInjector(rand.NewSource(1))

	_, err := inj.Perturb(scenarioInput(), -0.1, nil)
	assert.True(t, models.IsFault(err, models.FaultValidation))

	_, err = inj.Perturb(scenarioInput(), math.NaN(), nil)
	assert.True(t, models.IsFault(err, models.FaultValidation))

	_, err = inj.Perturb(scenarioInput(), 0.2, []models.Feature{"zinc"})
	assert.True(t, models.IsFault(err, models.FaultValidation))

	_, err = inj.Variants(scenarioInput(), 0.2, 0, nil)
	assert.True(t, models.IsFault(err, models.FaultValidation))

	variants, err := inj.Variants(scenarioInput(), 0.2, 5, nil)
	require.NoError(t, err)
	assert.Len(t, variants, 5)
}

func TestComputeRSSEndToEndScenario(t *testing.T) {
	rec := &recorder{fn: func(v models.FeatureVector) string {
		if v.N > 85 {
			return "rice"
		}
		return "jute"
	}}
	e := newEvaluator(rec.classifier())
	input := scenarioInput()

	report, err := e.ComputeRSS(context.Background(), input, 0.2, 50)
	require.NoError(t, err)

	require.Len(t, rec.inputs, 51, "one baseline call plus one per run")
	assert.Equal(t, input, rec.inputs[0])

	for _, v := range rec.inputs[1:] {
		assert.Equal(t, input.Temperature, v.Temperature)
		assert.Equal(t, input.Humidity, v.Humidity)
		assert.Equal(t, input.PH, v.PH)
		assert.Equal(t, input.Rainfall, v.Rainfall)

		assert.InDelta(t, input.N, v.N, input.N*0.2)
		assert.InDelta(t, input.P, v.P, input.P*0.2)
		assert.InDelta(t, input.K, v.K, input.K*0.2)
	}

	assert.Equal(t, "rice", report.BaselineLabel)
	assert.Equal(t, 50, report.TotalRuns)
	assert.LessOrEqual(t, report.Matches, report.TotalRuns)
	assert.Equal(t, report.TotalRuns-report.Matches, report.PredictionChanges)
	assert.GreaterOrEqual(t, report.RSS, 0.0)
	assert.LessOrEqual(t, report.RSS, 1.0)
	assert.InDelta(t, float64(report.Matches)/50, report.RSS, 1e-12)

	total := 0
	for _, n := range report.Distribution {
		total += n
	}
	assert.Equal(t, 50, total)
	assert.Equal(t, report.Matches, report.Distribution["rice"])
}

func TestComputeRSSRejectsZeroRunsBeforeModelWork(t *testing.T) {
	rec := &recorder{fn: func(models.FeatureVector) string { return "rice" }}
	e := newEvaluator(rec.classifier())

	_, err := e.ComputeRSS(context.Background(), scenarioInput(), 0.2, 0)
	assert.True(t, models.IsFault(err, models.FaultValidation))
	assert.Empty(t, rec.inputs)

	bad := scenarioInput()
	bad.Humidity = 140
	_, err = e.ComputeRSS(context.Background(), bad, 0.2, 10)
	assert.True(t, models.IsFault(err, models.FaultValidation))
	assert.Empty(t, rec.inputs)
}

func TestComputeRSSStableModel(t *testing.T) {
	e := newEvaluator(fixed("rf", "rice", 0.9))
	report, err := e.ComputeRSS(context.Background(), scenarioInput(), 0.4, 20)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.RSS)
	assert.Equal(t, 0, report.PredictionChanges)
	assert.Equal(t, map[string]int{"rice": 20}, report.Distribution)
}

func TestComputeRSSWithoutModels(t *testing.T) {
	e := newEvaluator()
	_, err := e.ComputeRSS(context.Background(), scenarioInput(), 0.2, 10)
	assert.True(t, models.IsFault(err, models.FaultModelUnavailable))
}

func TestComputeRSSMultiLevel(t *testing.T) {
	e := newEvaluator(fixed("rf", "rice", 0.9))
	reports, err := e.ComputeRSSMultiLevel(context.Background(), scenarioInput(), nil, 5)
	require.NoError(t, err)
	require.Len(t, reports, len(DefaultNoiseLevels))
	for i, r := range reports {
		assert.Equal(t, DefaultNoiseLevels[i], r.NoisePercentage)
	}

	_, err = e.ComputeRSSMultiLevel(context.Background(), scenarioInput(), []float64{}, 5)
	assert.True(t, models.IsFault(err, models.FaultValidation))

	_, err = e.ComputeRSSMultiLevel(context.Background(), scenarioInput(), []float64{0.1, -1}, 5)
	assert.True(t, models.IsFault(err, models.FaultValidation))
}

func TestEvaluateMissingHumidityScenario(t *testing.T) {
	tests := []struct {
		name        string
		label       func(models.FeatureVector) string
		wantChanged bool
	}{
		{
			name:        "label unaffected by humidity",
			label:       func(models.FeatureVector) string { return "rice" },
			wantChanged: false,
		},
		{
			name: "label flips when humidity drops",
			label: func(v models.FeatureVector) string {
				if v.Humidity < 75 {
					return "maize"
				}
				return "rice"
			},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{fn: tt.label}
			e := newEvaluator(rec.classifier())
			input := scenarioInput()

			report, err := e.EvaluateMissing(context.Background(), input, []models.Feature{models.FeatureHumidity})
			require.NoError(t, err)
			require.Len(t, rec.inputs, 2)

			want := input
			want.Humidity = 70.0
			assert.Equal(t, want, rec.inputs[1], "only humidity is replaced")

			outcome := report.PerFeature[models.FeatureHumidity]
			assert.Equal(t, tt.wantChanged, outcome.Changed)
			assert.Equal(t, outcome.Label != report.Baseline.Label, outcome.Changed)
			assert.Equal(t, 70.0, outcome.SubstitutedValue)
			assert.Equal(t, 1, report.TestedCount)
			if tt.wantChanged {
				assert.Equal(t, 0.0, report.StabilityScore)
			} else {
				assert.Equal(t, 1.0, report.StabilityScore)
			}
		})
	}
}

func TestEvaluateMissingDefaultSweep(t *testing.T) {
	e := newEvaluator(mlmodel.NewClassifierFunc("rf", func(v models.FeatureVector) (*models.PredictionResult, error) {
		if v.Rainfall < 150 {
			return models.NewPredictionResult(map[string]float64{"maize": 0.6, "rice": 0.4}, 3)
		}
		return models.NewPredictionResult(map[string]float64{"rice": 0.9, "maize": 0.1}, 3)
	}))

	report, err := e.EvaluateMissing(context.Background(), scenarioInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, len(DefaultMissingFeatures), report.TestedCount)
	assert.NotContains(t, report.PerFeature, models.FeaturePH)
	assert.Equal(t, 1, report.ChangedCount)
	assert.InDelta(t, 1-1.0/6, report.StabilityScore, 1e-12)

	rain := report.PerFeature[models.FeatureRainfall]
	assert.True(t, rain.Changed)
	assert.InDelta(t, 0.3, rain.ProbabilityDrop, 1e-9)

	n := report.PerFeature[models.FeatureN]
	assert.False(t, n.Changed)
	assert.InDelta(t, 0.0, n.ProbabilityDrop, 1e-12)
}

func TestEvaluateMissingRejectsEmptyList(t *testing.T) {
	rec := &recorder{fn: func(models.FeatureVector) string { return "rice" }}
	e := newEvaluator(rec.classifier())

	_, err := e.EvaluateMissing(context.Background(), scenarioInput(), []models.Feature{})
	assert.True(t, models.IsFault(err, models.FaultValidation))

	_, err = e.EvaluateMissing(context.Background(), scenarioInput(), []models.Feature{"zinc"})
	assert.True(t, models.IsFault(err, models.FaultValidation))
	assert.Empty(t, rec.inputs)

	report, err := e.EvaluateMissing(context.Background(), scenarioInput(), []models.Feature{models.FeatureN, models.FeatureN})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TestedCount)
}

func TestComputeAgreement(t *testing.T) {
	tests := []struct {
		name         string
		classifiers  []mlmodel.Classifier
		wantMajority string
		wantCount    int
		wantRatio    float64
		wantAllAgree bool
		wantDistinct int
	}{
		{
			name:         "all agree",
			classifiers:  []mlmodel.Classifier{fixed("rf", "rice", 0.9), fixed("knn", "rice", 1)},
			wantMajority: "rice", wantCount: 2, wantRatio: 1, wantAllAgree: true, wantDistinct: 1,
		},
		{
			name: "majority of three",
			classifiers: []mlmodel.Classifier{
				fixed("rf", "rice", 0.9), fixed("knn", "maize", 1), fixed("xgb", "rice", 0.7),
			},
			wantMajority: "rice", wantCount: 2, wantRatio: 2.0 / 3, wantDistinct: 2,
		},
		{
			name:         "tie goes to first seen",
			classifiers:  []mlmodel.Classifier{fixed("rf", "maize", 0.9), fixed("knn", "rice", 1)},
			wantMajority: "maize", wantCount: 1, wantRatio: 0.5, wantDistinct: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(tt.classifiers...)
			report, err := e.ComputeAgreement(context.Background(), scenarioInput())
			require.NoError(t, err)

			assert.False(t, report.Failed())
			assert.Equal(t, tt.wantMajority, report.MajorityLabel)
			assert.Equal(t, tt.wantCount, report.MajorityCount)
			assert.InDelta(t, tt.wantRatio, report.AgreementRatio, 1e-12)
			assert.Equal(t, tt.wantAllAgree, report.AllAgree)
			assert.Len(t, report.Distribution, tt.wantDistinct)
			assert.Equal(t, report.AllAgree, len(report.Distribution) == 1)
			assert.GreaterOrEqual(t, report.AgreementRatio, 1/float64(report.TotalModels))
			assert.LessOrEqual(t, report.AgreementRatio, 1.0)
			assert.Len(t, report.Predictions, len(tt.classifiers))
		})
	}
}

func TestComputeAgreementWithNoModels(t *testing.T) {
	e := newEvaluator()
	report, err := e.ComputeAgreement(context.Background(), scenarioInput())
	require.NoError(t, err)
	assert.True(t, report.Failed())
	assert.Equal(t, NoModelsError, report.Error)
	assert.Equal(t, 0.0, report.AgreementRatio)
}

func TestComputeAgreementPropagatesMemberError(t *testing.T) {
	broken := mlmodel.NewClassifierFunc("broken", func(models.FeatureVector) (*models.PredictionResult, error) {
		return nil, errors.New("artifact corrupted")
	})
	e := newEvaluator(fixed("rf", "rice", 0.9), broken)
	_, err := e.ComputeAgreement(context.Background(), scenarioInput())
	assert.ErrorContains(t, err, "artifact corrupted")
}

func TestComputeAgreementStability(t *testing.T) {
	e := newEvaluator(fixed("rf", "rice", 0.9), fixed("knn", "rice", 1))
	report, err := e.ComputeAgreementStability(context.Background(), scenarioInput(), 0.2, 10)
	require.NoError(t, err)
	assert.Equal(t, "rice", report.BaselineLabel)
	assert.Equal(t, 1.0, report.StabilityScore)
	assert.Equal(t, 1.0, report.AvgAgreementUnderNoise)

	_, err = newEvaluator().ComputeAgreementStability(context.Background(), scenarioInput(), 0.2, 10)
	assert.True(t, models.IsFault(err, models.FaultModelUnavailable))

	_, err = e.ComputeAgreementStability(context.Background(), scenarioInput(), 0.2, 0)
	assert.True(t, models.IsFault(err, models.FaultValidation))
}
