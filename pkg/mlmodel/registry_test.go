package mlmodel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/crops.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crops.csv"), data, 0o644))

	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRegistryFromManifest(t *testing.T) {
	path := writeManifest(t, `
models:
  - name: rf
    kind: forest
    artifact: missing/rf.json
    dataset: crops.csv
    trees: 10
    required: true
    primary: true
  - name: knn
    kind: knn
    dataset: crops.csv
  - name: lstm
    kind: forest
    artifact: missing/lstm.json
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	r, err := NewRegistry(m)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len(), "optional model without artifact is skipped")
	assert.Equal(t, []string{"rf", "knn"}, r.Names())
	assert.Equal(t, "rf", r.PrimaryName())

	primary, err := r.Primary()
	require.NoError(t, err)
	res, err := primary.Predict(riceSample())
	require.NoError(t, err)
	assert.Equal(t, "rice", res.Label)
}

func TestRegistryRequiredModelMissing(t *testing.T) {
	path := writeManifest(t, `
models:
  - name: rf
    kind: forest
    artifact: missing/rf.json
    required: true
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	_, err = NewRegistry(m)
	assert.True(t, models.IsFault(err, models.FaultModelUnavailable))
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
	}{
		{"missing name", Manifest{Models: []ManifestEntry{{Kind: ModelKindKNN, Dataset: "x"}}}},
		{"duplicate", Manifest{Models: []ManifestEntry{
			{Name: "a", Kind: ModelKindKNN, Dataset: "x"},
			{Name: "a", Kind: ModelKindKNN, Dataset: "x"},
		}}},
		{"unknown kind", Manifest{Models: []ManifestEntry{{Name: "a", Kind: "svm"}}}},
		{"remote without url", Manifest{Models: []ManifestEntry{{Name: "a", Kind: ModelKindRemote}}}},
		{"two primaries", Manifest{Models: []ManifestEntry{
			{Name: "a", Kind: ModelKindRemote, URL: "http://a", Primary: true},
			{Name: "b", Kind: ModelKindRemote, URL: "http://b", Primary: true},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.manifest.Validate())
		})
	}
}

func TestEmptyRegistry(t *testing.T) {
	r := &Registry{}
	_, err := r.Primary()
	assert.True(t, models.IsFault(err, models.FaultModelUnavailable))
	assert.Empty(t, r.Classifiers())
	assert.Equal(t, "", r.PrimaryName())
}

func TestRegisterKeepsOrderAndPrimary(t *testing.T) {
	fixed := func(label string) *ClassifierFunc {
		return NewClassifierFunc(label, func(models.FeatureVector) (*models.PredictionResult, error) {
			return models.NewPredictionResult(map[string]float64{label: 1}, 1)
		})
	}

	r := &Registry{}
	require.NoError(t, r.Register(fixed("a"), false))
	require.NoError(t, r.Register(fixed("b"), true))
	require.NoError(t, r.Register(fixed("c"), false))

	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	p, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name())

	assert.Error(t, r.Register(fixed("b"), false), "duplicate names are rejected")
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, "b", r.PrimaryName())
}

func TestRegistrySkipsUnreachableRemote(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"label": "rice"})
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downURL := down.URL
	down.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	path := writeManifest(t, `
models:
  - name: xgboost
    kind: remote
    url: `+downURL+`
    timeout: 1s
  - name: lightgbm
    kind: remote
    url: `+unhealthy.URL+`
  - name: catboost
    kind: remote
    url: `+healthy.URL+`
  - name: rf
    kind: forest
    dataset: crops.csv
    trees: 5
    primary: true
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	r, err := NewRegistry(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"catboost", "rf"}, r.Names())

	for _, c := range r.Classifiers() {
		_, err := c.Predict(riceSample())
		assert.NoError(t, err, c.Name())
	}
}

func TestRegistryRequiredRemoteDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downURL := down.URL
	down.Close()

	path := writeManifest(t, `
models:
  - name: xgboost
    kind: remote
    url: `+downURL+`
    timeout: 1s
    required: true
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	_, err = NewRegistry(m)
	assert.True(t, models.IsFault(err, models.FaultModelUnavailable))
}
