package mlmodel

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mimir-aip/cropwise/pkg/features"
	"github.com/mimir-aip/cropwise/pkg/mlmodel/forest"
	"github.com/mimir-aip/cropwise/pkg/models"
)

// ForestArtifact is the serialized form of a forest model and the pipeline it was fitted with
type ForestArtifact struct {
	Pipeline *features.Pipeline `json:"pipeline"`
	Forest   *forest.Forest     `json:"forest"`
}

// Save writes the artifact as JSON
func (a *ForestArtifact) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(a)
}

// LoadForestArtifact reads an artifact written by Save
func LoadForestArtifact(r io.Reader) (*ForestArtifact, error) {
	var a ForestArtifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode forest artifact: %w", err)
	}
	if a.Pipeline == nil || a.Pipeline.Scaler == nil || a.Pipeline.Encoder == nil {
		return nil, fmt.Errorf("forest artifact has no pipeline")
	}
	if a.Forest == nil {
		return nil, fmt.Errorf("forest artifact has no forest")
	}
	if err := a.Forest.Validate(); err != nil {
		return nil, err
	}
	if a.Forest.NumClasses != len(a.Pipeline.Encoder.Classes) {
		return nil, fmt.Errorf("forest has %d classes but encoder has %d", a.Forest.NumClasses, len(a.Pipeline.Encoder.Classes))
	}
	return &a, nil
}

// FitForestArtifact materializes an artifact from a labelled dataset
func FitForestArtifact(ds *features.Dataset, opts forest.Options) (*ForestArtifact, error) {
	pipeline, err := features.FitPipeline(ds)
	if err != nil {
		return nil, err
	}
	rows, err := pipeline.PrepareAll(ds)
	if err != nil {
		return nil, err
	}
	codes := make([]int, len(ds.Labels))
	for i, label := range ds.Labels {
		if codes[i], err = pipeline.Encoder.Encode(label); err != nil {
			return nil, err
		}
	}
	f, err := forest.Fit(rows, codes, len(pipeline.Encoder.Classes), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit forest: %w", err)
	}
	return &ForestArtifact{Pipeline: pipeline, Forest: f}, nil
}

// ForestClassifier predicts full class probabilities with a bagged forest
type ForestClassifier struct {
	name     string
	pipeline *features.Pipeline
	forest   *forest.Forest
	topK     int
}

// NewForestClassifier wraps a loaded artifact
func NewForestClassifier(name string, a *ForestArtifact) *ForestClassifier {
	return &ForestClassifier{name: name, pipeline: a.Pipeline, forest: a.Forest, topK: models.DefaultTopK}
}

// LoadForestClassifier reads an artifact file from disk
func LoadForestClassifier(name, path string) (*ForestClassifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := LoadForestArtifact(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewForestClassifier(name, a), nil
}

func (c *ForestClassifier) Name() string { return c.name }

// Classes returns the crop labels the model can predict
func (c *ForestClassifier) Classes() []string {
	return c.pipeline.Encoder.Classes
}

func (c *ForestClassifier) Predict(v models.FeatureVector) (*models.PredictionResult, error) {
	row, err := c.pipeline.Prepare(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	probs, err := c.forest.PredictProba(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	scores := make(map[string]float64, len(probs))
	for code, p := range probs {
		scores[c.pipeline.Encoder.Classes[code]] = p
	}
	return models.NewPredictionResult(scores, c.topK)
}
