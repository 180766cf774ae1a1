package mlmodel

import (
	"fmt"
	"sync"

	"github.com/mimir-aip/cropwise/pkg/features"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/knn"
)

// DefaultNeighbours keeps votes unambiguous so predictions are repeatable
const DefaultNeighbours = 1

// KNNClassifier is a nearest-neighbour ensemble member. It yields a label
// only, so its probabilities are one-hot over the known classes.
type KNNClassifier struct {
	name     string
	pipeline *features.Pipeline
	model    *knn.KNNClassifier
	train    *base.DenseInstances
	attrs    []base.Attribute

	mu sync.Mutex
}

// NewKNNClassifier fits a golearn KNN over the scaled dataset
func NewKNNClassifier(name string, ds *features.Dataset, neighbours int) (*KNNClassifier, error) {
	if neighbours <= 0 {
		neighbours = DefaultNeighbours
	}
	pipeline, err := features.FitPipeline(ds)
	if err != nil {
		return nil, err
	}
	rows, err := pipeline.PrepareAll(ds)
	if err != nil {
		return nil, err
	}

	train, attrs, classAttr, err := newGrid(len(rows))
	if err != nil {
		return nil, err
	}
	classSpec, err := train.GetAttribute(classAttr)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := setRow(train, attrs, i, row); err != nil {
			return nil, err
		}
		train.Set(classSpec, i, classAttr.GetSysValFromString(ds.Labels[i]))
	}

	model := knn.NewKnnClassifier("euclidean", "linear", neighbours)
	if err := model.Fit(train); err != nil {
		return nil, fmt.Errorf("failed to fit knn: %w", err)
	}

	return &KNNClassifier{
		name:     name,
		pipeline: pipeline,
		model:    model,
		train:    train,
		attrs:    attrs,
	}, nil
}

func (c *KNNClassifier) Name() string { return c.name }

func (c *KNNClassifier) Predict(v models.FeatureVector) (*models.PredictionResult, error) {
	row, err := c.pipeline.Prepare(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := base.NewStructuralCopy(c.train)
	if err := query.Extend(1); err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if err := setRow(query, c.attrs, 0, row); err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	out, err := c.model.Predict(query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	label := base.GetClass(out, 0)

	scores := make(map[string]float64, len(c.pipeline.Encoder.Classes))
	for _, class := range c.pipeline.Encoder.Classes {
		scores[class] = 0
	}
	scores[label] = 1
	return models.NewPredictionResult(scores, models.DefaultTopK)
}

// newGrid creates an empty instance grid with one float attribute per
// engineered column plus the categorical crop label
func newGrid(rows int) (*base.DenseInstances, []base.Attribute, *base.CategoricalAttribute, error) {
	grid := base.NewDenseInstances()
	attrs := make([]base.Attribute, len(features.Columns))
	for i, col := range features.Columns {
		attrs[i] = base.NewFloatAttribute(col)
		grid.AddAttribute(attrs[i])
	}

	classAttr := base.NewCategoricalAttribute()
	classAttr.SetName(features.LabelColumn)
	grid.AddAttribute(classAttr)
	if err := grid.AddClassAttribute(classAttr); err != nil {
		return nil, nil, nil, err
	}
	if err := grid.Extend(rows); err != nil {
		return nil, nil, nil, err
	}
	return grid, attrs, classAttr, nil
}

func setRow(grid *base.DenseInstances, attrs []base.Attribute, i int, row []float64) error {
	for j, attr := range attrs {
		spec, err := grid.GetAttribute(attr)
		if err != nil {
			return err
		}
		grid.Set(spec, i, base.PackFloatToBytes(row[j]))
	}
	return nil
}
