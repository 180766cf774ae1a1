package features

import (
	"fmt"
	"sort"

	"github.com/mimir-aip/cropwise/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// Columns lists the engineered feature columns in model input order
var Columns = []string{
	"N", "P", "K",
	"temperature", "humidity", "ph", "rainfall",
	"nutrient_ratio", "climate_index",
}

// Build expands a feature vector into the engineered model row
func Build(v models.FeatureVector) []float64 {
	row := v.Values()
	return append(row,
		(v.N+v.P+v.K)/3,
		v.Temperature*v.Humidity,
	)
}

// Scaler standardizes columns to zero mean and unit variance
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column population mean and standard deviation
func FitScaler(rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to fit scaler")
	}
	width := len(rows[0])
	s := &Scaler{Mean: make([]float64, width), Std: make([]float64, width)}

	column := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			if len(row) != width {
				return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
			}
			column[i] = row[j]
		}
		s.Mean[j], s.Std[j] = stat.PopMeanStdDev(column, nil)
	}
	return s, nil
}

// Transform scales a single row. Zero-variance columns map to 0.
func (s *Scaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("row has %d columns, scaler expects %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, x := range row {
		if s.Std[j] == 0 {
			continue
		}
		out[j] = (x - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// LabelEncoder maps crop labels to dense integer codes
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder builds an encoder over the sorted unique labels
func FitLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(labels))
	classes := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Encode returns the code for label
func (e *LabelEncoder) Encode(label string) (int, error) {
	i := sort.SearchStrings(e.Classes, label)
	if i < len(e.Classes) && e.Classes[i] == label {
		return i, nil
	}
	return 0, fmt.Errorf("unknown label %q", label)
}

// Decode returns the label for code
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("label code %d out of range", code)
	}
	return e.Classes[code], nil
}

// Pipeline is the shared preprocessing applied before every in-process model
type Pipeline struct {
	Scaler  *Scaler       `json:"scaler"`
	Encoder *LabelEncoder `json:"encoder"`
}

// FitPipeline fits the scaler and encoder on a dataset
func FitPipeline(ds *Dataset) (*Pipeline, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	rows := make([][]float64, ds.Len())
	for i, v := range ds.Rows {
		rows[i] = Build(v)
	}
	scaler, err := FitScaler(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	return &Pipeline{Scaler: scaler, Encoder: FitLabelEncoder(ds.Labels)}, nil
}

// Prepare builds and scales the model row for v
func (p *Pipeline) Prepare(v models.FeatureVector) ([]float64, error) {
	if p == nil || p.Scaler == nil {
		return nil, fmt.Errorf("pipeline not fitted")
	}
	return p.Scaler.Transform(Build(v))
}

// PrepareAll transforms every row of a dataset
func (p *Pipeline) PrepareAll(ds *Dataset) ([][]float64, error) {
	out := make([][]float64, ds.Len())
	for i, v := range ds.Rows {
		row, err := p.Prepare(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = row
	}
	return out, nil
}
