package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// LabelColumn is the CSV column holding the crop label
const LabelColumn = "label"

// Dataset is a labelled set of feature vectors
type Dataset struct {
	Rows   []models.FeatureVector
	Labels []string
}

// Len returns the number of samples
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// LoadDatasetFile opens and parses a crop recommendation CSV
func LoadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

// LoadDataset parses a crop recommendation CSV with a header row.
// Columns may appear in any order; values are clamped into their physical range.
func LoadDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, f := range models.AllFeatures {
		if _, ok := index[string(f)]; !ok {
			return nil, fmt.Errorf("missing column %q", f)
		}
	}
	labelIdx, ok := index[LabelColumn]
	if !ok {
		return nil, fmt.Errorf("missing column %q", LabelColumn)
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var v models.FeatureVector
		for _, f := range models.AllFeatures {
			x, err := strconv.ParseFloat(strings.TrimSpace(record[index[string(f)]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, f, err)
			}
			if v, err = v.With(f, x); err != nil {
				return nil, err
			}
		}
		label := strings.TrimSpace(record[labelIdx])
		if label == "" {
			return nil, fmt.Errorf("line %d: empty label", line)
		}
		ds.Rows = append(ds.Rows, v)
		ds.Labels = append(ds.Labels, label)
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}
	return ds, nil
}
