// Package forest implements a bagged ensemble of classification trees whose
// predictions are class probability distributions.
package forest

import (
	"fmt"
	"math"
	"math/rand"
)

// Options controls how a forest is grown
type Options struct {
	Trees       int   // number of bagged trees
	MaxDepth    int   // depth limit per tree
	MinSamples  int   // minimum samples to split a node
	MaxFeatures int   // features tried per split; 0 means sqrt(width)
	Seed        int64 // bootstrap and feature sampling seed
}

// DefaultOptions returns the settings used when the service bootstraps a forest
func DefaultOptions() Options {
	return Options{
		Trees:      50,
		MaxDepth:   12,
		MinSamples: 2,
		Seed:       42,
	}
}

// Forest is a fitted ensemble. It is read-only after Fit or Load and safe
// for concurrent use.
type Forest struct {
	NumClasses int     `json:"num_classes"`
	Width      int     `json:"width"`
	Trees      []*Node `json:"trees"`
}

// Fit grows a forest over rows labelled with class codes in [0, numClasses)
func Fit(rows [][]float64, labels []int, numClasses int, opts Options) (*Forest, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no training rows provided")
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("got %d rows but %d labels", len(rows), len(labels))
	}
	if numClasses < 1 {
		return nil, fmt.Errorf("numClasses must be positive")
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		if labels[i] < 0 || labels[i] >= numClasses {
			return nil, fmt.Errorf("row %d has label %d outside [0, %d)", i, labels[i], numClasses)
		}
	}

	if opts.Trees <= 0 {
		opts.Trees = DefaultOptions().Trees
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultOptions().MinSamples
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = int(math.Ceil(math.Sqrt(float64(width))))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	b := &treeBuilder{
		numClasses:  numClasses,
		maxDepth:    opts.MaxDepth,
		minSamples:  opts.MinSamples,
		maxFeatures: opts.MaxFeatures,
		rng:         rng,
	}

	f := &Forest{NumClasses: numClasses, Width: width, Trees: make([]*Node, 0, opts.Trees)}
	for t := 0; t < opts.Trees; t++ {
		sample := make([]int, len(rows))
		for i := range sample {
			sample[i] = rng.Intn(len(rows))
		}
		f.Trees = append(f.Trees, b.build(rows, labels, sample, 0))
	}
	return f, nil
}

// PredictProba returns the mean leaf distribution over all trees
func (f *Forest) PredictProba(row []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	if len(row) != f.Width {
		return nil, fmt.Errorf("row has %d columns, forest expects %d", len(row), f.Width)
	}

	probs := make([]float64, f.NumClasses)
	for _, tree := range f.Trees {
		for c, p := range tree.distribution(row) {
			probs[c] += p
		}
	}
	for c := range probs {
		probs[c] /= float64(len(f.Trees))
	}
	return probs, nil
}

// Validate checks that a decoded forest is usable
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 || f.NumClasses < 1 || f.Width < 1 {
		return fmt.Errorf("forest artifact is incomplete")
	}
	for i, tree := range f.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d is empty", i)
		}
	}
	return nil
}
