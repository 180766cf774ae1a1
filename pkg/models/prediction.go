package models

import (
	"fmt"
	"math"
	"sort"
)

// CropProbability pairs a crop label with its class probability
type CropProbability struct {
	Crop        string  `json:"crop"`
	Probability float64 `json:"probability"`
}

// PredictionResult is the output of a single classifier invocation
type PredictionResult struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"class_probabilities"`
	TopK          []CropProbability  `json:"top_k"`
}

// DefaultTopK is the number of ranked crops kept on a prediction
const DefaultTopK = 3

// NewPredictionResult builds a result from raw class scores.
// Scores are normalized to sum to 1; the label is the most probable class,
// ties broken lexicographically so repeated calls agree.
func NewPredictionResult(scores map[string]float64, k int) (*PredictionResult, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("no class scores")
	}

	total := 0.0
	for crop, s := range scores {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("invalid score %v for class %q", s, crop)
		}
		total += s
	}
	if total == 0 {
		return nil, fmt.Errorf("class scores sum to zero")
	}

	probs := make(map[string]float64, len(scores))
	ranked := make([]CropProbability, 0, len(scores))
	for crop, s := range scores {
		p := s / total
		probs[crop] = p
		ranked = append(ranked, CropProbability{Crop: crop, Probability: p})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		return ranked[i].Crop < ranked[j].Crop
	})

	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}

	return &PredictionResult{
		Label:         ranked[0].Crop,
		Probabilities: probs,
		TopK:          ranked[:k],
	}, nil
}

// Probability returns the probability of the predicted label
func (r *PredictionResult) Probability() float64 {
	return r.Probabilities[r.Label]
}
