package forest

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Node is a classification tree node. Leaves carry the class distribution
// of the samples that reached them.
type Node struct {
	Feature      int       `json:"feature,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	Left         *Node     `json:"left,omitempty"`
	Right        *Node     `json:"right,omitempty"`
	Distribution []float64 `json:"distribution,omitempty"`
	IsLeaf       bool      `json:"leaf,omitempty"`
}

// treeBuilder grows one tree on a bootstrap sample
type treeBuilder struct {
	numClasses  int
	maxDepth    int
	minSamples  int
	maxFeatures int
	rng         *rand.Rand
}

// build recursively grows a tree over the given sample indices
func (b *treeBuilder) build(features [][]float64, labels []int, idx []int, depth int) *Node {
	if depth >= b.maxDepth || len(idx) < b.minSamples || isHomogeneous(labels, idx) {
		return b.leaf(labels, idx)
	}

	feature, threshold, gain := b.findBestSplit(features, labels, idx)
	if gain <= 0 {
		return b.leaf(labels, idx)
	}

	left, right := splitIndices(features, idx, feature, threshold)
	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(features, labels, left, depth+1),
		Right:     b.build(features, labels, right, depth+1),
	}
}

func (b *treeBuilder) leaf(labels []int, idx []int) *Node {
	dist := make([]float64, b.numClasses)
	for _, i := range idx {
		dist[labels[i]]++
	}
	if len(idx) > 0 {
		for c := range dist {
			dist[c] /= float64(len(idx))
		}
	}
	return &Node{IsLeaf: true, Distribution: dist}
}

// findBestSplit tries the median of a random subset of features and keeps
// the split with the largest gini gain
func (b *treeBuilder) findBestSplit(features [][]float64, labels []int, idx []int) (int, float64, float64) {
	numFeatures := len(features[idx[0]])
	candidates := b.rng.Perm(numFeatures)
	if b.maxFeatures > 0 && b.maxFeatures < numFeatures {
		candidates = candidates[:b.maxFeatures]
	}

	bestFeature, bestThreshold, bestGain := 0, 0.0, 0.0
	parent := b.gini(labels, idx)
	values := make([]float64, len(idx))

	for _, feature := range candidates {
		for k, i := range idx {
			values[k] = features[i][feature]
		}
		threshold := median(values)

		left, right := splitIndices(features, idx, feature, threshold)
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		lw := float64(len(left)) / float64(len(idx))
		rw := float64(len(right)) / float64(len(idx))
		gain := parent - (lw*b.gini(labels, left) + rw*b.gini(labels, right))

		if gain > bestGain {
			bestFeature, bestThreshold, bestGain = feature, threshold, gain
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (b *treeBuilder) gini(labels []int, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	counts := make([]int, b.numClasses)
	for _, i := range idx {
		counts[labels[i]]++
	}
	impurity := 1.0
	total := float64(len(idx))
	for _, c := range counts {
		p := float64(c) / total
		impurity -= p * p
	}
	return impurity
}

// distribution walks the tree to the leaf that row falls into
func (n *Node) distribution(row []float64) []float64 {
	for !n.IsLeaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Distribution
}

func isHomogeneous(labels []int, idx []int) bool {
	for _, i := range idx {
		if labels[i] != labels[idx[0]] {
			return false
		}
	}
	return true
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func splitIndices(features [][]float64, idx []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
