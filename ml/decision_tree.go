package ml

import (
	"errors"
	"math"
	"sort"
)

// DecisionTree is a Gini-split classifier over dense float vectors. Labels are
// class indexes in [0, ClassCount).
type DecisionTree struct {
	Nodes      []TreeNode `json:"nodes"`
	ClassCount int        `json:"class_count"`
}

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	ClassLabel   int       `json:"class_label"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

type TreeOptions struct {
	MaxDepth       int
	MinSamplesLeaf int
}

func (dt *DecisionTree) Train(features [][]float64, labels []int, classCount int, opts TreeOptions) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if classCount <= 0 {
		return errors.New("class count must be positive")
	}
	for _, label := range labels {
		if label < 0 || label >= classCount {
			return errors.New("label out of range")
		}
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	if opts.MinSamplesLeaf <= 0 {
		opts.MinSamplesLeaf = 1
	}

	dt.ClassCount = classCount
	dt.Nodes = dt.buildNode(features, labels, 0, opts)
	return nil
}

// Predict returns the most likely class and its probability.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, 0, err
	}
	return leaf.ClassLabel, leaf.Distribution[leaf.ClassLabel], nil
}

// PredictProba returns the class distribution of the reached leaf.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), leaf.Distribution...), nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return TreeNode{}, ErrNotTrained
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			if len(node.Distribution) != dt.ClassCount || node.ClassLabel < 0 || node.ClassLabel >= dt.ClassCount {
				return TreeNode{}, errors.New("invalid leaf distribution")
			}
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

// Depth is the longest root-to-leaf path, counted in edges.
func (dt *DecisionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		left, right := walk(node.LeftChild), walk(node.RightChild)
		if left > right {
			return left + 1
		}
		return right + 1
	}
	return walk(0)
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int, opts TreeOptions) []TreeNode {
	dist := distribution(labels, dt.ClassCount)
	leaf := []TreeNode{{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		ClassLabel:   argmax(dist),
		IsLeaf:       true,
		Distribution: dist,
	}}
	if depth >= opts.MaxDepth || isPure(labels) || len(labels) < 2*opts.MinSamplesLeaf {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, labels, dt.ClassCount, opts.MinSamplesLeaf)
	if !ok {
		return leaf
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1, opts)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1, opts)

	// Children are stored after their parent; shift their indexes accordingly.
	shift(leftNodes, 1)
	shift(rightNodes, 1+len(leftNodes))

	root := TreeNode{
		FeatureIdx:   bestFeature,
		Threshold:    threshold,
		LeftChild:    1,
		RightChild:   1 + len(leftNodes),
		ClassLabel:   argmax(dist),
		Distribution: dist,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func shift(nodes []TreeNode, offset int) {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
}

func findBestSplit(features [][]float64, labels []int, classCount, minLeaf int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := gini(labels, classCount)

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for _, threshold := range candidateThresholds(features, featureIdx) {
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			if len(leftLabels) < minLeaf || len(rightLabels) < minLeaf {
				continue
			}
			impurity := weightedGini(leftLabels, rightLabels, classCount)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// candidateThresholds returns the midpoints between consecutive distinct values.
func candidateThresholds(features [][]float64, featureIdx int) []float64 {
	values := make([]float64, len(features))
	for i := range features {
		values[i] = features[i][featureIdx]
	}
	sort.Float64s(values)
	thresholds := make([]float64, 0)
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1] {
			thresholds = append(thresholds, (values[i]+values[i-1])/2)
		}
	}
	return thresholds
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int, classCount int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels, classCount) + (rightWeight/total)*gini(rightLabels, classCount)
}

func gini(labels []int, classCount int) float64 {
	if len(labels) == 0 {
		return 0
	}
	impurity := 1.0
	for _, prob := range distribution(labels, classCount) {
		impurity -= prob * prob
	}
	return impurity
}

// distribution returns per-class frequencies summing to 1.
func distribution(labels []int, classCount int) []float64 {
	dist := make([]float64, classCount)
	if len(labels) == 0 {
		return dist
	}
	for _, label := range labels {
		dist[label]++
	}
	for i := range dist {
		dist[i] /= float64(len(labels))
	}
	return dist
}

// argmax prefers the lowest class index on ties.
func argmax(values []float64) int {
	best := 0
	bestValue := math.Inf(-1)
	for i, v := range values {
		if v > bestValue {
			best = i
			bestValue = v
		}
	}
	return best
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
