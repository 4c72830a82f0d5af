package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Tree is a CART regression tree with bounded depth and leaf size. The split
// search is fully deterministic: features are scanned in schema order and
// thresholds in ascending order, so refitting identical data reproduces the
// identical tree.
type Tree struct {
	MaxDepth   int        `json:"max_depth"`
	MinSamples int        `json:"min_samples"`
	Features   int        `json:"features"`
	Nodes      []TreeNode `json:"nodes"`
}

// TreeNode is one node in the flattened tree. Leaf nodes predict Value;
// internal nodes route x[Feature] <= Threshold to Left, else Right.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// NewTree creates an unfitted regression tree.
func NewTree(maxDepth, minSamples int) *Tree {
	return &Tree{MaxDepth: maxDepth, MinSamples: minSamples}
}

func init() {
	Register("cart", func() Regressor { return NewTree(6, 20) })
}

// Name returns the algorithm name.
func (m *Tree) Name() string {
	return "cart"
}

// Fit grows the tree by recursive best-split search minimizing the sum of
// squared errors.
func (m *Tree) Fit(x [][]float64, y []float64) error {
	if err := validateTrainingInput(x, y); err != nil {
		return fmt.Errorf("cart fit: %w", err)
	}
	if m.MaxDepth < 1 {
		return fmt.Errorf("cart fit: max depth %d < 1", m.MaxDepth)
	}
	if m.MinSamples < 1 {
		m.MinSamples = 1
	}

	m.Features = len(x[0])
	m.Nodes = m.Nodes[:0]

	indices := make([]int, len(x))
	for i := range indices {
		indices[i] = i
	}
	m.grow(x, y, indices, 0)
	return nil
}

// grow appends the subtree for the given sample indices and returns its root
// node index.
func (m *Tree) grow(x [][]float64, y []float64, indices []int, depth int) int {
	nodeIdx := len(m.Nodes)
	m.Nodes = append(m.Nodes, TreeNode{Leaf: true, Value: meanAt(y, indices)})

	if depth >= m.MaxDepth || len(indices) < 2*m.MinSamples {
		return nodeIdx
	}

	feature, threshold, ok := m.bestSplit(x, y, indices)
	if !ok {
		return nodeIdx
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	m.Nodes[nodeIdx].Leaf = false
	m.Nodes[nodeIdx].Feature = feature
	m.Nodes[nodeIdx].Threshold = threshold
	m.Nodes[nodeIdx].Left = m.grow(x, y, left, depth+1)
	m.Nodes[nodeIdx].Right = m.grow(x, y, right, depth+1)
	return nodeIdx
}

// bestSplit scans features in order and candidate thresholds ascending,
// keeping the first split with the strictly lowest total SSE.
func (m *Tree) bestSplit(x [][]float64, y []float64, indices []int) (feature int, threshold float64, ok bool) {
	bestSSE := sseAt(y, indices)
	if bestSSE == 0 {
		return 0, 0, false
	}

	order := make([]int, len(indices))

	for f := 0; f < m.Features; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		// prefix sums over the sorted order for O(1) split evaluation
		leftSum, leftSq := 0.0, 0.0
		totalSum, totalSq := 0.0, 0.0
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}
		n := len(order)

		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			if x[i][f] == x[order[pos+1]][f] {
				continue // not a valid cut point
			}
			leftN, rightN := pos+1, n-pos-1
			if leftN < m.MinSamples || rightN < m.MinSamples {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(leftN)) +
				(rightSq - rightSum*rightSum/float64(rightN))

			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (x[i][f] + x[order[pos+1]][f]) / 2
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

// Predict walks the tree to a leaf.
func (m *Tree) Predict(x []float64) (float64, error) {
	if err := validatePredictInput(x, m.NumFeatures()); err != nil {
		return 0, fmt.Errorf("cart predict: %w", err)
	}

	idx := 0
	for {
		node := m.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// NumFeatures returns the fitted feature count.
func (m *Tree) NumFeatures() int {
	if len(m.Nodes) == 0 {
		return 0
	}
	return m.Features
}

// MarshalParams serializes the fitted tree.
func (m *Tree) MarshalParams() (json.RawMessage, error) {
	return json.Marshal(m)
}

// UnmarshalParams restores the fitted tree.
func (m *Tree) UnmarshalParams(params json.RawMessage) error {
	return json.Unmarshal(params, m)
}

func meanAt(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

func sseAt(y []float64, indices []int) float64 {
	mean := meanAt(y, indices)
	sse := 0.0
	for _, i := range indices {
		d := y[i] - mean
		sse += d * d
	}
	return sse
}
