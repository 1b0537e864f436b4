package training

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

const decisionTreeName = "DecisionTreeRegressor"

// DecisionTreeRegressor is a CART regression tree split on squared error
type DecisionTreeRegressor struct {
	MaxDepth        int         `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int         `json:"min_samples_split"`
	MinSamplesLeaf  int         `json:"min_samples_leaf"`
	MaxFeatures     MaxFeatures `json:"max_features"`
	RandomState     *int64      `json:"random_state,omitempty"`

	Root       *TreeNode `json:"root"`
	NFeatures  int       `json:"n_features"`
	Importance []float64 `json:"feature_importances,omitempty"`

	rng *rand.Rand
}

// TreeNode represents one node of a fitted tree
type TreeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Value     float64   `json:"value"` // Leaf prediction value
	IsLeaf    bool      `json:"is_leaf"`
}

// NewDecisionTreeRegressor creates a new unfitted tree
func NewDecisionTreeRegressor() *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (t *DecisionTreeRegressor) Name() string { return decisionTreeName }

func (t *DecisionTreeRegressor) SetParams(params map[string]any) error {
	for k, v := range params {
		var err error
		switch k {
		case "max_depth":
			t.MaxDepth, err = toOptionalInt(k, v)
		case "min_samples_split":
			t.MinSamplesSplit, err = toInt(k, v)
		case "min_samples_leaf":
			t.MinSamplesLeaf, err = toInt(k, v)
		case "max_features":
			t.MaxFeatures, err = parseMaxFeatures(k, v)
		case "random_state":
			t.RandomState, err = toSeed(k, v)
		case "criterion", "splitter":
		default:
			err = unknownParam(t.Name(), k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Fit builds the tree
func (t *DecisionTreeRegressor) Fit(X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if t.rng == nil {
		t.rng = newRand(t.RandomState)
	}
	t.NFeatures = p
	t.Importance = make([]float64, p)

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.Root = t.buildTree(X, y, idx, 0)

	total := 0.0
	for _, v := range t.Importance {
		total += v
	}
	if total > 0 {
		for i := range t.Importance {
			t.Importance[i] /= total
		}
	}
	return nil
}

// buildTree recursively builds a decision tree over the rows in idx
func (t *DecisionTreeRegressor) buildTree(X [][]float64, y []float64, idx []int, depth int) *TreeNode {
	value, sse := meanSSE(y, idx)
	// Stop conditions
	if (t.MaxDepth > 0 && depth >= t.MaxDepth) || len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf || sse <= 1e-12 {
		return &TreeNode{IsLeaf: true, Value: value}
	}

	feature, threshold, childSSE, ok := t.findBestSplit(X, y, idx)
	if !ok || childSSE >= sse {
		return &TreeNode{IsLeaf: true, Value: value}
	}
	t.Importance[feature] += sse - childSSE

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      t.buildTree(X, y, left, depth+1),
		Right:     t.buildTree(X, y, right, depth+1),
		Value:     value,
	}
}

// findBestSplit scans sorted values of each candidate feature and returns
// the split minimising the summed squared error of the two children.
func (t *DecisionTreeRegressor) findBestSplit(X [][]float64, y []float64, idx []int) (int, float64, float64, bool) {
	features := t.candidateFeatures()
	n := len(idx)
	order := make([]int, n)

	bestFeature, bestThreshold := -1, 0.0
	bestSSE := math.Inf(1)

	for _, f := range features {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			nl, nr := k+1, n-k-1
			if nl < t.MinSamplesLeaf {
				continue
			}
			if nr < t.MinSamplesLeaf {
				break
			}
			lo, hi := X[order[k]][f], X[order[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold == hi {
					bestThreshold = lo
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestSSE, bestFeature >= 0
}

// candidateFeatures returns all features, or a random subset when
// MaxFeatures limits them
func (t *DecisionTreeRegressor) candidateFeatures() []int {
	k := t.MaxFeatures.Resolve(t.NFeatures)
	if k >= t.NFeatures {
		all := make([]int, t.NFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := t.rng.Perm(t.NFeatures)[:k]
	sort.Ints(perm)
	return perm
}

// Predict walks the tree for each row
func (t *DecisionTreeRegressor) Predict(X [][]float64) ([]float64, error) {
	if t.Root == nil {
		return nil, ErrNotFitted
	}
	if err := checkX(X, t.NFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.predict(t.Root, row)
	}
	return out, nil
}

func (t *DecisionTreeRegressor) predict(node *TreeNode, features []float64) float64 {
	for !node.IsLeaf {
		if features[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// Depth returns the depth of the fitted tree
func (t *DecisionTreeRegressor) Depth() int {
	var depth func(n *TreeNode) int
	depth = func(n *TreeNode) int {
		if n == nil || n.IsLeaf {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(t.Root)
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	sse := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

func newRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
