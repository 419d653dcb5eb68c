package policy

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Classifier maps a state vector to an action after being fit on labelled samples.
type Classifier interface {
	Fit(x [][]float64, y []Action)
	Predict(state []float64) Action
}

// majority returns the most frequent label, lowest action on ties.
func majority(labels []Action) Action {
	var counts [NumActions]int
	for _, l := range labels {
		if l >= 0 && int(l) < NumActions {
			counts[l]++
		}
	}
	best := 0
	for a := 1; a < NumActions; a++ {
		if counts[a] > counts[best] {
			best = a
		}
	}
	return Action(best)
}

// KNN is a k-nearest-neighbours classifier with Euclidean distance.
type KNN struct {
	K int
	x [][]float64
	y []Action
}

// NewKNN creates a k-nearest-neighbours classifier.
func NewKNN(k int) *KNN {
	if k <= 0 {
		k = 1
	}
	return &KNN{K: k}
}

// Fit stores the training set.
func (c *KNN) Fit(x [][]float64, y []Action) {
	c.x = x
	c.y = y
}

// Predict votes among the K nearest training samples.
func (c *KNN) Predict(state []float64) Action {
	if len(c.x) == 0 {
		return ActionInvest
	}
	type neighbour struct {
		dist  float64
		label Action
	}
	ns := make([]neighbour, len(c.x))
	for i, row := range c.x {
		ns[i] = neighbour{dist: euclidean(row, state), label: c.y[i]}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })
	k := c.K
	if k > len(ns) {
		k = len(ns)
	}
	labels := make([]Action, k)
	for i := 0; i < k; i++ {
		labels[i] = ns[i].label
	}
	return majority(labels)
}

func euclidean(a, b []float64) float64 {
	n := min(len(a), len(b))
	return floats.Distance(a[:n], b[:n], 2)
}

// treeNode is a CART node; leaves have feature < 0.
type treeNode struct {
	feature     int
	threshold   float64
	left, right *treeNode
	label       Action
}

func (n *treeNode) predict(state []float64) Action {
	for n.feature >= 0 {
		if n.feature < len(state) && state[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.label
}

// DecisionTree is a CART classifier split on Gini impurity.
type DecisionTree struct {
	// MaxFeatures limits the features considered per split (0 = all).
	MaxFeatures int
	MaxDepth    int

	rng  *rand.Rand
	root *treeNode
}

// NewDecisionTree creates an unbounded-depth tree. rng is only used when
// MaxFeatures restricts the candidate features.
func NewDecisionTree(rng *rand.Rand) *DecisionTree {
	return &DecisionTree{rng: rng}
}

// Fit grows the tree on the samples.
func (t *DecisionTree) Fit(x [][]float64, y []Action) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(x, y, idx, 0)
}

// Predict walks the tree to a leaf.
func (t *DecisionTree) Predict(state []float64) Action {
	if t.root == nil {
		return ActionInvest
	}
	return t.root.predict(state)
}

func (t *DecisionTree) grow(x [][]float64, y []Action, idx []int, depth int) *treeNode {
	labels := make([]Action, len(idx))
	for i, j := range idx {
		labels[i] = y[j]
	}
	leaf := &treeNode{feature: -1, label: majority(labels)}
	if len(idx) < 2 || gini(labels) == 0 || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return leaf
	}

	bestFeature, bestThreshold, bestScore := -1, 0.0, gini(labels)
	for _, f := range t.candidateFeatures(len(x[idx[0]])) {
		values := make([]float64, len(idx))
		for i, j := range idx {
			values[i] = x[j][f]
		}
		sort.Float64s(values)
		for i := 0; i+1 < len(values); i++ {
			if values[i] == values[i+1] {
				continue
			}
			threshold := (values[i] + values[i+1]) / 2
			var left, right []Action
			for _, j := range idx {
				if x[j][f] <= threshold {
					left = append(left, y[j])
				} else {
					right = append(right, y[j])
				}
			}
			n := float64(len(idx))
			score := float64(len(left))/n*gini(left) + float64(len(right))/n*gini(right)
			if score < bestScore {
				bestFeature, bestThreshold, bestScore = f, threshold, score
			}
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	var li, ri []int
	for _, j := range idx {
		if x[j][bestFeature] <= bestThreshold {
			li = append(li, j)
		} else {
			ri = append(ri, j)
		}
	}
	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      t.grow(x, y, li, depth+1),
		right:     t.grow(x, y, ri, depth+1),
	}
}

func (t *DecisionTree) candidateFeatures(n int) []int {
	features := make([]int, n)
	for i := range features {
		features[i] = i
	}
	if t.MaxFeatures <= 0 || t.MaxFeatures >= n || t.rng == nil {
		return features
	}
	t.rng.Shuffle(n, func(i, j int) { features[i], features[j] = features[j], features[i] })
	return features[:t.MaxFeatures]
}

func gini(labels []Action) float64 {
	if len(labels) == 0 {
		return 0
	}
	var counts [NumActions]int
	for _, l := range labels {
		if l >= 0 && int(l) < NumActions {
			counts[l]++
		}
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(len(labels))
		g -= p * p
	}
	return g
}

// RandomForest is a bagged ensemble of decision trees, each trained on a
// bootstrap sample with sqrt(features) candidates per split.
type RandomForest struct {
	Trees int

	rng    *rand.Rand
	forest []*DecisionTree
}

// NewRandomForest creates a forest of n trees.
func NewRandomForest(rng *rand.Rand, n int) *RandomForest {
	if n <= 0 {
		n = 1
	}
	return &RandomForest{Trees: n, rng: rng}
}

// Fit trains every tree on its own bootstrap sample.
func (f *RandomForest) Fit(x [][]float64, y []Action) {
	f.forest = f.forest[:0]
	if len(x) == 0 {
		return
	}
	maxFeatures := int(math.Sqrt(float64(len(x[0]))))
	for i := 0; i < f.Trees; i++ {
		bx := make([][]float64, len(x))
		by := make([]Action, len(y))
		for j := range bx {
			k := f.rng.Intn(len(x))
			bx[j], by[j] = x[k], y[k]
		}
		tree := NewDecisionTree(f.rng)
		tree.MaxFeatures = maxFeatures
		tree.Fit(bx, by)
		f.forest = append(f.forest, tree)
	}
}

// Predict returns the majority vote of the trees.
func (f *RandomForest) Predict(state []float64) Action {
	if len(f.forest) == 0 {
		return ActionInvest
	}
	votes := make([]Action, len(f.forest))
	for i, t := range f.forest {
		votes[i] = t.Predict(state)
	}
	return majority(votes)
}
