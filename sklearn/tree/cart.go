package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/opgrid/core/parallel"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

const (
	impurityEps = 1e-12
	featureEps  = 1e-7
	leafFeature = -1
	noChild     = -1
	unlimited   = 0

	randomStateNone int64 = -1
)

// node is one entry of the flat tree array. Leaves have feature == leafFeature.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	impurity  float64
	nSamples  int
	depth     int
	// value holds class probabilities for classifiers and the prediction
	// (mean or median) for regressors.
	value []float64
}

// cartConfig carries the hyperparameters shared by both trees. Fractional
// variants of min_samples_split and min_samples_leaf take precedence when > 0.
type cartConfig struct {
	criterion               string
	splitter                string
	maxDepth                int
	minSamplesSplit         int
	minSamplesSplitFraction float64
	minSamplesLeaf          int
	minSamplesLeafFraction  float64
	maxFeatures             interface{}
	maxLeafNodes            int
	minImpurityDecrease     float64
	randomState             int64
	ccpAlpha                float64
}

func defaultConfig(criterion string) cartConfig {
	return cartConfig{
		criterion:       criterion,
		splitter:        "best",
		maxDepth:        unlimited,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxLeafNodes:    unlimited,
		randomState:     randomStateNone,
	}
}

// params reports the configuration with scikit-learn names and nil for None.
func (c *cartConfig) params() map[string]interface{} {
	p := map[string]interface{}{
		"criterion":             c.criterion,
		"splitter":              c.splitter,
		"max_depth":             nil,
		"min_samples_split":     c.minSamplesSplit,
		"min_samples_leaf":      c.minSamplesLeaf,
		"max_features":          c.maxFeatures,
		"max_leaf_nodes":        nil,
		"min_impurity_decrease": c.minImpurityDecrease,
		"random_state":          nil,
		"ccp_alpha":             c.ccpAlpha,
	}
	if c.maxDepth != unlimited {
		p["max_depth"] = c.maxDepth
	}
	if c.minSamplesSplitFraction > 0 {
		p["min_samples_split"] = c.minSamplesSplitFraction
	}
	if c.minSamplesLeafFraction > 0 {
		p["min_samples_leaf"] = c.minSamplesLeafFraction
	}
	if c.maxLeafNodes != unlimited {
		p["max_leaf_nodes"] = c.maxLeafNodes
	}
	if c.randomState != randomStateNone {
		p["random_state"] = c.randomState
	}
	return p
}

// set applies one parameter. Integers may arrive as int, int64 or integral
// float64 (JSON); a non-integral float selects the fractional variant.
func (c *cartConfig) set(key string, value interface{}, criteria map[string]bool) error {
	switch key {
	case "criterion":
		s, ok := value.(string)
		if !ok || !criteria[s] {
			return errors.NewValidationError(key, "unsupported criterion", value)
		}
		c.criterion = s
	case "splitter":
		s, ok := value.(string)
		if !ok || (s != "best" && s != "random") {
			return errors.NewValidationError(key, "must be 'best' or 'random'", value)
		}
		c.splitter = s
	case "max_depth":
		if value == nil {
			c.maxDepth = unlimited
			return nil
		}
		d, ok := asInt(value)
		if !ok || d < 1 {
			return errors.NewValidationError(key, "must be an integer >= 1 or nil", value)
		}
		c.maxDepth = d
	case "min_samples_split":
		if f, ok := value.(float64); ok && f != math.Trunc(f) {
			if f <= 0 || f > 1 {
				return errors.NewValidationError(key, "fraction must be in (0, 1]", value)
			}
			c.minSamplesSplitFraction, c.minSamplesSplit = f, 2
			return nil
		}
		n, ok := asInt(value)
		if !ok || n < 2 {
			return errors.NewValidationError(key, "must be an integer >= 2 or a fraction in (0, 1]", value)
		}
		c.minSamplesSplit, c.minSamplesSplitFraction = n, 0
	case "min_samples_leaf":
		if f, ok := value.(float64); ok && f != math.Trunc(f) {
			if f <= 0 || f > 0.5 {
				return errors.NewValidationError(key, "fraction must be in (0, 0.5]", value)
			}
			c.minSamplesLeafFraction, c.minSamplesLeaf = f, 1
			return nil
		}
		n, ok := asInt(value)
		if !ok || n < 1 {
			return errors.NewValidationError(key, "must be an integer >= 1 or a fraction in (0, 0.5]", value)
		}
		c.minSamplesLeaf, c.minSamplesLeafFraction = n, 0
	case "max_features":
		switch v := value.(type) {
		case nil:
			c.maxFeatures = nil
		case string:
			if v != "auto" && v != "sqrt" && v != "log2" {
				return errors.NewValidationError(key, "must be 'auto', 'sqrt', 'log2', an int, a fraction or nil", value)
			}
			c.maxFeatures = v
		case float64:
			if v == math.Trunc(v) && v >= 1 {
				c.maxFeatures = int(v)
			} else if v > 0 && v <= 1 {
				c.maxFeatures = v
			} else {
				return errors.NewValidationError(key, "fraction must be in (0, 1]", value)
			}
		default:
			n, ok := asInt(value)
			if !ok || n < 1 {
				return errors.NewValidationError(key, "must be >= 1", value)
			}
			c.maxFeatures = n
		}
	case "max_leaf_nodes":
		if value == nil {
			c.maxLeafNodes = unlimited
			return nil
		}
		n, ok := asInt(value)
		if !ok || n < 2 {
			return errors.NewValidationError(key, "must be an integer >= 2 or nil", value)
		}
		c.maxLeafNodes = n
	case "min_impurity_decrease":
		f, ok := asFloat(value)
		if !ok || f < 0 {
			return errors.NewValidationError(key, "must be >= 0", value)
		}
		c.minImpurityDecrease = f
	case "random_state":
		if value == nil {
			c.randomState = randomStateNone
			return nil
		}
		n, ok := asInt(value)
		if !ok || n < 0 {
			return errors.NewValidationError(key, "must be a non-negative integer or nil", value)
		}
		c.randomState = int64(n)
	case "ccp_alpha":
		f, ok := asFloat(value)
		if !ok || f < 0 {
			return errors.NewValidationError(key, "must be >= 0", value)
		}
		c.ccpAlpha = f
	default:
		return errors.NewValidationError(key, "unknown parameter", value)
	}
	return nil
}

func asInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) {
			return int(x), true
		}
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func (c *cartConfig) newRand() *rand.Rand {
	seed := uint64(c.randomState)
	if c.randomState == randomStateNone {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// resolvedMinSplit and resolvedMinLeaf convert fractions into sample counts
// the way scikit-learn does: ceil(fraction * n_samples), at least 2 and 1.
func (c *cartConfig) resolvedMinSplit(n int) int {
	if c.minSamplesSplitFraction > 0 {
		return max(2, int(math.Ceil(c.minSamplesSplitFraction*float64(n))))
	}
	return c.minSamplesSplit
}

func (c *cartConfig) resolvedMinLeaf(n int) int {
	if c.minSamplesLeafFraction > 0 {
		return max(1, int(math.Ceil(c.minSamplesLeafFraction*float64(n))))
	}
	return c.minSamplesLeaf
}

func (c *cartConfig) resolvedMaxFeatures(nFeatures int, classifier bool) int {
	k := nFeatures
	switch v := c.maxFeatures.(type) {
	case int:
		k = v
	case float64:
		k = int(v * float64(nFeatures))
	case string:
		switch v {
		case "sqrt":
			k = int(math.Sqrt(float64(nFeatures)))
		case "log2":
			k = int(math.Log2(float64(nFeatures)))
		case "auto":
			if classifier {
				k = int(math.Sqrt(float64(nFeatures)))
			}
		}
	}
	return min(max(k, 1), nFeatures)
}

// criterion computes node impurity and the value stored in a leaf over a set
// of sample indices.
type criterion interface {
	// impurity of the samples in idx.
	impurity(idx []int) float64
	// value returned for a leaf holding idx.
	value(idx []int) []float64
	// sweep evaluates every threshold of the presorted indices and calls visit
	// with the number of samples on the left, the impurities of both sides and
	// a score ranking the split (larger is better).
	sweep(sorted []int, parent float64, visit func(nLeft int, left, right, score float64))
}

// decrease is the default split score: the impurity decrease of the node.
func decrease(n, nLeft int, parent, left, right float64) float64 {
	fl := float64(nLeft) / float64(n)
	return parent - fl*left - (1-fl)*right
}

// builder grows a tree from row-major feature data.
type builder struct {
	cfg        *cartConfig
	x          []float64
	nSamples   int
	nFeatures  int
	crit       criterion
	rng        *rand.Rand
	classifier bool

	minSplit    int
	minLeaf     int
	maxFeatures int

	nodes       []node
	importances []float64
}

type split struct {
	feature     int
	threshold   float64
	score       float64
	improvement float64
	leftImp     float64
	rightImp    float64
	left        []int
	right       []int
}

func (b *builder) at(i, j int) float64 {
	return b.x[i*b.nFeatures+j]
}

func (b *builder) build() {
	b.minSplit = b.cfg.resolvedMinSplit(b.nSamples)
	b.minLeaf = b.cfg.resolvedMinLeaf(b.nSamples)
	b.maxFeatures = b.cfg.resolvedMaxFeatures(b.nFeatures, b.classifier)
	b.importances = make([]float64, b.nFeatures)

	all := make([]int, b.nSamples)
	for i := range all {
		all[i] = i
	}

	if b.cfg.maxLeafNodes == unlimited {
		b.grow(all, 0)
	} else {
		b.growBestFirst(all)
	}
	b.normalizeImportances()
}

func (b *builder) newLeaf(idx []int, depth int) int {
	b.nodes = append(b.nodes, node{
		feature:  leafFeature,
		left:     noChild,
		right:    noChild,
		impurity: b.crit.impurity(idx),
		nSamples: len(idx),
		depth:    depth,
		value:    b.crit.value(idx),
	})
	return len(b.nodes) - 1
}

// grow builds depth-first and returns the index of the subtree root.
func (b *builder) grow(idx []int, depth int) int {
	id := b.newLeaf(idx, depth)
	s, ok := b.findSplit(idx, depth, b.nodes[id].impurity)
	if !ok {
		return id
	}
	b.applySplit(id, s)
	left := b.grow(s.left, depth+1)
	right := b.grow(s.right, depth+1)
	b.nodes[id].left, b.nodes[id].right = left, right
	return id
}

// growBestFirst expands the frontier leaf with the largest improvement until
// max_leaf_nodes leaves exist.
func (b *builder) growBestFirst(all []int) {
	type pending struct {
		id  int
		idx []int
		s   split
	}
	var frontier []pending
	push := func(idx []int, depth int) int {
		id := b.newLeaf(idx, depth)
		if s, ok := b.findSplit(idx, depth, b.nodes[id].impurity); ok {
			frontier = append(frontier, pending{id: id, idx: idx, s: s})
		}
		return id
	}

	push(all, 0)
	leaves := 1
	for leaves < b.cfg.maxLeafNodes && len(frontier) > 0 {
		sort.SliceStable(frontier, func(i, j int) bool {
			return frontier[i].s.improvement > frontier[j].s.improvement
		})
		next := frontier[0]
		frontier = frontier[1:]

		b.applySplit(next.id, next.s)
		depth := b.nodes[next.id].depth + 1
		left := push(next.s.left, depth)
		right := push(next.s.right, depth)
		b.nodes[next.id].left, b.nodes[next.id].right = left, right
		leaves++
	}
}

func (b *builder) applySplit(id int, s split) {
	n := &b.nodes[id]
	n.feature = s.feature
	n.threshold = s.threshold
	b.importances[s.feature] += float64(n.nSamples)*n.impurity -
		float64(len(s.left))*s.leftImp - float64(len(s.right))*s.rightImp
}

func (b *builder) normalizeImportances() {
	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total <= 0 {
		for i := range b.importances {
			b.importances[i] = 0
		}
		return
	}
	for i := range b.importances {
		b.importances[i] /= total
	}
}

// candidateFeatures returns the features examined at one node.
func (b *builder) candidateFeatures() []int {
	if b.maxFeatures >= b.nFeatures {
		features := make([]int, b.nFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return b.rng.Perm(b.nFeatures)[:b.maxFeatures]
}

func (b *builder) findSplit(idx []int, depth int, parentImp float64) (split, bool) {
	n := len(idx)
	if (b.cfg.maxDepth != unlimited && depth >= b.cfg.maxDepth) ||
		n < b.minSplit || n < 2*b.minLeaf || parentImp <= impurityEps {
		return split{}, false
	}

	best := split{feature: leafFeature, score: math.Inf(-1)}
	sorted := make([]int, n)
	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return b.at(sorted[i], f) < b.at(sorted[j], f) })

		lo, hi := b.at(sorted[0], f), b.at(sorted[n-1], f)
		if hi <= lo+featureEps {
			continue
		}

		var drawn float64
		if b.cfg.splitter == "random" {
			drawn = lo + b.rng.Float64()*(hi-lo)
		}

		b.crit.sweep(sorted, parentImp, func(nLeft int, leftImp, rightImp, score float64) {
			prev, next := b.at(sorted[nLeft-1], f), b.at(sorted[nLeft], f)
			if next <= prev+featureEps {
				return
			}
			if nLeft < b.minLeaf || n-nLeft < b.minLeaf {
				return
			}
			if b.cfg.splitter == "random" && !(prev <= drawn && drawn < next) {
				return
			}
			if score > best.score+impurityEps {
				threshold := (prev + next) / 2
				if b.cfg.splitter == "random" {
					threshold = drawn
				}
				best = split{
					feature:   f,
					threshold: threshold,
					score:     score,
					leftImp:   leftImp,
					rightImp:  rightImp,
				}
			}
		})
	}
	if best.feature == leafFeature {
		return split{}, false
	}

	nl := 0
	for _, i := range idx {
		if b.at(i, best.feature) <= best.threshold {
			nl++
		}
	}
	best.left = make([]int, 0, nl)
	best.right = make([]int, 0, n-nl)
	for _, i := range idx {
		if b.at(i, best.feature) <= best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}

	// weighted impurity decrease, as compared against min_impurity_decrease
	best.improvement = float64(n) / float64(b.nSamples) *
		(parentImp - float64(len(best.left))/float64(n)*best.leftImp - float64(len(best.right))/float64(n)*best.rightImp)
	if best.improvement < b.cfg.minImpurityDecrease-impurityEps {
		return split{}, false
	}
	return best, true
}

// predictThreshold 行を超える入力は行ごとに並列で予測する
const predictThreshold = 2048

// eachRow calls fn for every row index, in parallel chunks for large inputs.
// fn must only write to row i.
func eachRow(rows int, fn func(i int)) {
	parallel.ParallelizeWithThreshold(rows, predictThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// apply routes a sample to its leaf.
func apply(nodes []node, row func(j int) float64) *node {
	n := &nodes[0]
	for n.feature != leafFeature {
		if row(n.feature) <= n.threshold {
			n = &nodes[n.left]
		} else {
			n = &nodes[n.right]
		}
	}
	return n
}

func treeDepth(nodes []node) int {
	d := 0
	for _, n := range nodes {
		if n.feature == leafFeature && n.depth > d {
			d = n.depth
		}
	}
	return d
}

func countLeaves(nodes []node) int {
	c := 0
	for _, n := range nodes {
		if n.feature == leafFeature {
			c++
		}
	}
	return c
}
