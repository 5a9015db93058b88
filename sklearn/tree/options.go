package tree

// Option configures either decision tree.
type Option func(*cartConfig)

// WithCriterion sets the split quality measure: gini or entropy for the
// classifier, mse, friedman_mse or mae for the regressor.
func WithCriterion(criterion string) Option {
	return func(c *cartConfig) { c.criterion = criterion }
}

// WithSplitter sets the split strategy: "best" or "random".
func WithSplitter(splitter string) Option {
	return func(c *cartConfig) { c.splitter = splitter }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(c *cartConfig) { c.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(c *cartConfig) {
		c.minSamplesSplit = n
		c.minSamplesSplitFraction = 0
	}
}

// WithMinSamplesSplitFraction sets min_samples_split as a fraction of the training samples.
func WithMinSamplesSplitFraction(f float64) Option {
	return func(c *cartConfig) { c.minSamplesSplitFraction = f }
}

// WithMinSamplesLeaf sets the minimum number of samples required in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(c *cartConfig) {
		c.minSamplesLeaf = n
		c.minSamplesLeafFraction = 0
	}
}

// WithMinSamplesLeafFraction sets min_samples_leaf as a fraction of the training samples.
func WithMinSamplesLeafFraction(f float64) Option {
	return func(c *cartConfig) { c.minSamplesLeafFraction = f }
}

// WithMaxFeatures sets the number of features examined per split: an int,
// a fraction in (0, 1], "auto", "sqrt", "log2" or nil for all.
func WithMaxFeatures(v interface{}) Option {
	return func(c *cartConfig) { c.maxFeatures = v }
}

// WithMaxLeafNodes grows the tree best-first with at most n leaves.
func WithMaxLeafNodes(n int) Option {
	return func(c *cartConfig) { c.maxLeafNodes = n }
}

// WithMinImpurityDecrease requires each split to decrease the weighted impurity by at least v.
func WithMinImpurityDecrease(v float64) Option {
	return func(c *cartConfig) { c.minImpurityDecrease = v }
}

// WithRandomState seeds feature sampling and the random splitter.
func WithRandomState(seed int64) Option {
	return func(c *cartConfig) { c.randomState = seed }
}

// WithCCPAlpha records the cost-complexity pruning parameter. Pruning is not performed.
func WithCCPAlpha(alpha float64) Option {
	return func(c *cartConfig) { c.ccpAlpha = alpha }
}
