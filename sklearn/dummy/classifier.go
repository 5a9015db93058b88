// Package dummy provides baseline classifiers that ignore the features.
package dummy

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Strategies supported by DummyClassifier.
const (
	StrategyStratified   = "stratified"
	StrategyMostFrequent = "most_frequent"
	StrategyPrior        = "prior"
	StrategyUniform      = "uniform"
	StrategyConstant     = "constant"
)

var strategies = map[string]bool{
	StrategyStratified:   true,
	StrategyMostFrequent: true,
	StrategyPrior:        true,
	StrategyUniform:      true,
	StrategyConstant:     true,
}

const randomStateNone int64 = -1

// DummyClassifier makes predictions using simple rules over the training
// labels, compatible with scikit-learn's DummyClassifier.
type DummyClassifier struct {
	state *model.StateManager

	strategy    string
	randomState int64
	constant    *float64

	classes_    []float64
	classPrior_ []float64
	nFeatures_  int

	src rand.Source
}

// Option configures a DummyClassifier.
type Option func(*DummyClassifier)

// WithStrategy sets the prediction strategy.
func WithStrategy(strategy string) Option {
	return func(d *DummyClassifier) { d.strategy = strategy }
}

// WithRandomState seeds the stratified and uniform strategies.
func WithRandomState(seed int64) Option {
	return func(d *DummyClassifier) { d.randomState = seed }
}

// WithConstant sets the label predicted by the constant strategy.
func WithConstant(label float64) Option {
	return func(d *DummyClassifier) { d.constant = &label }
}

// NewDummyClassifier creates a DummyClassifier with the prior strategy.
func NewDummyClassifier(opts ...Option) *DummyClassifier {
	d := &DummyClassifier{
		state:       model.NewStateManager(),
		strategy:    StrategyPrior,
		randomState: randomStateNone,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fit records the class labels and their empirical prior. X is only used for
// its shape.
func (d *DummyClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("DummyClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if !strategies[d.strategy] {
		return errors.NewValidationError("strategy", "unknown strategy", d.strategy)
	}

	counts := make(map[float64]int)
	for _, v := range model.Labels(y) {
		counts[v]++
	}
	d.classes_ = make([]float64, 0, len(counts))
	for c := range counts {
		d.classes_ = append(d.classes_, c)
	}
	sort.Float64s(d.classes_)
	d.classPrior_ = make([]float64, len(d.classes_))
	for i, c := range d.classes_ {
		d.classPrior_[i] = float64(counts[c]) / float64(nSamples)
	}

	if d.strategy == StrategyConstant {
		if d.constant == nil {
			return errors.NewValueError("DummyClassifier.Fit", "constant strategy requires a constant")
		}
		if d.classIndex(*d.constant) < 0 {
			return errors.NewValueError("DummyClassifier.Fit",
				"the constant target value must be present in the training data")
		}
	}

	seed := uint64(d.randomState)
	if d.randomState == randomStateNone {
		seed = rand.Uint64()
	}
	d.src = rand.NewPCG(seed, seed)
	d.nFeatures_ = nFeatures
	d.state.SetDimensions(nFeatures, nSamples)
	d.state.SetFitted()
	return nil
}

func (d *DummyClassifier) classIndex(label float64) int {
	i := sort.SearchFloat64s(d.classes_, label)
	if i < len(d.classes_) && d.classes_[i] == label {
		return i
	}
	return -1
}

// mode returns the index of the most frequent class; ties go to the smallest label.
func (d *DummyClassifier) mode() int {
	best := 0
	for i, p := range d.classPrior_ {
		if p > d.classPrior_[best] {
			best = i
		}
	}
	return best
}

func (d *DummyClassifier) rows(method string, X mat.Matrix) (int, error) {
	if err := d.state.RequireFitted("DummyClassifier", method); err != nil {
		return 0, err
	}
	r, _ := X.Dims()
	return r, nil
}

// Predict returns one label per sample according to the strategy.
func (d *DummyClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, err := d.rows("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(n, 1, nil)
	switch d.strategy {
	case StrategyMostFrequent, StrategyPrior:
		label := d.classes_[d.mode()]
		for i := 0; i < n; i++ {
			out.Set(i, 0, label)
		}
	case StrategyConstant:
		for i := 0; i < n; i++ {
			out.Set(i, 0, *d.constant)
		}
	case StrategyStratified, StrategyUniform:
		draw := d.sampler()
		for i := 0; i < n; i++ {
			out.Set(i, 0, d.classes_[int(draw.Rand())])
		}
	}
	return out, nil
}

// PredictProba returns class probabilities with columns in Classes() order.
// prior returns the class prior, uniform returns 1/k, and the remaining
// strategies return one-hot rows.
func (d *DummyClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	n, err := d.rows("PredictProba", X)
	if err != nil {
		return nil, err
	}
	k := len(d.classes_)
	out := mat.NewDense(n, k, nil)
	switch d.strategy {
	case StrategyPrior:
		for i := 0; i < n; i++ {
			out.SetRow(i, d.classPrior_)
		}
	case StrategyUniform:
		for i := 0; i < n; i++ {
			for j := 0; j < k; j++ {
				out.Set(i, j, 1/float64(k))
			}
		}
	case StrategyMostFrequent:
		m := d.mode()
		for i := 0; i < n; i++ {
			out.Set(i, m, 1)
		}
	case StrategyConstant:
		c := d.classIndex(*d.constant)
		for i := 0; i < n; i++ {
			out.Set(i, c, 1)
		}
	case StrategyStratified:
		draw := d.sampler()
		for i := 0; i < n; i++ {
			out.Set(i, int(draw.Rand()), 1)
		}
	}
	return out, nil
}

// sampler draws class indices from the prior (stratified) or uniformly.
func (d *DummyClassifier) sampler() distuv.Categorical {
	weights := d.classPrior_
	if d.strategy == StrategyUniform {
		weights = make([]float64, len(d.classes_))
		for i := range weights {
			weights[i] = 1
		}
	}
	return distuv.NewCategorical(weights, d.src)
}

// Score returns the mean accuracy on X and y.
func (d *DummyClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := d.Predict(X)
	if err != nil {
		return 0
	}
	labels := model.Labels(y)
	correct := 0
	for i, v := range labels {
		if pred.At(i, 0) == v {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}

// Classes returns the sorted labels seen during Fit.
func (d *DummyClassifier) Classes() []float64 {
	return append([]float64(nil), d.classes_...)
}

// ClassPrior returns the empirical class distribution seen during Fit.
func (d *DummyClassifier) ClassPrior() []float64 {
	return append([]float64(nil), d.classPrior_...)
}

// GetParams returns the hyperparameters.
func (d *DummyClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"strategy":     d.strategy,
		"random_state": nil,
		"constant":     nil,
	}
	if d.randomState != randomStateNone {
		params["random_state"] = d.randomState
	}
	if d.constant != nil {
		params["constant"] = *d.constant
	}
	return params
}

// SetParams sets hyperparameters and resets the fitted state.
func (d *DummyClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "strategy":
			s, ok := value.(string)
			if !ok || !strategies[s] {
				return errors.NewValidationError(key, "unknown strategy", value)
			}
			d.strategy = s
		case "random_state":
			switch v := value.(type) {
			case nil:
				d.randomState = randomStateNone
			case int:
				d.randomState = int64(v)
			case int64:
				d.randomState = v
			case float64:
				d.randomState = int64(v)
			default:
				return errors.NewValidationError(key, "must be an integer or nil", value)
			}
		case "constant":
			switch v := value.(type) {
			case nil:
				d.constant = nil
			case int:
				f := float64(v)
				d.constant = &f
			case int64:
				f := float64(v)
				d.constant = &f
			case float64:
				d.constant = &v
			default:
				return errors.NewValidationError(key, "must be a number or nil", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	d.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (d *DummyClassifier) Clone() *DummyClassifier {
	c := NewDummyClassifier()
	c.strategy = d.strategy
	c.randomState = d.randomState
	if d.constant != nil {
		v := *d.constant
		c.constant = &v
	}
	return c
}
