// Package tree implements CART decision trees compatible with scikit-learn's
// DecisionTreeClassifier and DecisionTreeRegressor.
package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
)

var classifierCriteria = map[string]bool{"gini": true, "entropy": true}

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	cartConfig
	state *model.StateManager

	classes_            []float64
	nClasses_           int
	nodes_              []node
	featureImportances_ []float64
}

// NewDecisionTreeClassifier creates a classifier with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		cartConfig: defaultConfig("gini"),
		state:      model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.cartConfig)
	}
	return dt
}

// Fit builds the tree from X and the labels in y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if !classifierCriteria[dt.criterion] {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}

	labels := model.Labels(y)
	dt.classes_ = uniqueSorted(labels)
	dt.nClasses_ = len(dt.classes_)

	encoded := make([]int, nSamples)
	for i, v := range labels {
		encoded[i] = sort.SearchFloat64s(dt.classes_, v)
	}

	b := &builder{
		cfg:        &dt.cartConfig,
		x:          rowMajor(X),
		nSamples:   nSamples,
		nFeatures:  nFeatures,
		crit:       &classCriterion{y: encoded, nClasses: dt.nClasses_, entropy: dt.criterion == "entropy"},
		rng:        dt.newRand(),
		classifier: true,
	}
	b.build()

	dt.nodes_ = b.nodes
	dt.featureImportances_ = b.importances
	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()

	log.GetLoggerWithName("tree").Debug("DecisionTreeClassifier fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, dt.nClasses_,
		"depth", dt.GetDepth(),
		"leaves", dt.GetNLeaves(),
	)
	return nil
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) (int, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return 0, err
	}
	rows, cols := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier."+method, cols); err != nil {
		return 0, err
	}
	return rows, nil
}

// PredictProba returns the class distribution of the leaf each sample falls
// into. Columns follow Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	rows, err := dt.checkPredict("PredictProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, dt.nClasses_, nil)
	eachRow(rows, func(i int) {
		leaf := apply(dt.nodes_, func(j int) float64 { return X.At(i, j) })
		out.SetRow(i, leaf.value)
	})
	return out, nil
}

// Predict returns the most probable class for each sample.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, err := dt.checkPredict("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	eachRow(rows, func(i int) {
		leaf := apply(dt.nodes_, func(j int) float64 { return X.At(i, j) })
		out.Set(i, 0, dt.classes_[argmax(leaf.value)])
	})
	return out, nil
}

// Score returns the mean accuracy on X and y, or NaN if prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return math.NaN()
	}
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes returns the sorted labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return treeDepth(dt.nodes_)
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return countLeaves(dt.nodes_)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.params()
}

// SetParams sets hyperparameters and resets the fitted state.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		if err := dt.set(key, value, classifierCriteria); err != nil {
			return err
		}
	}
	dt.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() *DecisionTreeClassifier {
	return &DecisionTreeClassifier{cartConfig: dt.cartConfig, state: model.NewStateManager()}
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	out := make([]float64, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func rowMajor(X mat.Matrix) []float64 {
	r, c := X.Dims()
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i*c+j] = X.At(i, j)
		}
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
