package tree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
)

var regressorCriteria = map[string]bool{"mse": true, "friedman_mse": true, "mae": true}

// DecisionTreeRegressor is a CART regressor. Leaves predict the mean of their
// samples, or the median under the mae criterion.
type DecisionTreeRegressor struct {
	cartConfig
	state *model.StateManager

	nodes_              []node
	featureImportances_ []float64
}

// NewDecisionTreeRegressor creates a regressor with scikit-learn defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		cartConfig: defaultConfig("mse"),
		state:      model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.cartConfig)
	}
	return dt
}

// Fit builds the tree from X and the targets in y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if !regressorCriteria[dt.criterion] {
		return errors.NewValidationError("criterion", "must be 'mse', 'friedman_mse' or 'mae'", dt.criterion)
	}

	b := &builder{
		cfg:       &dt.cartConfig,
		x:         rowMajor(X),
		nSamples:  nSamples,
		nFeatures: nFeatures,
		crit:      &regCriterion{y: model.Labels(y), kind: dt.criterion},
		rng:       dt.newRand(),
	}
	b.build()

	dt.nodes_ = b.nodes
	dt.featureImportances_ = b.importances
	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()

	log.GetLoggerWithName("tree").Debug("DecisionTreeRegressor fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"depth", dt.GetDepth(),
		"leaves", dt.GetNLeaves(),
	)
	return nil
}

// Predict returns the leaf value for each sample.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	eachRow(rows, func(i int) {
		leaf := apply(dt.nodes_, func(j int) float64 { return X.At(i, j) })
		out.Set(i, 0, leaf.value[0])
	})
	return out, nil
}

// Score returns the coefficient of determination R² on X and y. A constant y
// scores 1 when predicted exactly and 0 otherwise.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return math.NaN()
	}
	truth := model.Labels(y)
	m := mean(truth)
	var tss, rss float64
	for i, t := range truth {
		d := t - pred.At(i, 0)
		rss += d * d
		tss += (t - m) * (t - m)
	}
	if tss == 0 {
		if rss == 0 {
			return 1
		}
		return 0
	}
	return 1 - rss/tss
}

// GetFeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	return treeDepth(dt.nodes_)
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	return countLeaves(dt.nodes_)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params()
}

// SetParams sets hyperparameters and resets the fitted state.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		if err := dt.set(key, value, regressorCriteria); err != nil {
			return err
		}
	}
	dt.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeRegressor) Clone() *DecisionTreeRegressor {
	return &DecisionTreeRegressor{cartConfig: dt.cartConfig, state: model.NewStateManager()}
}
