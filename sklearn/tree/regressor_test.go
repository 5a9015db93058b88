package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i < 5 {
			y.Set(i, 0, 1.0)
		} else {
			y.Set(i, 0, 5.0)
		}
	}
	return X, y
}

func TestDecisionTreeRegressor_Criteria(t *testing.T) {
	for _, criterion := range []string{"mse", "friedman_mse", "mae"} {
		t.Run(criterion, func(t *testing.T) {
			X, y := stepData()
			dt := NewDecisionTreeRegressor(WithCriterion(criterion), WithMaxDepth(3))
			require.NoError(t, dt.Fit(X, y))

			pred, err := dt.Predict(mat.NewDense(2, 1, []float64{1.5, 8.2}))
			require.NoError(t, err)
			assert.InDelta(t, 1.0, pred.At(0, 0), 1e-9)
			assert.InDelta(t, 5.0, pred.At(1, 0), 1e-9)
			assert.InDelta(t, 1.0, dt.Score(X, y), 1e-9)
			assert.Equal(t, 1, dt.GetDepth())
			assert.Equal(t, 2, dt.GetNLeaves())
		})
	}
}

func TestDecisionTreeRegressor_MaxLeafNodes(t *testing.T) {
	X := mat.NewDense(20, 1, nil)
	y := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i))
	}

	dt := NewDecisionTreeRegressor(WithMaxLeafNodes(4))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 4, dt.GetNLeaves())
}

func TestDecisionTreeRegressor_MinImpurityDecrease(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMinImpurityDecrease(100))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetNLeaves())

	pred, err := dt.Predict(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, pred.At(0, 0), 1e-9)
}

func TestDecisionTreeRegressor_FractionalParams(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.SetParams(map[string]interface{}{
		"min_samples_split": 0.25,
		"min_samples_leaf":  0.1,
		"max_depth":         nil,
		"max_features":      "sqrt",
	}))

	params := dt.GetParams()
	assert.Equal(t, 0.25, params["min_samples_split"])
	assert.Equal(t, 0.1, params["min_samples_leaf"])
	assert.Nil(t, params["max_depth"])
	assert.Equal(t, "sqrt", params["max_features"])

	X, y := stepData()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.resolvedMinSplit(10))
	assert.Equal(t, 1, dt.resolvedMinLeaf(10))
}

func TestDecisionTreeRegressor_SetParamsErrors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	tests := []map[string]interface{}{
		{"criterion": "gini"},
		{"max_depth": 0},
		{"min_samples_split": 1},
		{"min_samples_leaf": 0.7},
		{"splitter": "worst"},
		{"unknown": 1},
	}
	for _, params := range tests {
		err := dt.SetParams(params)
		var vErr *errors.ValidationError
		assert.True(t, errors.As(err, &vErr), "params %v", params)
	}
}

func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	_, err := NewDecisionTreeRegressor().Predict(mat.NewDense(1, 1, []float64{0}))
	var nfErr *errors.NotFittedError
	assert.True(t, errors.As(err, &nfErr))
	assert.True(t, math.IsNaN(NewDecisionTreeRegressor().Score(mat.NewDense(1, 1, []float64{0}), mat.NewDense(1, 1, []float64{0}))))
}

func TestDecisionTreeClassifier_RandomSplitterIsSeeded(t *testing.T) {
	X := mat.NewDense(12, 2, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64((i*7)%5))
		y.Set(i, 0, float64(i/4))
	}

	a := NewDecisionTreeClassifier(WithSplitter("random"), WithRandomState(7))
	b := NewDecisionTreeClassifier(WithSplitter("random"), WithRandomState(7))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
	assert.Equal(t, 1.0, a.Score(X, y))
}

func TestDecisionTreeClassifier_FeatureMismatch(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 3, []float64{0, 0, 0}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDecisionTreeClassifier_CloneIsUnfitted(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))

	c := dt.Clone()
	assert.Equal(t, dt.GetParams(), c.GetParams())
	_, err := c.Predict(X)
	assert.Error(t, err)
	assert.Equal(t, []float64{0, 1}, dt.Classes())
}
