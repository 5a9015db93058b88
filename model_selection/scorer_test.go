package model_selection

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/sklearn/dummy"
)

// constantRegressor predicts "value" for every row. Negative values fail to
// fit and "panic" makes Fit panic.
type constantRegressor struct {
	value  float64
	panics bool
	fitted bool
}

func newConstant() Estimator { return &constantRegressor{} }

func (c *constantRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "value":
			switch x := v.(type) {
			case int:
				c.value = float64(x)
			case float64:
				c.value = x
			default:
				return errors.NewValidationError(k, "must be a number", v)
			}
		case "panic":
			c.panics = v.(bool)
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return nil
}

func (c *constantRegressor) Fit(X, y mat.Matrix) error {
	if c.panics {
		panic("boom")
	}
	if c.value < 0 {
		return errors.New("negative value")
	}
	c.fitted = true
	return nil
}

func (c *constantRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !c.fitted {
		return nil, errors.NewNotFittedError("constantRegressor", "Predict")
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, c.value)
	}
	return out, nil
}

func fitted(t *testing.T, est Estimator, X, y mat.Matrix) Estimator {
	t.Helper()
	require.NoError(t, est.Fit(X, y))
	return est
}

func TestGetScorer_Unknown(t *testing.T) {
	_, err := GetScorer("f2")
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "scoring", verr.ParamName)
}

func TestScorerNames(t *testing.T) {
	names := ScorerNames()
	assert.Len(t, names, 13)
	assert.True(t, sort.StringsAreSorted(names))
	for _, name := range names {
		_, err := GetScorer(name)
		assert.NoError(t, err, name)
	}
	assert.Equal(t, "accuracy", DefaultScoring(true))
	assert.Equal(t, "r2", DefaultScoring(false))
}

func TestScorers_Regression(t *testing.T) {
	X := mat.NewDense(2, 1, nil)
	y := column(0, 2)
	est := fitted(t, &constantRegressor{value: 1}, X, y)

	mse, err := GetScorer("neg_mean_squared_error")
	require.NoError(t, err)
	s, err := mse(est, X, y)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, s, 1e-12)

	maxErr, _ := GetScorer("max_error")
	s, err = maxErr(est, X, y)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, s, 1e-12)

	r2, _ := GetScorer("r2")
	s, err = r2(est, X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s, 1e-12)

	// constant target
	s, err = r2(est, X, column(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
	s, err = r2(fitted(t, &constantRegressor{value: 3}, X, y), X, column(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestScorers_Classification(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	y := column(0, 0, 0, 1)
	clf := dummy.NewDummyClassifier(dummy.WithStrategy(dummy.StrategyMostFrequent))
	require.NoError(t, clf.Fit(X, y))

	acc, _ := GetScorer("accuracy")
	s, err := acc(clf, X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, s, 1e-12)

	auc, _ := GetScorer("roc_auc")
	s, err = auc(clf, X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s, 1e-12)

	logLoss, _ := GetScorer("neg_log_loss")
	s, err = logLoss(clf, X, y)
	require.NoError(t, err)
	assert.Less(t, s, 0.0)

	// probabilities are required
	_, err = auc(fitted(t, &constantRegressor{value: 1}, X, y), X, y)
	assert.Error(t, err)
}

func TestCrossValScore(t *testing.T) {
	X := mat.NewDense(6, 1, nil)
	y := column(1, 1, 1, 3, 3, 3)
	mae, _ := GetScorer("neg_mean_absolute_error")
	factory := func() Estimator { return &constantRegressor{value: 1} }

	scores, err := CrossValScore(context.Background(), factory, X, y, NewKFold(2), mae, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, -2}, scores, 1e-12)

	failing := func() Estimator { return &constantRegressor{value: -1} }
	_, err = CrossValScore(context.Background(), failing, X, y, NewKFold(2), mae, 1)
	assert.Error(t, err)
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{1, 3})
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 1.0, std)

	mean, std = meanStd([]float64{1, math.NaN()})
	assert.True(t, math.IsNaN(mean))
	assert.True(t, math.IsNaN(std))
}
