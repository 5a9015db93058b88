package linear_model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLinearRegression(t *testing.T) {
	// y = 1 + 2*x1 - 3*x2
	X := mat.NewDense(5, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
		2, 3,
	})
	y := mat.NewDense(5, 1, []float64{1, 3, -2, 0, -4})

	t.Run("with intercept", func(t *testing.T) {
		lr := NewLinearRegression()
		require.NoError(t, lr.Fit(X, y))
		assert.InDeltaSlice(t, []float64{2, -3}, lr.Coef(), 1e-9)
		assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)
		assert.Equal(t, 2, lr.Rank())
		assert.InDelta(t, 1.0, lr.Score(X, y), 1e-12)
	})

	t.Run("without intercept", func(t *testing.T) {
		lr := NewLinearRegression(WithLRFitIntercept(false))
		require.NoError(t, lr.Fit(X, y))
		assert.Equal(t, 0.0, lr.Intercept())
		assert.Less(t, lr.Score(X, y), 1.0)
	})

	t.Run("rank deficient", func(t *testing.T) {
		Xd := mat.NewDense(4, 2, []float64{1, 2, 2, 4, 3, 6, 4, 8})
		yd := mat.NewDense(4, 1, []float64{5, 10, 15, 20})
		lr := NewLinearRegression()
		require.NoError(t, lr.Fit(Xd, yd))
		assert.Equal(t, 1, lr.Rank())
		assert.InDelta(t, 1.0, lr.Score(Xd, yd), 1e-9)
	})

	t.Run("constant target", func(t *testing.T) {
		yc := mat.NewDense(5, 1, []float64{2, 2, 2, 2, 2})
		lr := NewLinearRegression()
		require.NoError(t, lr.Fit(X, yc))
		assert.InDelta(t, 2.0, lr.Intercept(), 1e-9)
	})
}

func TestLinearRegressionParams(t *testing.T) {
	lr := NewLinearRegression()
	assert.Equal(t, map[string]interface{}{
		"fit_intercept": true,
		"copy_X":        true,
		"n_jobs":        1,
	}, lr.GetParams())

	require.NoError(t, lr.SetParams(map[string]interface{}{"fit_intercept": false, "n_jobs": nil}))
	assert.Equal(t, false, lr.Clone().GetParams()["fit_intercept"])
	assert.Error(t, lr.SetParams(map[string]interface{}{"normalize": true}))
	assert.Error(t, lr.SetParams(map[string]interface{}{"fit_intercept": "yes"}))

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}
