package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	Xt, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 10}, s.Mean, 1e-12)
	// 定数列のスケールは1
	assert.Equal(t, 1.0, s.Scale[1])
	col := mat.Col(nil, 0, Xt)
	assert.InDelta(t, 0.0, col[0]+col[1]+col[2]+col[3], 1e-12)
	assert.InDelta(t, -1.3416407864998738, col[0], 1e-12)
	assert.Equal(t, 0.0, Xt.At(2, 1))

	back, err := s.InverseTransform(Xt)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	assert.Contains(t, s.String(), "n_features=2")
}

func TestStandardScalerOptions(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})

	s := NewStandardScaler(false, true)
	Xt, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 2.0, Xt.At(0, 0))

	require.NoError(t, s.SetParams(map[string]interface{}{"with_std": false, "with_mean": true}))
	assert.False(t, s.IsFitted())
	Xt, err = s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, -1.0, Xt.At(0, 0))

	assert.Error(t, s.SetParams(map[string]interface{}{"with_std": 1}))
	assert.Error(t, s.SetParams(map[string]interface{}{"scale": true}))
	assert.Equal(t, s.GetParams(), s.Clone().GetParams())
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})

	m := NewMinMaxScaler([2]float64{-1, 1})
	Xt, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1}, mat.Col(nil, 0, Xt))
	assert.Equal(t, []float64{-1, -1, -1}, mat.Col(nil, 1, Xt))

	back, err := m.InverseTransform(Xt)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	require.NoError(t, m.SetParams(map[string]interface{}{"feature_range": []interface{}{0.0, 2}}))
	assert.Equal(t, [2]float64{0, 2}, m.FeatureRange)
	assert.Error(t, m.SetParams(map[string]interface{}{"feature_range": []interface{}{0.0}}))

	bad := NewMinMaxScaler([2]float64{1, 0})
	assert.Error(t, bad.Fit(X))
}

func TestScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	m := NewMinMaxScalerDefault()
	_, err = m.InverseTransform(mat.NewDense(1, 1, nil))
	assert.Error(t, err)
}
