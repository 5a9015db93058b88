package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestOrdinalEncoder(t *testing.T) {
	train := mat.NewDense(4, 2, []float64{
		30, 1,
		10, 2,
		20, 1,
		10, 3,
	})

	enc := NewOrdinalEncoder()
	Xt, err := enc.FitTransform(train)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{10, 20, 30}, {1, 2, 3}}, enc.Categories)
	assert.Equal(t, []float64{2, 0, 1, 0}, mat.Col(nil, 0, Xt))
	assert.Equal(t, []float64{0, 1, 0, 2}, mat.Col(nil, 1, Xt))

	back, err := enc.InverseTransform(Xt)
	require.NoError(t, err)
	assert.True(t, mat.Equal(train, back))
}

func TestOrdinalEncoderUnknown(t *testing.T) {
	train := mat.NewDense(3, 1, []float64{1, 2, 3})
	test := mat.NewDense(2, 1, []float64{2, 99})

	t.Run("auto code", func(t *testing.T) {
		enc := NewOrdinalEncoder()
		require.NoError(t, enc.Fit(train))
		Xt, err := enc.Transform(test)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 3}, mat.Col(nil, 0, Xt))

		back, err := enc.InverseTransform(Xt)
		require.NoError(t, err)
		assert.Equal(t, 2.0, back.At(0, 0))
		assert.True(t, math.IsNaN(back.At(1, 0)))
	})

	t.Run("explicit code", func(t *testing.T) {
		enc := NewOrdinalEncoder(WithEncodeUnknownWith(1000))
		require.NoError(t, enc.Fit(train))
		Xt, err := enc.Transform(test)
		require.NoError(t, err)
		assert.Equal(t, 1000.0, Xt.At(1, 0))
		back, err := enc.InverseTransform(Xt)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(back.At(1, 0)))
	})

	t.Run("error", func(t *testing.T) {
		enc := NewOrdinalEncoder(WithHandleUnknown(HandleUnknownError))
		require.NoError(t, enc.Fit(train))
		_, err := enc.Transform(test)
		assert.Error(t, err)
	})

	t.Run("fixed categories", func(t *testing.T) {
		enc := NewOrdinalEncoder(WithCategories([][]float64{{3, 2, 1, 99}}))
		require.NoError(t, enc.Fit(train))
		Xt, err := enc.Transform(test)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 3}, mat.Col(nil, 0, Xt))

		strict := NewOrdinalEncoder(WithCategories([][]float64{{1, 2}}))
		assert.Error(t, strict.Fit(train))
	})
}

func TestOrdinalEncoderParams(t *testing.T) {
	enc := NewOrdinalEncoder()
	assert.Equal(t, map[string]interface{}{
		"categories":          "auto",
		"dtype":               "float64",
		"handle_unknown":      "ignore",
		"encode_unknown_with": "auto",
	}, enc.GetParams())

	require.NoError(t, enc.SetParams(map[string]interface{}{
		"encode_unknown_with": 7.0,
		"handle_unknown":      "error",
		"categories":          []interface{}{[]interface{}{1.0, 2}},
	}))
	params := enc.GetParams()
	assert.Equal(t, 7, params["encode_unknown_with"])
	assert.Equal(t, "error", params["handle_unknown"])
	assert.Equal(t, [][]float64{{1, 2}}, params["categories"])
	assert.Equal(t, params, enc.Clone().GetParams())

	assert.Error(t, enc.SetParams(map[string]interface{}{"encode_unknown_with": "max"}))
	assert.Error(t, enc.SetParams(map[string]interface{}{"handle_unknown": "warn"}))
	assert.Error(t, enc.SetParams(map[string]interface{}{"sparse": true}))
}
