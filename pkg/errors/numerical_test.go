package errors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("ok", []float64{0, -1, 1e300}, 0))

	err := CheckNumericalStability("solver", []float64{1, math.Inf(1)}, 7)
	var nerr *NumericalInstabilityError
	require.True(t, As(err, &nerr))
	assert.Equal(t, 7, nerr.Iteration)
	assert.Contains(t, err.Error(), "solver at iteration 7")
	assert.Contains(t, err.Error(), "+Inf")
}

func TestCheckMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.NoError(t, CheckMatrix("fit", m, 2, 2, 0))

	data := make([]float64, 30)
	for i := range data {
		data[i] = math.NaN()
	}
	err := CheckMatrix("fit", mat.NewDense(5, 6, data), 5, 6, 0)
	var nerr *NumericalInstabilityError
	require.True(t, As(err, &nerr))
	assert.Len(t, nerr.Values, 10)
	assert.Contains(t, err.Error(), "...")
}

func TestClipValue(t *testing.T) {
	assert.Equal(t, 0.0, ClipValue(-1, 0, 1))
	assert.Equal(t, 1.0, ClipValue(2, 0, 1))
	assert.Equal(t, 0.5, ClipValue(0.5, 0, 1))
}

func TestStabilizeExp(t *testing.T) {
	assert.False(t, math.IsInf(StabilizeExp(1e4), 0))
	assert.Equal(t, 0.0, StabilizeExp(-1e4))
	assert.InDelta(t, math.E, StabilizeExp(1), 1e-15)
}

func TestLogSumExp(t *testing.T) {
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
	assert.True(t, math.IsInf(LogSumExp([]float64{math.Inf(-1), math.Inf(-1)}), -1))
	assert.InDelta(t, 1000+math.Log(2), LogSumExp([]float64{1000, 1000}), 1e-9)
	assert.InDelta(t, math.Log(math.Exp(1)+math.Exp(2)), LogSumExp([]float64{1, 2}), 1e-12)
}
