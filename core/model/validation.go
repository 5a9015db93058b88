package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// CheckXY validates a training pair: X non-empty, y an n×1 column with the
// same number of rows, and no NaN or Inf in X.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures, err = CheckX(op, X)
	if err != nil {
		return 0, 0, err
	}
	if y == nil {
		return 0, 0, errors.NewValueError(op, "y must not be nil")
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	return nSamples, nFeatures, nil
}

// CheckX validates a feature matrix.
func CheckX(op string, X mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil {
		return 0, 0, errors.NewValueError(op, "X must not be nil")
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, errors.NewValueError(op, "X contains NaN or Inf")
			}
		}
	}
	return nSamples, nFeatures, nil
}

// Column copies column j of m into a new slice.
func Column(m mat.Matrix, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, j)
	}
	return out
}

// Labels returns the first column of y.
func Labels(y mat.Matrix) []float64 {
	return Column(y, 0)
}

// ColumnVector wraps values as an n×1 matrix.
func ColumnVector(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}
