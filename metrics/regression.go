// Package metrics implements the regression and classification metrics behind
// the named scorers of model_selection.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// ErrNoVariance is returned by R2Score and ExplainedVarianceScore when yTrue is constant.
var ErrNoVariance = errors.New("no variance in yTrue")

// checkPair validates two equally long, non-empty vectors and returns their length.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// residuals returns yTrue - yPred.
func residuals(yTrue, yPred *mat.VecDense) []float64 {
	n := yTrue.Len()
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = yTrue.AtVec(i) - yPred.AtVec(i)
	}
	return diff
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	diff := residuals(yTrue, yPred)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// columnPair converts two n×1 matrices into vectors.
func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	t := mat.NewVecDense(rTrue, nil)
	p := mat.NewVecDense(rTrue, nil)
	for i := 0; i < rTrue; i++ {
		t.SetVec(i, yTrue.At(i, 0))
		p.SetVec(i, yPred.At(i, 0))
	}
	return t, p, nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	diff := residuals(yTrue, yPred)
	return floats.Norm(diff, 1) / float64(len(diff)), nil
}

// MedianAbsoluteError は絶対誤差の中央値を計算する
func MedianAbsoluteError(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("MedianAbsoluteError", yTrue, yPred); err != nil {
		return 0, err
	}
	diff := residuals(yTrue, yPred)
	for i := range diff {
		diff[i] = math.Abs(diff[i])
	}
	sort.Float64s(diff)
	n := len(diff)
	if n%2 == 1 {
		return diff[n/2], nil
	}
	return (diff[n/2-1] + diff[n/2]) / 2, nil
}

// MaxError は最大絶対誤差を計算する
func MaxError(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("MaxError", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Norm(residuals(yTrue, yPred), math.Inf(1)), nil
}

// MSLE は対数二乗誤差（Mean Squared Logarithmic Error）を計算する。
// 負の値を含む場合はエラー。
func MSLE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSLE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		if t < 0 || p < 0 {
			return 0, errors.NewValueError("MSLE", "cannot be used when targets contain negative values")
		}
		d := math.Log1p(t) - math.Log1p(p)
		sum += d * d
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := stat.Mean(vecData(yTrue), nil)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, errors.Wrap(ErrNoVariance, "R2Score: total sum of squares is zero")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAPE = (100/n) * Σ|yTrue - yPred|/|yTrue|
	var sum float64
	validCount := 0
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t != 0 { // ゼロ除算を避ける
			sum += math.Abs(t-yPred.AtVec(i)) / math.Abs(t)
			validCount++
		}
	}

	if validCount == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("ExplainedVarianceScore", yTrue, yPred); err != nil {
		return 0, err
	}

	// 母分散（ddof=0）で計算する
	truth := vecData(yTrue)
	diff := residuals(yTrue, yPred)
	_, varYTrue := stat.PopMeanVariance(truth, nil)
	_, varDiff := stat.PopMeanVariance(diff, nil)

	if varYTrue == 0 {
		return 0, errors.Wrap(ErrNoVariance, "ExplainedVarianceScore")
	}

	// 説明分散スコア = 1 - Var(yTrue - yPred) / Var(yTrue)
	return 1 - varDiff/varYTrue, nil
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
