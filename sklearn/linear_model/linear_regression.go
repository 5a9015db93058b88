package linear_model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/metrics"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// LinearRegression is a linear regression model using ordinary least squares
// Fully compatible with scikit-learn's LinearRegression
type LinearRegression struct {
	state *model.StateManager // State management (composition instead of embedding)

	// Hyperparameters
	fitIntercept bool // Whether to learn the intercept
	copyX        bool // Accepted for compatibility; Fit never modifies X
	nJobs        int  // Accepted for compatibility

	// Learned parameters
	coef_      []float64 // Weight coefficients
	intercept_ float64   // Intercept

	nFeatures_ int // Number of features
	nSamples_  int // Number of samples
	rank_      int // Matrix rank
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		copyX:        true,
		nJobs:        1,
	}

	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithCopyX はデータコピーの有無を設定
func WithCopyX(copy bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.copyX = copy
	}
}

// WithNJobs は並列数を設定
func WithNJobs(n int) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.nJobs = n
	}
}

// Fit はモデルを訓練データで学習
//
// 切片を学習する場合はXとyを中心化してから最小二乗問題を解く。
// ランク落ちした行列でもSVDの擬似逆行列で最小ノルム解を返す。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	XWork := mat.DenseCopyOf(X)
	yWork := model.Labels(y)

	xMeans := make([]float64, cols)
	yMean := 0.0
	if lr.fitIntercept {
		for j := 0; j < cols; j++ {
			col := model.Column(XWork, j)
			xMeans[j] = floats.Sum(col) / float64(rows)
		}
		yMean = floats.Sum(yWork) / float64(rows)
		floats.AddConst(-yMean, yWork)
		for i := 0; i < rows; i++ {
			floats.Sub(XWork.RawRowView(i), xMeans)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(XWork, mat.SVDThin) {
		return errors.NewModelError("LinearRegression.Fit", "svd", errors.New("factorization failed"))
	}
	values := svd.Values(nil)
	rcond := float64(max(rows, cols)) * 2.220446049250313e-16
	lr.rank_ = 0
	for _, s := range values {
		if s > rcond*values[0] {
			lr.rank_++
		}
	}

	coef := mat.NewDense(cols, 1, nil)
	svd.SolveTo(coef, mat.NewDense(rows, 1, yWork), lr.rank_)

	lr.coef_ = model.Column(coef, 0)
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = yMean - floats.Dot(lr.coef_, xMeans)
	}

	lr.nSamples_ = rows
	lr.nFeatures_ = cols
	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewVecDense(rows, nil)
	predictions.MulVec(X, mat.NewVecDense(cols, lr.coef_))
	for i := 0; i < rows; i++ {
		predictions.SetVec(i, predictions.AtVec(i)+lr.intercept_)
	}
	return mat.NewDense(rows, 1, predictions.RawVector().Data), nil
}

// Score はモデルの決定係数（R²）を計算。yが定数の場合は完全一致で1、それ以外は0。
func (lr *LinearRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return math.NaN()
	}
	yTrue := mat.NewVecDense(len(model.Labels(y)), model.Labels(y))
	yPred := mat.NewVecDense(yTrue.Len(), model.Labels(predictions))
	score, err := metrics.R2Score(yTrue, yPred)
	if errors.Is(err, metrics.ErrNoVariance) {
		if mat.Equal(yTrue, yPred) {
			return 1
		}
		return 0
	}
	if err != nil {
		return math.NaN()
	}
	return score
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Weights は model.LinearModel を満たす
func (lr *LinearRegression) Weights() []float64 {
	return lr.Coef()
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// Rank は中心化後の計画行列のランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank_
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"copy_X":        lr.copyX,
		"n_jobs":        lr.nJobs,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "fit_intercept":
			lr.fitIntercept, err = asBool(key, value)
		case "copy_X":
			lr.copyX, err = asBool(key, value)
		case "n_jobs":
			if value == nil {
				lr.nJobs = 1
			} else {
				lr.nJobs, err = asInt(key, value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	lr.state.Reset()
	return nil
}

// ExportWeights はモデルの重みをエクスポート（完全な再現性を保証）
func (lr *LinearRegression) ExportWeights() (*model.Weights, error) {
	if err := lr.state.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	return &model.Weights{
		ModelType:   "LinearRegression",
		Coef:        [][]float64{lr.Coef()},
		Intercept:   []float64{lr.intercept_},
		NFeatures:   lr.nFeatures_,
		Hyperparams: lr.GetParams(),
	}, nil
}

// ImportWeights は重みをインポートして学習済み状態にする
func (lr *LinearRegression) ImportWeights(w *model.Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != "LinearRegression" || len(w.Coef) != 1 {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights do not describe a LinearRegression")
	}
	lr.coef_ = append([]float64(nil), w.Coef[0]...)
	lr.intercept_ = w.Intercept[0]
	lr.nFeatures_ = w.NFeatures
	lr.state.SetDimensions(w.NFeatures, 0)
	lr.state.SetFitted()
	return nil
}

// GetWeightHash は重みのハッシュ値を計算（検証用）
func (lr *LinearRegression) GetWeightHash() string {
	w, err := lr.ExportWeights()
	if err != nil {
		return ""
	}
	return w.Hash()
}

// IsFitted はモデルが学習済みかどうかを返す
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (lr *LinearRegression) Clone() *LinearRegression {
	return NewLinearRegression(
		WithLRFitIntercept(lr.fitIntercept),
		WithCopyX(lr.copyX),
		WithNJobs(lr.nJobs),
	)
}
