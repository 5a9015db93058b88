package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a supervised model: it learns from (X, y) and predicts y.
// y is always an n×1 column.
type Estimator interface {
	Fitter
	Predictor
}

// ProbaPredictor is implemented by classifiers that expose class probabilities.
// Columns follow the order returned by Classes.
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator
	ProbaPredictor

	// Classes returns the sorted labels seen during fitting.
	Classes() []float64
}
