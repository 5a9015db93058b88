// Package model defines the estimator contracts shared by the bundled
// estimators, the operator layer and the search engine.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their
	// scikit-learn names.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters. Unknown keys are an error.
	SetParams(params map[string]interface{}) error
}

// Configurable combines parameter access in both directions.
type Configurable interface {
	ParameterGetter
	ParameterSetter
}

// Scorer is the interface for models that compute their own default score:
// accuracy for classifiers, R² for regressors.
type Scorer interface {
	Score(X, y mat.Matrix) float64
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Weights は学習された重み（係数）を返す
	Weights() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
