package operators

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

var _ model.ClassifierMixin = (*Compat)(nil)

// Compat gives any operator the mutable estimator surface expected by the
// search engine: GetParams/SetParams/Clone/Fit/Predict.
type Compat struct {
	op      Operator
	trained Operator
}

// MakeCompat wraps op. A trained op can predict right away.
func MakeCompat(op Operator) *Compat {
	c := &Compat{op: op}
	if op.State() == Trained {
		c.trained = op
	}
	return c
}

// GetParams returns the bound hyperparameters of the wrapped operator.
func (c *Compat) GetParams() map[string]interface{} {
	return c.op.Hyperparams()
}

// SetParams rebinds hyperparameters and discards any trained state.
func (c *Compat) SetParams(params map[string]interface{}) error {
	op, err := c.op.WithParams(params)
	if err != nil {
		return err
	}
	c.op = op
	c.trained = nil
	return nil
}

// Clone returns an untrained wrapper around a copy of the operator.
func (c *Compat) Clone() *Compat {
	return &Compat{op: c.op.Clone()}
}

func (c *Compat) Fit(X, y mat.Matrix) error {
	trained, err := c.op.Fit(X, y)
	if err != nil {
		return err
	}
	c.trained = trained
	return nil
}

func (c *Compat) fitted(method string) (Operator, error) {
	if c.trained == nil {
		return nil, errors.NewNotFittedError(c.op.Name(), method)
	}
	return c.trained, nil
}

func (c *Compat) Predict(X mat.Matrix) (mat.Matrix, error) {
	op, err := c.fitted("Predict")
	if err != nil {
		return nil, err
	}
	return op.Predict(X)
}

func (c *Compat) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	op, err := c.fitted("PredictProba")
	if err != nil {
		return nil, err
	}
	return op.PredictProba(X)
}

func (c *Compat) Transform(X mat.Matrix) (mat.Matrix, error) {
	op, err := c.fitted("Transform")
	if err != nil {
		return nil, err
	}
	return op.Transform(X)
}

// Classes returns the labels of the trained classifier, nil before Fit.
func (c *Compat) Classes() []float64 {
	if c.trained == nil {
		return nil
	}
	classes, _ := Classes(c.trained)
	return classes
}

func (c *Compat) IsClassifier() bool { return c.op.IsClassifier() }

// Unwrap returns the trained operator after Fit, the configured one before.
func (c *Compat) Unwrap() Operator {
	if c.trained != nil {
		return c.trained
	}
	return c.op
}
