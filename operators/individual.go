package operators

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
	"github.com/YuminosukeSato/opgrid/schema"
)

// Impl is the implementation behind an IndividualOp: an estimator
// (Fit(X, y), Predict) or a transformer (Fit(X), Transform) whose
// hyperparameters use the names of the operator's schema.
type Impl interface {
	model.Configurable
}

// Factory creates a fresh, unfitted implementation.
type Factory func() Impl

type unsupervisedFitter interface {
	Fit(X mat.Matrix) error
}

type transformer interface {
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// IndividualOp is a single schema-described estimator or transformer.
type IndividualOp struct {
	name    string
	schemas *schema.Combined
	factory Factory

	params map[string]interface{}
	state  State
	impl   Impl
}

// NewIndividualOp creates a planned operator.
func NewIndividualOp(name string, schemas *schema.Combined, factory Factory) *IndividualOp {
	return &IndividualOp{
		name:    name,
		schemas: schemas,
		factory: factory,
		params:  map[string]interface{}{},
		state:   Planned,
	}
}

func (op *IndividualOp) Name() string { return op.name }

// Schemas returns the combined schema.
func (op *IndividualOp) Schemas() *schema.Combined { return op.schemas }

func (op *IndividualOp) IsClassifier() bool { return op.schemas.Tags.Has("classifier") }

func (op *IndividualOp) IsTransformer() bool { return op.schemas.Tags.Has("transformer") }

func (op *IndividualOp) State() State { return op.state }

func (op *IndividualOp) Hyperparams() map[string]interface{} { return copyParams(op.params) }

func (op *IndividualOp) Steps() []Step { return nil }

// Defaults returns the schema defaults of every hyperparameter.
func (op *IndividualOp) Defaults() map[string]interface{} {
	return schema.Defaults(op.schemas.Hyperparams)
}

// fullParams overlays the bound hyperparameters on the defaults.
func (op *IndividualOp) fullParams() map[string]interface{} {
	full := op.Defaults()
	for k, v := range op.params {
		full[k] = v
	}
	return full
}

// WithParams binds params after checking them against the hyperparameter schema.
func (op *IndividualOp) WithParams(params map[string]interface{}) (Operator, error) {
	props := schema.Properties(op.schemas.Hyperparams)
	bound := copyParams(op.params)
	for k, v := range params {
		if _, ok := props[k]; !ok {
			return nil, errors.NewHyperparameterError(op.name, params,
				errors.Newf("unknown hyperparameter %q", k))
		}
		bound[k] = v
	}

	out := &IndividualOp{
		name:    op.name,
		schemas: op.schemas,
		factory: op.factory,
		params:  bound,
		state:   Trainable,
	}
	if err := schema.Validate(op.schemas.Hyperparams, out.fullParams()); err != nil {
		return nil, errors.NewHyperparameterError(op.name, bound, err)
	}
	return out, nil
}

// Fit builds the implementation, configures it and trains it.
func (op *IndividualOp) Fit(X, y mat.Matrix) (Operator, error) {
	if op.state == Planned {
		return nil, errors.Wrapf(errors.ErrPlannedOperator, "%s.Fit", op.name)
	}
	impl := op.factory()
	if err := impl.SetParams(op.fullParams()); err != nil {
		return nil, errors.NewHyperparameterError(op.name, op.params, err)
	}

	var err error
	switch f := impl.(type) {
	case model.Fitter:
		err = f.Fit(X, y)
	case unsupervisedFitter:
		err = f.Fit(X)
	default:
		return nil, errors.NewModelError(op.name+".Fit", "implementation cannot be fitted", nil)
	}
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("operators")
	if logger.Enabled(context.Background(), log.LevelDebug) {
		r, c := X.Dims()
		logger.Debug("operator trained",
			log.ModelNameKey, op.name, log.SamplesKey, r, log.FeaturesKey, c)
	}

	return &IndividualOp{
		name:    op.name,
		schemas: op.schemas,
		factory: op.factory,
		params:  copyParams(op.params),
		state:   Trained,
		impl:    impl,
	}, nil
}

func (op *IndividualOp) requireTrained(method string) error {
	if op.state != Trained {
		return errors.NewNotFittedError(op.name, method)
	}
	return nil
}

func (op *IndividualOp) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := op.requireTrained("Predict"); err != nil {
		return nil, err
	}
	p, ok := op.impl.(model.Predictor)
	if !ok {
		return nil, errors.NewModelError(op.name+".Predict", "operator is a transformer and cannot predict", nil)
	}
	return p.Predict(X)
}

func (op *IndividualOp) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := op.requireTrained("PredictProba"); err != nil {
		return nil, err
	}
	p, ok := op.impl.(model.ProbaPredictor)
	if !ok {
		return nil, errors.NewModelError(op.name+".PredictProba", "operator does not provide class probabilities", nil)
	}
	return p.PredictProba(X)
}

func (op *IndividualOp) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := op.requireTrained("Transform"); err != nil {
		return nil, err
	}
	t, ok := op.impl.(transformer)
	if !ok {
		return nil, errors.NewModelError(op.name+".Transform", "operator is an estimator and cannot transform", nil)
	}
	return t.Transform(X)
}

// Classes returns the labels of a trained classifier, nil otherwise.
func (op *IndividualOp) Classes() []float64 {
	if c, ok := op.impl.(classesOf); ok && op.state == Trained {
		return c.Classes()
	}
	return nil
}

// Impl returns the trained implementation, or nil before Fit.
func (op *IndividualOp) Impl() Impl {
	return op.impl
}

func (op *IndividualOp) Clone() Operator {
	state := op.state
	if state == Trained {
		state = Trainable
	}
	return &IndividualOp{
		name:    op.name,
		schemas: op.schemas,
		factory: op.factory,
		params:  copyParams(op.params),
		state:   state,
	}
}
