package optimizers

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/schema"
)

// Observing wraps an operator under the hyperparameter "op" and brackets
// every fit, predict, predict_proba and transform with observer events.
// Nested keys op__<name> configure the wrapped operator. The observer may be
// nil, in which case Observing only forwards.
type Observing struct {
	op       operators.Operator
	observer Observer
}

// NewObserving wraps op.
func NewObserving(op operators.Operator, observer Observer) *Observing {
	return &Observing{op: op, observer: observer}
}

var observingSchemas = &schema.Combined{
	Description:      "Forwards to the wrapped operator and reports start/end/fail of every method to an observer.",
	DocumentationURL: "https://pkg.go.dev/github.com/YuminosukeSato/opgrid/optimizers#Observing",
	Tags:             schema.Tags{Pre: []string{}, Op: []string{"estimator", "transformer"}, Post: []string{}},
	Hyperparams: &schema.Schema{
		AllOf: []*schema.Schema{{
			Type:                 []string{"object"},
			Required:             []string{"op"},
			RelevantToOptimizer:  []string{},
			AdditionalProperties: schema.Bool(false),
			Properties: map[string]*schema.Schema{
				"op": {
					Description: "The wrapped operator.",
					LaleType:    schema.LaleOperator,
				},
				"observer": {
					Description: "Receives the lifecycle events; null disables them.",
					LaleType:    schema.LaleAny,
					Default:     schema.Null,
				},
			},
		}},
	},
}

// Schemas returns the hyperparameter schema of the wrapper itself.
func (o *Observing) Schemas() *schema.Combined { return observingSchemas }

func (o *Observing) Name() string { return "Observing" }

// Op returns the wrapped operator.
func (o *Observing) Op() operators.Operator { return o.op }

// Observer returns the observer, possibly nil.
func (o *Observing) Observer() Observer { return o.observer }

func (o *Observing) IsClassifier() bool { return o.op.IsClassifier() }

func (o *Observing) IsTransformer() bool { return o.op.IsTransformer() }

func (o *Observing) State() operators.State { return o.op.State() }

func (o *Observing) Steps() []operators.Step { return nil }

// Hyperparams reports the wrapped operator's hyperparameters under op__.
func (o *Observing) Hyperparams() map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range o.op.Hyperparams() {
		out["op"+operators.Separator+k] = v
	}
	return out
}

// WithParams accepts "op" (a replacement operator), "observer" and nested
// op__ keys for the wrapped operator.
func (o *Observing) WithParams(params map[string]interface{}) (operators.Operator, error) {
	inner := o.op
	observer := o.observer
	nested := map[string]interface{}{}
	for k, v := range params {
		head, rest, isNested := operators.SplitKey(k)
		switch {
		case isNested && head == "op":
			nested[rest] = v
		case k == "op":
			op, ok := v.(operators.Operator)
			if !ok {
				return nil, errors.NewHyperparameterError(o.Name(), params,
					errors.Newf("op must be an operator, got %T", v))
			}
			inner = op
		case k == "observer":
			if v == nil {
				observer = nil
				continue
			}
			obs, ok := v.(Observer)
			if !ok {
				return nil, errors.NewHyperparameterError(o.Name(), params,
					errors.Newf("observer must implement Observer, got %T", v))
			}
			observer = obs
		default:
			return nil, errors.NewHyperparameterError(o.Name(), params,
				errors.Newf("unknown hyperparameter %q", k))
		}
	}
	configured, err := inner.WithParams(nested)
	if err != nil {
		return nil, err
	}
	return &Observing{op: configured, observer: observer}, nil
}

func (o *Observing) start(phase string, X mat.Matrix) {
	if o.observer == nil {
		return
	}
	r, c := X.Dims()
	o.observer.Start(phase, map[string]interface{}{"op": o.op.Name(), "samples": r, "features": c})
}

// finish reports the outcome stored in *err. It must be deferred before
// errors.Recover so that recovered panics are reported as failures.
func (o *Observing) finish(phase string, err *error, result func() map[string]interface{}) {
	if o.observer == nil {
		return
	}
	if *err != nil {
		o.observer.Fail(phase, *err)
		return
	}
	o.observer.End(phase, result())
}

// Fit trains the wrapped operator and returns it wrapped with the same observer.
func (o *Observing) Fit(X, y mat.Matrix) (trained operators.Operator, err error) {
	o.start(PhaseFit, X)
	defer o.finish(PhaseFit, &err, func() map[string]interface{} {
		return map[string]interface{}{"op": o.op.Name(), "state": trained.State().String()}
	})
	defer errors.Recover(&err, "Observing.Fit")

	inner, err := o.op.Fit(X, y)
	if err != nil {
		return nil, err
	}
	return &Observing{op: inner, observer: o.observer}, nil
}

func (o *Observing) apply(phase, operation string, X mat.Matrix, fn func(mat.Matrix) (mat.Matrix, error)) (out mat.Matrix, err error) {
	o.start(phase, X)
	defer o.finish(phase, &err, func() map[string]interface{} {
		r, c := out.Dims()
		return map[string]interface{}{"op": o.op.Name(), "rows": r, "columns": c}
	})
	defer errors.Recover(&err, operation)
	return fn(X)
}

func (o *Observing) Predict(X mat.Matrix) (mat.Matrix, error) {
	return o.apply(PhasePredict, "Observing.Predict", X, o.op.Predict)
}

func (o *Observing) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return o.apply(PhasePredictProba, "Observing.PredictProba", X, o.op.PredictProba)
}

func (o *Observing) Transform(X mat.Matrix) (mat.Matrix, error) {
	return o.apply(PhaseTransform, "Observing.Transform", X, o.op.Transform)
}

// Classes returns the labels of the wrapped trained classifier.
func (o *Observing) Classes() []float64 {
	classes, _ := operators.Classes(o.op)
	return classes
}

func (o *Observing) Clone() operators.Operator {
	return &Observing{op: o.op.Clone(), observer: o.observer}
}

// unwrap strips Observing layers.
func unwrap(op operators.Operator) operators.Operator {
	for {
		o, ok := op.(*Observing)
		if !ok {
			return op
		}
		op = o.op
	}
}
