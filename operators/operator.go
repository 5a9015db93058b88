// Package operators provides the operator abstraction: schema-described
// individual operators and their composition into pipelines and unions.
//
// Operators are immutable values. WithParams returns a configured copy and
// Fit returns a trained copy, leaving the receiver unchanged:
//
//	planned := sklearn.DecisionTreeClassifier()
//	trainable, err := planned.WithParams(map[string]interface{}{"max_depth": 3})
//	trained, err := trainable.Fit(X, y)
//	pred, err := trained.Predict(X)
package operators

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// State is the lifecycle stage of an operator.
type State int

const (
	// Planned operators still have free hyperparameters and cannot be fitted.
	Planned State = iota
	// Trainable operators have all hyperparameters bound.
	Trainable
	// Trained operators can predict or transform.
	Trained
)

func (s State) String() string {
	switch s {
	case Planned:
		return "planned"
	case Trainable:
		return "trainable"
	case Trained:
		return "trained"
	}
	return "unknown"
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	switch s {
	case "planned":
		return Planned, true
	case "trainable":
		return Trainable, true
	case "trained":
		return Trained, true
	}
	return Planned, false
}

// Operator is a pluggable ML step, atomic or composite.
type Operator interface {
	Name() string
	IsClassifier() bool
	IsTransformer() bool
	State() State

	// Hyperparams returns the explicitly bound hyperparameters. Composite
	// operators report nested keys of the form step__param.
	Hyperparams() map[string]interface{}
	// WithParams returns a trainable copy with params bound on top of the
	// receiver's. Nested keys are routed to sub-operators.
	WithParams(params map[string]interface{}) (Operator, error)
	// Fit returns a trained copy.
	Fit(X, y mat.Matrix) (Operator, error)

	Predict(X mat.Matrix) (mat.Matrix, error)
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Transform(X mat.Matrix) (mat.Matrix, error)

	// Clone returns an untrained copy with the same bound hyperparameters.
	Clone() Operator
	// Steps returns the named sub-operators of a composite, nil otherwise.
	Steps() []Step
}

// Step is a named sub-operator of a pipeline or union.
type Step struct {
	Name string
	Op   Operator
}

// Separator joins a step name and a nested hyperparameter name.
const Separator = "__"

// SplitKey splits "step__param" into its first component and the remainder.
func SplitKey(key string) (head, rest string, nested bool) {
	return strings.Cut(key, Separator)
}

// classesOf is implemented by trained classifiers.
type classesOf interface {
	Classes() []float64
}

// Classes returns the class labels of a trained classifier.
func Classes(op Operator) ([]float64, bool) {
	if c, ok := op.(classesOf); ok {
		classes := c.Classes()
		return classes, classes != nil
	}
	return nil, false
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// stepNames derives step names from operator names: lowercase, with every
// repeated name numbered _1, _2, ...
func stepNames(ops []Operator) []string {
	counts := map[string]int{}
	for _, op := range ops {
		counts[strings.ToLower(op.Name())]++
	}
	seen := map[string]int{}
	names := make([]string, len(ops))
	for i, op := range ops {
		base := strings.ToLower(op.Name())
		if counts[base] == 1 {
			names[i] = base
			continue
		}
		seen[base]++
		names[i] = base + "_" + strconv.Itoa(seen[base])
	}
	return names
}
