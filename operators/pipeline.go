package operators

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Pipeline is a linear sequence of operators. Every step but the last is a
// transformer whose output feeds the next step.
type Pipeline struct {
	steps []Step
}

// MakePipeline composes ops in order. Nested pipelines are flattened and
// step names are derived from the operator names.
func MakePipeline(ops ...Operator) (*Pipeline, error) {
	var flat []Operator
	for _, op := range ops {
		if p, ok := op.(*Pipeline); ok {
			for _, s := range p.steps {
				flat = append(flat, s.Op)
			}
			continue
		}
		flat = append(flat, op)
	}
	if len(flat) == 0 {
		return nil, errors.NewValueError("MakePipeline", "a pipeline needs at least one step")
	}
	for _, op := range flat[:len(flat)-1] {
		if !op.IsTransformer() {
			return nil, errors.NewValueError("MakePipeline",
				op.Name()+" is not a transformer and can only be the last step")
		}
	}
	names := stepNames(flat)
	steps := make([]Step, len(flat))
	for i, op := range flat {
		steps[i] = Step{Name: names[i], Op: op}
	}
	return &Pipeline{steps: steps}, nil
}

// Then composes a >> b.
func Then(a, b Operator) (*Pipeline, error) {
	return MakePipeline(a, b)
}

func (p *Pipeline) Name() string { return "Pipeline" }

func (p *Pipeline) last() Operator { return p.steps[len(p.steps)-1].Op }

func (p *Pipeline) IsClassifier() bool { return p.last().IsClassifier() }

func (p *Pipeline) IsTransformer() bool { return p.last().IsTransformer() }

func (p *Pipeline) Steps() []Step { return append([]Step(nil), p.steps...) }

// State is the least advanced state among the steps.
func (p *Pipeline) State() State {
	return minState(p.steps)
}

func minState(steps []Step) State {
	state := Trained
	for _, s := range steps {
		if st := s.Op.State(); st < state {
			state = st
		}
	}
	return state
}

func (p *Pipeline) Hyperparams() map[string]interface{} {
	return nestedParams(p.steps)
}

func nestedParams(steps []Step) map[string]interface{} {
	out := map[string]interface{}{}
	for _, s := range steps {
		for k, v := range s.Op.Hyperparams() {
			out[s.Name+Separator+k] = v
		}
	}
	return out
}

// WithParams routes step__param keys to the named steps. Every step is
// configured, so unmentioned planned steps become trainable with defaults.
func (p *Pipeline) WithParams(params map[string]interface{}) (Operator, error) {
	steps, err := configureSteps(p.Name(), p.steps, params)
	if err != nil {
		return nil, err
	}
	return &Pipeline{steps: steps}, nil
}

func configureSteps(owner string, steps []Step, params map[string]interface{}) ([]Step, error) {
	byStep := map[string]map[string]interface{}{}
	index := map[string]bool{}
	for _, s := range steps {
		index[s.Name] = true
		byStep[s.Name] = map[string]interface{}{}
	}
	for k, v := range params {
		head, rest, nested := SplitKey(k)
		if !nested || !index[head] {
			return nil, errors.NewHyperparameterError(owner, params,
				errors.Newf("unknown hyperparameter %q", k))
		}
		byStep[head][rest] = v
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		op, err := s.Op.WithParams(byStep[s.Name])
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", s.Name)
		}
		out[i] = Step{Name: s.Name, Op: op}
	}
	return out, nil
}

// Fit trains the steps in order, feeding each transform into the next step.
func (p *Pipeline) Fit(X, y mat.Matrix) (Operator, error) {
	if p.State() == Planned {
		return nil, errors.Wrap(errors.ErrPlannedOperator, "Pipeline.Fit")
	}
	trained := make([]Step, len(p.steps))
	current := X
	for i, s := range p.steps {
		op, err := s.Op.Fit(current, y)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", s.Name)
		}
		trained[i] = Step{Name: s.Name, Op: op}
		if i < len(p.steps)-1 {
			if current, err = op.Transform(current); err != nil {
				return nil, errors.Wrapf(err, "step %s", s.Name)
			}
		}
	}
	return &Pipeline{steps: trained}, nil
}

// prefix applies every step but the last.
func (p *Pipeline) prefix(method string, X mat.Matrix) (mat.Matrix, error) {
	if p.State() != Trained {
		return nil, errors.NewNotFittedError(p.Name(), method)
	}
	current := X
	for _, s := range p.steps[:len(p.steps)-1] {
		var err error
		if current, err = s.Op.Transform(current); err != nil {
			return nil, errors.Wrapf(err, "step %s", s.Name)
		}
	}
	return current, nil
}

func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.prefix("Predict", X)
	if err != nil {
		return nil, err
	}
	return p.last().Predict(Xt)
}

func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.prefix("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return p.last().PredictProba(Xt)
}

func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.prefix("Transform", X)
	if err != nil {
		return nil, err
	}
	return p.last().Transform(Xt)
}

// Classes returns the labels of the final classifier.
func (p *Pipeline) Classes() []float64 {
	classes, _ := Classes(p.last())
	return classes
}

func (p *Pipeline) Clone() Operator {
	return &Pipeline{steps: cloneSteps(p.steps)}
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = Step{Name: s.Name, Op: s.Op.Clone()}
	}
	return out
}
