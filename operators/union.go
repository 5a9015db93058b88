package operators

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Union fits every branch on the same input and concatenates their
// transforms column-wise, in branch order.
type Union struct {
	branches []Step
}

// MakeUnion combines transformers into a feature union.
func MakeUnion(ops ...Operator) (*Union, error) {
	if len(ops) == 0 {
		return nil, errors.NewValueError("MakeUnion", "a union needs at least one branch")
	}
	for _, op := range ops {
		if !op.IsTransformer() {
			return nil, errors.NewValueError("MakeUnion", op.Name()+" is not a transformer")
		}
	}
	names := stepNames(ops)
	branches := make([]Step, len(ops))
	for i, op := range ops {
		branches[i] = Step{Name: names[i], Op: op}
	}
	return &Union{branches: branches}, nil
}

func (u *Union) Name() string { return "Union" }

func (u *Union) IsClassifier() bool { return false }

func (u *Union) IsTransformer() bool { return true }

func (u *Union) State() State { return minState(u.branches) }

func (u *Union) Steps() []Step { return append([]Step(nil), u.branches...) }

func (u *Union) Hyperparams() map[string]interface{} { return nestedParams(u.branches) }

func (u *Union) WithParams(params map[string]interface{}) (Operator, error) {
	branches, err := configureSteps(u.Name(), u.branches, params)
	if err != nil {
		return nil, err
	}
	return &Union{branches: branches}, nil
}

func (u *Union) Fit(X, y mat.Matrix) (Operator, error) {
	if u.State() == Planned {
		return nil, errors.Wrap(errors.ErrPlannedOperator, "Union.Fit")
	}
	trained := make([]Step, len(u.branches))
	for i, b := range u.branches {
		op, err := b.Op.Fit(X, y)
		if err != nil {
			return nil, errors.Wrapf(err, "branch %s", b.Name)
		}
		trained[i] = Step{Name: b.Name, Op: op}
	}
	return &Union{branches: trained}, nil
}

func (u *Union) Transform(X mat.Matrix) (mat.Matrix, error) {
	if u.State() != Trained {
		return nil, errors.NewNotFittedError(u.Name(), "Transform")
	}
	parts := make([]mat.Matrix, len(u.branches))
	rows, cols := 0, 0
	for i, b := range u.branches {
		Xt, err := b.Op.Transform(X)
		if err != nil {
			return nil, errors.Wrapf(err, "branch %s", b.Name)
		}
		r, c := Xt.Dims()
		if i > 0 && r != rows {
			return nil, errors.NewDimensionError("Union.Transform", rows, r, 0)
		}
		rows = r
		cols += c
		parts[i] = Xt
	}

	out := mat.NewDense(rows, cols, nil)
	offset := 0
	for _, part := range parts {
		_, c := part.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(part)
		offset += c
	}
	return out, nil
}

func (u *Union) Predict(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.NewModelError("Union.Predict", "a union is a transformer and cannot predict", nil)
}

func (u *Union) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.NewModelError("Union.PredictProba", "a union is a transformer and cannot predict", nil)
}

func (u *Union) Clone() Operator {
	return &Union{branches: cloneSteps(u.branches)}
}
