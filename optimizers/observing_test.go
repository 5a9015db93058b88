package optimizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/lib/sklearn"
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/schema"
)

// blobs returns 40 samples in two separated groups labelled 0 and 1.
func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(40, 2, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		jitter := float64(i%5) * 0.1
		if i%2 == 0 {
			X.Set(i, 0, jitter)
			X.Set(i, 1, 0.5-jitter)
		} else {
			X.Set(i, 0, 5+jitter)
			X.Set(i, 1, 5.5-jitter)
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func accuracy(pred, y mat.Matrix) float64 {
	n, _ := y.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// panicky panics when fitted.
type panicky struct{}

func (panicky) GetParams() map[string]interface{} { return map[string]interface{}{} }
func (panicky) SetParams(map[string]interface{}) error { return nil }
func (panicky) Fit(X, y mat.Matrix) error { panic("kaboom") }
func (panicky) Predict(X mat.Matrix) (mat.Matrix, error) { return nil, nil }

var panickySchemas = &schema.Combined{
	Tags: schema.Tags{Op: []string{"estimator", "classifier"}},
	Hyperparams: &schema.Schema{AllOf: []*schema.Schema{{
		Type:                 []string{"object"},
		AdditionalProperties: schema.Bool(false),
		Properties:           map[string]*schema.Schema{},
	}}},
}

func TestObserving_Lifecycle(t *testing.T) {
	X, y := blobs()
	rec := NewRecordingObserver()
	obs := NewObserving(sklearn.DecisionTreeClassifier(), rec)
	assert.Equal(t, operators.Planned, obs.State())
	assert.True(t, obs.IsClassifier())

	configured, err := obs.WithParams(map[string]interface{}{"op__max_depth": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"op__max_depth": 2}, configured.Hyperparams())
	assert.Equal(t, operators.Trainable, configured.State())

	trained, err := configured.Fit(X, y)
	require.NoError(t, err)
	assert.Equal(t, operators.Trained, trained.State())
	assert.Equal(t, 1, rec.Count("start", PhaseFit))
	last, _ := rec.Last(PhaseFit)
	assert.Equal(t, "end", last.Kind)
	assert.Equal(t, "trained", last.Data["state"])

	pred, err := trained.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(pred, y))
	proba, err := trained.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 1, rec.Count("end", PhasePredict))
	assert.Equal(t, 1, rec.Count("end", PhasePredictProba))

	classes, ok := operators.Classes(trained)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1}, classes)

	inner := unwrap(trained)
	assert.Equal(t, "DecisionTreeClassifier", inner.Name())
	assert.Equal(t, operators.Trainable, trained.Clone().State())
}

func TestObserving_Failures(t *testing.T) {
	X, y := blobs()
	rec := NewRecordingObserver()
	obs := NewObserving(sklearn.DecisionTreeClassifier(), rec)

	_, err := obs.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, 1, rec.Count("fail", PhasePredict))

	_, err = obs.Transform(X)
	assert.Error(t, err)
	assert.Equal(t, 1, rec.Count("fail", PhaseTransform))

	_, err = obs.Fit(X, y)
	assert.True(t, errors.Is(err, errors.ErrPlannedOperator))
	assert.Equal(t, 1, rec.Count("fail", PhaseFit))

	boom, err := NewObserving(operators.NewIndividualOp("Panicky", panickySchemas,
		func() operators.Impl { return panicky{} }), rec).WithParams(nil)
	require.NoError(t, err)
	_, err = boom.Fit(X, y)
	var pe *errors.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "kaboom", pe.PanicValue)
	assert.Equal(t, 2, rec.Count("fail", PhaseFit))
}

func TestObserving_WithParams(t *testing.T) {
	rec := NewRecordingObserver()
	obs := NewObserving(sklearn.DecisionTreeClassifier(), nil)

	_, err := obs.WithParams(map[string]interface{}{"max_depth": 2})
	var hp *errors.HyperparameterError
	assert.True(t, errors.As(err, &hp))

	_, err = obs.WithParams(map[string]interface{}{"op__max_depth": 0})
	assert.Error(t, err)

	_, err = obs.WithParams(map[string]interface{}{"observer": "stdout"})
	assert.Error(t, err)

	_, err = obs.WithParams(map[string]interface{}{"op": 3})
	assert.Error(t, err)

	swapped, err := obs.WithParams(map[string]interface{}{
		"op":       sklearn.DummyClassifier(),
		"observer": rec,
	})
	require.NoError(t, err)
	o := swapped.(*Observing)
	assert.Equal(t, "DummyClassifier", o.Op().Name())
	assert.Same(t, rec, o.Observer())

	silent, err := swapped.WithParams(map[string]interface{}{"observer": nil})
	require.NoError(t, err)
	assert.Nil(t, silent.(*Observing).Observer())

	assert.NoError(t, schema.IsCombinedSchema(obs.Schemas()))
}

func TestObserving_NilObserver(t *testing.T) {
	X, y := blobs()
	obs, err := NewObserving(sklearn.LogisticRegression(), nil).WithParams(nil)
	require.NoError(t, err)
	trained, err := obs.Fit(X, y)
	require.NoError(t, err)
	pred, err := trained.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 40, r)
}
