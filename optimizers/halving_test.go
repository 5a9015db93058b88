package optimizers

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/lib/sklearn"
	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/schema"
	"github.com/YuminosukeSato/opgrid/search"
)

func silenceWarnings(t *testing.T) {
	t.Helper()
	errors.SetWarningHandler(func(error) {})
}

func treeGrid() search.Grid {
	return search.Grid{
		"criterion": {"gini", "entropy"},
		"max_depth": {1, 2, 3},
	}
}

func TestHalvingGridSearchCV_ParamGrid(t *testing.T) {
	X, y := blobs()
	rec := NewRecordingObserver()
	progress := make(chan model_selection.Progress, 4)

	h, err := NewHalvingGridSearchCV(
		WithEstimator(sklearn.DecisionTreeClassifier()),
		WithParamGrid(treeGrid()),
		WithCV(3),
		WithNJobs(2),
		WithObserver(rec),
		WithProgress(progress),
	)
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))

	for _, g := range h.Grids() {
		for k := range g {
			assert.True(t, strings.HasPrefix(k, "op__"), k)
		}
	}

	// every candidate separates the blobs; ties go to the first candidate
	assert.Equal(t, map[string]interface{}{"criterion": "gini", "max_depth": 1}, h.BestParams())
	assert.Equal(t, 1.0, h.BestScore())
	assert.Equal(t, []int{6, 2}, h.Search().NCandidates())
	assert.Len(t, h.Summary(), 8)
	assert.Len(t, progress, 2)

	pred, err := h.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(pred, y))
	proba, err := h.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 2, c)

	assert.Equal(t, 1, rec.Count("start", PhaseOptimize))
	assert.Equal(t, 1, rec.Count("end", PhaseOptimize))
	assert.Equal(t, 0, rec.Count("fail", PhaseOptimize))
	assert.Equal(t, rec.Count("start", PhaseFit), rec.Count("end", PhaseFit))
	assert.Equal(t, 6*3+2*3, rec.Count("end", PhaseFit))

	end, ok := rec.Last(PhaseOptimize)
	require.True(t, ok)
	assert.Equal(t, h.BestParams(), end.Data["best_params"])
	best := end.Data["best"].(operators.Operator)
	assert.Equal(t, "DecisionTreeClassifier", best.Name())
	assert.Equal(t, map[string]interface{}{"criterion": "gini", "max_depth": 1}, best.Hyperparams())

	lale, err := h.GetPipeline("lale")
	require.NoError(t, err)
	trained := lale.(operators.Operator)
	assert.Equal(t, operators.Trained, trained.State())
	_, isObserving := trained.(*Observing)
	assert.False(t, isObserving)

	compat, err := h.GetPipeline("sklearn")
	require.NoError(t, err)
	pred, err = compat.(*operators.Compat).Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(pred, y))

	_, err = h.GetPipeline("p1")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestHalvingGridSearchCV_GeneratedPipelineGrid(t *testing.T) {
	X, y := blobs()
	p, err := operators.MakePipeline(sklearn.MinMaxScaler(), sklearn.DecisionTreeClassifier())
	require.NoError(t, err)

	h, err := NewHalvingGridSearchCV(
		WithEstimator(p),
		WithCV(3),
		WithNumSamples(1),
		WithNumGrids(1),
		WithRandomState(42),
	)
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))

	require.Len(t, h.Grids(), 1)
	for k := range h.Grids()[0] {
		assert.True(t, strings.HasPrefix(k, "op__decisiontreeclassifier__"), k)
	}
	assert.Contains(t, h.BestParams(), "decisiontreeclassifier__criterion")

	best, err := h.BestOperator()
	require.NoError(t, err)
	_, isPipeline := best.(*operators.Pipeline)
	assert.True(t, isPipeline)
	assert.Equal(t, operators.Trained, best.State())
	assert.Greater(t, h.BestScore(), 0.5)
}

func TestHalvingGridSearchCV_DefaultsGrid(t *testing.T) {
	X, y := blobs()
	rec := NewRecordingObserver()
	h, err := NewHalvingGridSearchCV(WithEstimator(sklearn.DummyClassifier()), WithObserver(rec))
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))

	// nothing relevant to the optimizer: a single candidate made of defaults
	assert.Equal(t, "prior", h.BestParams()["strategy"])
	assert.Len(t, h.Summary(), 1)
	assert.Equal(t, 1, rec.Count("end", PhaseOptimize))
	assert.InDelta(t, 0.5, h.BestScore(), 0.1)
}

func TestHalvingGridSearchCV_NoGrid(t *testing.T) {
	X, y := blobs()
	p, err := operators.MakePipeline(operators.NoOp(), sklearn.DummyClassifier())
	require.NoError(t, err)
	rec := NewRecordingObserver()

	h, err := NewHalvingGridSearchCV(WithEstimator(p), WithObserver(rec))
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))

	assert.Nil(t, h.Summary())
	assert.True(t, math.IsNaN(h.BestScore()))
	assert.Equal(t, 0, rec.Count("start", PhaseOptimize))
	pred, err := h.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 40, r)
}

func TestHalvingGridSearchCV_AllFitsFail(t *testing.T) {
	silenceWarnings(t)
	X, y := blobs()
	rec := NewRecordingObserver()
	h, err := NewHalvingGridSearchCV(
		WithEstimator(sklearn.DecisionTreeClassifier()),
		WithParamGrid(search.Grid{"max_depth": {-1, -2}}),
		WithCV(2),
		WithObserver(rec),
	)
	require.NoError(t, err)

	err = h.Fit(context.Background(), X, y)
	var serr *errors.SearchError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 1, rec.Count("fail", PhaseOptimize))
	assert.Equal(t, 0, rec.Count("end", PhaseOptimize))

	_, err = h.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestHalvingGridSearchCV_Cancelled(t *testing.T) {
	X, y := blobs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := NewRecordingObserver()
	_, err := AutoConfigure(ctx, sklearn.DecisionTreeClassifier(), X, y,
		WithParamGrid(treeGrid()), WithCV(3), WithObserver(rec))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.Count("fail", PhaseOptimize))
}

func TestHalvingGridSearchCV_DefaultScoring(t *testing.T) {
	X, y := blobs()
	rec := NewRecordingObserver()
	h, err := NewHalvingGridSearchCV(
		WithEstimator(sklearn.DecisionTreeClassifier()),
		WithParamGrid(treeGrid()),
		WithCV(3),
		WithObserver(rec),
	)
	require.NoError(t, err)
	assert.Equal(t, "accuracy", h.GetParams()["scoring"])
	require.NoError(t, h.Fit(context.Background(), X, y))

	var start Event
	for _, e := range rec.Events() {
		if e.Kind == "start" && e.Phase == PhaseOptimize {
			start = e
		}
	}
	assert.Equal(t, "accuracy", start.Data["scoring"])
	end, ok := rec.Last(PhaseOptimize)
	require.True(t, ok)
	assert.Equal(t, "accuracy", end.Data["scoring"])

	reg, err := NewHalvingGridSearchCV(WithEstimator(sklearn.DecisionTreeRegressor()))
	require.NoError(t, err)
	assert.Equal(t, "r2", reg.GetParams()["scoring"])
}

func TestHalvingGridSearchCV_InvalidSettings(t *testing.T) {
	cases := map[string]Option{
		"cv":            WithCV(0),
		"factor":        WithFactor(1),
		"scoring":       WithScoring("f2"),
		"min_resources": WithMinResources("most"),
		"num_grids":     WithNumGrids(0),
		"num_grids_1.5": WithNumGrids(1.5),
		"n_jobs_0":      WithNJobs(0),
		"n_jobs_-5":     WithNJobs(-5),
		"num_samples":   WithNumSamples(0),
		"random_state":  WithRandomState(-1),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewHalvingGridSearchCV(opt)
			var hp *errors.HyperparameterError
			assert.True(t, errors.As(err, &hp))
		})
	}

	for _, opt := range []Option{WithNJobs(-1), WithNJobs(4), WithNumGrids(0.5), WithNumGrids(3)} {
		_, err := NewHalvingGridSearchCV(opt)
		assert.NoError(t, err)
	}

	h, err := NewHalvingGridSearchCV()
	require.NoError(t, err)
	assert.Equal(t, "LogisticRegression", h.GetParams()["estimator"].(operators.Operator).Name())
	assert.NoError(t, schema.IsCombinedSchema(h.Schemas()))
}

func TestHalvingGridSearchCV_CustomScorer(t *testing.T) {
	X, y := blobs()
	calls := 0
	quarter := func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		calls++
		return 0.25, nil
	}

	h, err := NewHalvingGridSearchCV(
		WithEstimator(sklearn.DecisionTreeClassifier()),
		WithParamGrid(search.Grid{"max_depth": {1, 2}}),
		WithCV(2),
		WithScorer("always_quarter", quarter),
	)
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))
	assert.Equal(t, 0.25, h.BestScore())
	assert.Equal(t, "always_quarter", h.Search().Scoring())
	assert.Equal(t, 4, calls)
}

func TestHalvingGridSearchCV_ObserverFactory(t *testing.T) {
	created := 0
	rec := NewRecordingObserver()
	h, err := NewHalvingGridSearchCV(WithObserverFactory(func() Observer {
		created++
		return rec
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Same(t, rec, h.GetParams()["observer"])
}

func TestAutoConfigure(t *testing.T) {
	X, y := blobs()
	trained, err := AutoConfigure(context.Background(), sklearn.DecisionTreeClassifier(), X, y,
		WithParamGrid(treeGrid()), WithCV(3))
	require.NoError(t, err)
	pred, err := trained.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(pred, y))

	_, err = AutoConfigure(context.Background(), sklearn.DecisionTreeClassifier(), X, nil)
	assert.Error(t, err)
}

func TestUnnest(t *testing.T) {
	got := unnest(map[string]interface{}{"op__max_depth": 3, "op__scaler__copy": true, "other": 1})
	assert.Equal(t, map[string]interface{}{"max_depth": 3, "scaler__copy": true, "other": 1}, got)
}
