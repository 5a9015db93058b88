package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/lib/sklearn"
	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/optimizers"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/search"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RunLifecycle(t *testing.T) {
	s := tempStore(t)

	id, err := s.StartRun("DecisionTreeClassifier", "accuracy")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	run, err := s.Run(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.True(t, math.IsNaN(run.BestScore))
	assert.True(t, run.FinishedAt.IsZero())
	assert.False(t, run.StartedAt.IsZero())

	require.NoError(t, s.FinishRun(id, map[string]interface{}{"max_depth": 2}, 0.9))
	run, err = s.Run(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, 0.9, run.BestScore)
	assert.Equal(t, map[string]interface{}{"max_depth": 2.0}, run.BestParams)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	// 終了済みのrunは更新できない
	var verr *errors.ValueError
	assert.True(t, errors.As(s.FailRun(id, errors.New("late")), &verr))
	assert.True(t, errors.As(s.FinishRun("missing", nil, 0), &verr))
}

func TestStore_FailRun(t *testing.T) {
	s := tempStore(t)
	first, err := s.StartRun("A", "")
	require.NoError(t, err)
	second, err := s.StartRun("B", "r2")
	require.NoError(t, err)

	require.NoError(t, s.FailRun(second, errors.New("boom")))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Equal(t, "B", runs[1].Estimator)
	assert.Equal(t, "r2", runs[1].Scoring)
	assert.Equal(t, StatusFailed, runs[1].Status)
	assert.Equal(t, "boom", runs[1].Error)
	assert.Nil(t, runs[1].BestParams)
}

func TestStore_Candidates(t *testing.T) {
	s := tempStore(t)
	id, err := s.StartRun("A", "accuracy")
	require.NoError(t, err)

	results := []model_selection.CVResult{
		{Iteration: 0, Resources: 10, Candidate: 0, Params: map[string]interface{}{"v": "a"},
			SplitScores: []float64{1, 0.5}, MeanTestScore: 0.75, StdTestScore: 0.25, Rank: 1},
		{Iteration: 0, Resources: 10, Candidate: 1, Params: map[string]interface{}{"v": "b"},
			SplitScores: []float64{math.NaN(), math.NaN()}, MeanTestScore: math.NaN(), StdTestScore: math.NaN(),
			Rank: 2, FitError: "failed"},
	}
	require.NoError(t, s.RecordResults(id, results))

	got, err := s.Candidates(id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, results[0], got[0])
	assert.Equal(t, "failed", got[1].FitError)
	assert.Equal(t, 2, got[1].Rank)
	assert.True(t, math.IsNaN(got[1].MeanTestScore))
	require.Len(t, got[1].SplitScores, 2)
	assert.True(t, math.IsNaN(got[1].SplitScores[1]))

	none, err := s.Candidates("other")
	require.NoError(t, err)
	assert.Empty(t, none)

	// 未知のrunには外部キー制約で書き込めない
	assert.Error(t, s.RecordResults("missing", results))
}

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(30, 1, nil)
	y := mat.NewDense(30, 1, nil)
	for i := 0; i < 30; i++ {
		if i%2 == 1 {
			X.Set(i, 0, 10+float64(i%3))
			y.Set(i, 0, 1)
		} else {
			X.Set(i, 0, float64(i%3))
		}
	}
	return X, y
}

func TestObserver_RecordsSearch(t *testing.T) {
	s := tempStore(t)
	obs := NewObserver(s)
	X, y := blobs()

	h, err := optimizers.NewHalvingGridSearchCV(
		optimizers.WithEstimator(sklearn.DecisionTreeClassifier()),
		optimizers.WithParamGrid(search.Grid{"max_depth": {1, 2, 3}}),
		optimizers.WithCV(3),
		optimizers.WithScoring("accuracy"),
		optimizers.WithObserver(obs),
	)
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))

	run, err := s.Run(obs.RunID())
	require.NoError(t, err)
	assert.Equal(t, "DecisionTreeClassifier", run.Estimator)
	assert.Equal(t, "accuracy", run.Scoring)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, h.BestScore(), run.BestScore)
	assert.Equal(t, map[string]interface{}{"max_depth": 1.0}, run.BestParams)

	cands, err := s.Candidates(run.ID)
	require.NoError(t, err)
	assert.Len(t, cands, len(h.Summary()))
}

func TestObserver_RecordsDefaultScoring(t *testing.T) {
	s := tempStore(t)
	obs := NewObserver(s)
	X, y := blobs()

	h, err := optimizers.NewHalvingGridSearchCV(
		optimizers.WithEstimator(sklearn.DecisionTreeClassifier()),
		optimizers.WithParamGrid(search.Grid{"max_depth": {1, 2}}),
		optimizers.WithCV(3),
		optimizers.WithObserver(obs),
	)
	require.NoError(t, err)
	require.NoError(t, h.Fit(context.Background(), X, y))

	run, err := s.Run(obs.RunID())
	require.NoError(t, err)
	assert.Equal(t, "accuracy", run.Scoring)
	assert.Equal(t, h.Search().Scoring(), run.Scoring)
}

func TestObserver_RecordsFailure(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	s := tempStore(t)
	obs := NewObserver(s)
	X, y := blobs()

	h, err := optimizers.NewHalvingGridSearchCV(
		optimizers.WithEstimator(sklearn.DecisionTreeClassifier()),
		optimizers.WithParamGrid(search.Grid{"max_depth": {-1, -2}}),
		optimizers.WithCV(2),
		optimizers.WithObserver(obs),
	)
	require.NoError(t, err)
	require.Error(t, h.Fit(context.Background(), X, y))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
	assert.Equal(t, []string{runs[0].ID}, obs.RunIDs())
}

func TestObserver_IgnoresOperatorPhases(t *testing.T) {
	s := tempStore(t)
	obs := NewObserver(s)
	obs.Start(optimizers.PhaseFit, map[string]interface{}{"op": "X"})
	obs.End(optimizers.PhaseFit, nil)
	obs.Fail(optimizers.PhasePredict, errors.New("x"))
	obs.End(optimizers.PhaseOptimize, nil)

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, obs.RunID())
}
