package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "opgrid: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "opgrid: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 4, 3, 1)
	assert.Equal(t, "opgrid: Predict: dimension mismatch on axis 1 (features). Expected 4, got 3", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("DecisionTreeRegressor", "Predict")
	want := "opgrid: DecisionTreeRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFitted *NotFittedError
	assert.True(t, As(err, &notFitted))
}

func TestNewHyperparameterError(t *testing.T) {
	cause := New("max_depth: must be >= 1")
	err := NewHyperparameterError("DecisionTreeClassifier", map[string]interface{}{"max_depth": 0}, cause)

	assert.Contains(t, err.Error(), "DecisionTreeClassifier")
	assert.True(t, Is(err, cause))

	var hpErr *HyperparameterError
	require.True(t, As(err, &hpErr))
	assert.Equal(t, 0, hpErr.Params["max_depth"])
}

func TestNewSearchError(t *testing.T) {
	err := NewSearchError("optimize", ErrNoCandidates)
	assert.Equal(t, "opgrid: search failed during optimize: no candidates to search", err.Error())
	assert.True(t, Is(err, ErrNoCandidates))
}

func TestFitFailedWarning(t *testing.T) {
	cause := New("boom")
	w := NewFitFailedWarning(2, 1, map[string]interface{}{"op__max_depth": 3}, -1, cause)
	assert.Contains(t, w.Error(), "candidate 2 failed to fit in iteration 1")
	assert.True(t, Is(w, cause))
}

func TestWarnUsesZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("roc_auc", "only one class present", 0.5))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "roc_auc")
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(New("handled"))
	require.Len(t, got, 1)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrPlannedOperator, "in Pipeline.Fit")
	assert.True(t, Is(wrapped, ErrPlannedOperator))
	assert.True(t, strings.Contains(wrapped.Error(), "in Pipeline.Fit"))
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Fit", 10, 0)
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Fit: expected 10, got 0")
}

func TestStackTrace(t *testing.T) {
	err := WithStack(New("base"))
	assert.NotEmpty(t, StackTrace(err))
	assert.Empty(t, StackTrace(fmt.Errorf("plain")))
}
