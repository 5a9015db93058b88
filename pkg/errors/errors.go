// Package errors はopgrid全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの例外体系にならい、オペレータの構成・学習・探索の各段階で
// 構造化されたエラー情報を返します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/errbase"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("opgrid-Warning: %v\n", w)
	}
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler.
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc routes warnings into a zerolog logger. pkg/log calls this
// during setup; the indirection keeps the two packages free of an import cycle.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through zerolog when configured, else through the handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// FitFailedWarning is raised when a candidate fails to fit during a search and
// its score is replaced with the error score.
type FitFailedWarning struct {
	Candidate  int
	Iteration  int
	Params     map[string]interface{}
	ErrorScore float64
	Err        error
}

func (w *FitFailedWarning) Error() string {
	return fmt.Sprintf("candidate %d failed to fit in iteration %d; score set to %v: %v",
		w.Candidate, w.Iteration, w.ErrorScore, w.Err)
}

func (w *FitFailedWarning) Unwrap() error {
	return w.Err
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *FitFailedWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("candidate", w.Candidate).
		Int("iteration", w.Iteration).
		Interface("params", w.Params).
		Float64("error_score", w.ErrorScore).
		AnErr("cause", w.Err).
		Str("type", "FitFailedWarning")
}

// NewFitFailedWarning は新しいFitFailedWarningを作成します。
func NewFitFailedWarning(candidate, iteration int, params map[string]interface{}, errorScore float64, err error) *FitFailedWarning {
	return &FitFailedWarning{
		Candidate:  candidate,
		Iteration:  iteration,
		Params:     params,
		ErrorScore: errorScore,
		Err:        err,
	}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、ROC AUCを計算する際に正例しか存在しない場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError is returned when Predict or Transform is called on an
// operator or estimator that has not been trained.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("opgrid: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("opgrid: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("opgrid: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// HyperparameterError is returned when hyperparameters do not satisfy an
// operator's hyperparameter schema.
type HyperparameterError struct {
	Operator string
	Params   map[string]interface{}
	Err      error
}

func (e *HyperparameterError) Error() string {
	return fmt.Sprintf("opgrid: invalid hyperparameters for %s: %v", e.Operator, e.Err)
}

func (e *HyperparameterError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *HyperparameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operator", e.Operator).
		Interface("params", e.Params).
		AnErr("cause", e.Err).
		Str("type", "HyperparameterError")
}

// NewHyperparameterError は新しいHyperparameterErrorを作成し、スタックトレースを付与します。
func NewHyperparameterError(operator string, params map[string]interface{}, err error) error {
	return errors.WithStack(&HyperparameterError{Operator: operator, Params: params, Err: err})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("opgrid: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("opgrid: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("opgrid: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// SearchError is returned when a hyperparameter search cannot produce a result.
type SearchError struct {
	Phase string
	Err   error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("opgrid: search failed during %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("opgrid: search failed during %s", e.Phase)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SearchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("phase", e.Phase).
		AnErr("cause", e.Err).
		Str("type", "SearchError")
}

// NewSearchError は新しいSearchErrorを作成し、スタックトレースを付与します。
func NewSearchError(phase string, err error) error {
	return errors.WithStack(&SearchError{Phase: phase, Err: err})
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN や Inf を含む係数、発散したソルバーなどで発生します。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("opgrid: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Int("n_values", len(e.Values)).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成し、スタックトレースを付与します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// StackTrace returns the formatted stack of the outermost layer that recorded
// one, or "" when no layer in the chain carries a stack.
func StackTrace(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if st, ok := e.(errbase.StackTraceProvider); ok {
			return fmt.Sprintf("%+v", st.StackTrace())
		}
	}
	return ""
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrNotImplemented は機能が未実装の場合のエラーです。
	ErrNotImplemented = New("not implemented")

	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrPlannedOperator is returned when a planned operator is fitted before
	// its hyperparameters have been bound.
	ErrPlannedOperator = New("operator is planned; bind hyperparameters with WithParams before Fit")

	// ErrNoCandidates is returned when a hyperparameter grid expands to nothing.
	ErrNoCandidates = New("no candidates to search")
)
