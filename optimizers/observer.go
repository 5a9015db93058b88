// Package optimizers drives hyperparameter search over operators: the
// Observing wrapper reports lifecycle events of an operator, and
// HalvingGridSearchCV runs successive halving over the grids derived from an
// operator's schemas and hands back the best trained operator.
package optimizers

import (
	"sync"
	"time"

	"github.com/YuminosukeSato/opgrid/pkg/log"
)

// Phases reported to observers.
const (
	PhaseFit          = "fit"
	PhasePredict      = "predict"
	PhasePredictProba = "predict_proba"
	PhaseTransform    = "transform"
	PhaseOptimize     = "optimize"
)

// Observer receives start/end/fail notifications around named phases.
// Every Start is followed by exactly one End or Fail for the same phase.
// Searches call observers from several goroutines at once, so
// implementations must be safe for concurrent use.
type Observer interface {
	Start(phase string, info map[string]interface{})
	End(phase string, result map[string]interface{})
	Fail(phase string, err error)
}

// ObserverFactory creates an observer; optimizers call it once per instance.
type ObserverFactory func() Observer

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStart func(phase string, info map[string]interface{})
	OnEnd   func(phase string, result map[string]interface{})
	OnFail  func(phase string, err error)
}

func (f ObserverFuncs) Start(phase string, info map[string]interface{}) {
	if f.OnStart != nil {
		f.OnStart(phase, info)
	}
}

func (f ObserverFuncs) End(phase string, result map[string]interface{}) {
	if f.OnEnd != nil {
		f.OnEnd(phase, result)
	}
}

func (f ObserverFuncs) Fail(phase string, err error) {
	if f.OnFail != nil {
		f.OnFail(phase, err)
	}
}

// LoggingObserver writes every event to a logger: optimize events at Info,
// operator phases at Debug, failures at Warn.
type LoggingObserver struct {
	logger log.Logger
}

// NewLoggingObserver creates a LoggingObserver; a nil logger selects the
// "optimizers" logger of the global provider.
func NewLoggingObserver(logger log.Logger) *LoggingObserver {
	if logger == nil {
		logger = log.GetLoggerWithName("optimizers")
	}
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) emit(phase, event string, data map[string]interface{}) {
	fields := []any{log.PhaseKey, phase, log.ObserverEventKey, event}
	for _, k := range []string{"op", "num_samples", "num_grids", "scoring", "best_score", "samples"} {
		if v, ok := data[k]; ok {
			fields = append(fields, k, v)
		}
	}
	if phase == PhaseOptimize {
		o.logger.Info("observer "+event, fields...)
		return
	}
	o.logger.Debug("observer "+event, fields...)
}

func (o *LoggingObserver) Start(phase string, info map[string]interface{}) {
	o.emit(phase, "start", info)
}

func (o *LoggingObserver) End(phase string, result map[string]interface{}) {
	o.emit(phase, "end", result)
}

func (o *LoggingObserver) Fail(phase string, err error) {
	o.logger.Warn("observer fail", err, log.PhaseKey, phase, log.ObserverEventKey, "fail")
}

// Event is one notification captured by RecordingObserver.
type Event struct {
	Kind  string // start, end or fail
	Phase string
	Data  map[string]interface{}
	Err   error
	At    time.Time
}

// RecordingObserver keeps every event in memory.
type RecordingObserver struct {
	mu     sync.Mutex
	events []Event
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (r *RecordingObserver) add(e Event) {
	e.At = time.Now()
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *RecordingObserver) Start(phase string, info map[string]interface{}) {
	r.add(Event{Kind: "start", Phase: phase, Data: info})
}

func (r *RecordingObserver) End(phase string, result map[string]interface{}) {
	r.add(Event{Kind: "end", Phase: phase, Data: result})
}

func (r *RecordingObserver) Fail(phase string, err error) {
	r.add(Event{Kind: "fail", Phase: phase, Err: err})
}

// Events returns a copy of the captured events in arrival order.
func (r *RecordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind were recorded for phase.
func (r *RecordingObserver) Count(kind, phase string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind && e.Phase == phase {
			n++
		}
	}
	return n
}

// Last returns the most recent event for phase.
func (r *RecordingObserver) Last(phase string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Phase == phase {
			return r.events[i], true
		}
	}
	return Event{}, false
}
