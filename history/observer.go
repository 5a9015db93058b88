package history

import (
	"sync"

	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/optimizers"
	"github.com/YuminosukeSato/opgrid/pkg/log"
)

// Observer records optimize phases as runs in a Store. Operator phases are
// ignored. Storage errors are logged and never interrupt the search.
type Observer struct {
	store  *Store
	logger log.Logger

	mu    sync.Mutex
	runID string
	runs  []string
}

var _ optimizers.Observer = (*Observer)(nil)

// NewObserver creates an Observer writing into store.
func NewObserver(store *Store) *Observer {
	return &Observer{store: store, logger: log.GetLoggerWithName("history")}
}

// RunID returns the id of the current or most recent run.
func (o *Observer) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// RunIDs returns every run started through this observer.
func (o *Observer) RunIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.runs...)
}

func (o *Observer) Start(phase string, info map[string]interface{}) {
	if phase != optimizers.PhaseOptimize {
		return
	}
	estimator, _ := info["op"].(string)
	scoring, _ := info["scoring"].(string)

	o.mu.Lock()
	defer o.mu.Unlock()
	id, err := o.store.StartRun(estimator, scoring)
	if err != nil {
		o.logger.Error("failed to record run start", err)
		return
	}
	o.runID = id
	o.runs = append(o.runs, id)
	o.logger.Debug("run started", log.RunIDKey, id, log.ModelNameKey, estimator)
}

func (o *Observer) End(phase string, result map[string]interface{}) {
	if phase != optimizers.PhaseOptimize {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID == "" {
		return
	}
	if results, ok := result["cv_results"].([]model_selection.CVResult); ok {
		if err := o.store.RecordResults(o.runID, results); err != nil {
			o.logger.Error("failed to record cv results", err, log.RunIDKey, o.runID)
		}
	}
	params, _ := result["best_params"].(map[string]interface{})
	score, _ := result["best_score"].(float64)
	if err := o.store.FinishRun(o.runID, params, score); err != nil {
		o.logger.Error("failed to record run end", err, log.RunIDKey, o.runID)
	}
}

func (o *Observer) Fail(phase string, err error) {
	if phase != optimizers.PhaseOptimize {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID == "" {
		return
	}
	if serr := o.store.FailRun(o.runID, err); serr != nil {
		o.logger.Error("failed to record run failure", serr, log.RunIDKey, o.runID)
	}
}
