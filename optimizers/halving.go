package optimizers

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/lib/sklearn"
	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
	"github.com/YuminosukeSato/opgrid/schema"
	"github.com/YuminosukeSato/opgrid/search"
)

// wrapped is the hyperparameter name of the operator inside Observing.
const wrapped = "op"

var halvingSchemas = &schema.Combined{
	Description:      "Successive-halving grid search over the hyperparameter grids of an operator.",
	DocumentationURL: "https://pkg.go.dev/github.com/YuminosukeSato/opgrid/optimizers#HalvingGridSearchCV",
	Tags:             schema.Tags{Pre: []string{}, Op: []string{"estimator"}, Post: []string{}},
	Hyperparams: &schema.Schema{
		AllOf: []*schema.Schema{{
			Type:                 []string{"object"},
			Required:             []string{"estimator", "cv", "factor", "min_resources"},
			RelevantToOptimizer:  []string{},
			AdditionalProperties: schema.Bool(false),
			Properties: map[string]*schema.Schema{
				"estimator": {
					Description: "Planned or trainable operator to configure; LogisticRegression when null.",
					LaleType:    schema.LaleOperator,
				},
				"param_grid": {
					Description: "Explicit grids; generated from the estimator's schemas when null.",
					LaleType:    schema.LaleAny,
					Default:     schema.Null,
				},
				"scoring": {
					Description: "Scorer name; accuracy for classifiers and r2 otherwise when null.",
					AnyOf: []*schema.Schema{
						{Enum: scoringEnum()},
						{Enum: []interface{}{schema.Null}},
					},
					Default: schema.Null,
				},
				"n_jobs": {
					Description: "Number of candidate fits to run concurrently; -1 uses every CPU.",
					AnyOf: []*schema.Schema{
						{Enum: []interface{}{schema.Null}, Description: "1 unless in a joblib.parallel_backend context."},
						{Enum: []interface{}{-1}, Description: "Use all processors."},
						{Type: []string{"integer"}, Minimum: schema.Float(1)},
					},
					Default: schema.Null,
				},
				"cv": {
					Description: "Number of folds for cross-validation.",
					Type:        []string{"integer"},
					Minimum:     schema.Float(1),
					Default:     5,
				},
				"lale_num_samples": {
					Description: "How many values to draw from each numeric range.",
					AnyOf: []*schema.Schema{
						{Type: []string{"integer"}, Minimum: schema.Float(1)},
						{Enum: []interface{}{schema.Null}},
					},
					Default: schema.Null,
				},
				"lale_num_grids": {
					Description: "How many grids to keep: a fraction when below 1, a count otherwise.",
					AnyOf: []*schema.Schema{
						{Enum: []interface{}{schema.Null}, Description: "Keep all grids."},
						{
							Description:      "Fraction of grids to keep.",
							Type:             []string{"number"},
							Minimum:          schema.Float(0),
							ExclusiveMinimum: true,
							Maximum:          schema.Float(1),
							ExclusiveMaximum: true,
						},
						{Type: []string{"integer"}, Minimum: schema.Float(1), Description: "Number of grids to keep."},
					},
					Default: schema.Null,
				},
				"observer": {
					Description: "Observer or ObserverFactory receiving optimize and operator events.",
					LaleType:    schema.LaleAny,
					Default:     schema.Null,
				},
				"factor": {
					Description: "Proportion of candidates kept per iteration is 1/factor.",
					Type:        []string{"integer"},
					Minimum:     schema.Float(2),
					Default:     3,
				},
				"min_resources": {
					Description: "Samples given to each candidate in the first iteration.",
					AnyOf: []*schema.Schema{
						{Enum: []interface{}{model_selection.Exhaust, model_selection.Smallest}},
						{Type: []string{"integer"}, Minimum: schema.Float(1)},
					},
					Default: model_selection.Exhaust,
				},
				"random_state": {
					Description: "Seed for grid pruning and training-set subsampling.",
					AnyOf: []*schema.Schema{
						{Type: []string{"integer"}, Minimum: schema.Float(0)},
						{Enum: []interface{}{schema.Null}},
					},
					Default: schema.Null,
				},
			},
		}},
	},
}

func scoringEnum() []interface{} {
	names := model_selection.ScorerNames()
	out := make([]interface{}, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// HalvingGridSearchCV configures an operator by successive halving: it
// derives hyperparameter grids from the operator's schemas (or takes
// explicit ones), evaluates the candidates through an Observing wrapper and
// refits the winner on all data.
type HalvingGridSearchCV struct {
	estimator    operators.Operator
	paramGrid    []search.Grid
	scoring      string
	scorer       model_selection.Scorer
	nJobs        *int
	cv           int
	numSamples   *int
	numGrids     *float64
	observer     Observer
	factor       int
	minResources interface{}
	randomState  *int
	progress     chan<- model_selection.Progress
	logger       log.Logger

	grids      []search.Grid
	search     *model_selection.HalvingGridSearch
	bestParams map[string]interface{}
	best       operators.Operator
}

// Option configures a HalvingGridSearchCV.
type Option func(*HalvingGridSearchCV)

// WithEstimator sets the operator to configure.
func WithEstimator(op operators.Operator) Option {
	return func(h *HalvingGridSearchCV) { h.estimator = op }
}

// WithParamGrid searches the given grids instead of generated ones. Keys are
// the estimator's own hyperparameter names (step__param for pipelines).
func WithParamGrid(grids ...search.Grid) Option {
	return func(h *HalvingGridSearchCV) { h.paramGrid = grids }
}

// WithScoring selects a named scorer.
func WithScoring(name string) Option {
	return func(h *HalvingGridSearchCV) { h.scoring = name }
}

// WithScorer sets a custom scorer reported under name.
func WithScorer(name string, s model_selection.Scorer) Option {
	return func(h *HalvingGridSearchCV) {
		h.scoring = name
		h.scorer = s
	}
}

// WithNJobs sets the number of concurrent candidate fits.
func WithNJobs(n int) Option {
	return func(h *HalvingGridSearchCV) { h.nJobs = &n }
}

// WithCV sets the number of cross-validation folds.
func WithCV(k int) Option {
	return func(h *HalvingGridSearchCV) { h.cv = k }
}

// WithNumSamples sets how many values are drawn from numeric ranges.
func WithNumSamples(n int) Option {
	return func(h *HalvingGridSearchCV) { h.numSamples = &n }
}

// WithNumGrids prunes the generated grids; see search.Options.NumGrids.
func WithNumGrids(v float64) Option {
	return func(h *HalvingGridSearchCV) { h.numGrids = &v }
}

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(h *HalvingGridSearchCV) { h.observer = o }
}

// WithObserverFactory instantiates the observer once for this optimizer.
func WithObserverFactory(f ObserverFactory) Option {
	return func(h *HalvingGridSearchCV) { h.observer = f() }
}

// WithFactor sets the halving factor.
func WithFactor(f int) Option {
	return func(h *HalvingGridSearchCV) { h.factor = f }
}

// WithMinResources sets min_resources: "exhaust", "smallest" or an int.
func WithMinResources(v interface{}) Option {
	return func(h *HalvingGridSearchCV) { h.minResources = v }
}

// WithRandomState seeds grid pruning and subsampling.
func WithRandomState(seed int) Option {
	return func(h *HalvingGridSearchCV) { h.randomState = &seed }
}

// WithProgress forwards per-iteration progress of the search.
func WithProgress(ch chan<- model_selection.Progress) Option {
	return func(h *HalvingGridSearchCV) { h.progress = ch }
}

// WithLogger replaces the optimizer logger.
func WithLogger(l log.Logger) Option {
	return func(h *HalvingGridSearchCV) { h.logger = l }
}

// NewHalvingGridSearchCV creates an optimizer and validates its settings
// against the hyperparameter schema.
func NewHalvingGridSearchCV(opts ...Option) (*HalvingGridSearchCV, error) {
	h := &HalvingGridSearchCV{
		cv:           5,
		factor:       3,
		minResources: model_selection.Exhaust,
		logger:       log.GetLoggerWithName("optimizers"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.estimator == nil {
		h.estimator = sklearn.LogisticRegression()
	}
	// observers see the resolved scorer name from the first event on
	if h.scoring == "" {
		h.scoring = model_selection.DefaultScoring(h.estimator.IsClassifier())
	}
	if err := schema.Validate(halvingSchemas.Hyperparams, h.GetParams()); err != nil {
		return nil, errors.NewHyperparameterError("HalvingGridSearchCV", h.GetParams(), err)
	}
	return h, nil
}

// Schemas returns the optimizer's own schema.
func (h *HalvingGridSearchCV) Schemas() *schema.Combined { return halvingSchemas }

// GetParams returns the settings under their schema names.
func (h *HalvingGridSearchCV) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"estimator":        h.estimator,
		"param_grid":       nil,
		"scoring":          nil,
		"n_jobs":           nil,
		"cv":               h.cv,
		"lale_num_samples": nil,
		"lale_num_grids":   nil,
		"observer":         nil,
		"factor":           h.factor,
		"min_resources":    h.minResources,
		"random_state":     nil,
	}
	if h.paramGrid != nil {
		params["param_grid"] = h.paramGrid
	}
	// custom scorers are not part of the enum
	if h.scoring != "" && h.scorer == nil {
		params["scoring"] = h.scoring
	}
	if h.nJobs != nil {
		params["n_jobs"] = *h.nJobs
	}
	if h.numSamples != nil {
		params["lale_num_samples"] = *h.numSamples
	}
	if h.numGrids != nil {
		params["lale_num_grids"] = *h.numGrids
	}
	if h.observer != nil {
		params["observer"] = h.observer
	}
	if h.randomState != nil {
		params["random_state"] = *h.randomState
	}
	return params
}

func (h *HalvingGridSearchCV) seed() uint64 {
	if h.randomState == nil {
		return 0
	}
	return uint64(*h.randomState)
}

// buildGrids returns the grids nested under the Observing wrapper.
func (h *HalvingGridSearchCV) buildGrids() ([]search.Grid, error) {
	var grids []search.Grid
	if h.paramGrid != nil {
		grids = h.paramGrid
	} else {
		opts := []search.Option{search.WithSeed(h.seed())}
		if h.numSamples != nil {
			opts = append(opts, search.WithNumSamples(*h.numSamples))
		}
		if h.numGrids != nil {
			opts = append(opts, search.WithNumGrids(*h.numGrids))
		}
		generated, err := search.ParameterGrids(h.estimator, opts...)
		if err != nil {
			return nil, err
		}
		grids = generated
	}
	if search.IsEmpty(grids) && h.estimator.Steps() == nil {
		defaults, err := search.DefaultsGrid(h.estimator)
		if err != nil {
			return nil, err
		}
		grids = defaults
	}
	return search.NestAll(wrapped, grids), nil
}

// Fit searches the grids and trains the best operator on all of X, y.
func (h *HalvingGridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	started := time.Now()
	if _, _, err := model.CheckXY("HalvingGridSearchCV.Fit", X, y); err != nil {
		return err
	}
	h.search, h.best, h.bestParams = nil, nil, nil

	observing := NewObserving(h.estimator, h.observer)
	grids, err := h.buildGrids()
	if err != nil {
		return err
	}
	h.grids = grids

	var best operators.Operator
	if search.IsEmpty(grids) {
		h.logger.Info("nothing to search; fitting the estimator as configured", log.ModelNameKey, h.estimator.Name())
		configured, err := h.estimator.WithParams(nil)
		if err != nil {
			return err
		}
		best = configured
		h.bestParams = configured.Hyperparams()
	} else if best, err = h.optimize(ctx, observing, grids, X, y); err != nil {
		return err
	}

	trained, err := best.Fit(X, y)
	if err != nil {
		return errors.NewSearchError("refit", err)
	}
	h.best = trained
	h.logger.Info("optimizer finished",
		log.ModelNameKey, trained.Name(), log.HyperParamsKey, h.bestParams,
		log.DurationMsKey, time.Since(started).Milliseconds())
	return nil
}

func (h *HalvingGridSearchCV) optimize(ctx context.Context, observing *Observing, grids []search.Grid, X, y mat.Matrix) (operators.Operator, error) {
	info := map[string]interface{}{
		"hp_grid":     grids,
		"op":          h.estimator.Name(),
		"num_samples": h.GetParams()["lale_num_samples"],
		"num_grids":   h.GetParams()["lale_num_grids"],
		"scoring":     h.scoring,
	}
	if h.observer != nil {
		h.observer.Start(PhaseOptimize, info)
	}
	fail := func(err error) error {
		if h.observer != nil {
			h.observer.Fail(PhaseOptimize, err)
		}
		return err
	}

	factory := func() model_selection.Estimator {
		return operators.MakeCompat(observing.Clone())
	}
	opts := []model_selection.HalvingOption{
		model_selection.WithFactor(h.factor),
		model_selection.WithMinResources(h.minResources),
		model_selection.WithNSplits(h.cv),
		model_selection.WithRefit(false),
		model_selection.WithHalvingRandomState(h.seed()),
		model_selection.WithLogger(h.logger),
	}
	if h.nJobs != nil {
		opts = append(opts, model_selection.WithNJobs(*h.nJobs))
	}
	if h.scorer != nil {
		opts = append(opts, model_selection.WithScorer(h.scoring, h.scorer))
	} else if h.scoring != "" {
		opts = append(opts, model_selection.WithScoring(h.scoring))
	}
	if h.progress != nil {
		opts = append(opts, model_selection.WithProgress(h.progress))
	}

	hs := model_selection.NewHalvingGridSearch(factory, grids, opts...)
	if err := hs.Fit(ctx, X, y); err != nil {
		return nil, fail(err)
	}
	h.search = hs

	winner, err := observing.WithParams(hs.BestParams())
	if err != nil {
		return nil, fail(err)
	}
	best := unwrap(winner)
	h.bestParams = unnest(hs.BestParams())

	if h.observer != nil {
		h.observer.End(PhaseOptimize, map[string]interface{}{
			"best":         best,
			"best_params":  h.bestParams,
			"best_score":   hs.BestScore(),
			"scoring":      hs.Scoring(),
			"cv_results":   hs.CVResults(),
			"n_iterations": hs.NIterations(),
		})
	}
	return best, nil
}

// unnest strips the op__ prefix of the Observing wrapper.
func unnest(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if head, rest, nested := operators.SplitKey(k); nested && head == wrapped {
			out[rest] = v
			continue
		}
		out[k] = v
	}
	return out
}

func (h *HalvingGridSearchCV) trained(method string) (operators.Operator, error) {
	if h.best == nil {
		return nil, errors.NewNotFittedError("HalvingGridSearchCV", method)
	}
	return h.best, nil
}

// Predict uses the refitted best operator.
func (h *HalvingGridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	best, err := h.trained("Predict")
	if err != nil {
		return nil, err
	}
	return best.Predict(X)
}

// PredictProba uses the refitted best operator.
func (h *HalvingGridSearchCV) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	best, err := h.trained("PredictProba")
	if err != nil {
		return nil, err
	}
	return best.PredictProba(X)
}

// GetPipeline returns the refitted best operator: as an operators.Operator
// for astype "lale", as an *operators.Compat for "sklearn".
func (h *HalvingGridSearchCV) GetPipeline(astype string) (interface{}, error) {
	best, err := h.trained("GetPipeline")
	if err != nil {
		return nil, err
	}
	switch astype {
	case "lale":
		return best, nil
	case "sklearn":
		return operators.MakeCompat(best), nil
	}
	return nil, errors.NewValidationError("astype", "must be 'lale' or 'sklearn'", astype)
}

// BestOperator is GetPipeline("lale") without the type assertion.
func (h *HalvingGridSearchCV) BestOperator() (operators.Operator, error) {
	return h.trained("BestOperator")
}

// Summary returns the CV results of every iteration; nil when no search ran.
func (h *HalvingGridSearchCV) Summary() []model_selection.CVResult {
	if h.search == nil {
		return nil
	}
	return h.search.CVResults()
}

// BestParams returns the winning hyperparameters in the estimator's own
// names (step__param for pipelines).
func (h *HalvingGridSearchCV) BestParams() map[string]interface{} {
	return h.bestParams
}

// BestScore is the mean test score of the winner, NaN when no search ran.
func (h *HalvingGridSearchCV) BestScore() float64 {
	if h.search == nil {
		return math.NaN()
	}
	return h.search.BestScore()
}

// Grids returns the grids searched by the last Fit, nested under "op".
func (h *HalvingGridSearchCV) Grids() []search.Grid { return h.grids }

// Search exposes the underlying successive-halving run, nil when none ran.
func (h *HalvingGridSearchCV) Search() *model_selection.HalvingGridSearch { return h.search }

// AutoConfigure searches the hyperparameters of op on X, y and returns the
// best operator trained on all of the data.
func AutoConfigure(ctx context.Context, op operators.Operator, X, y mat.Matrix, opts ...Option) (operators.Operator, error) {
	h, err := NewHalvingGridSearchCV(append([]Option{WithEstimator(op)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := h.Fit(ctx, X, y); err != nil {
		return nil, err
	}
	return h.BestOperator()
}
