package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/core/parallel"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
	"github.com/YuminosukeSato/opgrid/search"
)

// Values for MinResources besides an explicit sample count.
const (
	Exhaust  = "exhaust"
	Smallest = "smallest"
)

// CVResult is one evaluated candidate in one halving iteration.
type CVResult struct {
	Iteration int
	Resources int
	// Candidate is the position of Params in the expanded grid.
	Candidate     int
	Params        map[string]interface{}
	SplitScores   []float64
	MeanTestScore float64
	StdTestScore  float64
	// Rank orders the candidates of the same iteration, 1 being the best.
	// Ties share the smallest rank; NaN scores rank last.
	Rank     int
	FitError string
}

// Progress is reported after every iteration.
type Progress struct {
	Iteration  int
	Candidates int
	Resources  int
	BestScore  float64
	Elapsed    time.Duration
}

// HalvingGridSearch runs successive halving over the n_samples resource:
// every iteration evaluates the remaining candidates on subsampled training
// folds and keeps the best 1/factor of them for the next, larger budget.
//
// Only the training part of each split is subsampled; candidates are always
// scored on the full test fold. scikit-learn subsamples the test fold too, so
// early-iteration scores here are less noisy but cost more to compute.
type HalvingGridSearch struct {
	factory Factory
	grids   []search.Grid

	factor       int
	minResources interface{}
	maxResources int
	cv           Splitter
	nSplits      int
	scoring      string
	scorer       Scorer
	nJobs        int
	refit        bool
	errorScore   float64
	randomState  uint64
	progress     chan<- Progress
	logger       log.Logger

	// results
	cvResults     []CVResult
	bestIndex     int
	nResources    []int
	nCandidates   []int
	resolvedMin   int
	resolvedMax   int
	nPossible     int
	nRequired     int
	bestEstimator Estimator
	fitted        bool
}

// HalvingOption configures a HalvingGridSearch.
type HalvingOption func(*HalvingGridSearch)

// WithFactor sets the proportion of candidates kept per iteration (1/factor)
// and the growth of the resource. Must be at least 2.
func WithFactor(factor int) HalvingOption {
	return func(h *HalvingGridSearch) { h.factor = factor }
}

// WithMinResources sets the first iteration's sample count: Exhaust,
// Smallest or a positive int.
func WithMinResources(v interface{}) HalvingOption {
	return func(h *HalvingGridSearch) { h.minResources = v }
}

// WithMaxResources caps the sample count; 0 means all samples.
func WithMaxResources(n int) HalvingOption {
	return func(h *HalvingGridSearch) { h.maxResources = n }
}

// WithCV sets the splitter. Without it, CheckCV(nSplits, classifier) is used.
func WithCV(cv Splitter) HalvingOption {
	return func(h *HalvingGridSearch) { h.cv = cv }
}

// WithNSplits sets the number of folds of the default splitter.
func WithNSplits(n int) HalvingOption {
	return func(h *HalvingGridSearch) { h.nSplits = n }
}

// WithScoring selects a named scorer.
func WithScoring(name string) HalvingOption {
	return func(h *HalvingGridSearch) { h.scoring = name }
}

// WithScorer sets a custom scorer; it takes precedence over WithScoring.
func WithScorer(name string, s Scorer) HalvingOption {
	return func(h *HalvingGridSearch) {
		h.scoring = name
		h.scorer = s
	}
}

// WithNJobs sets the number of concurrent candidate evaluations
// (scikit-learn n_jobs semantics).
func WithNJobs(n int) HalvingOption {
	return func(h *HalvingGridSearch) { h.nJobs = n }
}

// WithRefit controls whether the best candidate is refitted on all data.
func WithRefit(refit bool) HalvingOption {
	return func(h *HalvingGridSearch) { h.refit = refit }
}

// WithErrorScore sets the score of candidates whose fit fails.
func WithErrorScore(v float64) HalvingOption {
	return func(h *HalvingGridSearch) { h.errorScore = v }
}

// WithHalvingRandomState seeds training-set subsampling.
func WithHalvingRandomState(seed uint64) HalvingOption {
	return func(h *HalvingGridSearch) { h.randomState = seed }
}

// WithProgress receives a Progress after each iteration. Sends never block;
// updates are dropped when the channel is full.
func WithProgress(ch chan<- Progress) HalvingOption {
	return func(h *HalvingGridSearch) { h.progress = ch }
}

// WithLogger replaces the search logger.
func WithLogger(l log.Logger) HalvingOption {
	return func(h *HalvingGridSearch) { h.logger = l }
}

// NewHalvingGridSearch creates a search over the candidates of grids.
func NewHalvingGridSearch(factory Factory, grids []search.Grid, opts ...HalvingOption) *HalvingGridSearch {
	h := &HalvingGridSearch{
		factory:      factory,
		grids:        grids,
		factor:       3,
		minResources: Exhaust,
		nSplits:      5,
		nJobs:        1,
		refit:        true,
		errorScore:   math.NaN(),
		logger:       log.GetLoggerWithName("model_selection"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HalvingGridSearch) validate() error {
	if h.factory == nil {
		return errors.NewValueError("HalvingGridSearch", "estimator factory is nil")
	}
	if h.factor < 2 {
		return errors.NewValidationError("factor", "must be at least 2", h.factor)
	}
	if h.maxResources < 0 {
		return errors.NewValidationError("max_resources", "must be positive", h.maxResources)
	}
	switch v := h.minResources.(type) {
	case string:
		if v != Exhaust && v != Smallest {
			return errors.NewValidationError("min_resources", "must be 'exhaust', 'smallest' or a positive int", v)
		}
	case int:
		if v < 1 {
			return errors.NewValidationError("min_resources", "must be positive", v)
		}
	default:
		return errors.NewValidationError("min_resources", "must be 'exhaust', 'smallest' or a positive int", v)
	}
	return nil
}

// floorLog returns the largest p with base^p <= x, for x >= 1.
func floorLog(x, base int) int {
	p := 0
	for v := base; v <= x; v *= base {
		p++
	}
	return p
}

func pow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

// Fit runs the search. The context cancels pending candidate evaluations.
func (h *HalvingGridSearch) Fit(ctx context.Context, X, y mat.Matrix) error {
	if err := h.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("HalvingGridSearch.Fit", X, y)
	if err != nil {
		return err
	}
	candidates := search.Expand(h.grids)
	if len(candidates) == 0 {
		return errors.NewSearchError("setup", errors.ErrNoCandidates)
	}

	classifier := IsClassifier(h.factory())
	scorer := h.scorer
	if scorer == nil {
		if h.scoring == "" {
			h.scoring = DefaultScoring(classifier)
		}
		if scorer, err = GetScorer(h.scoring); err != nil {
			return err
		}
	}
	cv := h.cv
	if cv == nil {
		cv = CheckCV(h.nSplits, classifier)
	}
	splits, err := cv.Split(X, y)
	if err != nil {
		return errors.NewSearchError("setup", err)
	}

	if err := h.resolveResources(nSamples, len(splits), len(candidates), classifier, y); err != nil {
		return err
	}
	nIterations := h.nPossible
	if h.nRequired < nIterations {
		nIterations = h.nRequired
	}

	h.cvResults = nil
	h.nResources = nil
	h.nCandidates = nil
	h.bestEstimator = nil
	h.fitted = false

	h.logger.Info("successive halving started",
		log.SamplesKey, nSamples, log.FeaturesKey, nFeatures,
		log.CandidatesKey, len(candidates), log.SplitsKey, len(splits),
		log.ScoringKey, h.scoring, log.JobsKey, parallel.EffectiveJobs(h.nJobs),
		"n_iterations", nIterations, "min_resources", h.resolvedMin, "max_resources", h.resolvedMax)

	labels := model.Labels(y)
	started := time.Now()
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for itr := 0; itr < nIterations; itr++ {
		resources := pow(h.factor, itr) * h.resolvedMin
		if resources > h.resolvedMax {
			resources = h.resolvedMax
		}
		h.nResources = append(h.nResources, resources)
		h.nCandidates = append(h.nCandidates, len(remaining))

		fraction := float64(resources) / float64(nSamples)
		r := rand.New(rand.NewPCG(h.randomState, uint64(itr)))
		subsplits := make([]Split, len(splits))
		for s, sp := range splits {
			k := int(fraction * float64(len(sp.Train)))
			if k < 1 {
				k = 1
			}
			subsplits[s] = Split{Train: subsample(sp.Train, labels, k, classifier, r), Test: sp.Test}
		}

		h.logger.Debug("halving iteration",
			log.IterationKey, itr, log.CandidatesKey, len(remaining), log.ResourceKey, resources)

		rows, err := h.evaluate(ctx, itr, resources, remaining, candidates, X, y, subsplits, scorer)
		if err != nil {
			return err
		}
		h.cvResults = append(h.cvResults, rows...)

		best := rows[0].MeanTestScore
		for _, row := range rows {
			if row.Rank == 1 {
				best = row.MeanTestScore
				break
			}
		}
		h.logger.Info("halving iteration finished",
			log.IterationKey, itr, log.CandidatesKey, len(remaining), log.ResourceKey, resources, log.ScoreKey, best)
		h.report(Progress{Iteration: itr, Candidates: len(remaining), Resources: resources, BestScore: best, Elapsed: time.Since(started)})

		remaining = topK(rows, int(math.Ceil(float64(len(remaining))/float64(h.factor))))
	}

	h.bestIndex = h.selectBest()
	h.fitted = true

	if h.refit {
		best := h.factory()
		if err := best.SetParams(h.BestParams()); err != nil {
			return errors.NewSearchError("refit", err)
		}
		if err := best.Fit(X, y); err != nil {
			return errors.NewSearchError("refit", err)
		}
		h.bestEstimator = best
	}
	h.logger.Info("successive halving finished",
		log.ScoreKey, h.BestScore(), log.HyperParamsKey, h.BestParams(), log.DurationMsKey, time.Since(started).Milliseconds())
	return nil
}

func (h *HalvingGridSearch) resolveResources(nSamples, nSplits, nCandidates int, classifier bool, y mat.Matrix) error {
	h.resolvedMax = nSamples
	if h.maxResources > 0 {
		h.resolvedMax = h.maxResources
	}
	if h.resolvedMax > nSamples {
		return errors.NewValidationError("max_resources", "cannot exceed the number of samples", h.resolvedMax)
	}

	smallest := 2 * nSplits
	if classifier {
		classes, _ := groupByClass(model.Labels(y))
		smallest *= len(classes)
	}
	h.nRequired = 1 + floorLog(nCandidates, h.factor)

	switch v := h.minResources.(type) {
	case int:
		h.resolvedMin = v
	case string:
		h.resolvedMin = smallest
		if v == Exhaust {
			exhaust := h.resolvedMax / pow(h.factor, h.nRequired-1)
			if exhaust > h.resolvedMin {
				h.resolvedMin = exhaust
			}
		}
	}
	if h.resolvedMin > h.resolvedMax {
		return errors.NewValueError("HalvingGridSearch",
			"min_resources is greater than max_resources; use fewer splits or more samples")
	}
	h.nPossible = 1 + floorLog(h.resolvedMax/h.resolvedMin, h.factor)
	return nil
}

// evaluate scores every remaining candidate on every split.
func (h *HalvingGridSearch) evaluate(ctx context.Context, itr, resources int, remaining []int,
	candidates []map[string]interface{}, X, y mat.Matrix, splits []Split, scorer Scorer) ([]CVResult, error) {

	nSplits := len(splits)
	scores := make([]float64, len(remaining)*nSplits)
	failures := make([]error, len(remaining)*nSplits)

	err := parallel.ForEach(ctx, h.nJobs, len(scores), func(ctx context.Context, i int) error {
		c, s := remaining[i/nSplits], i%nSplits
		score, err := fitAndScore(h.factory, candidates[c], X, y, splits[s].Train, splits[s].Test, scorer)
		if err != nil {
			failures[i] = err
			score = h.errorScore
		}
		scores[i] = score
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.NewSearchError("evaluate", err)
	}

	rows := make([]CVResult, len(remaining))
	nFailed := 0
	for k, c := range remaining {
		row := CVResult{
			Iteration:   itr,
			Resources:   resources,
			Candidate:   c,
			Params:      candidates[c],
			SplitScores: scores[k*nSplits : (k+1)*nSplits],
		}
		for s := 0; s < nSplits; s++ {
			if fe := failures[k*nSplits+s]; fe != nil {
				if row.FitError == "" {
					row.FitError = fe.Error()
				}
				nFailed++
				errors.Warn(errors.NewFitFailedWarning(c, itr, candidates[c], h.errorScore, fe))
			}
		}
		row.MeanTestScore, row.StdTestScore = meanStd(row.SplitScores)
		rows[k] = row
	}
	if nFailed == len(scores) {
		return nil, errors.NewSearchError("evaluate",
			errors.Newf("all %d fits failed in iteration %d: %s", nFailed, itr, rows[0].FitError))
	}
	rank(rows)
	return rows, nil
}

// order sorts row positions by descending mean score, NaN last, ties by
// candidate position.
func order(rows []CVResult) []int {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := rows[idx[a]].MeanTestScore, rows[idx[b]].MeanTestScore
		switch {
		case math.IsNaN(sa):
			return false
		case math.IsNaN(sb):
			return true
		}
		return sa > sb
	})
	return idx
}

// rank assigns min-method ranks within the iteration.
func rank(rows []CVResult) {
	idx := order(rows)
	for pos, i := range idx {
		if pos > 0 {
			prev := rows[idx[pos-1]]
			cur := rows[i].MeanTestScore
			if prev.MeanTestScore == cur || (math.IsNaN(prev.MeanTestScore) && math.IsNaN(cur)) {
				rows[i].Rank = prev.Rank
				continue
			}
		}
		rows[i].Rank = pos + 1
	}
}

// topK returns the candidate positions of the k best rows, in their
// original order.
func topK(rows []CVResult, k int) []int {
	idx := order(rows)
	if k > len(idx) {
		k = len(idx)
	}
	kept := make([]int, k)
	for i, r := range idx[:k] {
		kept[i] = rows[r].Candidate
	}
	sort.Ints(kept)
	return kept
}

// selectBest picks the best row of the last iteration.
func (h *HalvingGridSearch) selectBest() int {
	last := h.cvResults[len(h.cvResults)-1].Iteration
	start := len(h.cvResults)
	for start > 0 && h.cvResults[start-1].Iteration == last {
		start--
	}
	return start + order(h.cvResults[start:])[0]
}

func (h *HalvingGridSearch) report(p Progress) {
	if h.progress == nil {
		return
	}
	select {
	case h.progress <- p:
	default:
	}
}

// subsample draws k of the rows in idx without replacement. Classifiers keep
// the class proportions, with at least one row per class when k allows.
func subsample(idx []int, labels []float64, k int, classifier bool, r *rand.Rand) []int {
	if k >= len(idx) {
		return idx
	}
	var out []int
	if !classifier {
		for _, p := range r.Perm(len(idx))[:k] {
			out = append(out, idx[p])
		}
		sort.Ints(out)
		return out
	}

	sub := make([]float64, len(idx))
	for i, row := range idx {
		sub[i] = labels[row]
	}
	_, members := groupByClass(sub)
	alloc := allocate(members, len(idx), k)
	for c, m := range members {
		for _, p := range r.Perm(len(m))[:alloc[c]] {
			out = append(out, idx[m[p]])
		}
	}
	sort.Ints(out)
	return out
}

// allocate splits k draws over the classes proportionally to their sizes
// (largest remainder), giving every class at least one draw when k is at
// least the number of classes.
func allocate(members [][]int, n, k int) []int {
	alloc := make([]int, len(members))
	remainder := make([]float64, len(members))
	total := 0
	for c, m := range members {
		exact := float64(k) * float64(len(m)) / float64(n)
		alloc[c] = int(exact)
		remainder[c] = exact - float64(alloc[c])
		if alloc[c] == 0 && k >= len(members) {
			alloc[c] = 1
			remainder[c] = 0
		}
		total += alloc[c]
	}
	for total > k {
		largest := 0
		for c := range alloc {
			if alloc[c] > alloc[largest] {
				largest = c
			}
		}
		alloc[largest]--
		total--
	}
	byRemainder := make([]int, len(members))
	for c := range byRemainder {
		byRemainder[c] = c
	}
	sort.SliceStable(byRemainder, func(a, b int) bool {
		return remainder[byRemainder[a]] > remainder[byRemainder[b]]
	})
	for total < k {
		progressed := false
		for _, c := range byRemainder {
			if total == k {
				break
			}
			if alloc[c] < len(members[c]) {
				alloc[c]++
				total++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return alloc
}

// CVResults returns the rows of every iteration in evaluation order.
func (h *HalvingGridSearch) CVResults() []CVResult { return h.cvResults }

// BestIndex is the position of the winning row in CVResults.
func (h *HalvingGridSearch) BestIndex() int { return h.bestIndex }

// BestParams returns the hyperparameters of the winning candidate.
func (h *HalvingGridSearch) BestParams() map[string]interface{} {
	if !h.fitted {
		return nil
	}
	return h.cvResults[h.bestIndex].Params
}

// BestScore is the mean test score of the winning candidate in the last iteration.
func (h *HalvingGridSearch) BestScore() float64 {
	if !h.fitted {
		return math.NaN()
	}
	return h.cvResults[h.bestIndex].MeanTestScore
}

// BestEstimator is the winner refitted on all data, or nil without refit.
func (h *HalvingGridSearch) BestEstimator() Estimator { return h.bestEstimator }

// NIterations is the number of iterations run.
func (h *HalvingGridSearch) NIterations() int { return len(h.nResources) }

// NResources lists the samples per candidate in each iteration.
func (h *HalvingGridSearch) NResources() []int { return h.nResources }

// NCandidates lists the candidates evaluated in each iteration.
func (h *HalvingGridSearch) NCandidates() []int { return h.nCandidates }

// MinResources is the resolved sample count of the first iteration.
func (h *HalvingGridSearch) MinResources() int { return h.resolvedMin }

// MaxResources is the resolved sample cap.
func (h *HalvingGridSearch) MaxResources() int { return h.resolvedMax }

// NPossibleIterations is the number of iterations the resources allow.
func (h *HalvingGridSearch) NPossibleIterations() int { return h.nPossible }

// NRequiredIterations is the number of iterations needed to end with fewer
// than factor candidates.
func (h *HalvingGridSearch) NRequiredIterations() int { return h.nRequired }

// Scoring is the name of the scorer used.
func (h *HalvingGridSearch) Scoring() string { return h.scoring }
