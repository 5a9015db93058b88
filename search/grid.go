// Package search turns operator hyperparameter schemas into parameter grids
// for exhaustive or successive-halving search.
//
// A Grid maps hyperparameter names to candidate values; a list of grids is a
// union of cross products, the same shape scikit-learn's GridSearchCV accepts:
//
//	grids, err := search.ParameterGrids(op, search.WithNumSamples(3))
//	for _, params := range search.Expand(grids) {
//	    trainable, err := op.WithParams(params)
//	    ...
//	}
package search

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
	"github.com/YuminosukeSato/opgrid/schema"
)

// Grid maps hyperparameter names to the values to try.
type Grid map[string][]interface{}

// DefaultNumSamples is the number of points drawn from each numeric range.
const DefaultNumSamples = 2

// Options controls grid generation.
type Options struct {
	// NumSamples is the number of evenly spaced values per bounded numeric
	// hyperparameter.
	NumSamples int
	// NumGrids keeps all grids when zero, a fraction of them when in (0, 1),
	// and at most int(NumGrids) of them otherwise.
	NumGrids float64
	// Seed drives the random choice of grids when NumGrids prunes.
	Seed uint64
}

// Option configures Options.
type Option func(*Options)

// WithNumSamples sets Options.NumSamples.
func WithNumSamples(n int) Option {
	return func(o *Options) { o.NumSamples = n }
}

// WithNumGrids sets Options.NumGrids.
func WithNumGrids(v float64) Option {
	return func(o *Options) { o.NumGrids = v }
}

// WithSeed sets Options.Seed.
func WithSeed(seed uint64) Option {
	return func(o *Options) { o.Seed = seed }
}

func newOptions(opts []Option) (Options, error) {
	o := Options{NumSamples: DefaultNumSamples}
	for _, opt := range opts {
		opt(&o)
	}
	if o.NumSamples < 1 {
		return o, errors.NewValidationError("num_samples", "must be at least 1", o.NumSamples)
	}
	if o.NumGrids < 0 || math.IsNaN(o.NumGrids) {
		return o, errors.NewValidationError("num_grids", "must be positive", o.NumGrids)
	}
	return o, nil
}

type schemaCarrier interface {
	Schemas() *schema.Combined
}

// ParameterGrids derives the search space of op from its hyperparameter
// schemas. Individual operators contribute one grid per combination of
// anyOf branches of their optimizer-relevant hyperparameters; already bound
// hyperparameters are kept fixed. Pipelines and unions combine their steps'
// grids by cross product under step__ prefixes.
func ParameterGrids(op operators.Operator, opts ...Option) ([]Grid, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	grids, err := operatorGrids(op, o)
	if err != nil {
		return nil, err
	}
	grids = prune(grids, o)

	logger := log.GetLoggerWithName("search")
	logger.Debug("parameter grids generated",
		log.ModelNameKey, op.Name(), log.GridsKey, len(grids), log.CandidatesKey, Size(grids))
	return grids, nil
}

func operatorGrids(op operators.Operator, o Options) ([]Grid, error) {
	if steps := op.Steps(); steps != nil {
		combined := []Grid{{}}
		for _, s := range steps {
			sub, err := operatorGrids(s.Op, o)
			if err != nil {
				return nil, errors.Wrapf(err, "step %s", s.Name)
			}
			combined = product(combined, NestAll(s.Name, sub))
		}
		return combined, nil
	}

	carrier, ok := op.(schemaCarrier)
	if !ok {
		return nil, errors.NewValueError("ParameterGrids",
			"cannot derive a search space for "+op.Name())
	}
	return individualGrids(carrier.Schemas().Hyperparams, op.Hyperparams(), o), nil
}

func individualGrids(hyperparams *schema.Schema, bound map[string]interface{}, o Options) []Grid {
	grids := []Grid{{}}
	for _, name := range schema.RelevantNames(hyperparams) {
		if v, ok := bound[name]; ok {
			grids = product(grids, []Grid{{name: {v}}})
			continue
		}
		branches := alternatives(schema.Relevant(hyperparams)[name], o.NumSamples)
		if len(branches) == 0 {
			continue
		}
		options := make([]Grid, len(branches))
		for i, values := range branches {
			options[i] = Grid{name: values}
		}
		grids = product(grids, options)
	}
	return grids
}

// alternatives lists the value sets of a hyperparameter, one per usable
// anyOf branch.
func alternatives(s *schema.Schema, numSamples int) [][]interface{} {
	if s == nil || !s.IsForOptimizer() {
		return nil
	}
	if len(s.AnyOf) > 0 {
		var out [][]interface{}
		for _, branch := range s.AnyOf {
			out = append(out, alternatives(branch, numSamples)...)
		}
		return out
	}
	switch {
	case s.Enum != nil:
		values := make([]interface{}, len(s.Enum))
		for i, v := range s.Enum {
			values[i] = schema.Value(v)
		}
		return [][]interface{}{values}
	case s.HasType("boolean"):
		return [][]interface{}{{false, true}}
	case s.HasType("integer"), s.HasType("number"):
		r, ok := rangeOf(s)
		if !ok {
			return nil
		}
		var values []interface{}
		if s.HasType("integer") {
			values = boxed(integers(r, numSamples))
		} else {
			values = boxed(r.discretize(numSamples))
		}
		if len(values) == 0 {
			return nil
		}
		return [][]interface{}{values}
	}
	return nil
}

// product is the pairwise union of every grid in a with every grid in b.
func product(a, b []Grid) []Grid {
	out := make([]Grid, 0, len(a)*len(b))
	for _, ga := range a {
		for _, gb := range b {
			g := make(Grid, len(ga)+len(gb))
			for k, v := range ga {
				g[k] = v
			}
			for k, v := range gb {
				g[k] = v
			}
			out = append(out, g)
		}
	}
	return out
}

// prune applies Options.NumGrids, keeping the chosen grids in their original order.
func prune(grids []Grid, o Options) []Grid {
	if o.NumGrids == 0 {
		return grids
	}
	k := int(o.NumGrids)
	if o.NumGrids < 1 {
		k = int(math.Ceil(o.NumGrids * float64(len(grids))))
	}
	if k >= len(grids) {
		return grids
	}
	r := rand.New(rand.NewPCG(o.Seed, o.Seed))
	picked := r.Perm(len(grids))[:k]
	sort.Ints(picked)
	out := make([]Grid, k)
	for i, idx := range picked {
		out[i] = grids[idx]
	}
	return out
}

// DefaultsGrid returns a single grid binding every hyperparameter of op to
// its schema default (or its bound value).
func DefaultsGrid(op operators.Operator) ([]Grid, error) {
	if steps := op.Steps(); steps != nil {
		grids := []Grid{{}}
		for _, s := range steps {
			sub, err := DefaultsGrid(s.Op)
			if err != nil {
				return nil, err
			}
			grids = product(grids, NestAll(s.Name, sub))
		}
		return grids, nil
	}
	carrier, ok := op.(schemaCarrier)
	if !ok {
		return nil, errors.NewValueError("DefaultsGrid", "cannot derive defaults for "+op.Name())
	}
	params := schema.Defaults(carrier.Schemas().Hyperparams)
	for k, v := range op.Hyperparams() {
		params[k] = v
	}
	g := make(Grid, len(params))
	for k, v := range params {
		g[k] = []interface{}{v}
	}
	return []Grid{g}, nil
}

// Nest prefixes every key of g with prefix__.
func Nest(prefix string, g Grid) Grid {
	out := make(Grid, len(g))
	for k, v := range g {
		out[prefix+operators.Separator+k] = v
	}
	return out
}

// NestAll applies Nest to every grid.
func NestAll(prefix string, grids []Grid) []Grid {
	out := make([]Grid, len(grids))
	for i, g := range grids {
		out[i] = Nest(prefix, g)
	}
	return out
}

// IsEmpty reports whether no grid binds any hyperparameter.
func IsEmpty(grids []Grid) bool {
	for _, g := range grids {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// Size is the number of candidates Expand produces.
func Size(grids []Grid) int {
	total := 0
	for _, g := range grids {
		n := 1
		for _, values := range g {
			n *= len(values)
		}
		total += n
	}
	return total
}

// Expand enumerates the candidates of grids in order: grid by grid, and
// within a grid over the sorted keys with the last key varying fastest.
func Expand(grids []Grid) []map[string]interface{} {
	var out []map[string]interface{}
	for _, g := range grids {
		keys := make([]string, 0, len(g))
		for k := range g {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		candidates := []map[string]interface{}{{}}
		for _, k := range keys {
			next := make([]map[string]interface{}, 0, len(candidates)*len(g[k]))
			for _, c := range candidates {
				for _, v := range g[k] {
					params := make(map[string]interface{}, len(c)+1)
					for ck, cv := range c {
						params[ck] = cv
					}
					params[k] = v
					next = append(next, params)
				}
			}
			candidates = next
		}
		out = append(out, candidates...)
	}
	return out
}
