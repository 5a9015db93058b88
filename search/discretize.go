package search

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/opgrid/schema"
)

// bounds is the optimizer range of a numeric hyperparameter.
type bounds struct {
	lo, hi         float64
	exclLo, exclHi bool
	log            bool
}

// rangeOf resolves the optimizer bounds of s, falling back to the schema
// bounds. Unbounded ranges are not discretized.
func rangeOf(s *schema.Schema) (bounds, bool) {
	var r bounds
	switch {
	case s.MinimumForOptimizer != nil:
		r.lo = *s.MinimumForOptimizer
		r.exclLo = s.ExclusiveMinimumForOptimizer != nil && *s.ExclusiveMinimumForOptimizer
	case s.Minimum != nil:
		r.lo, r.exclLo = *s.Minimum, s.ExclusiveMinimum
	default:
		return r, false
	}
	switch {
	case s.MaximumForOptimizer != nil:
		r.hi = *s.MaximumForOptimizer
		r.exclHi = s.ExclusiveMaximumForOptimizer != nil && *s.ExclusiveMaximumForOptimizer
	case s.Maximum != nil:
		r.hi, r.exclHi = *s.Maximum, s.ExclusiveMaximum
	default:
		return r, false
	}
	if r.hi < r.lo {
		return r, false
	}
	r.log = s.Distribution == schema.LogUniform && r.lo > 0
	return r, true
}

// discretize returns n evenly spaced points of the range (geometrically
// spaced for loguniform). Exclusive endpoints are spanned but not returned.
func (r bounds) discretize(n int) []float64 {
	if r.lo == r.hi {
		if r.exclLo || r.exclHi {
			return nil
		}
		return []float64{r.lo}
	}
	total := n
	if r.exclLo {
		total++
	}
	if r.exclHi {
		total++
	}
	if total < 2 {
		// 一点だけなら中央値
		if r.log {
			return []float64{math.Sqrt(r.lo * r.hi)}
		}
		return []float64{(r.lo + r.hi) / 2}
	}

	points := make([]float64, total)
	if r.log {
		floats.LogSpan(points, r.lo, r.hi)
	} else {
		floats.Span(points, r.lo, r.hi)
	}
	// 端点は丸め誤差なしで境界と一致させる
	points[0], points[total-1] = r.lo, r.hi
	if r.exclLo {
		points = points[1:]
	}
	if r.exclHi {
		points = points[:len(points)-1]
	}
	return points
}

// integers rounds the discretized range to distinct integers inside the bounds.
func integers(r bounds, n int) []int {
	lo := int(math.Ceil(r.lo))
	if r.exclLo && float64(lo) == r.lo {
		lo++
	}
	hi := int(math.Floor(r.hi))
	if r.exclHi && float64(hi) == r.hi {
		hi--
	}
	if hi < lo {
		return nil
	}
	rounded := make([]int, 0, n)
	for _, p := range r.discretize(n) {
		rounded = append(rounded, clamp(int(math.Round(p)), lo, hi))
	}
	return distinct(rounded)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// distinct drops repeated values, keeping first occurrences in order.
func distinct[T comparable](values []T) []T {
	seen := make(map[T]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func boxed[T constraints.Integer | constraints.Float](values []T) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
