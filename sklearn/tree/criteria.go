package tree

import (
	"math"
	"sort"
)

// classCriterion implements gini and entropy over encoded class indices.
type classCriterion struct {
	y        []int
	nClasses int
	entropy  bool
}

func (c *classCriterion) fromCounts(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	if c.entropy {
		for _, k := range counts {
			if k > 0 {
				p := k / n
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, k := range counts {
		p := k / n
		imp -= p * p
	}
	return imp
}

func (c *classCriterion) counts(idx []int) []float64 {
	counts := make([]float64, c.nClasses)
	for _, i := range idx {
		counts[c.y[i]]++
	}
	return counts
}

func (c *classCriterion) impurity(idx []int) float64 {
	return c.fromCounts(c.counts(idx), float64(len(idx)))
}

func (c *classCriterion) value(idx []int) []float64 {
	counts := c.counts(idx)
	n := float64(len(idx))
	for k := range counts {
		counts[k] /= n
	}
	return counts
}

func (c *classCriterion) sweep(sorted []int, parent float64, visit func(nLeft int, left, right, score float64)) {
	n := len(sorted)
	total := c.counts(sorted)
	leftCounts := make([]float64, c.nClasses)
	rightCounts := make([]float64, c.nClasses)
	for k := 1; k < n; k++ {
		leftCounts[c.y[sorted[k-1]]]++
		for j := range rightCounts {
			rightCounts[j] = total[j] - leftCounts[j]
		}
		l := c.fromCounts(leftCounts, float64(k))
		r := c.fromCounts(rightCounts, float64(n-k))
		visit(k, l, r, decrease(n, k, parent, l, r))
	}
}

// regCriterion implements mse, friedman_mse and mae.
type regCriterion struct {
	y    []float64
	kind string
}

func (c *regCriterion) values(idx []int) []float64 {
	v := make([]float64, len(idx))
	for k, i := range idx {
		v[k] = c.y[i]
	}
	return v
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func meanAbsDev(v []float64) float64 {
	m := median(v)
	var s float64
	for _, x := range v {
		s += math.Abs(x - m)
	}
	return s / float64(len(v))
}

func (c *regCriterion) impurity(idx []int) float64 {
	v := c.values(idx)
	if c.kind == "mae" {
		return meanAbsDev(v)
	}
	m := mean(v)
	var s float64
	for _, x := range v {
		s += (x - m) * (x - m)
	}
	return s / float64(len(v))
}

func (c *regCriterion) value(idx []int) []float64 {
	v := c.values(idx)
	if c.kind == "mae" {
		return []float64{median(v)}
	}
	return []float64{mean(v)}
}

func (c *regCriterion) sweep(sorted []int, parent float64, visit func(nLeft int, left, right, score float64)) {
	n := len(sorted)
	v := c.values(sorted)

	if c.kind == "mae" {
		for k := 1; k < n; k++ {
			l, r := meanAbsDev(v[:k]), meanAbsDev(v[k:])
			visit(k, l, r, decrease(n, k, parent, l, r))
		}
		return
	}

	var sumTotal, sqTotal float64
	for _, x := range v {
		sumTotal += x
		sqTotal += x * x
	}
	var sumL, sqL float64
	for k := 1; k < n; k++ {
		x := v[k-1]
		sumL += x
		sqL += x * x
		nl, nr := float64(k), float64(n-k)
		sumR, sqR := sumTotal-sumL, sqTotal-sqL
		l := math.Max(0, sqL/nl-(sumL/nl)*(sumL/nl))
		r := math.Max(0, sqR/nr-(sumR/nr)*(sumR/nr))

		score := decrease(n, k, parent, l, r)
		if c.kind == "friedman_mse" {
			diff := nr*sumL - nl*sumR
			score = diff * diff / (nl * nr * float64(n) * float64(n))
		}
		visit(k, l, r, score)
	}
}
