// Package model_selection provides cross-validation splitters, named scorers
// and a successive-halving grid search in the style of scikit-learn's
// model_selection module.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
)

// Split holds the row indices of one train/test partition, both ascending.
type Split struct {
	Train []int
	Test  []int
}

// Splitter partitions a dataset into cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Split, error)
	NSplits() int
}

// KFold splits the rows into NSplits consecutive folds. The first n % k
// folds hold one extra row.
type KFold struct {
	K           int
	Shuffle     bool
	RandomState uint64
}

// NewKFold creates an unshuffled KFold.
func NewKFold(nSplits int) *KFold {
	return &KFold{K: nSplits}
}

func (kf *KFold) NSplits() int { return kf.K }

func (kf *KFold) Split(X, y mat.Matrix) ([]Split, error) {
	n, _ := X.Dims()
	if err := checkSplits("KFold", kf.K, n); err != nil {
		return nil, err
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomState, kf.RandomState))
		r.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	fold := make([]int, n)
	start := 0
	for k := 0; k < kf.K; k++ {
		size := n / kf.K
		if k < n%kf.K {
			size++
		}
		for _, i := range order[start : start+size] {
			fold[i] = k
		}
		start += size
	}
	return fromFolds(fold, kf.K), nil
}

// StratifiedKFold preserves the class proportions of y in every fold. The
// rows of each class are dealt to the folds in the same way scikit-learn
// does: fold i receives the classes at positions i, i+k, i+2k, ... of the
// sorted labels.
type StratifiedKFold struct {
	K           int
	Shuffle     bool
	RandomState uint64
}

// NewStratifiedKFold creates an unshuffled StratifiedKFold.
func NewStratifiedKFold(nSplits int) *StratifiedKFold {
	return &StratifiedKFold{K: nSplits}
}

func (skf *StratifiedKFold) NSplits() int { return skf.K }

func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Split, error) {
	n, _ := X.Dims()
	if err := checkSplits("StratifiedKFold", skf.K, n); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold", "y is required for stratification")
	}
	labels := model.Labels(y)
	classes, members := groupByClass(labels)

	largest := 0
	for _, m := range members {
		if len(m) > largest {
			largest = len(m)
		}
	}
	if largest < skf.K {
		return nil, errors.NewValidationError("n_splits",
			"cannot be greater than the number of members in each class", skf.K)
	}
	for c, m := range members {
		if len(m) < skf.K {
			log.GetLoggerWithName("model_selection").Warn("least populated class has fewer members than n_splits",
				"class", classes[c], "members", len(m), log.SplitsKey, skf.K)
			break
		}
	}

	// allocation[f][c]: rows of class c in fold f
	sorted := make([]int, 0, n)
	for c, m := range members {
		for range m {
			sorted = append(sorted, c)
		}
	}
	allocation := make([][]int, skf.K)
	for f := range allocation {
		allocation[f] = make([]int, len(classes))
	}
	for p, c := range sorted {
		allocation[p%skf.K][c]++
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(skf.RandomState, skf.RandomState))
	}
	fold := make([]int, n)
	for c, m := range members {
		rows := append([]int(nil), m...)
		if r != nil {
			r.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		}
		pos := 0
		for f := 0; f < skf.K; f++ {
			for k := 0; k < allocation[f][c]; k++ {
				fold[rows[pos]] = f
				pos++
			}
		}
	}
	return fromFolds(fold, skf.K), nil
}

// CheckCV returns a StratifiedKFold for classifiers and a KFold otherwise.
func CheckCV(nSplits int, classifier bool) Splitter {
	if classifier {
		return NewStratifiedKFold(nSplits)
	}
	return NewKFold(nSplits)
}

func checkSplits(op string, k, n int) error {
	if k < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", k)
	}
	if k > n {
		return errors.NewValueError(op, "n_splits cannot be greater than the number of samples")
	}
	return nil
}

func fromFolds(fold []int, k int) []Split {
	splits := make([]Split, k)
	for i, f := range fold {
		for s := range splits {
			if s == f {
				splits[s].Test = append(splits[s].Test, i)
			} else {
				splits[s].Train = append(splits[s].Train, i)
			}
		}
	}
	return splits
}

// groupByClass returns the sorted distinct labels and, per label, the rows
// carrying it in ascending order.
func groupByClass(labels []float64) ([]float64, [][]int) {
	index := map[float64][]int{}
	for i, v := range labels {
		index[v] = append(index[v], i)
	}
	classes := make([]float64, 0, len(index))
	for v := range index {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	members := make([][]int, len(classes))
	for c, v := range classes {
		members[c] = index[v]
	}
	return classes, members
}

// rows copies the selected rows of m.
func rows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
