package model_selection

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/core/parallel"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Estimator is a configurable supervised model evaluated by cross-validation.
type Estimator interface {
	model.Estimator
	model.ParameterSetter
}

// Factory creates a fresh, unfitted estimator.
type Factory func() Estimator

// IsClassifier reports whether est is a classifier: either it says so, or it
// implements model.Classifier.
func IsClassifier(est interface{}) bool {
	if c, ok := est.(model.ClassifierFlag); ok {
		return c.IsClassifier()
	}
	_, ok := est.(model.Classifier)
	return ok
}

// fitAndScore trains a fresh estimator on the train rows and scores it on the
// test rows. Panics are returned as errors.
func fitAndScore(factory Factory, params map[string]interface{}, X, y mat.Matrix, train, test []int, scorer Scorer) (score float64, err error) {
	err = errors.SafeExecute("fitAndScore", func() error {
		est := factory()
		if params != nil {
			if err := est.SetParams(params); err != nil {
				return err
			}
		}
		if err := est.Fit(rows(X, train), rows(y, train)); err != nil {
			return err
		}
		s, err := scorer(est, rows(X, test), rows(y, test))
		if err != nil {
			return err
		}
		score = s
		return nil
	})
	if err != nil {
		return math.NaN(), err
	}
	return score, nil
}

// CrossValScore fits a fresh estimator per split and returns the test scores
// in split order. Splits run on nJobs workers; the first failure is returned.
func CrossValScore(ctx context.Context, factory Factory, X, y mat.Matrix, cv Splitter, scorer Scorer, nJobs int) ([]float64, error) {
	if _, _, err := model.CheckXY("CrossValScore", X, y); err != nil {
		return nil, err
	}
	splits, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(splits))
	err = parallel.ForEach(ctx, nJobs, len(splits), func(ctx context.Context, i int) error {
		s, err := fitAndScore(factory, nil, X, y, splits[i].Train, splits[i].Test, scorer)
		if err != nil {
			return errors.Wrapf(err, "split %d", i)
		}
		scores[i] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// meanStd returns the mean and population standard deviation; NaN if any
// score is NaN.
func meanStd(scores []float64) (float64, float64) {
	for _, s := range scores {
		if math.IsNaN(s) {
			return math.NaN(), math.NaN()
		}
	}
	mean, variance := stat.PopMeanVariance(scores, nil)
	return mean, math.Sqrt(variance)
}
