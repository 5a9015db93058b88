package model_selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/metrics"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Scorer evaluates a fitted estimator on held-out data. Greater is better:
// loss metrics are negated.
type Scorer func(est model.Predictor, X, y mat.Matrix) (float64, error)

type labelled interface {
	Classes() []float64
}

// predictionScorer wraps a metric on (yTrue, yPred).
func predictionScorer(metric func(yTrue, yPred *mat.VecDense) (float64, error), sign float64) Scorer {
	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		yTrue, yPred, err := predictPair(est, X, y)
		if err != nil {
			return math.NaN(), err
		}
		v, err := metric(yTrue, yPred)
		if err != nil {
			return math.NaN(), err
		}
		return sign * v, nil
	}
}

// varianceScorer handles a constant yTrue the way LinearRegression.Score
// does: exact predictions score 1, anything else 0.
func varianceScorer(metric func(yTrue, yPred *mat.VecDense) (float64, error)) Scorer {
	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		yTrue, yPred, err := predictPair(est, X, y)
		if err != nil {
			return math.NaN(), err
		}
		v, err := metric(yTrue, yPred)
		if errors.Is(err, metrics.ErrNoVariance) {
			if mat.Equal(yTrue, yPred) {
				return 1, nil
			}
			return 0, nil
		}
		if err != nil {
			return math.NaN(), err
		}
		return v, nil
	}
}

func predictPair(est model.Predictor, X, y mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	truth, predicted := model.Labels(y), model.Labels(pred)
	return mat.NewVecDense(len(truth), truth), mat.NewVecDense(len(predicted), predicted), nil
}

func probabilities(est model.Predictor, X mat.Matrix) (mat.Matrix, []float64, error) {
	pp, ok := est.(model.ProbaPredictor)
	if !ok {
		return nil, nil, errors.NewModelError("scorer", "estimator does not provide class probabilities", nil)
	}
	cl, ok := est.(labelled)
	if !ok || cl.Classes() == nil {
		return nil, nil, errors.NewModelError("scorer", "estimator does not report its classes", nil)
	}
	proba, err := pp.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	return proba, cl.Classes(), nil
}

// binaryScorer scores the probability of the greater class against 0/1 truth.
func binaryScorer(name string, metric func(yTrue, score *mat.VecDense) (float64, error)) Scorer {
	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		proba, classes, err := probabilities(est, X)
		if err != nil {
			return math.NaN(), err
		}
		if len(classes) != 2 {
			return math.NaN(), errors.NewValueError(name, "only binary classification is supported")
		}
		labels := model.Labels(y)
		truth := mat.NewVecDense(len(labels), nil)
		score := mat.NewVecDense(len(labels), nil)
		for i, v := range labels {
			if v == classes[1] {
				truth.SetVec(i, 1)
			}
			score.SetVec(i, proba.At(i, 1))
		}
		return metric(truth, score)
	}
}

func negLogLoss(est model.Predictor, X, y mat.Matrix) (float64, error) {
	proba, classes, err := probabilities(est, X)
	if err != nil {
		return math.NaN(), err
	}
	labels := model.Labels(y)
	v, err := metrics.LogLoss(mat.NewVecDense(len(labels), labels), proba, classes)
	if err != nil {
		return math.NaN(), err
	}
	return -v, nil
}

var scorers = map[string]Scorer{
	"accuracy":                    predictionScorer(metrics.Accuracy, 1),
	"balanced_accuracy":           predictionScorer(metrics.BalancedAccuracy, 1),
	"roc_auc":                     binaryScorer("roc_auc", metrics.AUC),
	"average_precision":           binaryScorer("average_precision", metrics.AveragePrecision),
	"neg_log_loss":                negLogLoss,
	"r2":                          varianceScorer(metrics.R2Score),
	"explained_variance":          varianceScorer(metrics.ExplainedVarianceScore),
	"max_error":                   predictionScorer(metrics.MaxError, -1),
	"neg_mean_squared_error":      predictionScorer(metrics.MSE, -1),
	"neg_mean_absolute_error":     predictionScorer(metrics.MAE, -1),
	"neg_root_mean_squared_error": predictionScorer(metrics.RMSE, -1),
	"neg_mean_squared_log_error":  predictionScorer(metrics.MSLE, -1),
	"neg_median_absolute_error":   predictionScorer(metrics.MedianAbsoluteError, -1),
}

// GetScorer returns the scorer registered under a scikit-learn scoring name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scoring name", name)
	}
	return s, nil
}

// ScorerNames lists the supported scoring names.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultScoring is accuracy for classifiers and r2 otherwise.
func DefaultScoring(classifier bool) string {
	if classifier {
		return "accuracy"
	}
	return "r2"
}
