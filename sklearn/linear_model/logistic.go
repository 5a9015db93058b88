package linear_model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/pkg/log"
)

// LogisticRegression implements logistic regression for classification
// Compatible with scikit-learn's LogisticRegression
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	classWeight  string  // Class weight: "balanced", "none"
	randomState  int64   // Accepted for compatibility; both solvers are deterministic
	solver       string  // Solver: "lbfgs", "newton-cg"
	maxIter      int     // Maximum iterations
	multiClass   string  // Multi-class: "auto", "ovr", "multinomial"
	warmStart    bool    // Reuse previous solution
	tol          float64 // Gradient norm at which the solver stops

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []float64   // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per coefficient row
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		classWeight:  "none",
		randomState:  -1,
		solver:       "lbfgs",
		maxIter:      100,
		multiClass:   "auto",
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// WithLRMultiClass sets the multi-class strategy
func WithLRMultiClass(multiClass string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = multiClass
	}
}

// WithLRClassWeight sets the class weighting ("none" or "balanced")
func WithLRClassWeight(classWeight string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.classWeight = classWeight
	}
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.solver != "lbfgs" && lr.solver != "newton-cg":
		return errors.NewValidationError("solver", "must be 'lbfgs' or 'newton-cg'", lr.solver)
	case lr.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be >= 1", lr.maxIter)
	case lr.multiClass != "auto" && lr.multiClass != "ovr" && lr.multiClass != "multinomial":
		return errors.NewValidationError("multi_class", "must be 'auto', 'ovr' or 'multinomial'", lr.multiClass)
	case lr.classWeight != "none" && lr.classWeight != "balanced":
		return errors.NewValidationError("class_weight", "must be 'none' or 'balanced'", lr.classWeight)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}
	if err := lr.validate(); err != nil {
		return err
	}

	labels := model.Labels(y)
	lr.extractClasses(labels)
	if lr.nClasses_ < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			"this solver needs samples of at least 2 classes in the data")
	}

	// 切片を学習する場合は中心化したXで最適化し、最後に切片を戻す
	Xc := mat.DenseCopyOf(X)
	means := make([]float64, nFeatures)
	if lr.fitIntercept {
		for j := 0; j < nFeatures; j++ {
			col := model.Column(Xc, j)
			means[j] = floats.Sum(col) / float64(nSamples)
			floats.AddConst(-means[j], col)
			Xc.SetCol(j, col)
		}
	}

	sampleWeight := lr.sampleWeights(labels)
	warm := lr.warmStart && lr.nFeatures_ == nFeatures && len(lr.coef_) > 0
	lr.nFeatures_ = nFeatures

	multinomial := lr.nClasses_ > 2 && lr.multiClass != "ovr"
	switch {
	case lr.nClasses_ == 2:
		lr.allocate(1, warm)
		target := lr.binaryTarget(labels, lr.classes_[1])
		err = lr.fitBinaryRow(Xc, target, sampleWeight, 0)
	case multinomial:
		lr.allocate(lr.nClasses_, warm)
		err = lr.fitMultinomial(Xc, labels, sampleWeight)
	default:
		lr.allocate(lr.nClasses_, warm)
		for k, class := range lr.classes_ {
			target := lr.binaryTarget(labels, class)
			if err = lr.fitBinaryRow(Xc, target, sampleWeight, k); err != nil {
				err = errors.Wrapf(err, "failed to fit class %v", class)
				break
			}
		}
	}
	if err != nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization", err)
	}

	if lr.fitIntercept {
		for k := range lr.coef_ {
			lr.intercept_[k] -= floats.Dot(lr.coef_[k], means)
		}
	}

	log.GetLoggerWithName("linear_model").Debug("LogisticRegression fitted",
		log.SamplesKey, nSamples, log.FeaturesKey, nFeatures, log.ClassesKey, lr.nClasses_,
		"n_iter", lr.nIter_)

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(labels []float64) {
	seen := make(map[float64]bool)
	lr.classes_ = lr.classes_[:0]
	for _, v := range labels {
		if !seen[v] {
			seen[v] = true
			lr.classes_ = append(lr.classes_, v)
		}
	}
	sort.Float64s(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

// sampleWeights returns n/(k*count(class)) per sample for balanced weighting.
func (lr *LogisticRegression) sampleWeights(labels []float64) []float64 {
	w := make([]float64, len(labels))
	if lr.classWeight != "balanced" {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	counts := make(map[float64]int)
	for _, v := range labels {
		counts[v]++
	}
	for i, v := range labels {
		w[i] = float64(len(labels)) / (float64(lr.nClasses_) * float64(counts[v]))
	}
	return w
}

func (lr *LogisticRegression) binaryTarget(labels []float64, positive float64) []float64 {
	t := make([]float64, len(labels))
	for i, v := range labels {
		if v == positive {
			t[i] = 1
		}
	}
	return t
}

func (lr *LogisticRegression) allocate(rows int, warm bool) {
	if warm && len(lr.coef_) == rows {
		lr.nIter_ = make([]int, rows)
		return
	}
	lr.coef_ = make([][]float64, rows)
	for k := range lr.coef_ {
		lr.coef_[k] = make([]float64, lr.nFeatures_)
	}
	lr.intercept_ = make([]float64, rows)
	lr.nIter_ = make([]int, rows)
}

func (lr *LogisticRegression) alpha() float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1 / lr.C
}

func (lr *LogisticRegression) method() optimize.Method {
	if lr.solver == "newton-cg" {
		return &optimize.CG{}
	}
	return &optimize.LBFGS{}
}

// minimize runs the configured solver. A solver that stops early (for
// example on a failed line search) still yields its best location.
func (lr *LogisticRegression) minimize(p optimize.Problem, init []float64) ([]float64, int, error) {
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(p, init, settings, lr.method())
	if result == nil {
		return nil, 0, err
	}
	if err != nil {
		log.GetLoggerWithName("linear_model").Debug("solver stopped early", "error", err.Error())
	}
	if err := errors.CheckNumericalStability("LogisticRegression.minimize", result.X, result.Stats.MajorIterations); err != nil {
		return nil, 0, err
	}
	return result.X, result.Stats.MajorIterations, nil
}

// fitBinaryRow minimizes the weighted mean log loss plus the l2 penalty for
// one coefficient row. Parameters are laid out as [w..., b].
func (lr *LogisticRegression) fitBinaryRow(X *mat.Dense, target, sw []float64, row int) error {
	n, p := X.Dims()
	alpha := lr.alpha() / float64(n)
	z := make([]float64, n)

	linear := func(theta []float64) {
		w := mat.NewVecDense(p, theta[:p])
		zv := mat.NewVecDense(n, z)
		zv.MulVec(X, w)
		if lr.fitIntercept {
			floats.AddConst(theta[p], z)
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			linear(theta)
			loss := 0.0
			for i, zi := range z {
				// log(1+exp(-s z)) をオーバーフローさせずに計算
				s := 2*target[i] - 1
				loss += sw[i] * logOnePlusExp(-s*zi)
			}
			w := theta[:p]
			return loss/float64(n) + 0.5*alpha*floats.Dot(w, w)
		},
		Grad: func(grad, theta []float64) {
			linear(theta)
			resid := make([]float64, n)
			for i, zi := range z {
				resid[i] = sw[i] * (sigmoid(zi) - target[i]) / float64(n)
			}
			g := mat.NewVecDense(p, grad[:p])
			g.MulVec(X.T(), mat.NewVecDense(n, resid))
			floats.AddScaled(grad[:p], alpha, theta[:p])
			grad[p] = 0
			if lr.fitIntercept {
				grad[p] = floats.Sum(resid)
			}
		},
	}

	init := make([]float64, p+1)
	copy(init, lr.coef_[row])
	init[p] = lr.intercept_[row]

	theta, iters, err := lr.minimize(problem, init)
	if err != nil {
		return err
	}
	copy(lr.coef_[row], theta[:p])
	lr.intercept_[row] = 0
	if lr.fitIntercept {
		lr.intercept_[row] = theta[p]
	}
	lr.nIter_[row] = iters
	return nil
}

// fitMultinomial minimizes the softmax cross entropy over all classes at once.
// Parameters are laid out row-major as k rows of [w..., b].
func (lr *LogisticRegression) fitMultinomial(X *mat.Dense, labels, sw []float64) error {
	n, p := X.Dims()
	k := lr.nClasses_
	alpha := lr.alpha() / float64(n)
	width := p + 1

	index := make([]int, n)
	for i, v := range labels {
		index[i] = sort.SearchFloat64s(lr.classes_, v)
	}

	scores := mat.NewDense(n, k, nil)
	proba := func(theta []float64) {
		W := mat.NewDense(k, width, theta)
		scores.Mul(X, W.Slice(0, k, 0, p).T())
		for i := 0; i < n; i++ {
			row := scores.RawRowView(i)
			if lr.fitIntercept {
				for c := range row {
					row[c] += theta[c*width+p]
				}
			}
			softmax(row)
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			proba(theta)
			loss := 0.0
			for i := 0; i < n; i++ {
				loss -= sw[i] * math.Log(math.Max(scores.At(i, index[i]), 1e-300))
			}
			penalty := 0.0
			for c := 0; c < k; c++ {
				w := theta[c*width : c*width+p]
				penalty += floats.Dot(w, w)
			}
			return loss/float64(n) + 0.5*alpha*penalty
		},
		Grad: func(grad, theta []float64) {
			proba(theta)
			resid := mat.NewDense(n, k, nil)
			for i := 0; i < n; i++ {
				for c := 0; c < k; c++ {
					r := scores.At(i, c)
					if c == index[i] {
						r--
					}
					resid.Set(i, c, sw[i]*r/float64(n))
				}
			}
			var gw mat.Dense
			gw.Mul(resid.T(), X)
			for c := 0; c < k; c++ {
				g := grad[c*width : c*width+p]
				copy(g, gw.RawRowView(c))
				floats.AddScaled(g, alpha, theta[c*width:c*width+p])
				grad[c*width+p] = 0
				if lr.fitIntercept {
					grad[c*width+p] = floats.Sum(model.Column(resid, c))
				}
			}
		},
	}

	init := make([]float64, k*width)
	for c := 0; c < k; c++ {
		copy(init[c*width:], lr.coef_[c])
		init[c*width+p] = lr.intercept_[c]
	}

	theta, iters, err := lr.minimize(problem, init)
	if err != nil {
		return err
	}
	for c := 0; c < k; c++ {
		copy(lr.coef_[c], theta[c*width:c*width+p])
		lr.intercept_[c] = 0
		if lr.fitIntercept {
			lr.intercept_[c] = theta[c*width+p]
		}
		lr.nIter_[c] = iters
	}
	return nil
}

// DecisionFunction returns the linear scores: n×1 for binary problems,
// n×k otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}
	rows := len(lr.coef_)
	W := mat.NewDense(rows, nFeatures, nil)
	for k, row := range lr.coef_ {
		W.SetRow(k, row)
	}
	scores := mat.NewDense(nSamples, rows, nil)
	scores.Mul(X, W.T())
	for i := 0; i < nSamples; i++ {
		floats.Add(scores.RawRowView(i), lr.intercept_)
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := proba.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, lr.classes_[floats.MaxIdx(proba.RawRowView(i))])
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return lr.predictProba("PredictProba", X)
}

func (lr *LogisticRegression) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return nil, err
	}
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)

	switch {
	case lr.nClasses_ == 2:
		for i := 0; i < nSamples; i++ {
			prob1 := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1.0-prob1)
			probas.Set(i, 1, prob1)
		}
	case lr.multiClass == "ovr":
		// One-vs-rest: 各クラスのシグモイドを正規化
		for i := 0; i < nSamples; i++ {
			row := probas.RawRowView(i)
			for k := range row {
				row[k] = sigmoid(scores.At(i, k))
			}
			floats.Scale(1/floats.Sum(row), row)
		}
	default:
		for i := 0; i < nSamples; i++ {
			row := probas.RawRowView(i)
			copy(row, scores.RawRowView(i))
			softmax(row)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []float64 {
	return append([]float64(nil), lr.classes_...)
}

// Coef returns a copy of the coefficient rows.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, row := range lr.coef_ {
		out[k] = append([]float64(nil), row...)
	}
	return out
}

// Intercepts returns a copy of the intercept terms.
func (lr *LogisticRegression) Intercepts() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the number of solver iterations per coefficient row.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// ExportWeights returns the fitted coefficients for persistence.
func (lr *LogisticRegression) ExportWeights() (*model.Weights, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	return &model.Weights{
		ModelType:   "LogisticRegression",
		Classes:     lr.Classes(),
		Coef:        lr.Coef(),
		Intercept:   lr.Intercepts(),
		NFeatures:   lr.nFeatures_,
		Hyperparams: lr.GetParams(),
	}, nil
}

// ImportWeights restores fitted coefficients produced by ExportWeights.
func (lr *LogisticRegression) ImportWeights(w *model.Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != "LogisticRegression" {
		return errors.NewValueError("LogisticRegression.ImportWeights", "model type mismatch: "+w.ModelType)
	}
	if len(w.Classes) < 2 {
		return errors.NewValueError("LogisticRegression.ImportWeights", "at least two classes are required")
	}
	lr.classes_ = append([]float64(nil), w.Classes...)
	lr.nClasses_ = len(w.Classes)
	lr.nFeatures_ = w.NFeatures
	lr.coef_ = make([][]float64, len(w.Coef))
	for k, row := range w.Coef {
		lr.coef_[k] = append([]float64(nil), row...)
	}
	lr.intercept_ = append([]float64(nil), w.Intercept...)
	lr.nIter_ = make([]int, len(w.Coef))
	lr.state.SetDimensions(w.NFeatures, 0)
	lr.state.SetFitted()
	return nil
}

// IsClassifier always reports true.
func (lr *LogisticRegression) IsClassifier() bool { return true }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"class_weight":  lr.classWeight,
		"random_state":  nil,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"warm_start":    lr.warmStart,
		"tol":           lr.tol,
	}
	if lr.randomState >= 0 {
		params["random_state"] = lr.randomState
	}
	return params
}

// SetParams sets the model hyperparameters and resets the fitted state.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = asString(key, value)
		case "C":
			lr.C, err = asFloat(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = asBool(key, value)
		case "class_weight":
			if value == nil {
				lr.classWeight = "none"
			} else {
				lr.classWeight, err = asString(key, value)
			}
		case "random_state":
			if value == nil {
				lr.randomState = -1
			} else {
				var v int
				v, err = asInt(key, value)
				lr.randomState = int64(v)
			}
		case "solver":
			lr.solver, err = asString(key, value)
		case "max_iter":
			lr.maxIter, err = asInt(key, value)
		case "multi_class":
			lr.multiClass, err = asString(key, value)
		case "warm_start":
			lr.warmStart, err = asBool(key, value)
		case "tol":
			lr.tol, err = asFloat(key, value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	lr.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() *LogisticRegression {
	c := *lr
	c.state = lr.state.Clone()
	c.coef_ = nil
	c.intercept_ = nil
	c.classes_ = nil
	c.nClasses_ = 0
	c.nFeatures_ = 0
	c.nIter_ = nil
	return &c
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + errors.StabilizeExp(-z))
	}
	e := errors.StabilizeExp(z)
	return e / (1.0 + e)
}

// logOnePlusExp is log(1 + exp(x)).
func logOnePlusExp(x float64) float64 {
	return errors.LogSumExp([]float64{0, x})
}

// softmax normalizes row in place.
func softmax(row []float64) {
	lse := errors.LogSumExp(row)
	for i, v := range row {
		row[i] = math.Exp(v - lse)
	}
}
