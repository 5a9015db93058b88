// Package log defines standard attribute keys for operator and search logging.
//
// Keys follow a hierarchical naming convention ("model.name", "search.iteration")
// so that the JSON lines written by the default provider can be filtered by
// prefix when following a hyperparameter search.

package log

// Model and Operation Context
// These attributes identify the operator and the operation being performed.
const (
	// ModelNameKey identifies the operator or estimator type.
	// Examples: "DecisionTreeClassifier", "OrdinalEncoder", "HalvingGridSearchCV"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for an operator instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "optimize"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct labels seen by a classifier.
	ClassesKey = "data.classes"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// R2ScoreKey records the R² coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// ScoreKey records the value of the configured scorer, whatever it is.
	ScoreKey = "metrics.score"

	// ScoringKey names the configured scorer.
	ScoringKey = "metrics.scoring"
)

// Search Context
// These attributes follow successive halving through its iterations.
const (
	// IterationKey records the halving iteration, starting at 0.
	IterationKey = "search.iteration"

	// CandidatesKey records how many candidates are evaluated in an iteration.
	CandidatesKey = "search.candidates"

	// CandidateKey records the index of a single candidate.
	CandidateKey = "search.candidate"

	// ResourceKey records the number of samples allotted per candidate.
	ResourceKey = "search.resources"

	// GridsKey records the number of parameter grids being searched.
	GridsKey = "search.grids"

	// SplitsKey records the number of cross-validation splits.
	SplitsKey = "search.splits"

	// JobsKey records the number of concurrent workers.
	JobsKey = "search.n_jobs"

	// ObserverEventKey names the observer hook being dispatched ("start", "end", "fail").
	ObserverEventKey = "observer.event"

	// RunIDKey identifies one optimize run across observers and history.
	RunIDKey = "search.run_id"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically when an error is passed as the first field.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains operator hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// WorkerIDKey identifies the worker goroutine that evaluated a candidate.
	WorkerIDKey = "infra.worker_id"
)

// Standard attribute value constants.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationOptimize  = "optimize"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"
	PhaseSearch     = "search"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorFitFailed         = "FIT_FAILED"
)
