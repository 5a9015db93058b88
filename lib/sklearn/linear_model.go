package sklearn

import (
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/schema"
	"github.com/YuminosukeSato/opgrid/sklearn/linear_model"
)

var logisticRegressionSchemas = &schema.Combined{
	Description:      "Logistic regression classifier (binary, one-vs-rest or multinomial).",
	DocumentationURL: docsURL + "LogisticRegression",
	Tags:             schema.Tags{Op: []string{"estimator", "classifier"}},
	Hyperparams: hyperparams("Hyperparameter schema for the LogisticRegression.",
		[]string{"penalty", "C", "fit_intercept", "solver", "max_iter", "multi_class", "tol"},
		[]string{"C", "fit_intercept", "solver", "tol"},
		map[string]*schema.Schema{
			"penalty": {
				Description: "Norm used in the penalization.",
				Enum:        []interface{}{"l2", "none"},
				Default:     "l2",
			},
			"C": {
				Description:         "Inverse regularization strength. Smaller values specify stronger regularization.",
				Type:                []string{"number"},
				Minimum:             schema.Float(0),
				ExclusiveMinimum:    true,
				MinimumForOptimizer: schema.Float(0.03125),
				MaximumForOptimizer: schema.Float(32768),
				Distribution:        schema.LogUniform,
				Default:             1.0,
			},
			"fit_intercept": boolSchema("Whether to add a constant to the decision function.", true),
			"class_weight": {
				Description: "Weights associated with classes; balanced uses n_samples / (n_classes * count).",
				AnyOf: []*schema.Schema{
					{Enum: []interface{}{"balanced"}},
					{Description: "All classes have weight one.", Enum: []interface{}{schema.Null}},
				},
				Default: schema.Null,
			},
			"random_state": randomStateSchema("Accepted for compatibility; both solvers are deterministic."),
			"solver": {
				Description: "Algorithm to use in the optimization problem.",
				Enum:        []interface{}{"lbfgs", "newton-cg"},
				Default:     "lbfgs",
			},
			"max_iter": {
				Description: "Maximum number of iterations taken for the solvers to converge.",
				Type:        []string{"integer"},
				Minimum:     schema.Float(1),
				Default:     100,
			},
			"multi_class": {
				Description: "Approach for more than two classes; auto selects multinomial.",
				Enum:        []interface{}{"auto", "ovr", "multinomial"},
				Default:     "auto",
			},
			"warm_start": boolSchema("Accepted for compatibility; every fit starts from zero.", false),
			"tol": {
				Description:         "Tolerance for stopping criteria.",
				Type:                []string{"number"},
				Minimum:             schema.Float(0),
				ExclusiveMinimum:    true,
				MinimumForOptimizer: schema.Float(1e-05),
				MaximumForOptimizer: schema.Float(0.1),
				Distribution:        schema.LogUniform,
				Default:             1e-4,
			},
		}),
	InputFit:           fitSchema(true, "Target class labels."),
	InputPredict:       predictSchema(),
	InputPredictProba:  predictSchema(),
	OutputPredict:      targetSchema("Predicted class label per sample."),
	OutputPredictProba: probaSchema(),
}

var linearRegressionSchemas = &schema.Combined{
	Description:      "Ordinary least squares linear regression.",
	DocumentationURL: docsURL + "LinearRegression",
	Tags:             schema.Tags{Op: []string{"estimator", "regressor"}},
	Hyperparams: hyperparams("Hyperparameter schema for the LinearRegression.",
		[]string{"fit_intercept", "copy_X"}, []string{"fit_intercept"},
		map[string]*schema.Schema{
			"fit_intercept": boolSchema("Whether to calculate the intercept for this model.", true),
			"copy_X":        boolSchema("X is always copied; kept for compatibility.", true),
			"n_jobs": {
				Description: "Number of jobs to use for the computation.",
				AnyOf: []*schema.Schema{
					{Type: []string{"integer"}},
					{Description: "One job.", Enum: []interface{}{schema.Null}},
				},
				Default: schema.Null,
			},
		}),
	InputFit:      fitSchema(true, "Target values."),
	InputPredict:  predictSchema(),
	OutputPredict: targetSchema("Predicted values."),
}

// LogisticRegression returns a planned logistic regression classifier.
func LogisticRegression() *operators.IndividualOp {
	return operators.NewIndividualOp("LogisticRegression", logisticRegressionSchemas,
		func() operators.Impl { return linear_model.NewLogisticRegression() })
}

// LinearRegression returns a planned least-squares regressor.
func LinearRegression() *operators.IndividualOp {
	return operators.NewIndividualOp("LinearRegression", linearRegressionSchemas,
		func() operators.Impl { return linear_model.NewLinearRegression() })
}
