package sklearn

import (
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/schema"
	"github.com/YuminosukeSato/opgrid/sklearn/tree"
)

var treeRelevant = []string{
	"criterion", "splitter", "max_depth", "min_samples_split", "min_samples_leaf", "max_features",
}

// treeProperties holds the hyperparameters shared by both trees. The
// regressor keeps "auto" (all features) as its max_features default and
// requires at least 2 features when an integer is given.
func treeProperties(criteria []interface{}, defaultCriterion string, minFeatures float64, defaultFeatures interface{}) map[string]*schema.Schema {
	return map[string]*schema.Schema{
		"criterion": {
			Description: "Function to measure the quality of a split.",
			Enum:        criteria,
			Default:     defaultCriterion,
		},
		"splitter": {
			Description: "Strategy to choose the split at each node.",
			Enum:        []interface{}{"best", "random"},
			Default:     "best",
		},
		"max_depth": {
			Description: "Maximum depth of the tree.",
			AnyOf: []*schema.Schema{
				{
					Type:                []string{"integer"},
					Minimum:             schema.Float(1),
					MinimumForOptimizer: schema.Float(3),
					MaximumForOptimizer: schema.Float(5),
				},
				{
					Description: "If None, nodes are expanded until all leaves are pure or smaller than min_samples_split.",
					Enum:        []interface{}{schema.Null},
				},
			},
			Default: schema.Null,
		},
		"min_samples_split": {
			Description: "The minimum number of samples required to split an internal node.",
			AnyOf: []*schema.Schema{
				{
					Description:  "Consider min_samples_split as the minimum number.",
					Type:         []string{"integer"},
					Minimum:      schema.Float(2),
					ForOptimizer: schema.Bool(false),
				},
				{
					Description:         "min_samples_split is a fraction of the samples.",
					Type:                []string{"number"},
					Minimum:             schema.Float(0),
					ExclusiveMinimum:    true,
					Maximum:             schema.Float(1),
					MinimumForOptimizer: schema.Float(0.01),
					MaximumForOptimizer: schema.Float(0.5),
				},
			},
			Default: 2,
		},
		"min_samples_leaf": {
			Description: "The minimum number of samples required to be at a leaf node.",
			AnyOf: []*schema.Schema{
				{
					Description:  "Consider min_samples_leaf as the minimum number.",
					Type:         []string{"integer"},
					Minimum:      schema.Float(1),
					ForOptimizer: schema.Bool(false),
				},
				{
					Description:         "min_samples_leaf is a fraction of the samples.",
					Type:                []string{"number"},
					Minimum:             schema.Float(0),
					ExclusiveMinimum:    true,
					Maximum:             schema.Float(0.5),
					MinimumForOptimizer: schema.Float(0.01),
					MaximumForOptimizer: schema.Float(0.5),
				},
			},
			Default: 1,
		},
		"max_features": {
			Description: "The number of features to consider when looking for the best split.",
			AnyOf: []*schema.Schema{
				{
					Description:  "Consider max_features features at each split.",
					Type:         []string{"integer"},
					Minimum:      schema.Float(minFeatures),
					ForOptimizer: schema.Bool(false),
				},
				{
					Description:         "max_features is a fraction of the features.",
					Type:                []string{"number"},
					Minimum:             schema.Float(0),
					ExclusiveMinimum:    true,
					Maximum:             schema.Float(1),
					MaximumForOptimizer: schema.Float(0.9),
					Distribution:        schema.Uniform,
				},
				{Enum: []interface{}{"auto", "sqrt", "log2", schema.Null}},
			},
			Default: defaultFeatures,
		},
		"random_state": randomStateSchema("Seed of the feature permutation and the random splitter."),
		"max_leaf_nodes": {
			Description: "Grow a tree with max_leaf_nodes in best-first fashion.",
			AnyOf: []*schema.Schema{
				{Type: []string{"integer"}, Minimum: schema.Float(2)},
				{Description: "Unlimited number of leaf nodes.", Enum: []interface{}{schema.Null}},
			},
			Default: schema.Null,
		},
		"min_impurity_decrease": {
			Description: "A node is split if the split decreases the impurity by at least this value.",
			Type:        []string{"number"},
			Minimum:     schema.Float(0),
			Default:     0.0,
		},
		"ccp_alpha": {
			Description: "Complexity parameter for minimal cost-complexity pruning. Recorded only; the tree is not pruned.",
			Type:        []string{"number"},
			Minimum:     schema.Float(0),
			Default:     0.0,
		},
	}
}

var treeRequired = []string{
	"criterion", "splitter", "max_depth", "min_samples_split", "min_samples_leaf", "max_features",
}

var decisionTreeClassifierSchemas = &schema.Combined{
	Description:      "CART decision tree classifier.",
	DocumentationURL: docsURL + "DecisionTreeClassifier",
	Tags:             schema.Tags{Op: []string{"estimator", "classifier"}},
	Hyperparams: hyperparams("Hyperparameter schema for the DecisionTreeClassifier.",
		treeRequired, treeRelevant, treeProperties([]interface{}{"gini", "entropy"}, "gini", 1, schema.Null)),
	InputFit:           fitSchema(true, "The target class labels."),
	InputPredict:       predictSchema(),
	InputPredictProba:  predictSchema(),
	OutputPredict:      targetSchema("The predicted classes."),
	OutputPredictProba: probaSchema(),
}

var decisionTreeRegressorSchemas = &schema.Combined{
	Description:      "CART decision tree regressor.",
	DocumentationURL: docsURL + "DecisionTreeRegressor",
	Tags:             schema.Tags{Op: []string{"estimator", "regressor"}},
	Hyperparams: hyperparams("Hyperparameter schema for the DecisionTreeRegressor.",
		treeRequired, treeRelevant, treeProperties([]interface{}{"mse", "friedman_mse", "mae"}, "mse", 2, "auto")),
	InputFit:      fitSchema(true, "The target values (real numbers)."),
	InputPredict:  predictSchema(),
	OutputPredict: targetSchema("The predicted values."),
}

// DecisionTreeClassifier returns a planned decision tree classifier.
func DecisionTreeClassifier() *operators.IndividualOp {
	return operators.NewIndividualOp("DecisionTreeClassifier", decisionTreeClassifierSchemas,
		func() operators.Impl { return tree.NewDecisionTreeClassifier() })
}

// DecisionTreeRegressor returns a planned decision tree regressor.
func DecisionTreeRegressor() *operators.IndividualOp {
	return operators.NewIndividualOp("DecisionTreeRegressor", decisionTreeRegressorSchemas,
		func() operators.Impl { return tree.NewDecisionTreeRegressor() })
}
