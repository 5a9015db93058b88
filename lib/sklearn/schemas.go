// Package sklearn bundles schema-described operators for the estimators and
// transformers of this module. Every constructor returns a planned
// operators.IndividualOp and registers itself with the operator registry.
package sklearn

import (
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/schema"
)

const docsURL = "https://pkg.go.dev/github.com/YuminosukeSato/opgrid/lib/sklearn#"

var (
	numberSchema    = &schema.Schema{Type: []string{"number"}}
	numberRowSchema = &schema.Schema{
		Type:        []string{"array"},
		Description: "The inner array is over features aka columns.",
		Items:       numberSchema,
	}
)

func featuresSchema() *schema.Schema {
	return &schema.Schema{
		Description: "Features; the outer array is over samples.",
		Type:        []string{"array"},
		Items:       numberRowSchema,
	}
}

func targetSchema(description string) *schema.Schema {
	return &schema.Schema{
		Description: description,
		Type:        []string{"array"},
		Items:       numberSchema,
	}
}

func fitSchema(supervised bool, yDescription string) *schema.Schema {
	s := &schema.Schema{
		Type:     []string{"object"},
		Required: []string{"X"},
		Properties: map[string]*schema.Schema{
			"X": featuresSchema(),
			"y": targetSchema(yDescription),
		},
	}
	if supervised {
		s.Required = []string{"X", "y"}
	}
	return s
}

func predictSchema() *schema.Schema {
	return &schema.Schema{
		Type:       []string{"object"},
		Required:   []string{"X"},
		Properties: map[string]*schema.Schema{"X": featuresSchema()},
	}
}

func probaSchema() *schema.Schema {
	return &schema.Schema{
		Description: "Probability of each class, columns in the order of the sorted class labels.",
		Type:        []string{"array"},
		Items:       numberRowSchema,
	}
}

func matrixSchema(description string) *schema.Schema {
	return &schema.Schema{Description: description, Type: []string{"array"}, Items: numberRowSchema}
}

func randomStateSchema(description string) *schema.Schema {
	return &schema.Schema{
		Description: description,
		AnyOf: []*schema.Schema{
			{Description: "RandomState used by the global source.", Enum: []interface{}{schema.Null}},
			{Description: "Use the provided random state.", LaleType: schema.LaleRandomState},
			{Description: "Explicit seed.", Type: []string{"integer"}},
		},
		Default: schema.Null,
	}
}

func boolSchema(description string, def bool) *schema.Schema {
	return &schema.Schema{Description: description, Type: []string{"boolean"}, Default: def}
}

// hyperparams wraps the property object in the allOf form the optimizer reads.
func hyperparams(description string, required, relevant []string, props map[string]*schema.Schema) *schema.Schema {
	return &schema.Schema{
		Description: description,
		AllOf: []*schema.Schema{{
			Description:          "This first object lists all constructor arguments with their types.",
			Type:                 []string{"object"},
			Required:             required,
			RelevantToOptimizer:  relevant,
			AdditionalProperties: schema.Bool(false),
			Properties:           props,
		}},
	}
}

// All returns a planned instance of every operator in this package.
func All() []*operators.IndividualOp {
	return []*operators.IndividualOp{
		DecisionTreeClassifier(),
		DecisionTreeRegressor(),
		DummyClassifier(),
		LinearRegression(),
		LogisticRegression(),
		MinMaxScaler(),
		OrdinalEncoder(),
		StandardScaler(),
	}
}

func register(name string, ctor func() *operators.IndividualOp) {
	operators.Register(name, func() operators.Operator { return ctor() })
}

func init() {
	register("DecisionTreeClassifier", DecisionTreeClassifier)
	register("DecisionTreeRegressor", DecisionTreeRegressor)
	register("DummyClassifier", DummyClassifier)
	register("LinearRegression", LinearRegression)
	register("LogisticRegression", LogisticRegression)
	register("MinMaxScaler", MinMaxScaler)
	register("OrdinalEncoder", OrdinalEncoder)
	register("StandardScaler", StandardScaler)
}
