package sklearn

import (
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/preprocessing"
	"github.com/YuminosukeSato/opgrid/schema"
)

func transformerFit() *schema.Schema {
	return fitSchema(false, "Target; ignored.")
}

var ordinalEncoderSchemas = &schema.Combined{
	Description:      "Ordinal encoder that encodes categorical features as integers.",
	DocumentationURL: docsURL + "OrdinalEncoder",
	Tags:             schema.Tags{Pre: []string{"categoricals"}, Op: []string{"transformer"}},
	Hyperparams: hyperparams("Hyperparameter schema for the OrdinalEncoder.",
		[]string{"categories", "dtype"}, []string{},
		map[string]*schema.Schema{
			"categories": {
				AnyOf: []*schema.Schema{
					{
						Description: "Determine categories automatically from training data.",
						Enum:        []interface{}{"auto", schema.Null},
					},
					{
						Description: "The ith list element holds the sorted categories expected in the ith column.",
						Type:        []string{"array"},
						Items:       &schema.Schema{Type: []string{"array"}, Items: numberSchema},
					},
				},
				Default: "auto",
			},
			"dtype": {
				Description: "Desired dtype of output; always float64.",
				LaleType:    schema.LaleAny,
				Default:     "float64",
			},
			"handle_unknown": {
				Description: "Whether to raise an error or encode unknown categories with encode_unknown_with. " +
					"Inverse transform maps unknown codes to NaN.",
				Enum:    []interface{}{"error", "ignore"},
				Default: "ignore",
			},
			"encode_unknown_with": {
				Description: "Code for unknown categories; auto uses the number of known categories.",
				AnyOf: []*schema.Schema{
					{Type: []string{"integer"}},
					{Enum: []interface{}{"auto"}},
				},
				Default: "auto",
			},
		}),
	InputFit:        transformerFit(),
	InputTransform:  predictSchema(),
	OutputTransform: matrixSchema("Ordinal codes."),
}

var standardScalerSchemas = &schema.Combined{
	Description:      "Standardize features by removing the mean and scaling to unit variance.",
	DocumentationURL: docsURL + "StandardScaler",
	Tags:             schema.Tags{Op: []string{"transformer"}},
	Hyperparams: hyperparams("Hyperparameter schema for the StandardScaler.",
		[]string{"with_mean", "with_std"}, []string{"with_mean", "with_std"},
		map[string]*schema.Schema{
			"with_mean": boolSchema("If true, center the data before scaling.", true),
			"with_std":  boolSchema("If true, scale the data to unit variance.", true),
			"copy":      boolSchema("Transforms never modify their input; kept for compatibility.", true),
		}),
	InputFit:        transformerFit(),
	InputTransform:  predictSchema(),
	OutputTransform: matrixSchema("Standardized features."),
}

var minMaxScalerSchemas = &schema.Combined{
	Description:      "Scale each feature to a given range.",
	DocumentationURL: docsURL + "MinMaxScaler",
	Tags:             schema.Tags{Op: []string{"transformer"}},
	Hyperparams: hyperparams("Hyperparameter schema for the MinMaxScaler.",
		[]string{"feature_range"}, []string{},
		map[string]*schema.Schema{
			"feature_range": {
				Description: "Desired range of transformed data.",
				Type:        []string{"array"},
				Items:       numberSchema,
				MinItems:    schema.Int(2),
				MaxItems:    schema.Int(2),
				Default:     []interface{}{0.0, 1.0},
			},
			"copy": boolSchema("Transforms never modify their input; kept for compatibility.", true),
		}),
	InputFit:        transformerFit(),
	InputTransform:  predictSchema(),
	OutputTransform: matrixSchema("Scaled features."),
}

// OrdinalEncoder returns a planned ordinal encoder.
func OrdinalEncoder() *operators.IndividualOp {
	return operators.NewIndividualOp("OrdinalEncoder", ordinalEncoderSchemas,
		func() operators.Impl { return preprocessing.NewOrdinalEncoder() })
}

// StandardScaler returns a planned standard scaler.
func StandardScaler() *operators.IndividualOp {
	return operators.NewIndividualOp("StandardScaler", standardScalerSchemas,
		func() operators.Impl { return preprocessing.NewStandardScalerDefault() })
}

// MinMaxScaler returns a planned min-max scaler.
func MinMaxScaler() *operators.IndividualOp {
	return operators.NewIndividualOp("MinMaxScaler", minMaxScalerSchemas,
		func() operators.Impl { return preprocessing.NewMinMaxScalerDefault() })
}
