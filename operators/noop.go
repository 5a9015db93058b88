package operators

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
	"github.com/YuminosukeSato/opgrid/schema"
)

type identity struct{}

func (identity) GetParams() map[string]interface{} { return map[string]interface{}{} }

func (identity) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		return errors.NewValidationError(k, "NoOp takes no hyperparameters", v)
	}
	return nil
}

func (identity) Fit(X mat.Matrix) error { return nil }

func (identity) Transform(X mat.Matrix) (mat.Matrix, error) {
	return mat.DenseCopyOf(X), nil
}

var noOpSchemas = &schema.Combined{
	Description: "Passes the data through unchanged.",
	Tags:        schema.Tags{Op: []string{"transformer"}},
	Hyperparams: &schema.Schema{
		AllOf: []*schema.Schema{{
			Type:                 []string{"object"},
			AdditionalProperties: schema.Bool(false),
			RelevantToOptimizer:  []string{},
			Properties:           map[string]*schema.Schema{},
		}},
	},
	InputFit: &schema.Schema{
		Type:     []string{"object"},
		Required: []string{"X"},
		Properties: map[string]*schema.Schema{
			"X": {Description: "Features; any shape."},
			"y": {Description: "Target; ignored."},
		},
	},
	InputTransform: &schema.Schema{
		Type:       []string{"object"},
		Required:   []string{"X"},
		Properties: map[string]*schema.Schema{"X": {}},
	},
	OutputTransform: &schema.Schema{Description: "Same as the input."},
}

// NoOp returns the identity transformer.
func NoOp() *IndividualOp {
	return NewIndividualOp("NoOp", noOpSchemas, func() Impl { return identity{} })
}

func init() {
	Register("NoOp", func() Operator { return NoOp() })
}
