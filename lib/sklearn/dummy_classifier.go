package sklearn

import (
	"github.com/YuminosukeSato/opgrid/operators"
	"github.com/YuminosukeSato/opgrid/schema"
	"github.com/YuminosukeSato/opgrid/sklearn/dummy"
)

var dummyClassifierSchemas = &schema.Combined{
	Description:      "Dummy classifier that makes predictions using simple rules.",
	DocumentationURL: docsURL + "DummyClassifier",
	Tags:             schema.Tags{Op: []string{"estimator", "classifier"}},
	Hyperparams: hyperparams("Hyperparameter schema for the DummyClassifier.",
		[]string{"strategy", "random_state"}, []string{},
		map[string]*schema.Schema{
			"strategy": {
				Description: "Strategy to use to generate predictions: stratified samples the training class " +
					"distribution, most_frequent and prior predict the majority label (prior also returns the " +
					"class prior from PredictProba), uniform samples labels uniformly, constant predicts the " +
					"given label.",
				Enum:    []interface{}{"stratified", "most_frequent", "prior", "uniform", "constant"},
				Default: "prior",
			},
			"random_state": randomStateSchema("Seed of the stratified and uniform strategies."),
			"constant": {
				Description: "The label predicted by the constant strategy.",
				AnyOf: []*schema.Schema{
					{Type: []string{"number"}},
					{Enum: []interface{}{schema.Null}},
				},
				Default: schema.Null,
			},
		}),
	InputFit:           fitSchema(true, "Target class labels."),
	InputPredict:       predictSchema(),
	InputPredictProba:  predictSchema(),
	OutputPredict:      targetSchema("Predicted class label per sample."),
	OutputPredictProba: probaSchema(),
}

// DummyClassifier returns a planned dummy classifier.
func DummyClassifier() *operators.IndividualOp {
	return operators.NewIndividualOp("DummyClassifier", dummyClassifierSchemas,
		func() operators.Impl { return dummy.NewDummyClassifier() })
}
