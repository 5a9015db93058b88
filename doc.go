// Package opgrid builds scikit-learn style operators from JSON-schema
// described hyperparameters and tunes them with successive halving grid
// search.
//
// Operators carry a combined schema (hyperparameters, fit/predict inputs and
// outputs). From those schemas opgrid derives discrete hyperparameter grids
// and hands them to a halving search that evaluates every candidate on a small
// sample first and keeps the best 1/factor of them for the next round.
//
// # Installation
//
//	go get github.com/YuminosukeSato/opgrid
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/opgrid/lib/sklearn"
//	    "github.com/YuminosukeSato/opgrid/operators"
//	    "github.com/YuminosukeSato/opgrid/optimizers"
//	)
//
//	func main() {
//	    planned, err := operators.MakePipeline(sklearn.MinMaxScaler(), sklearn.DecisionTreeClassifier())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    h, err := optimizers.NewHalvingGridSearchCV(
//	        optimizers.WithEstimator(planned),
//	        optimizers.WithCV(3),
//	        optimizers.WithNJobs(-1),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := h.Fit(context.Background(), X, y); err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(h.BestParams(), h.BestScore())
//	}
//
// # Packages
//
//   - schema: hyperparameter schemas and validation
//   - operators: individual operators, pipelines, unions and persistence
//   - lib/sklearn: schema-described wrappers of the bundled estimators
//   - search: grid generation from operator schemas
//   - model_selection: cross validation, scorers and HalvingGridSearch
//   - optimizers: HalvingGridSearchCV and lifecycle observers
//   - history: SQLite record of optimizer runs
//   - viz: plots of halving results
//   - sklearn/tree, sklearn/linear_model, sklearn/dummy, preprocessing: estimators
//   - metrics: evaluation metrics
//   - core/model, core/parallel: shared estimator state and worker pools
//   - pkg/errors, pkg/log: structured errors, warnings and logging
package opgrid
