package model

// ClassifierFlag はscikit-learnの is_classifier に相当する判定を公開する
type ClassifierFlag interface {
	IsClassifier() bool
}

// SKLearnCompatible is the mutable scikit-learn estimator surface: fit and
// predict, parameter access by name, and the classifier flag.
type SKLearnCompatible interface {
	Estimator
	Configurable
	ClassifierFlag
}

// ClassifierMixin adds class probabilities and labels to SKLearnCompatible.
type ClassifierMixin interface {
	SKLearnCompatible
	ProbaPredictor

	// Classes returns the sorted labels seen during fitting.
	Classes() []float64
}

// WeightExporter は学習済みの重みを完全に再現可能な形で出し入れする
type WeightExporter interface {
	ExportWeights() (*Weights, error)
	ImportWeights(w *Weights) error
}
