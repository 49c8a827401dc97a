// Package model provides the estimator interfaces shared by the preprocessing
// stages and the classifiers under sklearn/.
//
// All matrices are row-major samples; class labels are indices into the
// nominal class attribute, carried as float64 in an n×1 matrix.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter learns from a feature matrix and an n×1 class index column.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor returns an n×1 column of predicted class indices.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is a probabilistic classifier over class indices.
type Classifier interface {
	Fitter
	Predictor

	// PredictProba returns an n×len(Classes()) matrix of class probabilities.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the class indices seen during fitting, sorted ascending.
	// Column j of PredictProba belongs to Classes()[j].
	Classes() []int
}

// Transformer is an unsupervised column transform fitted on the training matrix.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters for reports.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
