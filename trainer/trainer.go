// Package trainer turns a prepared training Dataset into a fitted model.
//
// A Trainer is the only seam between the shared pipeline and an algorithm:
// in-house estimators from sklearn/ are adapted through model.Classifier,
// golearn classifiers through a DenseInstances bridge. Every fitted model
// scores rows as a full class distribution over the training class labels.
package trainer

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// Trainer fits one algorithm with fixed parameters.
type Trainer interface {
	// Name is the registry name of the algorithm, e.g. "J48".
	Name() string
	// Params returns the resolved parameters.
	Params() map[string]any
	// Train fits a model. Failures are returned as TrainingError.
	Train(ctx context.Context, train *dataset.Dataset) (*Fitted, error)
}

// Scorer returns an n×k matrix of class probabilities for the feature rows
// of X, k being the number of class labels of the training header.
type Scorer interface {
	Score(X *mat.Dense) (*mat.Dense, error)
}

// Fitted is a trained model together with the schema it was trained on.
type Fitted struct {
	Algorithm string
	Params    map[string]any
	Header    dataset.Header
	// Prior is the Laplace-smoothed training class distribution, used as the
	// reference predictor for relative error measures.
	Prior    []float64
	Duration time.Duration
	Rows     int

	scorer Scorer
}

// NewFitted wires a scorer to its training schema.
func NewFitted(algorithm string, params map[string]any, train *dataset.Dataset, scorer Scorer) (*Fitted, error) {
	counts, err := train.ClassCounts()
	if err != nil {
		return nil, err
	}
	prior := make([]float64, len(counts))
	total := 0
	for _, c := range counts {
		total += c
	}
	for k, c := range counts {
		prior[k] = (float64(c) + 1) / (float64(total) + float64(len(counts)))
	}
	return &Fitted{
		Algorithm: algorithm,
		Params:    params,
		Header:    train.Header(),
		Prior:     prior,
		Rows:      train.NumRows(),
		scorer:    scorer,
	}, nil
}

// NumClasses returns the number of class labels of the training header.
func (f *Fitted) NumClasses() int {
	return len(f.Header.Attributes[f.Header.ClassIndex].Labels)
}

// ClassLabels returns the class labels of the training header.
func (f *Fitted) ClassLabels() []string {
	return append([]string(nil), f.Header.Attributes[f.Header.ClassIndex].Labels...)
}

// Distributions scores every row of d. d must carry the training header.
func (f *Fitted) Distributions(d *dataset.Dataset) (*mat.Dense, error) {
	if err := f.Header.Compatible(d.Header()); err != nil {
		return nil, err
	}
	n, k := d.NumRows(), f.NumClasses()
	if n == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s: scoring %s", f.Algorithm, d.Relation())
	}
	X := featureMatrix(d)
	dist, err := f.scorer.Score(X)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: scoring", f.Algorithm)
	}
	r, c := dist.Dims()
	if r != n || c != k {
		return nil, errors.NewDimensionError(f.Algorithm+".Score", k, c, 1)
	}
	return dist, nil
}

// Predict returns the most probable class index per row; ties go to the lower index.
func (f *Fitted) Predict(d *dataset.Dataset) ([]int, error) {
	dist, err := f.Distributions(d)
	if err != nil {
		return nil, err
	}
	return Argmax(dist), nil
}

// Argmax returns the column of the largest value of every row.
func Argmax(dist mat.Matrix) []int {
	r, c := dist.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if dist.At(i, k) > dist.At(i, best) {
				best = k
			}
		}
		out[i] = best
	}
	return out
}

// featureMatrix returns the non-class cells of every row, missing class or not.
func featureMatrix(d *dataset.Dataset) *mat.Dense {
	n, f := d.NumRows(), d.NumFeatures()
	X := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		X.SetRow(i, d.Features(i))
	}
	return X
}

// trainingMatrix returns the feature matrix and class column of the rows with
// a known class, after checking the input can be trained on at all.
func trainingMatrix(algorithm string, train *dataset.Dataset) (*mat.Dense, *mat.Dense, error) {
	if train.ClassIndex() < 0 || train.NumClasses() == 0 {
		return nil, nil, errors.NewTrainingError(algorithm,
			errors.NewConfigurationError("train", "", "class attribute must be set and nominal"))
	}
	if train.NumFeatures() == 0 {
		return nil, nil, errors.NewTrainingError(algorithm, errors.ErrNoFeatures)
	}

	var rows []int
	present := make(map[int]bool)
	for i := 0; i < train.NumRows(); i++ {
		if c := train.ClassValue(i); c >= 0 {
			rows = append(rows, i)
			present[c] = true
		}
	}
	if len(rows) == 0 {
		return nil, nil, errors.NewTrainingError(algorithm, errors.ErrEmptyData)
	}
	if len(present) < 2 {
		return nil, nil, errors.NewTrainingError(algorithm, errors.ErrSingleClass)
	}

	X := mat.NewDense(len(rows), train.NumFeatures(), nil)
	y := mat.NewDense(len(rows), 1, nil)
	for r, i := range rows {
		X.SetRow(r, train.Features(i))
		y.Set(r, 0, float64(train.ClassValue(i)))
	}
	return X, y, nil
}

// spread copies model columns into the full class label space. Columns of
// classes the model never saw stay 0.
func spread(proba mat.Matrix, classes []int, nClasses int) (*mat.Dense, error) {
	r, c := proba.Dims()
	if c != len(classes) {
		return nil, errors.NewDimensionError("spread", len(classes), c, 1)
	}
	out := mat.NewDense(r, nClasses, nil)
	for j, cls := range classes {
		if cls < 0 || cls >= nClasses {
			return nil, errors.NewValueError("spread", fmt.Sprintf("class %d outside [0, %d)", cls, nClasses))
		}
		for i := 0; i < r; i++ {
			v := proba.At(i, j)
			if math.IsNaN(v) {
				return nil, errors.NewNumericalInstabilityError("spread", []float64{v}, i)
			}
			out.Set(i, cls, v)
		}
	}
	return out, nil
}

// checkContext returns ctx.Err() wrapped as a TrainingError.
func checkContext(ctx context.Context, algorithm string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTrainingError(algorithm, err)
	}
	return nil
}
