// Package evaluation scores a fitted model on a test Dataset and assembles the
// classification report: confusion matrix, per-class rates, binary AUC and
// kappa, and error measures over the predicted class distributions.
package evaluation

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/metrics"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/trainer"
)

// PositiveClass is the class index treated as positive for AUC, precision,
// recall and F-measure headlines.
const PositiveClass = 1

// ClassDetail holds the per-class rates of a report row.
type ClassDetail struct {
	metrics.ClassStats
	ROCArea float64
}

// Report is the evaluation of one model on one test Dataset.
type Report struct {
	Algorithm string
	Relation  string
	Labels    []string

	// Confusion[i][j] counts rows of true class i predicted as j.
	Confusion *mat.Dense
	Classes   []ClassDetail
	Weighted  ClassDetail

	Total        int // rows with a known class
	Correct      int
	Incorrect    int
	Unclassified int // rows whose class is missing

	Accuracy  float64
	ErrorRate float64

	// Binary is false when the class has more than two labels; AUC and Kappa are NaN then.
	Binary bool
	AUC    float64
	Kappa  float64

	MAE  float64
	RMSE float64
	RAE  float64 // relative to the training prior, as a fraction
	RRSE float64

	// ROC is the curve of the positive class, binary only.
	ROC []ROCPoint
}

// PctCorrect returns the accuracy in percent.
func (r *Report) PctCorrect() float64 { return 100 * r.Accuracy }

// PctIncorrect returns the error rate in percent.
func (r *Report) PctIncorrect() float64 { return 100 * r.ErrorRate }

// Positive returns the detail row of PositiveClass, or false if the class has
// fewer labels.
func (r *Report) Positive() (ClassDetail, bool) {
	if PositiveClass >= len(r.Classes) {
		return ClassDetail{}, false
	}
	return r.Classes[PositiveClass], true
}

// Evaluate scores every row of test with model. test must carry the training
// header; otherwise a SchemaMismatchError is returned and nothing is scored.
func Evaluate(ctx context.Context, model *trainer.Fitted, test *dataset.Dataset) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dist, err := model.Distributions(test)
	if err != nil {
		return nil, err
	}
	k := model.NumClasses()
	pred := trainer.Argmax(dist)

	var rows []int
	for i := 0; i < test.NumRows(); i++ {
		if test.ClassValue(i) >= 0 {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "evaluate %s: no test row has a class", model.Algorithm)
	}

	r := &Report{
		Algorithm:    model.Algorithm,
		Relation:     test.Relation(),
		Labels:       model.ClassLabels(),
		Total:        len(rows),
		Unclassified: test.NumRows() - len(rows),
		Binary:       k == 2,
		AUC:          math.NaN(),
		Kappa:        math.NaN(),
	}

	yTrue := mat.NewVecDense(len(rows), nil)
	yPred := mat.NewVecDense(len(rows), nil)
	for n, i := range rows {
		yTrue.SetVec(n, float64(test.ClassValue(i)))
		yPred.SetVec(n, float64(pred[i]))
	}

	if r.Confusion, err = metrics.ConfusionMatrix(yTrue, yPred, k); err != nil {
		return nil, err
	}
	if r.Accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return nil, err
	}
	if r.ErrorRate, err = metrics.ClassificationError(yTrue, yPred); err != nil {
		return nil, err
	}
	r.Correct = int(math.Round(r.Accuracy * float64(r.Total)))
	r.Incorrect = r.Total - r.Correct

	if err := r.classDetails(yTrue, dist, rows); err != nil {
		return nil, err
	}
	if r.Binary {
		r.AUC = r.Classes[PositiveClass].ROCArea
		r.Kappa = metrics.Kappa(r.Confusion)
		r.ROC = rocCurve(yTrue, column(dist, rows, PositiveClass), PositiveClass)
	}
	if err := r.errorMeasures(yTrue, dist, rows, model.Prior); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Report) classDetails(yTrue *mat.VecDense, dist *mat.Dense, rows []int) error {
	stats := metrics.PerClass(r.Confusion)
	r.Classes = make([]ClassDetail, len(stats))
	for c, s := range stats {
		// undefined without both positives and negatives of c
		if s.Support == 0 || s.Support == r.Total {
			errors.Warn(errors.NewUndefinedMetricWarning("ROC area",
				fmt.Sprintf("class %s has %d of %d test rows", r.Labels[c], s.Support, r.Total), math.NaN()))
			r.Classes[c] = ClassDetail{ClassStats: s, ROCArea: math.NaN()}
			continue
		}
		auc, err := metrics.AUC(indicator(yTrue, c), column(dist, rows, c))
		if err != nil {
			return errors.Wrapf(err, "ROC area of %s", r.Labels[c])
		}
		r.Classes[c] = ClassDetail{ClassStats: s, ROCArea: auc}
	}

	w := ClassDetail{ClassStats: metrics.ClassStats{Support: r.Total}}
	w.TPRate = metrics.WeightedAverage(stats, func(s metrics.ClassStats) float64 { return s.TPRate })
	w.FPRate = metrics.WeightedAverage(stats, func(s metrics.ClassStats) float64 { return s.FPRate })
	w.Precision = metrics.WeightedAverage(stats, func(s metrics.ClassStats) float64 { return s.Precision })
	w.Recall = metrics.WeightedAverage(stats, func(s metrics.ClassStats) float64 { return s.Recall })
	w.FMeasure = metrics.WeightedAverage(stats, func(s metrics.ClassStats) float64 { return s.FMeasure })

	var sum, weight float64
	for _, c := range r.Classes {
		if c.Support == 0 {
			continue
		}
		sum += float64(c.Support) * c.ROCArea
		weight += float64(c.Support)
	}
	if weight > 0 {
		w.ROCArea = sum / weight
	}
	r.Weighted = w
	return nil
}

// errorMeasures compares the flattened class distributions with the one-hot
// true class, and with the training prior as the reference predictor.
func (r *Report) errorMeasures(yTrue *mat.VecDense, dist *mat.Dense, rows []int, prior []float64) error {
	k := len(r.Labels)
	n := len(rows) * k
	actual := mat.NewVecDense(n, nil)
	predicted := mat.NewVecDense(n, nil)
	reference := mat.NewVecDense(n, nil)
	for m, i := range rows {
		cls := int(yTrue.AtVec(m))
		for c := 0; c < k; c++ {
			at := m*k + c
			if c == cls {
				actual.SetVec(at, 1)
			}
			predicted.SetVec(at, dist.At(i, c))
			reference.SetVec(at, prior[c])
		}
	}

	var err error
	if r.MAE, err = metrics.MAE(actual, predicted); err != nil {
		return err
	}
	if r.RMSE, err = metrics.RMSE(actual, predicted); err != nil {
		return err
	}
	if r.RAE, err = metrics.RelativeAbsoluteError(actual, predicted, reference); err != nil {
		return err
	}
	if r.RRSE, err = metrics.RootRelativeSquaredError(actual, predicted, reference); err != nil {
		return err
	}
	return nil
}

func indicator(y *mat.VecDense, class int) *mat.VecDense {
	out := mat.NewVecDense(y.Len(), nil)
	for i := 0; i < y.Len(); i++ {
		if int(y.AtVec(i)) == class {
			out.SetVec(i, 1)
		}
	}
	return out
}

func column(dist *mat.Dense, rows []int, class int) *mat.VecDense {
	out := mat.NewVecDense(len(rows), nil)
	for n, i := range rows {
		out.SetVec(n, dist.At(i, class))
	}
	return out
}
