package linear_model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// LogisticRegression is a multinomial logistic regression with a ridge
// penalty on the coefficients:
//
//	minimize  (1/n) · ( -loglik(W, b) + ridge · ||W||² )
//
// The intercepts are not penalized. Binary problems are the two-class case of
// the same softmax model. Optimization is full-batch gradient descent with a
// decaying step size.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	ridge        float64 // L2 penalty
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance on the largest gradient component
	learningRate float64 // Initial step size

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels, ascending
	nIter_     int         // Actual iterations
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		ridge:        1e-8,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
		learningRate: 1.0,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRRidge sets the ridge penalty
func WithLRRidge(ridge float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.ridge = ridge
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRLearningRate sets the initial step size
func WithLRLearningRate(rate float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.learningRate = rate
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if lr.ridge < 0 || lr.maxIter < 1 {
		return errors.NewValidationError("ridge/max_iter", "ridge must be >= 0 and max_iter >= 1", []any{lr.ridge, lr.maxIter})
	}

	lr.state.Reset()
	lr.classes_ = uniqueClasses(y)
	nClasses := len(lr.classes_)
	if nClasses < 2 {
		return errors.NewModelError("LogisticRegression.Fit", "degenerate target", errors.ErrSingleClass)
	}

	// one-hot target
	target := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		target[i] = sort.SearchInts(lr.classes_, int(y.At(i, 0)))
	}

	lr.coef_ = make([][]float64, nClasses)
	for k := range lr.coef_ {
		lr.coef_[k] = make([]float64, nFeatures)
	}
	lr.intercept_ = make([]float64, nClasses)

	gradW := make([][]float64, nClasses)
	for k := range gradW {
		gradW[k] = make([]float64, nFeatures)
	}
	gradB := make([]float64, nClasses)
	row := make([]float64, nFeatures)
	scores := make([]float64, nClasses)
	n := float64(nSamples)

	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		for k := range gradW {
			for j := range gradW[k] {
				gradW[k][j] = 0
			}
			gradB[k] = 0
		}

		for i := 0; i < nSamples; i++ {
			mat.Row(row, i, X)
			p := lr.softmax(row, scores)
			for k := 0; k < nClasses; k++ {
				diff := p[k]
				if target[i] == k {
					diff--
				}
				gradB[k] += diff
				for j, x := range row {
					gradW[k][j] += diff * x
				}
			}
		}

		maxGrad := 0.0
		for k := 0; k < nClasses; k++ {
			for j := range gradW[k] {
				gradW[k][j] = (gradW[k][j] + 2*lr.ridge*lr.coef_[k][j]) / n
				maxGrad = math.Max(maxGrad, math.Abs(gradW[k][j]))
			}
			gradB[k] /= n
			if lr.fitIntercept {
				maxGrad = math.Max(maxGrad, math.Abs(gradB[k]))
			}
		}

		if err := errors.CheckScalar("LogisticRegression.gradient", maxGrad, iter); err != nil {
			return err
		}
		lr.nIter_ = iter + 1
		if maxGrad < lr.tol {
			converged = true
			break
		}

		// Adaptive learning rate
		step := lr.learningRate / (1.0 + 0.1*float64(iter))
		for k := 0; k < nClasses; k++ {
			for j := range lr.coef_[k] {
				lr.coef_[k][j] -= step * gradW[k][j]
			}
			if lr.fitIntercept {
				lr.intercept_[k] -= step * gradB[k]
			}
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
			"increase max_iter or scale the data"))
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// softmax writes the class probabilities of one sample into buf.
func (lr *LogisticRegression) softmax(x, buf []float64) []float64 {
	for k := range lr.coef_ {
		z := lr.intercept_[k]
		for j, v := range x {
			z += v * lr.coef_[k][j]
		}
		buf[k] = z
	}
	return errors.Softmax(buf)
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba, lr.classes_), nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, len(lr.classes_), nil)
	row := make([]float64, nFeatures)
	buf := make([]float64, len(lr.classes_))
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		probas.SetRow(i, lr.softmax(row, buf))
	}
	return probas, nil
}

// Classes returns the class labels seen during fitting
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the coefficients, one row per class
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		out[k] = append([]float64(nil), w...)
	}
	return out
}

// NIter returns the number of iterations run by the last Fit
func (lr *LogisticRegression) NIter() int { return lr.nIter_ }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"ridge":         lr.ridge,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"learning_rate": lr.learningRate,
	}
}

// uniqueClasses returns the sorted distinct labels of a column vector.
func uniqueClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	var classes []int
	for i := 0; i < rows; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			classes = append(classes, c)
		}
	}
	sort.Ints(classes)
	return classes
}

// argmaxClasses picks, per row, the class with the highest probability.
func argmaxClasses(proba mat.Matrix, classes []int) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}
