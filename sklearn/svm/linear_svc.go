// Package svm provides support vector machine classifiers.
package svm

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// LinearSVC is a linear soft-margin SVM trained with the Pegasos stochastic
// sub-gradient method, with Platt scaling on the training decision values for
// probability estimates.
//
// The regularization strength is λ = 1/(C·n). Binary problems train a single
// separator for class index 1 against the rest; more classes train one
// separator per class and normalize the calibrated scores. Missing inputs
// (NaN) contribute nothing to the decision value.
type LinearSVC struct {
	state *model.StateManager

	c           float64
	epochs      int
	randomState int64

	classes_ []int
	coef_    [][]float64 // one weight vector per separator, bias last
	platt_   [][2]float64
}

// LinearSVCOption configures LinearSVC
type LinearSVCOption func(*LinearSVC)

// WithC sets the soft-margin penalty
func WithC(c float64) LinearSVCOption {
	return func(s *LinearSVC) {
		s.c = c
	}
}

// WithEpochs sets the number of passes over the training data
func WithEpochs(epochs int) LinearSVCOption {
	return func(s *LinearSVC) {
		s.epochs = epochs
	}
}

// WithRandomState sets the seed of the sample order
func WithRandomState(seed int64) LinearSVCOption {
	return func(s *LinearSVC) {
		s.randomState = seed
	}
}

// NewLinearSVC creates a new LinearSVC
func NewLinearSVC(opts ...LinearSVCOption) *LinearSVC {
	s := &LinearSVC{
		state:       model.NewStateManager(),
		c:           1.0,
		epochs:      10,
		randomState: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit trains the separators and their Platt calibration
func (s *LinearSVC) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LinearSVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LinearSVC.Fit", nSamples, yRows, 0)
	}
	if s.c <= 0 || s.epochs < 1 {
		return errors.NewValidationError("C/epochs", "C must be > 0 and epochs >= 1", []any{s.c, s.epochs})
	}

	s.state.Reset()
	s.classes_ = s.classes_[:0]
	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			s.classes_ = append(s.classes_, c)
		}
	}
	sort.Ints(s.classes_)
	if len(s.classes_) < 2 {
		return errors.NewModelError("LinearSVC.Fit", "degenerate target", errors.ErrSingleClass)
	}

	// 入力をバイアス列付きで一度だけ展開する
	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = make([]float64, nFeatures+1)
		for j := 0; j < nFeatures; j++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				rows[i][j] = v
			}
		}
		rows[i][nFeatures] = 1
	}

	positives := s.classes_[1:]
	if len(s.classes_) > 2 {
		positives = s.classes_
	}
	s.coef_ = make([][]float64, len(positives))
	s.platt_ = make([][2]float64, len(positives))
	labels := make([]float64, nSamples)
	decision := make([]float64, nSamples)
	for k, pos := range positives {
		for i := range labels {
			labels[i] = -1
			if int(y.At(i, 0)) == pos {
				labels[i] = 1
			}
		}
		w, err := s.pegasos(rows, labels, int64(k))
		if err != nil {
			return err
		}
		s.coef_[k] = w
		for i, r := range rows {
			decision[i] = floats.Dot(w, r)
		}
		a, b := plattScale(decision, labels)
		s.platt_[k] = [2]float64{a, b}
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

// pegasos runs epochs × n sub-gradient steps on the hinge loss.
func (s *LinearSVC) pegasos(rows [][]float64, labels []float64, offset int64) ([]float64, error) {
	n := len(rows)
	w := make([]float64, len(rows[0]))
	lambda := 1 / (s.c * float64(n))
	rng := rand.New(rand.NewSource(s.randomState + offset))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	t := 0
	for epoch := 0; epoch < s.epochs; epoch++ {
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
		for _, i := range order {
			t++
			eta := 1 / (lambda * float64(t))
			margin := labels[i] * floats.Dot(w, rows[i])
			floats.Scale(1-eta*lambda, w)
			if margin < 1 {
				floats.AddScaled(w, eta*labels[i], rows[i])
			}
		}
		if err := errors.CheckNumericalStability("LinearSVC.pegasos", w, epoch); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// plattScale fits P(y=1|f) = 1/(1+exp(A·f+B)) by Newton's method with
// backtracking on the regularized targets.
func plattScale(f, labels []float64) (float64, float64) {
	var nPos, nNeg float64
	for _, l := range labels {
		if l > 0 {
			nPos++
		} else {
			nNeg++
		}
	}
	hi := (nPos + 1) / (nPos + 2)
	lo := 1 / (nNeg + 2)
	t := make([]float64, len(f))
	for i, l := range labels {
		if l > 0 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	a, b := 0.0, math.Log((nNeg+1)/(nPos+1))
	objective := func(a, b float64) float64 {
		var fval float64
		for i := range f {
			fApB := f[i]*a + b
			if fApB >= 0 {
				fval += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				fval += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return fval
	}
	fval := objective(a, b)

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21 := sigma, sigma, 0.0
		g1, g2 := 0.0, 0.0
		for i := range f {
			fApB := f[i]*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += f[i] * f[i] * d2
			h22 += d2
			h21 += f[i] * d2
			d1 := t[i] - p
			g1 += f[i] * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			na, nb := a+step*dA, b+step*dB
			nf := objective(na, nb)
			if nf < fval+0.0001*step*gd {
				a, b, fval = na, nb, nf
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return a, b
}

// plattProb returns 1/(1+exp(x)) without overflow.
func plattProb(x float64) float64 {
	if x >= 0 {
		return math.Exp(-x) / (1 + math.Exp(-x))
	}
	return 1 / (1 + math.Exp(x))
}

// DecisionFunction returns the raw separator scores, one column per separator
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("LinearSVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.state.RequireFeatures("LinearSVC.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}
	out := mat.NewDense(nSamples, len(s.coef_), nil)
	for i := 0; i < nSamples; i++ {
		for k, w := range s.coef_ {
			z := w[nFeatures]
			for j := 0; j < nFeatures; j++ {
				if v := X.At(i, j); !math.IsNaN(v) {
					z += w[j] * v
				}
			}
			out.Set(i, k, z)
		}
	}
	return out, nil
}

// PredictProba returns Platt-calibrated class probabilities
func (s *LinearSVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := dec.Dims()
	proba := mat.NewDense(nSamples, len(s.classes_), nil)
	for i := 0; i < nSamples; i++ {
		if len(s.coef_) == 1 {
			p := plattProb(dec.At(i, 0)*s.platt_[0][0] + s.platt_[0][1])
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		var sum float64
		for k := range s.coef_ {
			p := plattProb(dec.At(i, k)*s.platt_[k][0] + s.platt_[k][1])
			proba.Set(i, k, p)
			sum += p
		}
		for k := range s.coef_ {
			proba.Set(i, k, proba.At(i, k)/sum)
		}
	}
	return proba, nil
}

// Predict returns the most probable class
func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := s.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(s.classes_[best]))
	}
	return out, nil
}

// Classes returns the class labels seen during fitting
func (s *LinearSVC) Classes() []int {
	return append([]int(nil), s.classes_...)
}

// Coef returns the separator weights with the bias as the last entry
func (s *LinearSVC) Coef() [][]float64 {
	out := make([][]float64, len(s.coef_))
	for k, w := range s.coef_ {
		out[k] = append([]float64(nil), w...)
	}
	return out
}

// GetParams returns the hyperparameters
func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            s.c,
		"epochs":       s.epochs,
		"random_state": s.randomState,
	}
}
