// Package naive_bayes provides naive Bayes classifiers.
package naive_bayes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// GaussianNB はガウス分布を仮定したナイーブベイズ分類器
//
// 各クラス・各特徴量を正規分布で近似し、対数空間で事後確率を計算する。
// 分散には varSmoothing × (全特徴量の最大分散) を加えて0除算を防ぐ。
// NaN の特徴量は尤度計算から除外する。
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64

	classes_     []int
	classPrior_  []float64
	theta_       [][]float64 // クラスごとの平均
	var_         [][]float64 // クラスごとの分散
	epsilon_     float64
	classCounts_ []float64
}

// GaussianNBOption はGaussianNBの設定オプション
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing は分散の平滑化係数を設定する
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.varSmoothing = v
	}
}

// NewGaussianNB は新しいGaussianNBを作成する
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit はクラスごとの平均と分散を推定する
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("GaussianNB.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("GaussianNB.Fit", nSamples, yRows, 0)
	}
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.varSmoothing)
	}

	nb.state.Reset()

	// クラスごとに行を振り分ける
	groups := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		c := int(y.At(i, 0))
		groups[c] = append(groups[c], i)
	}
	nb.classes_ = make([]int, 0, len(groups))
	for c := range groups {
		nb.classes_ = append(nb.classes_, c)
	}
	sort.Ints(nb.classes_)
	if len(nb.classes_) < 2 {
		return errors.NewModelError("GaussianNB.Fit", "degenerate target", errors.ErrSingleClass)
	}

	// epsilon は全データの最大分散に比例させる
	col := make([]float64, nSamples)
	maxVar := 0.0
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		_, v := popMeanVariance(col)
		maxVar = math.Max(maxVar, v)
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	nClasses := len(nb.classes_)
	nb.theta_ = make([][]float64, nClasses)
	nb.var_ = make([][]float64, nClasses)
	nb.classPrior_ = make([]float64, nClasses)
	nb.classCounts_ = make([]float64, nClasses)

	for k, c := range nb.classes_ {
		rows := groups[c]
		nb.classCounts_[k] = float64(len(rows))
		nb.classPrior_[k] = float64(len(rows)) / float64(nSamples)
		nb.theta_[k] = make([]float64, nFeatures)
		nb.var_[k] = make([]float64, nFeatures)

		vals := make([]float64, len(rows))
		for j := 0; j < nFeatures; j++ {
			for r, i := range rows {
				vals[r] = X.At(i, j)
			}
			mean, variance := popMeanVariance(vals)
			nb.theta_[k][j] = mean
			nb.var_[k][j] = variance + nb.epsilon_
		}
	}

	nb.state.SetDimensions(nFeatures, nSamples)
	nb.state.SetFitted()
	return nil
}

// popMeanVariance はNaNを除いた母平均と母分散を返す。値が無ければ (0, 0)
func popMeanVariance(x []float64) (mean, variance float64) {
	present := x[:0:0]
	for _, v := range x {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0, 0
	}
	return stat.PopMeanVariance(present, nil)
}

// jointLogLikelihood はクラスごとの log P(c) + Σ log P(x_j|c) を返す
func (nb *GaussianNB) jointLogLikelihood(x []float64, out []float64) {
	for k := range nb.classes_ {
		ll := math.Log(nb.classPrior_[k])
		for j, v := range x {
			if math.IsNaN(v) {
				continue
			}
			sigma := math.Sqrt(nb.var_[k][j])
			if sigma == 0 {
				// 平滑化なしで分散0の場合は一致/不一致のみで判定する
				if v != nb.theta_[k][j] {
					ll = math.Inf(-1)
				}
				continue
			}
			ll += distuv.Normal{Mu: nb.theta_[k][j], Sigma: sigma}.LogProb(v)
		}
		out[k] = ll
	}
}

// PredictProba はクラス確率を返す
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.state.RequireFitted("GaussianNB", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := nb.state.RequireFeatures("GaussianNB.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	nClasses := len(nb.classes_)
	proba := mat.NewDense(nSamples, nClasses, nil)
	row := make([]float64, nFeatures)
	jll := make([]float64, nClasses)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		nb.jointLogLikelihood(row, jll)
		allInf := true
		for _, v := range jll {
			if !math.IsInf(v, -1) {
				allInf = false
				break
			}
		}
		if allInf {
			// どのクラスでも尤度0の場合は事前確率を返す
			proba.SetRow(i, nb.classPrior_)
			continue
		}
		proba.SetRow(i, errors.Softmax(jll))
	}
	return proba, nil
}

// Predict は最も確率の高いクラスを返す
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := nb.PredictProba(X)
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
		out.Set(i, 0, float64(nb.classes_[best]))
	}
	return out, nil
}

// Classes は学習時のクラスを返す
func (nb *GaussianNB) Classes() []int {
	return append([]int(nil), nb.classes_...)
}

// Theta はクラスごとの平均を返す
func (nb *GaussianNB) Theta() [][]float64 { return nb.theta_ }

// Var はクラスごとの分散（平滑化後）を返す
func (nb *GaussianNB) Var() [][]float64 { return nb.var_ }

// ClassPrior はクラスの事前確率を返す
func (nb *GaussianNB) ClassPrior() []float64 { return nb.classPrior_ }

// GetParams はハイパーパラメータを返す
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
	}
}
