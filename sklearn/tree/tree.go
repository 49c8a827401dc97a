// Package tree provides decision tree classifiers.
package tree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/core/parallel"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// 分割基準
const (
	CriterionGini      = "gini"
	CriterionEntropy   = "entropy"
	CriterionGainRatio = "gain_ratio"
)

// DecisionTreeClassifier は二分木の決定木分類器
//
// 数値特徴量を閾値 (x < threshold が左) で分割する。criterion が gain_ratio の場合は
// C4.5 と同様に、平均以上の情報利得を持つ候補の中から利得比が最大の分割を選ぶ。
// confidence > 0 の場合は学習後に悲観的誤り推定による枝刈りを行う。
// 学習時の NaN は大きい方の子に送り、予測時は両方の子の分布を件数で重み付けして合成する。
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int // 0 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	confidence      float64 // 0 は枝刈りなし

	root                *node
	classes_            []int
	nClasses_           int
	featureImportances_ []float64
}

type node struct {
	leaf      bool
	feature   int
	threshold float64
	left      *node
	right     *node
	counts    []float64 // クラスごとの学習件数
	n         float64
}

// Option は決定木の設定オプション
type Option func(*DecisionTreeClassifier)

// WithCriterion は分割基準を設定する ("gini", "entropy", "gain_ratio")
func WithCriterion(c string) Option {
	return func(t *DecisionTreeClassifier) { t.criterion = c }
}

// WithMaxDepth は木の最大深さを設定する。0は無制限
func WithMaxDepth(d int) Option {
	return func(t *DecisionTreeClassifier) { t.maxDepth = d }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉の最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesLeaf = n }
}

// WithConfidence は枝刈りの信頼係数を設定する。0で枝刈りを無効にする
func WithConfidence(cf float64) Option {
	return func(t *DecisionTreeClassifier) { t.confidence = cf }
}

// NewDecisionTreeClassifier は新しい決定木を作成する
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	t := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeClassifier) validate() error {
	switch t.criterion {
	case CriterionGini, CriterionEntropy, CriterionGainRatio:
	default:
		return errors.NewValidationError("criterion", "must be gini, entropy or gain_ratio", t.criterion)
	}
	if t.maxDepth < 0 || t.minSamplesSplit < 2 || t.minSamplesLeaf < 1 {
		return errors.NewValidationError("max_depth/min_samples",
			"max_depth >= 0, min_samples_split >= 2, min_samples_leaf >= 1",
			[]int{t.maxDepth, t.minSamplesSplit, t.minSamplesLeaf})
	}
	if t.confidence < 0 || t.confidence > 0.5 {
		return errors.NewValidationError("confidence", "must be in [0, 0.5]", t.confidence)
	}
	return nil
}

// Fit は決定木を学習する
func (t *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if err := t.validate(); err != nil {
		return err
	}

	t.state.Reset()
	seen := make(map[int]bool)
	t.classes_ = nil
	for i := 0; i < nSamples; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			t.classes_ = append(t.classes_, c)
		}
	}
	sort.Ints(t.classes_)
	t.nClasses_ = len(t.classes_)
	if t.nClasses_ < 2 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "degenerate target", errors.ErrSingleClass)
	}

	b := &builder{
		tree:        t,
		x:           mat.DenseCopyOf(X),
		target:      make([]int, nSamples),
		importances: make([]float64, nFeatures),
		total:       float64(nSamples),
	}
	for i := range b.target {
		b.target[i] = sort.SearchInts(t.classes_, int(y.At(i, 0)))
	}
	idx := make([]int, nSamples)
	for i := range idx {
		idx[i] = i
	}
	t.root = b.build(idx, 0)

	if t.confidence > 0 {
		t.prune(t.root)
	}

	sum := 0.0
	for _, v := range b.importances {
		sum += v
	}
	if sum > 0 {
		for j := range b.importances {
			b.importances[j] /= sum
		}
	}
	t.featureImportances_ = b.importances

	t.state.SetDimensions(nFeatures, nSamples)
	t.state.SetFitted()
	return nil
}

type builder struct {
	tree        *DecisionTreeClassifier
	x           *mat.Dense
	target      []int
	importances []float64
	total       float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64 // 不純度の減少量
	ratio     float64 // 利得比 (gain_ratio のみ)
	valid     bool
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.tree.nClasses_)
	for _, i := range idx {
		c[b.target[i]]++
	}
	return c
}

func (b *builder) build(idx []int, depth int) *node {
	counts := b.counts(idx)
	nd := &node{leaf: true, counts: counts, n: float64(len(idx))}

	t := b.tree
	if len(idx) < t.minSamplesSplit || len(idx) < 2*t.minSamplesLeaf {
		return nd
	}
	if t.maxDepth > 0 && depth >= t.maxDepth {
		return nd
	}
	if impurity(t.criterion, counts) == 0 {
		return nd
	}

	s := b.bestSplit(idx, counts)
	if !s.valid {
		return nd
	}

	var left, right, missing []int
	for _, i := range idx {
		v := b.x.At(i, s.feature)
		switch {
		case math.IsNaN(v):
			missing = append(missing, i)
		case v < s.threshold:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}
	if len(left) >= len(right) {
		left = append(left, missing...)
	} else {
		right = append(right, missing...)
	}

	b.importances[s.feature] += float64(len(idx)) / b.total * s.gain

	nd.leaf = false
	nd.feature = s.feature
	nd.threshold = s.threshold
	nd.left = b.build(left, depth+1)
	nd.right = b.build(right, depth+1)
	return nd
}

// bestSplit は特徴量ごとの最良閾値を並列に探し、基準に従って一つ選ぶ
func (b *builder) bestSplit(idx []int, parent []float64) split {
	nFeatures := len(b.importances)
	candidates := make([]split, nFeatures)
	parallel.ParallelizeWithThreshold(nFeatures, 32, func(start, end int) {
		for j := start; j < end; j++ {
			candidates[j] = b.featureSplit(idx, j, parent)
		}
	})

	if b.tree.criterion != CriterionGainRatio {
		best := split{}
		for _, c := range candidates {
			if c.valid && (!best.valid || c.gain > best.gain) {
				best = c
			}
		}
		return best
	}

	// C4.5: 平均以上の利得を持つ候補の中で利得比最大
	var sum float64
	var n int
	for _, c := range candidates {
		if c.valid && c.gain > 0 {
			sum += c.gain
			n++
		}
	}
	if n == 0 {
		return split{}
	}
	avg := sum / float64(n)
	best := split{}
	for _, c := range candidates {
		if !c.valid || c.gain <= 0 || c.gain < avg-1e-12 {
			continue
		}
		if !best.valid || c.ratio > best.ratio {
			best = c
		}
	}
	return best
}

// featureSplit は一つの特徴量について不純度減少が最大の閾値を返す
func (b *builder) featureSplit(idx []int, feature int, parent []float64) split {
	t := b.tree
	known := make([]int, 0, len(idx))
	for _, i := range idx {
		if !math.IsNaN(b.x.At(i, feature)) {
			known = append(known, i)
		}
	}
	if len(known) < 2*t.minSamplesLeaf {
		return split{}
	}
	sort.SliceStable(known, func(a, c int) bool {
		return b.x.At(known[a], feature) < b.x.At(known[c], feature)
	})

	total := b.counts(known)
	nKnown := float64(len(known))
	parentImp := impurity(t.criterion, total)
	left := make([]float64, t.nClasses_)
	right := append([]float64(nil), total...)

	best := split{feature: feature}
	for pos := 0; pos < len(known)-1; pos++ {
		c := b.target[known[pos]]
		left[c]++
		right[c]--

		v, next := b.x.At(known[pos], feature), b.x.At(known[pos+1], feature)
		if v == next {
			continue
		}
		nl := float64(pos + 1)
		nr := nKnown - nl
		if int(nl) < t.minSamplesLeaf || int(nr) < t.minSamplesLeaf {
			continue
		}
		gain := parentImp - (nl*impurity(t.criterion, left)+nr*impurity(t.criterion, right))/nKnown
		// 欠損がある場合は既知の割合で割り引く
		gain *= nKnown / float64(len(idx))
		if !best.valid || gain > best.gain {
			best.valid = true
			best.gain = gain
			best.threshold = (v + next) / 2
			if t.criterion == CriterionGainRatio {
				splitInfo := entropy([]float64{nl, nr})
				if splitInfo > 0 {
					best.ratio = gain / splitInfo
				}
			}
		}
	}
	return best
}

func impurity(criterion string, counts []float64) float64 {
	if criterion == CriterionGini {
		return gini(counts)
	}
	return entropy(counts)
}

func gini(counts []float64) float64 {
	var n float64
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func entropy(counts []float64) float64 {
	var n float64
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c > 0 {
			p := c / n
			h -= p * math.Log2(p)
		}
	}
	return h
}

// prune は葉に置き換えた方が推定誤りが小さい部分木を葉にする (subtree replacement)
func (t *DecisionTreeClassifier) prune(nd *node) float64 {
	leafErr := nd.n - nd.counts[argmax(nd.counts)]
	leafEstimate := leafErr + addErrs(nd.n, leafErr, t.confidence)
	if nd.leaf {
		return leafEstimate
	}
	subtree := t.prune(nd.left) + t.prune(nd.right)
	if leafEstimate <= subtree+0.1 {
		nd.leaf = true
		nd.left, nd.right = nil, nil
		return leafEstimate
	}
	return subtree
}

// addErrs は n 件中 e 件の誤りに対する、信頼係数 cf での追加誤り数の上側推定
func addErrs(n, e, cf float64) float64 {
	if n == 0 {
		return 0
	}
	if e < 1 {
		base := n * (1 - math.Pow(cf, 1/n))
		if e == 0 {
			return base
		}
		return base + e*(addErrs(n, 1, cf)-base)
	}
	if e+0.5 >= n {
		return math.Max(n-e, 0)
	}
	z := distuv.UnitNormal.Quantile(1 - cf)
	f := (e + 0.5) / n
	r := (f + z*z/(2*n) + z*math.Sqrt(f/n-f*f/n+z*z/(4*n*n))) / (1 + z*z/n)
	return r*n - e
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// distribution は x が到達する葉のクラス分布を out に加算する (重み w)
func (nd *node) distribution(x []float64, w float64, out []float64) {
	if nd.leaf {
		for c, v := range nd.counts {
			out[c] += w * v / nd.n
		}
		return
	}
	v := x[nd.feature]
	switch {
	case math.IsNaN(v):
		nd.left.distribution(x, w*nd.left.n/nd.n, out)
		nd.right.distribution(x, w*nd.right.n/nd.n, out)
	case v < nd.threshold:
		nd.left.distribution(x, w, out)
	default:
		nd.right.distribution(x, w, out)
	}
}

// PredictProba は葉のクラス頻度を確率として返す
func (t *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := t.state.RequireFeatures("DecisionTreeClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}
	proba := mat.NewDense(nSamples, t.nClasses_, nil)
	row := make([]float64, nFeatures)
	buf := make([]float64, t.nClasses_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		for c := range buf {
			buf[c] = 0
		}
		t.root.distribution(row, 1, buf)
		proba.SetRow(i, buf)
	}
	return proba, nil
}

// Predict は最も確率の高いクラスを返す
func (t *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := t.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, t.nClasses_)
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(t.classes_[argmax(row)]))
	}
	return out, nil
}

// Score は正解率を返す。予測に失敗した場合は0
func (t *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	preds, err := t.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if preds.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Classes は学習時のクラスを返す
func (t *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), t.classes_...)
}

// GetFeatureImportances は不純度減少に基づく特徴量重要度 (合計1) を返す
func (t *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), t.featureImportances_...)
}

// GetDepth は木の深さを返す。根のみの場合は0
func (t *DecisionTreeClassifier) GetDepth() int {
	var depth func(nd *node) int
	depth = func(nd *node) int {
		if nd == nil || nd.leaf {
			return 0
		}
		l, r := depth(nd.left), depth(nd.right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return depth(t.root)
}

// GetNLeaves は葉の数を返す
func (t *DecisionTreeClassifier) GetNLeaves() int {
	var count func(nd *node) int
	count = func(nd *node) int {
		if nd == nil {
			return 0
		}
		if nd.leaf {
			return 1
		}
		return count(nd.left) + count(nd.right)
	}
	return count(t.root)
}

// GetParams はハイパーパラメータを返す
func (t *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.criterion,
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"confidence":        t.confidence,
	}
}

// SetParams はハイパーパラメータを設定する
func (t *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			t.criterion, ok = value.(string)
		case "max_depth":
			t.maxDepth, ok = value.(int)
		case "min_samples_split":
			t.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			t.minSamplesLeaf, ok = value.(int)
		case "confidence":
			t.confidence, ok = value.(float64)
		default:
			return errors.NewValueError("DecisionTreeClassifier.SetParams", fmt.Sprintf("unknown parameter %q", key))
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return t.validate()
}
