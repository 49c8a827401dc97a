// Package rules provides rule induction classifiers.
package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// OneR builds a single-attribute rule: every feature is discretized into
// intervals, each interval predicts its majority class, and the feature whose
// rule classifies the most training rows wins. Ties go to the lower feature
// index.
//
// Intervals grow until their majority class holds at least minBucketSize rows
// and then absorb following rows of that same class. Adjacent intervals with
// the same majority class are merged. Missing values get a branch of their
// own.
type OneR struct {
	state *model.StateManager

	minBucketSize int

	classes_ []int
	rule_    *rule
}

// rule is the fitted one-attribute rule. counts[b] holds the class counts of
// bucket b; bucket b covers values below breakpoints[b] (the last is unbounded).
type rule struct {
	feature     int
	breakpoints []float64
	counts      [][]float64
	missing     []float64
	correct     float64
}

// OneROption configures OneR
type OneROption func(*OneR)

// WithMinBucketSize sets the minimum majority count per interval
func WithMinBucketSize(n int) OneROption {
	return func(o *OneR) {
		o.minBucketSize = n
	}
}

// NewOneR creates a new OneR classifier
func NewOneR(opts ...OneROption) *OneR {
	o := &OneR{
		state:         model.NewStateManager(),
		minBucketSize: 6,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Fit builds a rule for every feature and keeps the most accurate one
func (o *OneR) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("OneR.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("OneR.Fit", nSamples, yRows, 0)
	}
	if o.minBucketSize < 1 {
		return errors.NewValidationError("min_bucket_size", "must be >= 1", o.minBucketSize)
	}

	o.state.Reset()
	seen := make(map[int]bool)
	o.classes_ = o.classes_[:0]
	for i := 0; i < nSamples; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			o.classes_ = append(o.classes_, c)
		}
	}
	sort.Ints(o.classes_)
	if len(o.classes_) < 2 {
		return errors.NewModelError("OneR.Fit", "degenerate target", errors.ErrSingleClass)
	}

	target := make([]int, nSamples)
	for i := range target {
		target[i] = sort.SearchInts(o.classes_, int(y.At(i, 0)))
	}

	col := make([]float64, nSamples)
	var best *rule
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		r := o.buildRule(j, col, target)
		if best == nil || r.correct > best.correct {
			best = r
		}
	}
	o.rule_ = best

	o.state.SetDimensions(nFeatures, nSamples)
	o.state.SetFitted()
	return nil
}

// buildRule discretizes one feature column.
func (o *OneR) buildRule(feature int, col []float64, target []int) *rule {
	nClasses := len(o.classes_)
	r := &rule{feature: feature, missing: make([]float64, nClasses)}

	order := make([]int, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			r.missing[target[i]]++
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })

	var counts [][]float64
	var breaks []float64
	for pos := 0; pos < len(order); {
		bucket := make([]float64, nClasses)
		// take whole runs of equal values so a value never spans two buckets
		for pos < len(order) {
			v := col[order[pos]]
			for pos < len(order) && col[order[pos]] == v {
				bucket[target[order[pos]]]++
				pos++
			}
			if bucket[argmax(bucket)] >= float64(o.minBucketSize) {
				break
			}
		}
		// absorb following runs that are pure majority class
		maj := argmax(bucket)
		for pos < len(order) {
			v := col[order[pos]]
			end := pos
			pure := true
			for end < len(order) && col[order[end]] == v {
				if target[order[end]] != maj {
					pure = false
				}
				end++
			}
			if !pure {
				break
			}
			bucket[maj] += float64(end - pos)
			pos = end
		}
		counts = append(counts, bucket)
		if pos < len(order) {
			breaks = append(breaks, (col[order[pos-1]]+col[order[pos]])/2)
		}
	}

	// merge adjacent buckets that predict the same class
	for b := 0; b < len(counts); b++ {
		if len(r.counts) > 0 && argmax(r.counts[len(r.counts)-1]) == argmax(counts[b]) {
			last := r.counts[len(r.counts)-1]
			for c := range last {
				last[c] += counts[b][c]
			}
			r.breakpoints[len(r.breakpoints)-1] = breakAt(breaks, b)
			continue
		}
		r.counts = append(r.counts, counts[b])
		r.breakpoints = append(r.breakpoints, breakAt(breaks, b))
	}
	if len(r.counts) == 0 {
		r.counts = [][]float64{make([]float64, nClasses)}
		r.breakpoints = []float64{math.Inf(1)}
	}

	for _, bucket := range r.counts {
		r.correct += bucket[argmax(bucket)]
	}
	r.correct += r.missing[argmax(r.missing)]
	return r
}

// breakAt returns the upper bound of bucket b, +Inf for the last one.
func breakAt(breaks []float64, b int) float64 {
	if b < len(breaks) {
		return breaks[b]
	}
	return math.Inf(1)
}

// argmax returns the first index of the largest count.
func argmax(counts []float64) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// distribution returns the normalized class counts of the branch x falls into.
// An empty branch falls back to the training class totals.
func (r *rule) distribution(x float64, out []float64) {
	var src []float64
	if math.IsNaN(x) {
		src = r.missing
	} else {
		b := sort.SearchFloat64s(r.breakpoints, x)
		// values equal to a breakpoint belong to the upper bucket
		for b < len(r.breakpoints)-1 && x >= r.breakpoints[b] {
			b++
		}
		src = r.counts[b]
	}
	total := 0.0
	for _, v := range src {
		total += v
	}
	if total == 0 {
		for c := range out {
			out[c] = 0
		}
		for _, bucket := range r.counts {
			for c, v := range bucket {
				out[c] += v
			}
		}
		for c, v := range r.missing {
			out[c] += v
		}
		total = 0
		for _, v := range out {
			total += v
		}
		for c := range out {
			out[c] /= total
		}
		return
	}
	for c, v := range src {
		out[c] = v / total
	}
}

// PredictProba returns the class frequencies of the matching rule branch
func (o *OneR) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := o.state.RequireFitted("OneR", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := o.state.RequireFeatures("OneR.PredictProba", nFeatures); err != nil {
		return nil, err
	}
	proba := mat.NewDense(nSamples, len(o.classes_), nil)
	buf := make([]float64, len(o.classes_))
	for i := 0; i < nSamples; i++ {
		o.rule_.distribution(X.At(i, o.rule_.feature), buf)
		proba.SetRow(i, buf)
	}
	return proba, nil
}

// Predict returns the majority class of the matching rule branch
func (o *OneR) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := o.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, len(o.classes_))
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(o.classes_[argmax(row)]))
	}
	return out, nil
}

// Classes returns the class labels seen during fitting
func (o *OneR) Classes() []int {
	return append([]int(nil), o.classes_...)
}

// Feature returns the index of the feature the rule tests
func (o *OneR) Feature() int {
	if o.rule_ == nil {
		return -1
	}
	return o.rule_.feature
}

// Intervals returns the rule's bucket upper bounds; the last is +Inf
func (o *OneR) Intervals() []float64 {
	if o.rule_ == nil {
		return nil
	}
	return append([]float64(nil), o.rule_.breakpoints...)
}

// TrainingAccuracy returns the share of training rows the rule classifies correctly
func (o *OneR) TrainingAccuracy() float64 {
	if o.rule_ == nil {
		return 0
	}
	_, n := o.state.GetDimensions()
	return o.rule_.correct / float64(n)
}

// GetParams returns the hyperparameters
func (o *OneR) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"min_bucket_size": o.minBucketSize,
	}
}

// String renders the rule, e.g. "x3: < 0.5 -> 0, >= 0.5 -> 1, ? -> 0"
func (o *OneR) String() string {
	if o.rule_ == nil {
		return "OneR(unfitted)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "x%d:", o.rule_.feature)
	lower := math.Inf(-1)
	for b, upper := range o.rule_.breakpoints {
		cls := o.classes_[argmax(o.rule_.counts[b])]
		switch {
		case math.IsInf(upper, 1) && math.IsInf(lower, -1):
			fmt.Fprintf(&sb, " * -> %d", cls)
		case math.IsInf(upper, 1):
			fmt.Fprintf(&sb, " >= %g -> %d", lower, cls)
		default:
			fmt.Fprintf(&sb, " < %g -> %d,", upper, cls)
		}
		lower = upper
	}
	fmt.Fprintf(&sb, " ? -> %d", o.classes_[argmax(o.rule_.missing)])
	return sb.String()
}
