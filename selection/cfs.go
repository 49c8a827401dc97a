// Package selection implements the optional feature subset selection stage:
// a correlation based subset evaluator (CFS) searched by greedy stepwise
// backward elimination.
package selection

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/kddbench/core/parallel"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// parallelThreshold is the feature count below which correlations are computed sequentially.
const parallelThreshold = 16

// CFS scores a feature subset S of size k by
//
//	merit(S) = k·mean(r_cf) / sqrt(k + k(k-1)·mean(r_ff))
//
// where r_cf is the feature-class correlation and r_ff the absolute pairwise
// feature correlation. For a feature x, r_cf = Σ_c p(c)·|corr(x, 1[y=c])|.
// Pairs involving a zero-variance column correlate as 0.
type CFS struct {
	// Features holds the dataset column index of every candidate feature.
	Features []int

	rcf []float64
	rff *mat.SymDense
}

// NewCFS computes the correlations of all non-class attributes of train.
// Rows with a missing class are ignored; missing feature cells are replaced by
// the column mean.
func NewCFS(train *dataset.Dataset) (*CFS, error) {
	counts, err := train.ClassCounts()
	if err != nil {
		return nil, err
	}
	features := train.FeatureIndices()
	if len(features) == 0 {
		return nil, errors.Wrap(errors.ErrNoFeatures, "CFS")
	}

	var rows []int
	for i := 0; i < train.NumRows(); i++ {
		if train.ClassValue(i) >= 0 {
			rows = append(rows, i)
		}
	}
	if len(rows) < 2 {
		return nil, errors.Wrap(errors.ErrEmptyData, "CFS needs at least two labeled rows")
	}

	cols := make([][]float64, len(features))
	for k, j := range features {
		cols[k] = imputedColumn(train, rows, j)
	}

	// class indicator columns and priors
	total := float64(len(rows))
	indicators := make([][]float64, len(counts))
	priors := make([]float64, len(counts))
	for c := range counts {
		ind := make([]float64, len(rows))
		n := 0
		for r, i := range rows {
			if train.ClassValue(i) == c {
				ind[r] = 1
				n++
			}
		}
		indicators[c] = ind
		priors[c] = float64(n) / total
	}

	d := len(features)
	rcf := make([]float64, d)
	ff := make([]float64, d*d)
	parallel.ParallelizeWithThreshold(d, parallelThreshold, func(start, end int) {
		for a := start; a < end; a++ {
			for c, ind := range indicators {
				if priors[c] == 0 {
					continue
				}
				rcf[a] += priors[c] * absCorrelation(cols[a], ind)
			}
			ff[a*d+a] = 1
			for b := a + 1; b < d; b++ {
				ff[a*d+b] = absCorrelation(cols[a], cols[b])
			}
		}
	})

	return &CFS{
		Features: features,
		rcf:      rcf,
		rff:      mat.NewSymDense(d, ff),
	}, nil
}

func imputedColumn(d *dataset.Dataset, rows []int, j int) []float64 {
	col := make([]float64, len(rows))
	sum, n := 0.0, 0
	for r, i := range rows {
		v := d.Value(i, j)
		col[r] = v
		if !dataset.IsMissing(v) {
			sum += v
			n++
		}
	}
	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	for r, v := range col {
		if dataset.IsMissing(v) {
			col[r] = mean
		}
	}
	return col
}

func absCorrelation(x, y []float64) float64 {
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Abs(r)
}

// NumFeatures returns the number of candidate features.
func (c *CFS) NumFeatures() int { return len(c.Features) }

// ClassCorrelation returns r_cf of candidate k.
func (c *CFS) ClassCorrelation(k int) float64 { return c.rcf[k] }

// Merit scores a subset given as positions into Features. An empty subset scores 0.
func (c *CFS) Merit(subset []int) float64 {
	k := len(subset)
	if k == 0 {
		return 0
	}
	num := 0.0
	denom := float64(k)
	for x, a := range subset {
		num += c.rcf[a]
		for _, b := range subset[x+1:] {
			denom += 2 * c.rff.At(a, b)
		}
	}
	if denom <= 0 {
		return 0
	}
	return num / math.Sqrt(denom)
}
