// Package resample implements the imbalance correction stage: synthetic
// minority oversampling (SMOTE) of a binary training set.
package resample

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/kddbench/core/parallel"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Reasons reported in Outcome.Skipped.
const (
	SkipMultiClass = "multi-class"
	SkipBalanced   = "balanced"
)

// Options configures SMOTE.
type Options struct {
	// Threshold is the minority ratio at or above which the input is returned unchanged.
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	// TargetRatio is the minority/majority ratio to reach.
	TargetRatio float64 `mapstructure:"target_ratio" yaml:"target_ratio"`
	// K is the number of nearest minority neighbors to draw from.
	K int `mapstructure:"k" yaml:"k"`
	// Seed drives interpolation and neighbor choice.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{Threshold: 0.5, TargetRatio: 1.0, K: 5, Seed: 1}
}

// Outcome describes what a Resample call did.
type Outcome struct {
	// MinorityRatio is min/max class count of the input.
	MinorityRatio float64
	Minority      int
	Majority      int
	Synthetic     int
	// Skipped is non-empty when the input was returned unchanged.
	Skipped string
}

// SMOTE oversamples the minority class of a binary dataset.
type SMOTE struct {
	Options
	logger log.Logger
}

// New returns a SMOTE stage. logger may be nil.
func New(o Options, logger log.Logger) *SMOTE {
	if logger == nil {
		logger = log.GetLoggerWithName("resample")
	}
	return &SMOTE{Options: o, logger: logger.With(log.StageKey, log.StageBalance)}
}

// Resample returns train with synthetic minority rows appended when the
// minority ratio is below Threshold. Multi-class input is returned unchanged.
// Original rows are never modified or removed.
//
// Failures are StageErrors; the caller keeps the original training set.
func (s *SMOTE) Resample(ctx context.Context, train *dataset.Dataset) (*dataset.Dataset, Outcome, error) {
	var out Outcome
	counts, err := train.ClassCounts()
	if err != nil {
		return nil, out, errors.NewStageError(log.StageBalance, err)
	}
	if len(counts) != 2 {
		out.Skipped = SkipMultiClass
		return train, out, nil
	}
	if err := s.validate(); err != nil {
		return nil, out, errors.NewStageError(log.StageBalance, err)
	}

	minClass, majClass := 0, 1
	if counts[1] < counts[0] {
		minClass, majClass = 1, 0
	}
	out.Minority, out.Majority = counts[minClass], counts[majClass]
	if out.Majority == 0 {
		return nil, out, errors.NewStageError(log.StageBalance, errors.ErrEmptyData)
	}
	out.MinorityRatio = float64(out.Minority) / float64(out.Majority)
	if out.MinorityRatio >= s.Threshold {
		out.Skipped = SkipBalanced
		return train, out, nil
	}

	need := int(math.Ceil(s.TargetRatio*float64(out.Majority))) - out.Minority
	if need <= 0 {
		out.Skipped = SkipBalanced
		return train, out, nil
	}
	if out.Minority < 2 {
		return nil, out, errors.NewStageError(log.StageBalance,
			errors.Newf("%d minority rows, need at least 2", out.Minority))
	}

	var minority []int
	for i := 0; i < train.NumRows(); i++ {
		if train.ClassValue(i) == minClass {
			minority = append(minority, i)
		}
	}
	k := s.K
	if k > len(minority)-1 {
		k = len(minority) - 1
	}

	features := train.FeatureIndices()
	attrs := train.Attributes()
	neighbors := nearestNeighbors(train, minority, features, attrs, k)
	if err := ctx.Err(); err != nil {
		return nil, out, err
	}

	rng := rand.New(rand.NewSource(s.Seed))
	synthetic := make([][]float64, need)
	for n := 0; n < need; n++ {
		b := n % len(minority)
		base := train.Row(minority[b])
		nn := train.Row(minority[neighbors[b][rng.Intn(k)]])
		gap := rng.Float64()

		row := base
		for _, j := range features {
			if dataset.IsMissing(base[j]) || dataset.IsMissing(nn[j]) {
				continue
			}
			if attrs[j].HasLabels() {
				if rng.Intn(2) == 1 {
					row[j] = nn[j]
				}
				continue
			}
			row[j] = base[j] + gap*(nn[j]-base[j])
		}
		synthetic[n] = row
	}

	result, err := train.Append(synthetic)
	if err != nil {
		return nil, out, errors.NewStageError(log.StageBalance, err)
	}
	out.Synthetic = need

	s.logger.Info("minority class oversampled",
		log.MinorityRatioKey, out.MinorityRatio,
		log.SyntheticKey, need,
		log.SamplesKey, result.NumRows(),
		log.RandomSeedKey, s.Seed,
	)
	return result, out, nil
}

func (s *SMOTE) validate() error {
	switch {
	case s.K < 1:
		return errors.NewValidationError("k", "must be at least 1", s.K)
	case s.TargetRatio <= 0 || s.TargetRatio > 1:
		return errors.NewValidationError("target_ratio", "must be in (0, 1]", s.TargetRatio)
	case s.Threshold <= 0 || s.Threshold > 1:
		return errors.NewValidationError("threshold", "must be in (0, 1]", s.Threshold)
	}
	return nil
}

// nearestNeighbors returns, for every minority row, the positions (into
// minority) of its k nearest other minority rows, nearest first. Ties go to
// the earlier row.
func nearestNeighbors(d *dataset.Dataset, minority, features []int, attrs []dataset.Attribute, k int) [][]int {
	rows := make([][]float64, len(minority))
	for p, i := range minority {
		rows[p] = d.Row(i)
	}

	out := make([][]int, len(minority))
	parallel.ParallelizeWithThreshold(len(minority), 64, func(start, end int) {
		type cand struct {
			pos  int
			dist float64
		}
		cands := make([]cand, 0, len(minority)-1)
		for p := start; p < end; p++ {
			cands = cands[:0]
			for q := range rows {
				if q != p {
					cands = append(cands, cand{q, distance(rows[p], rows[q], features, attrs)})
				}
			}
			sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
			nn := make([]int, k)
			for x := 0; x < k; x++ {
				nn[x] = cands[x].pos
			}
			out[p] = nn
		}
	})
	return out
}

// distance is the Euclidean distance over features. A nominal mismatch or a
// missing cell on either side contributes 1 to the squared sum.
func distance(a, b []float64, features []int, attrs []dataset.Attribute) float64 {
	sum := 0.0
	for _, j := range features {
		x, y := a[j], b[j]
		switch {
		case dataset.IsMissing(x) || dataset.IsMissing(y):
			sum++
		case attrs[j].HasLabels():
			if x != y {
				sum++
			}
		default:
			diff := x - y
			sum += diff * diff
		}
	}
	return math.Sqrt(sum)
}
