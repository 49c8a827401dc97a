package resample

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// imbalanced builds a binary dataset with the given class counts. Minority rows
// sit in [10, 10+minority) on x; the flag attribute alternates between labels.
func imbalanced(t *testing.T, majority, minority int) *dataset.Dataset {
	t.Helper()
	var rows [][]float64
	for i := 0; i < majority; i++ {
		rows = append(rows, []float64{float64(i % 7), float64(i % 2), 0})
	}
	for i := 0; i < minority; i++ {
		rows = append(rows, []float64{float64(10 + i), float64(i % 2), 1})
	}
	return dataset.MustNew("smote", []dataset.Attribute{
		dataset.NumericAttribute("x"),
		dataset.NominalAttribute("flag", "SF", "REJ"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, rows, 2)
}

// Scenario A: counts {100, 20} reach at least 80 minority rows, majority unchanged.
func TestSMOTE_ScenarioA(t *testing.T) {
	train := imbalanced(t, 100, 20)

	out, outcome, err := New(DefaultOptions(), nil).Resample(context.Background(), train)
	require.NoError(t, err)

	counts, err := out.ClassCounts()
	require.NoError(t, err)
	assert.Equal(t, 100, counts[0])
	assert.GreaterOrEqual(t, counts[1], 80)
	assert.GreaterOrEqual(t, float64(counts[1])/float64(counts[0]), 0.99)

	assert.InDelta(t, 0.2, outcome.MinorityRatio, 1e-12)
	assert.Equal(t, 80, outcome.Synthetic)
	assert.Empty(t, outcome.Skipped)

	// originals unchanged and first, input untouched
	assert.Equal(t, 120, train.NumRows())
	for i := 0; i < train.NumRows(); i++ {
		assert.Equal(t, train.Row(i), out.Row(i))
	}

	// synthetic x stays within the minority range
	for i := train.NumRows(); i < out.NumRows(); i++ {
		x := out.Value(i, 0)
		assert.GreaterOrEqual(t, x, 10.0)
		assert.LessOrEqual(t, x, 29.0)
		assert.Contains(t, []float64{0, 1}, out.Value(i, 1))
		assert.Equal(t, 1, out.ClassValue(i))
	}
}

func TestSMOTE_Deterministic(t *testing.T) {
	train := imbalanced(t, 30, 6)
	opts := DefaultOptions()
	opts.Seed = 42

	a, _, err := New(opts, nil).Resample(context.Background(), train)
	require.NoError(t, err)
	b, _, err := New(opts, nil).Resample(context.Background(), train)
	require.NoError(t, err)

	require.Equal(t, a.NumRows(), b.NumRows())
	for i := 0; i < a.NumRows(); i++ {
		assert.Equal(t, a.Row(i), b.Row(i))
	}
}

func TestSMOTE_Skips(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		train := imbalanced(t, 20, 10)
		out, outcome, err := New(DefaultOptions(), nil).Resample(context.Background(), train)
		require.NoError(t, err)
		assert.Same(t, train, out)
		assert.Equal(t, SkipBalanced, outcome.Skipped)
		assert.Zero(t, outcome.Synthetic)
	})

	t.Run("multi-class", func(t *testing.T) {
		train := dataset.MustNew("r", []dataset.Attribute{
			dataset.NumericAttribute("x"),
			dataset.NominalAttribute("class", "a", "b", "c"),
		}, [][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 0}}, 1)
		out, outcome, err := New(DefaultOptions(), nil).Resample(context.Background(), train)
		require.NoError(t, err)
		assert.Same(t, train, out)
		assert.Equal(t, SkipMultiClass, outcome.Skipped)
	})
}

func TestSMOTE_Failures(t *testing.T) {
	tests := []struct {
		name  string
		train func(t *testing.T) *dataset.Dataset
		opts  Options
	}{
		{
			name:  "single minority row",
			train: func(t *testing.T) *dataset.Dataset { return imbalanced(t, 10, 1) },
			opts:  DefaultOptions(),
		},
		{
			name: "numeric class",
			train: func(t *testing.T) *dataset.Dataset {
				return dataset.MustNew("r", []dataset.Attribute{
					dataset.NumericAttribute("x"),
					dataset.NumericAttribute("y"),
				}, [][]float64{{0, 1}}, 1)
			},
			opts: DefaultOptions(),
		},
		{
			name:  "invalid k",
			train: func(t *testing.T) *dataset.Dataset { return imbalanced(t, 10, 2) },
			opts:  Options{Threshold: 0.5, TargetRatio: 1, K: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.opts, nil).Resample(context.Background(), tt.train(t))
			require.Error(t, err)
			assert.True(t, errors.IsRecoverable(err))
		})
	}
}

func TestSMOTE_PartialTarget(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetRatio = 0.5
	out, outcome, err := New(opts, nil).Resample(context.Background(), imbalanced(t, 40, 4))
	require.NoError(t, err)
	assert.Equal(t, 16, outcome.Synthetic)
	counts, err := out.ClassCounts()
	require.NoError(t, err)
	assert.Equal(t, []int{40, 20}, counts)
}

func TestNearestNeighbors(t *testing.T) {
	d := dataset.MustNew("r", []dataset.Attribute{
		dataset.NumericAttribute("x"),
		dataset.NominalAttribute("class", "a", "b"),
	}, [][]float64{{0, 1}, {1, 1}, {5, 1}, {6, 1}}, 1)

	nn := nearestNeighbors(d, []int{0, 1, 2, 3}, d.FeatureIndices(), d.Attributes(), 2)
	assert.Equal(t, []int{1, 2}, nn[0])
	assert.Equal(t, []int{0, 2}, nn[1])
	assert.Equal(t, []int{3, 1}, nn[2])
}
