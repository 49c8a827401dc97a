package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

func TestOneR_PicksMostAccurateFeature(t *testing.T) {
	X := mat.NewDense(12, 2, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i%2))
		X.Set(i, 1, float64(i+1))
		if i >= 6 {
			y.Set(i, 0, 1)
		}
	}

	o := NewOneR()
	require.NoError(t, o.Fit(X, y))

	assert.Equal(t, 1, o.Feature())
	intervals := o.Intervals()
	require.Len(t, intervals, 2)
	assert.Equal(t, 6.5, intervals[0])
	assert.True(t, math.IsInf(intervals[1], 1))
	assert.Equal(t, 1.0, o.TrainingAccuracy())

	preds, err := o.Predict(mat.NewDense(3, 2, []float64{0, 3, 0, 10, 1, 6.5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, mat.Col(nil, 0, preds))

	assert.Equal(t, "x1: < 6.5 -> 0, >= 6.5 -> 1 ? -> 0", o.String())
}

func TestOneR_MergesBucketsWithSameMajority(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 0, 0})

	o := NewOneR(WithMinBucketSize(2))
	require.NoError(t, o.Fit(X, y))

	intervals := o.Intervals()
	require.Len(t, intervals, 1)
	assert.True(t, math.IsInf(intervals[0], 1))
	assert.InDelta(t, 0.8, o.TrainingAccuracy(), 1e-12)

	proba, err := o.PredictProba(mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.2, proba.At(0, 1), 1e-12)
}

func TestOneR_MissingBranch(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(6, 1, []float64{1, 2, 3, nan, nan, 10})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 0})

	o := NewOneR(WithMinBucketSize(1))
	require.NoError(t, o.Fit(X, y))
	assert.Equal(t, 1.0, o.TrainingAccuracy())

	preds, err := o.Predict(mat.NewDense(2, 1, []float64{nan, 2}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, preds.At(0, 0))
	assert.Equal(t, 0.0, preds.At(1, 0))
}

func TestOneR_Errors(t *testing.T) {
	o := NewOneR()
	_, err := o.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X := mat.NewDense(2, 1, []float64{1, 2})
	assert.ErrorIs(t, o.Fit(X, mat.NewDense(2, 1, []float64{0, 0})), errors.ErrSingleClass)
	assert.Error(t, NewOneR(WithMinBucketSize(0)).Fit(X, mat.NewDense(2, 1, []float64{0, 1})))
	assert.Equal(t, 6, o.GetParams()["min_bucket_size"])
	assert.Equal(t, -1, o.Feature())
}
