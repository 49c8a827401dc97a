package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

func TestMinMaxScaler(t *testing.T) {
	tests := []struct {
		name         string
		X            *mat.Dense
		featureRange [2]float64
		expected     *mat.Dense
	}{
		{
			name:         "default range",
			X:            mat.NewDense(3, 2, []float64{1, 10, 2, 20, 3, 30}),
			featureRange: [2]float64{0, 1},
			expected:     mat.NewDense(3, 2, []float64{0, 0, 0.5, 0.5, 1, 1}),
		},
		{
			name:         "custom range",
			X:            mat.NewDense(3, 1, []float64{0, 5, 10}),
			featureRange: [2]float64{-1, 1},
			expected:     mat.NewDense(3, 1, []float64{-1, 0, 1}),
		},
		{
			name:         "constant feature",
			X:            mat.NewDense(2, 2, []float64{4, 1, 4, 3}),
			featureRange: [2]float64{0, 1},
			expected:     mat.NewDense(2, 2, []float64{0, 0, 0, 1}),
		},
		{
			name:         "missing values ignored",
			X:            mat.NewDense(3, 1, []float64{2, math.NaN(), 6}),
			featureRange: [2]float64{0, 1},
			expected:     mat.NewDense(3, 1, []float64{0, math.NaN(), 1}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaler := NewMinMaxScaler(tt.featureRange)
			got, err := scaler.FitTransform(tt.X)
			if err != nil {
				t.Fatalf("FitTransform failed: %v", err)
			}
			r, c := tt.expected.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					want, have := tt.expected.At(i, j), got.At(i, j)
					if math.IsNaN(want) {
						if !math.IsNaN(have) {
							t.Errorf("At(%d,%d): expected NaN, got %v", i, j, have)
						}
						continue
					}
					if math.Abs(want-have) > 1e-12 {
						t.Errorf("At(%d,%d): expected %v, got %v", i, j, want, have)
					}
				}
			}
		})
	}
}

func TestMinMaxScaler_NoClipping(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	if err := scaler.Fit(mat.NewDense(2, 1, []float64{0, 10})); err != nil {
		t.Fatal(err)
	}
	got, err := scaler.Transform(mat.NewDense(2, 1, []float64{20, -10}))
	if err != nil {
		t.Fatal(err)
	}
	if got.At(0, 0) != 2 || got.At(1, 0) != -1 {
		t.Errorf("expected [2 -1], got [%v %v]", got.At(0, 0), got.At(1, 0))
	}
}

func TestMinMaxScaler_InverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 7, 2, 7, 5, 7})
	scaler := NewMinMaxScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	back, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(X, back, 1e-12) {
		t.Errorf("round trip mismatch:\n%v", mat.Formatted(back))
	}
}

func TestMinMaxScaler_Errors(t *testing.T) {
	scaler := NewMinMaxScalerDefault()

	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	_, err = scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	bad := NewMinMaxScaler([2]float64{1, 0})
	if err := bad.Fit(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected error for inverted feature range")
	}
}
