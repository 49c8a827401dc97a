package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "kddbench: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "kddbench: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 9, 1)
	assert.Equal(t, "kddbench: Predict: dimension mismatch on axis 1 (features). Expected 10, got 9", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 10, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("MinMaxScaler", "Transform")
	want := "kddbench: MinMaxScaler: this model is not fitted yet. Call Fit() before using Transform()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestPipelineTaxonomy(t *testing.T) {
	cause := fmt.Errorf("empty subset")

	tests := []struct {
		name        string
		err         error
		wantMsg     string
		recoverable bool
		check       func(t *testing.T, err error)
	}{
		{
			name:    "configuration",
			err:     NewConfigurationError("normalize", "protocol_type", "conflicting types"),
			wantMsg: "kddbench: normalize: attribute 'protocol_type': conflicting types",
			check: func(t *testing.T, err error) {
				var ce *ConfigurationError
				require.True(t, As(err, &ce))
				assert.Equal(t, "normalize", ce.Stage)
			},
		},
		{
			name:        "stage",
			err:         NewStageError("select", cause),
			wantMsg:     "kddbench: select skipped: empty subset",
			recoverable: true,
			check: func(t *testing.T, err error) {
				assert.True(t, Is(err, cause))
			},
		},
		{
			name:    "training",
			err:     NewTrainingError("OneR", ErrSingleClass),
			wantMsg: "kddbench: training OneR failed: training data contains a single class",
			check: func(t *testing.T, err error) {
				assert.True(t, Is(err, ErrSingleClass))
				var te *TrainingError
				require.True(t, As(err, &te))
				assert.Equal(t, "OneR", te.Algorithm)
			},
		},
		{
			name:    "schema mismatch",
			err:     NewSchemaMismatchError("Evaluate", 42, 41, "attribute count differs"),
			wantMsg: "kddbench: Evaluate: schema mismatch (expected 42 attributes, got 41): attribute count differs",
			check: func(t *testing.T, err error) {
				var se *SchemaMismatchError
				require.True(t, As(err, &se))
				assert.Equal(t, 41, se.Got)
			},
		},
		{
			name:    "parse",
			err:     NewParseError("KDDTrain.arff", 12, "unknown attribute type"),
			wantMsg: "kddbench: parse KDDTrain.arff:12: unknown attribute type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			if tt.check != nil {
				tt.check(t, tt.err)
			}
		})
	}
}

func TestIsRecoverable_Wrapped(t *testing.T) {
	err := Wrap(NewStageError("balance", fmt.Errorf("too few minority rows")), "RandomForest")
	assert.True(t, IsRecoverable(err))
	assert.False(t, IsRecoverable(NewTrainingError("J48", ErrNoFeatures)))
	assert.False(t, IsRecoverable(nil))
}

func TestWarn_Handlers(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewConvergenceWarning("Logistic", 100, ""))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].Error(), "Logistic failed to converge after 100 iterations"))

	var viaZerolog []error
	SetZerologWarnFunc(func(w error) { viaZerolog = append(viaZerolog, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	assert.Len(t, got, 1)
	require.Len(t, viaZerolog, 1)
	assert.Contains(t, viaZerolog[0].Error(), "'precision' is ill-defined")
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Fit", 10, 0)
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Fit: expected 10, got 0")
}

func TestNumericalHelpers(t *testing.T) {
	assert.Equal(t, 1.0, ClipValue(3, 0, 1))
	assert.Equal(t, 0.25, ClipValue(0.25, 0, 1))
	assert.Error(t, CheckScalar("merit", nanValue(), 3))
	assert.NoError(t, CheckNumericalStability("grad", []float64{1, 2}, 0))

	p := Softmax([]float64{0, 0})
	assert.InDelta(t, 0.5, p[0], 1e-12)
	assert.InDelta(t, 0.5, p[1], 1e-12)

	inf := math.Inf(-1)
	assert.Equal(t, []float64{0.5, 0.5}, Softmax([]float64{inf, inf}))

	err := CheckNumericalStability("grad", []float64{1, math.Inf(1)}, 7)
	var ni *NumericalInstabilityError
	require.True(t, As(err, &ni))
	assert.Equal(t, 7, ni.Iteration)
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
