package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "SMOTE.Resample")
		panic("index out of range")
	}

	err := run()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "SMOTE.Resample", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in SMOTE.Resample: index out of range", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
}

func TestRecover_WithoutPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "noop")
		return nil
	}
	assert.NoError(t, run())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	run := func() (err error) {
		defer Recover(&err, "Encoder.Transform")
		err = original
		panic("panic after error")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Encoder.Transform")
	assert.Contains(t, err.Error(), "original error")
	assert.True(t, errors.Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	fnErr := fmt.Errorf("function error")

	tests := []struct {
		name      string
		fn        func() error
		wantErr   error
		wantPanic bool
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "function error", fn: func() error { return fnErr }, wantErr: fnErr},
		{name: "panic", fn: func() error { panic("boom") }, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("op", tt.fn)
			switch {
			case tt.wantPanic:
				var panicErr *PanicError
				require.True(t, errors.As(err, &panicErr))
				assert.Equal(t, "boom", panicErr.PanicValue)
			case tt.wantErr != nil:
				assert.Same(t, tt.wantErr, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestPanicError_UnwrapErrorValue(t *testing.T) {
	cause := fmt.Errorf("cause")
	err := SafeExecute("op", func() error { panic(cause) })
	assert.True(t, errors.Is(err, cause))

	plain := NewPanicError("op", 42)
	assert.Nil(t, plain.Unwrap())
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("BenchmarkOp", func() error {
			return nil
		})
	}
}
