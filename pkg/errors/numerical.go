package errors

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CheckNumericalStability は反復計算の値にNaNまたはInfが含まれていれば
// NumericalInstabilityErrorを返す。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !isFinite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar is CheckNumericalStability for one value, e.g. a merit or a gradient norm.
func CheckScalar(operation string, value float64, iteration int) error {
	if !isFinite(value) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// ClipValue clamps value to [lo, hi].
func ClipValue(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

// Softmax は対数スコアを確率分布に変換する。logitsを上書きして返す。
// すべて-Infの場合は一様分布になる。
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return logits
	}
	lse := floats.LogSumExp(logits)
	if math.IsInf(lse, -1) {
		for i := range logits {
			logits[i] = 1 / float64(len(logits))
		}
		return logits
	}
	for i, v := range logits {
		logits[i] = math.Exp(v - lse)
	}
	return logits
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
