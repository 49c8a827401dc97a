package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// 確率分布の誤差指標。評価ではクラス確率分布を平坦化したベクトルに適用する。

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// RelativeAbsoluteError は基準予測 yRef に対する相対絶対誤差を返す
//
//	RAE = Σ|yTrue - yPred| / Σ|yTrue - yRef|
//
// 分母が0の場合はNaNを返す。百分率にするには100を掛ける。
func RelativeAbsoluteError(yTrue, yPred, yRef *mat.VecDense) (float64, error) {
	num, err := MAE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	den, err := MAE(yTrue, yRef)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return math.NaN(), nil
	}
	return num / den, nil
}

// RootRelativeSquaredError は基準予測 yRef に対する相対二乗誤差の平方根を返す
//
//	RRSE = sqrt(Σ(yTrue - yPred)² / Σ(yTrue - yRef)²)
func RootRelativeSquaredError(yTrue, yPred, yRef *mat.VecDense) (float64, error) {
	num, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	den, err := MSE(yTrue, yRef)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return math.NaN(), nil
	}
	return math.Sqrt(num / den), nil
}

// checkPair は2つのベクトルが空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.IsEmpty() || yPred.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}
