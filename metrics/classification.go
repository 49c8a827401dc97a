// Package metrics は分類評価で使う指標を提供する。
// ラベルはクラスインデックス(0, 1, ...)を float64 で表したベクトルとして受け取る。
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// logLossEps はlog(0)を避けるための確率のクリップ幅
const logLossEps = 1e-15

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 (1 - Accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, errors.Wrap(err, "ClassificationError")
	}
	return 1 - acc, nil
}

// AUC はROC曲線下面積を計算する
//
// yTrue は0/1の二値ラベル、yScore は陽性クラスのスコア。
// 同順位のスコアは平均順位で扱う(Mann-Whitney U統計量)。
// 片方のクラスしか存在しない場合は定義できないため0.5を返し、UndefinedMetricWarningを出す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b]) })

	// 同順位をまとめて平均順位を割り当てる
	var nPos, nNeg, rankSumPos float64
	for start := 0; start < n; {
		end := start + 1
		for end < n && yScore.AtVec(idx[end]) == yScore.AtVec(idx[start]) {
			end++
		}
		avgRank := float64(start+end+1) / 2
		for k := start; k < end; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				nPos++
				rankSumPos += avgRank
			} else {
				nNeg++
			}
		}
		start = end
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	return (rankSumPos - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する。最初の列を使う
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rScore, cScore := yScore.Dims()
	if rTrue == 0 || cTrue == 0 || rScore == 0 || cScore == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	return AUC(firstColumn(yTrue), firstColumn(yScore))
}

// BinaryLogLoss は二値クロスエントロピーを計算する
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// ConfusionMatrix は nClasses×nClasses の混同行列を返す。要素(i, j)は真のクラスiをjと予測した件数
func ConfusionMatrix(yTrue, yPred *mat.VecDense, nClasses int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if nClasses < 1 {
		return nil, errors.NewValueError("ConfusionMatrix", "need at least one class")
	}
	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := 0; i < n; i++ {
		t, p := int(yTrue.AtVec(i)), int(yPred.AtVec(i))
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, errors.NewValueError("ConfusionMatrix",
				fmt.Sprintf("sample %d: class %d or %d outside [0, %d)", i, t, p, nClasses))
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// Kappa は混同行列からCohenのカッパ係数を計算する
//
//	kappa = (p_o - p_e) / (1 - p_e)
//
// p_e が1の場合(全件が同じクラス)は、完全一致なら1、そうでなければ0を返す。
func Kappa(cm mat.Matrix) float64 {
	r, _ := cm.Dims()
	rowSum := make([]float64, r)
	colSum := make([]float64, r)
	var total, agree float64
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			v := cm.At(i, j)
			rowSum[i] += v
			colSum[j] += v
			total += v
			if i == j {
				agree += v
			}
		}
	}
	if total == 0 {
		return 0
	}
	po := agree / total
	var pe float64
	for i := 0; i < r; i++ {
		pe += rowSum[i] * colSum[i]
	}
	pe /= total * total
	if pe == 1 {
		if po == 1 {
			return 1
		}
		return 0
	}
	return (po - pe) / (1 - pe)
}

// ClassStats はクラスごとの評価値
type ClassStats struct {
	TPRate    float64
	FPRate    float64
	Precision float64
	Recall    float64
	FMeasure  float64
	Support   int
}

// PerClass は混同行列からクラスごとのTP率・FP率・適合率・再現率・F値を計算する
// 分母が0になる指標は0とし、UndefinedMetricWarningを出す
func PerClass(cm mat.Matrix) []ClassStats {
	r, _ := cm.Dims()
	var total float64
	rowSum := make([]float64, r)
	colSum := make([]float64, r)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			rowSum[i] += cm.At(i, j)
			colSum[j] += cm.At(i, j)
			total += cm.At(i, j)
		}
	}

	out := make([]ClassStats, r)
	for c := 0; c < r; c++ {
		tp := cm.At(c, c)
		fp := colSum[c] - tp
		negatives := total - rowSum[c]

		s := ClassStats{Support: int(rowSum[c])}
		s.Recall = ratio("recall", tp, rowSum[c])
		s.TPRate = s.Recall
		s.Precision = ratio("precision", tp, colSum[c])
		s.FPRate = ratio("fp_rate", fp, negatives)
		if s.Precision+s.Recall > 0 {
			s.FMeasure = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		out[c] = s
	}
	return out
}

// WeightedAverage はサポートで重み付けした平均を返す
func WeightedAverage(stats []ClassStats, value func(ClassStats) float64) float64 {
	var sum, weight float64
	for _, s := range stats {
		v := value(s)
		if math.IsNaN(v) {
			continue
		}
		sum += float64(s.Support) * v
		weight += float64(s.Support)
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func ratio(metric string, num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning(metric, "no samples in the denominator", 0))
		}
		return 0
	}
	return num / den
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
	}
	return nil
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
