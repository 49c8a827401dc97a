package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
//
// 欠損値(NaN)は統計量の計算から除外され、Transformでもそのまま残る。
// 学習データの値域が0の特徴量はFeatureRange[0]に写像する。範囲外の値はクリップしない。
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// Scale は各特徴量のスケール (max - min)。0は定数または観測値なしを表す
	Scale []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

var _ model.Transformer = (*MinMaxScaler)(nil)

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}

	m.state.Reset()
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}

		// 観測値なし
		if math.IsInf(lo, 1) {
			m.DataMin[j], m.DataMax[j] = 0, 0
			continue
		}
		m.DataMin[j], m.DataMax[j] = lo, hi
		m.Scale[j] = hi - lo
	}

	m.state.SetDimensions(c, r)
	m.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			switch {
			case math.IsNaN(v):
				result.Set(i, j, v)
			case m.Scale[j] == 0:
				result.Set(i, j, m.FeatureRange[0])
			default:
				// X_scaled = (X - X.min) / (X.max - X.min) * (max - min) + min
				result.Set(i, j, (v-m.DataMin[j])/m.Scale[j]*width+m.FeatureRange[0])
			}
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
// 定数特徴量はDataMinに戻る
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if m.Scale[j] == 0 || math.IsNaN(v) {
				if math.IsNaN(v) {
					result.Set(i, j, v)
				} else {
					result.Set(i, j, m.DataMin[j])
				}
				continue
			}
			result.Set(i, j, (v-m.FeatureRange[0])/width*m.Scale[j]+m.DataMin[j])
		}
	}
	return result, nil
}

// IsFitted は学習済みかどうかを返す
func (m *MinMaxScaler) IsFitted() bool { return m.state.IsFitted() }

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.FeatureRange[0], m.FeatureRange[1])
	}
	nFeatures, _ := m.state.GetDimensions()
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], nFeatures)
}

// Scaler はデータセットの数値属性(クラス以外)をMinMaxScalerで[0,1]に変換するステージ
//
// 欠損値は学習データのスケール後の列平均で補完するため、出力にNaNは残らない。
// 観測値のない列は0になる。名義属性とクラス属性はそのまま通す。
type Scaler struct {
	state *model.StateManager
	opts  options

	mm     *MinMaxScaler
	header dataset.Header
	cols   []int
	means  []float64
}

// NewScaler は未学習のScalerを作成する
func NewScaler(opts ...Option) *Scaler {
	return &Scaler{
		state: model.NewStateManager(),
		opts:  buildOptions(log.StageScale, opts),
		mm:    NewMinMaxScalerDefault(),
	}
}

// Name implements Stage.
func (s *Scaler) Name() string { return log.StageScale }

// Fit implements Stage.
func (s *Scaler) Fit(train *dataset.Dataset) error {
	s.state.Reset()
	s.header = train.Header()
	s.cols = s.cols[:0]
	for j, a := range s.header.Attributes {
		if j != s.header.ClassIndex && a.Type == dataset.Numeric {
			s.cols = append(s.cols, j)
		}
	}

	s.means = make([]float64, len(s.cols))
	if len(s.cols) > 0 && train.NumRows() > 0 {
		scaled, err := s.mm.FitTransform(columns(train, s.cols))
		if err != nil {
			return err
		}
		for k := range s.cols {
			s.means[k] = nanMean(scaled, k)
		}
	}

	s.state.SetDimensions(len(s.cols), train.NumRows())
	s.state.SetFitted()
	s.opts.logger.Debug("scaler fitted",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, s.mm.String(),
	)
	return nil
}

// Transform implements Stage.
func (s *Scaler) Transform(d *dataset.Dataset) (*dataset.Dataset, error) {
	if err := s.state.RequireFitted("Scaler", "Transform"); err != nil {
		return nil, err
	}
	if err := s.header.Compatible(d.Header()); err != nil {
		return nil, err
	}
	if len(s.cols) == 0 || d.NumRows() == 0 || !s.mm.IsFitted() {
		return d, nil
	}

	scaled, err := s.mm.Transform(columns(d, s.cols))
	if err != nil {
		return nil, err
	}

	b, err := dataset.NewBuilder(d.Relation(), s.header.Attributes, s.header.ClassIndex)
	if err != nil {
		return nil, err
	}
	b.Grow(d.NumRows())
	for i := 0; i < d.NumRows(); i++ {
		row := d.Row(i)
		for k, j := range s.cols {
			v := scaled.At(i, k)
			if math.IsNaN(v) {
				v = s.means[k]
			}
			row[j] = v
		}
		if err := b.Add(row); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// MinMax returns the underlying matrix scaler.
func (s *Scaler) MinMax() *MinMaxScaler { return s.mm }

func columns(d *dataset.Dataset, cols []int) *mat.Dense {
	X := mat.NewDense(d.NumRows(), len(cols), nil)
	for i := 0; i < d.NumRows(); i++ {
		for k, j := range cols {
			X.Set(i, k, d.Value(i, j))
		}
	}
	return X
}

func nanMean(X mat.Matrix, j int) float64 {
	r, _ := X.Dims()
	sum, n := 0.0, 0
	for i := 0; i < r; i++ {
		if v := X.At(i, j); !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
