package evaluation

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// ROCPoint is one threshold of a ROC curve.
type ROCPoint struct {
	FPR       float64
	TPR       float64
	Threshold float64
}

// rocCurve は陽性クラスのスコアを降順に並べ、閾値ごとの(FPR, TPR)を返す。
// 同じスコアは1点にまとめる。先頭は(0, 0)。
func rocCurve(yTrue, score *mat.VecDense, positive int) []ROCPoint {
	n := yTrue.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score.AtVec(idx[a]) > score.AtVec(idx[b]) })

	var pos, neg float64
	for i := 0; i < n; i++ {
		if int(yTrue.AtVec(i)) == positive {
			pos++
		} else {
			neg++
		}
	}

	curve := []ROCPoint{{FPR: 0, TPR: 0, Threshold: 1}}
	var tp, fp float64
	for k := 0; k < n; {
		s := score.AtVec(idx[k])
		for k < n && score.AtVec(idx[k]) == s {
			if int(yTrue.AtVec(idx[k])) == positive {
				tp++
			} else {
				fp++
			}
			k++
		}
		curve = append(curve, ROCPoint{FPR: rate(fp, neg), TPR: rate(tp, pos), Threshold: s})
	}
	return curve
}

func rate(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// SaveROC writes the ROC curve of the positive class as a PNG (or any format
// gonum/plot infers from the extension of path).
func SaveROC(r *Report, path string) error {
	if !r.Binary || len(r.ROC) == 0 {
		return errors.NewValueError("SaveROC", fmt.Sprintf("%s: ROC curve needs a binary class", r.Algorithm))
	}
	if math.IsNaN(r.AUC) {
		return errors.NewValueError("SaveROC", fmt.Sprintf("%s: ROC curve needs both classes in the test set", r.Algorithm))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s ROC (AUC = %s)", r.Algorithm, formatMetric(r.AUC))
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(r.ROC))
	for i, pt := range r.ROC {
		pts[i].X = pt.FPR
		pts[i].Y = pt.TPR
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "SaveROC")
	}
	curve.LineStyle.Width = vg.Points(2)
	curve.LineStyle.Color = color.RGBA{B: 200, A: 255}

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "SaveROC")
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(curve, chance, plotter.NewGrid())
	p.Legend.Add(r.Labels[PositiveClass], curve)

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "SaveROC: %s", path)
	}
	return nil
}
