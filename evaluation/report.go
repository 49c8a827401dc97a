package evaluation

import (
	"fmt"
	"math"
	"strings"
)

// Summary renders the overall figures of the report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-34s%9d%18.4f %%\n", "Correctly Classified Instances", r.Correct, r.PctCorrect())
	fmt.Fprintf(&b, "%-34s%9d%18.4f %%\n", "Incorrectly Classified Instances", r.Incorrect, r.PctIncorrect())
	fmt.Fprintf(&b, "%-34s%15s\n", "Kappa statistic", formatMetric(r.Kappa))
	fmt.Fprintf(&b, "%-34s%15.4f\n", "Mean absolute error", r.MAE)
	fmt.Fprintf(&b, "%-34s%15.4f\n", "Root mean squared error", r.RMSE)
	fmt.Fprintf(&b, "%-34s%15s %%\n", "Relative absolute error", formatMetric(100*r.RAE))
	fmt.Fprintf(&b, "%-34s%15s %%\n", "Root relative squared error", formatMetric(100*r.RRSE))
	if r.Unclassified > 0 {
		fmt.Fprintf(&b, "%-34s%9d\n", "UnClassified Instances", r.Unclassified)
	}
	fmt.Fprintf(&b, "%-34s%9d\n", "Total Number of Instances", r.Total+r.Unclassified)
	return b.String()
}

// MatrixString renders the confusion matrix with one letter per class.
func (r *Report) MatrixString() string {
	k := len(r.Labels)
	width := 1
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if w := len(fmt.Sprint(int(r.Confusion.At(i, j)))); w > width {
				width = w
			}
		}
	}
	names := make([]string, k)
	for i := range names {
		names[i] = classLetter(i)
		if len(names[i]) > width {
			width = len(names[i])
		}
	}

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, " %*s", width, n)
	}
	b.WriteString("   <-- classified as\n")
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			fmt.Fprintf(&b, " %*d", width, int(r.Confusion.At(i, j)))
		}
		fmt.Fprintf(&b, " | %*s = %s\n", width, names[i], r.Labels[i])
	}
	return b.String()
}

// ClassDetails renders the per-class rates and their weighted average.
func (r *Report) ClassDetails() string {
	var b strings.Builder
	b.WriteString("=== Detailed Accuracy By Class ===\n\n")
	fmt.Fprintf(&b, "%-15s %9s %9s %9s %9s %9s %9s  %s\n",
		"", "TP Rate", "FP Rate", "Precision", "Recall", "F-Measure", "ROC Area", "Class")
	row := func(name string, d ClassDetail) {
		fmt.Fprintf(&b, "%-15s %9.3f %9.3f %9.3f %9.3f %9.3f %9s  %s\n", "",
			d.TPRate, d.FPRate, d.Precision, d.Recall, d.FMeasure, formatROC(d.ROCArea), name)
	}
	for c, d := range r.Classes {
		row(r.Labels[c], d)
	}
	w := r.Weighted
	fmt.Fprintf(&b, "%-15s %9.3f %9.3f %9.3f %9.3f %9.3f %9s\n", "Weighted Avg.",
		w.TPRate, w.FPRate, w.Precision, w.Recall, w.FMeasure, formatROC(w.ROCArea))
	return b.String()
}

// classLetter returns a, b, ..., z, aa, ab, ... for class i.
func classLetter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('a'+i%26)) + s
		i = i/26 - 1
	}
	return s
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	return fmt.Sprintf("%.4f", v)
}

func formatROC(v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	return fmt.Sprintf("%.3f", v)
}
