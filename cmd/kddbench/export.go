package main

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/kddbench/pipeline"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

var csvHeader = []string{
	"algorithm", "status", "stage", "accuracy", "error_rate", "auc", "kappa",
	"precision", "recall", "f_measure", "mae", "rmse", "rae", "rrse",
	"unclassified", "duration_ms", "error",
}

// writeCSV writes one row per run. Metrics are rounded to four decimals and
// undefined values are left empty.
func writeCSV(path string, results []pipeline.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing CSV header")
	}
	for _, r := range results {
		if err := w.Write(csvRecord(r)); err != nil {
			return errors.Wrapf(err, "writing CSV row for %s", r.Algorithm)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flushing CSV")
	}
	return f.Close()
}

func csvRecord(r pipeline.Result) []string {
	rec := make([]string, len(csvHeader))
	rec[0] = r.Algorithm
	rec[2] = r.Stage
	rec[15] = strconv.FormatInt(r.Duration.Milliseconds(), 10)
	if !r.OK() {
		rec[1] = "failed"
		if r.Err != nil {
			rec[16] = r.Err.Error()
		}
		return rec
	}

	rep := r.Report
	rec[1] = "ok"
	rec[3] = fixed(rep.Accuracy)
	rec[4] = fixed(rep.ErrorRate)
	rec[5] = fixed(rep.AUC)
	rec[6] = fixed(rep.Kappa)
	if pos, ok := rep.Positive(); ok {
		rec[7] = fixed(pos.Precision)
		rec[8] = fixed(pos.Recall)
		rec[9] = fixed(pos.FMeasure)
	}
	rec[10] = fixed(rep.MAE)
	rec[11] = fixed(rep.RMSE)
	rec[12] = fixed(rep.RAE)
	rec[13] = fixed(rep.RRSE)
	rec[14] = strconv.Itoa(rep.Unclassified)
	return rec
}

// fixed rounds v to four decimals. decimal.NewFromFloat panics on NaN and Inf.
func fixed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).Round(4).String()
}
