package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/YuminosukeSato/kddbench/evaluation"
	"github.com/YuminosukeSato/kddbench/pipeline"
	"github.com/YuminosukeSato/kddbench/trainer"
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func title(algorithm string) string {
	if t, ok := trainer.Titles[algorithm]; ok {
		return t
	}
	return algorithm
}

func printResult(w io.Writer, r pipeline.Result) {
	name := title(r.Algorithm)
	fmt.Fprintln(w)
	fmt.Fprintln(w, bannerStyle.Render("============="+name+" Classification============="))
	for _, n := range r.Notes {
		fmt.Fprintln(w, noteStyle.Render(n))
	}

	if !r.OK() {
		stage := r.Stage
		if stage == "" {
			stage = "batch"
		}
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Error in %s classification (%s): %v", name, stage, r.Err)))
		return
	}

	fmt.Fprintf(w, "%s classifier built successfully\n", name)
	fmt.Fprintf(w, "%s params: %s\n", name, formatParams(r.Params))
	printReport(w, "Results", r.Report)
	if r.Validation != nil {
		printReport(w, "Validation Results", r.Validation)
	}
}

func printReport(w io.Writer, heading string, rep *evaluation.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render(heading))
	fmt.Fprintln(w, strings.Repeat("=", len(heading)))
	fmt.Fprintln(w)
	fmt.Fprint(w, rep.Summary())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Confusion Matrix:")
	fmt.Fprint(w, rep.MatrixString())
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Correct %% = %.4f\n", rep.PctCorrect())
	fmt.Fprintf(w, "Incorrect %% = %.4f\n", rep.PctIncorrect())
	fmt.Fprintf(w, "AUC = %s\n", formatFloat(rep.AUC))
	fmt.Fprintf(w, "Kappa = %s\n", formatFloat(rep.Kappa))
	fmt.Fprintf(w, "MAE = %.4f\n", rep.MAE)
	fmt.Fprintf(w, "RMSE = %.4f\n", rep.RMSE)
	fmt.Fprintf(w, "RAE = %s\n", formatFloat(100*rep.RAE))
	fmt.Fprintf(w, "RRSE = %s\n", formatFloat(100*rep.RRSE))
	if pos, ok := rep.Positive(); ok {
		fmt.Fprintf(w, "Precision = %.4f\n", pos.Precision)
		fmt.Fprintf(w, "Recall = %.4f\n", pos.Recall)
		fmt.Fprintf(w, "F-Measure = %.4f\n", pos.FMeasure)
	}
	fmt.Fprintf(w, "Error Rate = %.4f\n", rep.ErrorRate)
	fmt.Fprintln(w)
	fmt.Fprint(w, rep.ClassDetails())
}

func printStatusTable(w io.Writer, results []pipeline.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintln(w)
	fmt.Fprintln(w, cyan(fmt.Sprintf("%-20s %-8s %10s %8s %8s %10s  %s", "Algorithm", "Status", "Accuracy", "AUC", "Kappa", "Time", "Stage")))
	for _, r := range results {
		status := green(fmt.Sprintf("%-8s", "ok"))
		acc, auc, kappa := "-", "-", "-"
		if r.OK() {
			acc = fmt.Sprintf("%.2f%%", r.Report.PctCorrect())
			auc = formatFloat(r.Report.AUC)
			kappa = formatFloat(r.Report.Kappa)
		} else {
			status = red(fmt.Sprintf("%-8s", "failed"))
		}
		fmt.Fprintf(w, "%-20s %s %10s %8s %8s %10s  %s\n",
			title(r.Algorithm), status, acc, auc, kappa, r.Duration.Round(time.Millisecond), r.Stage)
	}
}

// formatParams renders params as sorted key=value pairs.
func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	return fmt.Sprintf("%.4f", v)
}
