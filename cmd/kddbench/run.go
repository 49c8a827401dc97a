package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/evaluation"
	"github.com/YuminosukeSato/kddbench/pipeline"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train and evaluate every configured algorithm",
		Long: `Load the train and test sets, then for each algorithm prepare the data,
train, and print the evaluation report. A failing algorithm is reported and
the batch moves on to the next one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd)
		},
	}

	cmd.Flags().String("train", "", "training set (ARFF)")
	cmd.Flags().String("test", "", "test set (ARFF)")
	cmd.Flags().String("valid", "", "optional validation set (ARFF), scored with every model")
	cmd.Flags().StringSlice("algorithms", nil, "algorithms to run, in order")
	cmd.Flags().Bool("select", true, "apply CFS feature subset selection")
	cmd.Flags().Bool("balance", true, "apply SMOTE to binary training sets")
	cmd.Flags().Int64("seed", 1, "SMOTE random seed")
	cmd.Flags().String("roc-dir", "", "write one ROC curve PNG per binary run into this directory")
	cmd.Flags().String("csv", "", "write one CSV row per run to this file")

	for key, flag := range map[string]string{
		"data.train":       "train",
		"data.test":        "test",
		"data.valid":       "valid",
		"algorithms":       "algorithms",
		"pipeline.select":  "select",
		"pipeline.balance": "balance",
		"pipeline.seed":    "seed",
		"output.roc_dir":   "roc-dir",
		"output.csv":       "csv",
	} {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
	return cmd
}

func runBatch(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := log.GetLoggerWithName("kddbench")
	out := cmd.OutOrStdout()

	train, err := loadSet(logger, "train", cfg.Data.Train)
	if err != nil {
		return err
	}
	test, err := loadSet(logger, "test", cfg.Data.Test)
	if err != nil {
		return err
	}
	var valid *dataset.Dataset
	if cfg.Data.Valid != "" {
		if _, statErr := os.Stat(cfg.Data.Valid); statErr == nil {
			if valid, err = loadSet(logger, "valid", cfg.Data.Valid); err != nil {
				return err
			}
		} else {
			logger.Debug("no validation set", log.DatasetKey, "valid", "path", cfg.Data.Valid)
		}
	}

	trainers, err := cfg.Trainers(logger)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(trainers),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[cyan]Running algorithms[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	opts := []pipeline.BatchOption{
		pipeline.WithLogger(logger),
		pipeline.WithObserver(func(_, _ int, r pipeline.Result) {
			printResult(out, r)
			if err := bar.Add(1); err != nil {
				logger.Warn("failed to update progress bar", "error", err)
			}
		}),
	}
	if valid != nil {
		opts = append(opts, pipeline.WithValidation(valid))
	}

	results := pipeline.RunBatch(ctx, cfg.PipelineConfig(), trainers, train, test, opts...)
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())

	printStatusTable(out, results)

	if dir := cfg.Output.ROCDir; dir != "" {
		if err := saveROCs(logger, dir, results); err != nil {
			return err
		}
	}
	if path := cfg.Output.CSV; path != "" {
		if err := writeCSV(path, results); err != nil {
			return err
		}
		logger.Info("results exported", "path", path, log.SamplesKey, len(results))
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed == len(results) {
		return errors.Newf("all %d algorithms failed", failed)
	}
	return nil
}

func loadSet(logger log.Logger, name, path string) (*dataset.Dataset, error) {
	d, err := dataset.LoadARFF(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s set", name)
	}
	logger.Info("dataset loaded",
		log.DatasetKey, name,
		log.SamplesKey, d.NumRows(),
		log.FeaturesKey, d.NumAttributes(),
	)
	return d, nil
}

func saveROCs(logger log.Logger, dir string, results []pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	for _, r := range results {
		if r.Report == nil || !r.Report.Binary {
			continue
		}
		path := filepath.Join(dir, r.Algorithm+"_roc.png")
		if err := evaluation.SaveROC(r.Report, path); err != nil {
			logger.Warn("ROC curve not written", log.AlgorithmKey, r.Algorithm, "error", err)
			continue
		}
		logger.Info("ROC curve written", log.AlgorithmKey, r.Algorithm, "path", path)
	}
	return nil
}
