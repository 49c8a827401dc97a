// Package pipeline runs one algorithm through the shared preprocessing stages,
// training and evaluation, and runs a batch of algorithms one after another.
//
// Every run prepares its own copy of the data, so a failure or panic in one
// run never reaches the next:
//
//	results := pipeline.RunBatch(ctx, pipeline.DefaultConfig(), trainers, train, test,
//		pipeline.WithObserver(func(i, n int, r pipeline.Result) { ... }))
package pipeline

import (
	"context"
	"fmt"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
	"github.com/YuminosukeSato/kddbench/preprocessing"
	"github.com/YuminosukeSato/kddbench/resample"
	"github.com/YuminosukeSato/kddbench/selection"
)

// Config selects and parametrizes the optional stages.
type Config struct {
	SelectFeatures bool                        `mapstructure:"select" yaml:"select"`
	Selection      selection.Options           `mapstructure:"selection" yaml:"selection"`
	Balance        bool                        `mapstructure:"balance" yaml:"balance"`
	SMOTE          resample.Options            `mapstructure:"smote" yaml:"smote"`
	Pruner         preprocessing.PrunerOptions `mapstructure:"pruner" yaml:"pruner"`
}

// DefaultConfig enables feature selection and balancing with default options.
func DefaultConfig() Config {
	return Config{
		SelectFeatures: true,
		Selection:      selection.DefaultOptions(),
		Balance:        true,
		SMOTE:          resample.DefaultOptions(),
		Pruner:         preprocessing.DefaultPrunerOptions(),
	}
}

// selector is the feature selection stage.
type selector interface {
	preprocessing.Stage
	FitContext(ctx context.Context, train *dataset.Dataset) error
	Selected() []string
}

// resampler is the balancing stage. It touches train only.
type resampler interface {
	Resample(ctx context.Context, train *dataset.Dataset) (*dataset.Dataset, resample.Outcome, error)
}

var (
	newSelector = func(o selection.Options, logger log.Logger) selector {
		return selection.NewSelector(o, logger)
	}
	newResampler = func(o resample.Options, logger log.Logger) resampler {
		return resample.New(o, logger)
	}
)

// Prepared holds the transformed train and test sets of one run.
type Prepared struct {
	Train *dataset.Dataset
	Test  *dataset.Dataset

	// Removed lists the attributes dropped by the pruner.
	Removed []string
	// Selected lists the features kept by selection, nil when selection was off or failed.
	Selected []string
	// Balance describes the SMOTE call, zero when balancing was off or failed.
	Balance resample.Outcome
	// Notes are human readable remarks on skipped or fallen back stages.
	Notes []string

	replay []preprocessing.Stage
}

// Apply replays the fitted stages on another set, e.g. a validation set.
// Balancing is never applied.
func (p *Prepared) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	var err error
	for _, s := range p.replay {
		if d, err = s.Transform(d); err != nil {
			return nil, &stageFailure{stage: s.Name(), err: err}
		}
	}
	return d, nil
}

// stageFailure tags an error with the stage it came from.
type stageFailure struct {
	stage string
	err   error
}

func (f *stageFailure) Error() string { return fmt.Sprintf("%s: %v", f.stage, f.err) }
func (f *stageFailure) Unwrap() error { return f.err }

// FailedStage returns the pipeline stage an error of Prepare, Apply or Run
// came from, or "" if it carries none.
func FailedStage(err error) string {
	var f *stageFailure
	if errors.As(err, &f) {
		return f.stage
	}
	return ""
}

// Prepare runs the stages in order: Normalizer, Pruner, Encoder, Scaler, then
// the Selector and SMOTE when enabled. Each stage is fitted on train and
// replayed on test; SMOTE touches train only.
//
// A StageError or a panic from selection or balancing is logged and the
// stage falls back to its input. Every other error, and a panic in the
// shared stages, fails the run.
func Prepare(ctx context.Context, cfg Config, train, test *dataset.Dataset, opts ...BatchOption) (*Prepared, error) {
	o := buildOptions(opts)
	p := &Prepared{}

	stages := []preprocessing.Stage{
		preprocessing.NewNormalizer(preprocessing.WithLogger(o.logger)),
		preprocessing.NewPruner(cfg.Pruner, preprocessing.WithLogger(o.logger)),
		preprocessing.NewEncoder(preprocessing.WithLogger(o.logger)),
		preprocessing.NewScaler(preprocessing.WithLogger(o.logger)),
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, &stageFailure{stage: s.Name(), err: err}
		}
		var err error
		if train, test, err = fitStage(s, train, test); err != nil {
			return nil, &stageFailure{stage: s.Name(), err: err}
		}
		p.replay = append(p.replay, s)
		if pr, ok := s.(*preprocessing.Pruner); ok {
			p.Removed = pr.Removed()
		}
	}

	if cfg.SelectFeatures {
		sel := newSelector(cfg.Selection, o.logger)
		var selTrain, selTest *dataset.Dataset
		err := errors.SafeExecute(sel.Name(), func() error {
			if err := sel.FitContext(ctx, train); err != nil {
				return err
			}
			var err error
			selTrain, selTest, err = replayBoth(sel, train, test)
			return err
		})
		switch {
		case optionalFallback(err):
			p.skip(o.logger, sel.Name(), err,
				fmt.Sprintf("Feature selection failed, continuing with all %d attributes: %v", train.NumFeatures(), err))
		case err != nil:
			return nil, &stageFailure{stage: sel.Name(), err: err}
		default:
			before := train.NumFeatures()
			train, test = selTrain, selTest
			p.replay = append(p.replay, sel)
			p.Selected = sel.Selected()
			p.Notes = append(p.Notes, fmt.Sprintf("Reduced from %d to %d attributes", before, train.NumFeatures()))
		}
	}

	if cfg.Balance {
		smote := newResampler(cfg.SMOTE, o.logger)
		var (
			balanced *dataset.Dataset
			outcome  resample.Outcome
		)
		err := errors.SafeExecute(log.StageBalance, func() error {
			var err error
			balanced, outcome, err = smote.Resample(ctx, train)
			return err
		})
		switch {
		case optionalFallback(err):
			p.skip(o.logger, log.StageBalance, err, fmt.Sprintf("SMOTE failed, continuing without balancing: %v", err))
		case err != nil:
			return nil, &stageFailure{stage: log.StageBalance, err: err}
		default:
			train = balanced
			p.Balance = outcome
			switch outcome.Skipped {
			case resample.SkipMultiClass:
				p.Notes = append(p.Notes, "Skipping SMOTE as this is not a binary classification problem")
			case resample.SkipBalanced:
				p.Notes = append(p.Notes, fmt.Sprintf("Skipping SMOTE, minority ratio %.4f", outcome.MinorityRatio))
			default:
				p.Notes = append(p.Notes, fmt.Sprintf("Applied SMOTE (minority ratio %.4f), %d synthetic instances",
					outcome.MinorityRatio, outcome.Synthetic))
			}
		}
	}

	p.Train, p.Test = train, test
	return p, nil
}

// optionalFallback reports whether an optional stage error leaves the run
// going on the stage input.
func optionalFallback(err error) bool {
	var pe *errors.PanicError
	return errors.IsRecoverable(err) || errors.As(err, &pe)
}

func (p *Prepared) skip(logger log.Logger, stage string, err error, note string) {
	logger.Warn("stage skipped",
		log.StageKey, stage,
		log.ErrorCodeKey, log.ErrorStageSkipped,
		"error", err,
	)
	p.Notes = append(p.Notes, note)
}

func fitStage(s preprocessing.Stage, train, test *dataset.Dataset) (*dataset.Dataset, *dataset.Dataset, error) {
	var outTrain, outTest *dataset.Dataset
	err := errors.SafeExecute(s.Name(), func() error {
		if err := s.Fit(train); err != nil {
			return err
		}
		var err error
		outTrain, outTest, err = replayBoth(s, train, test)
		return err
	})
	return outTrain, outTest, err
}

func replayBoth(s preprocessing.Stage, train, test *dataset.Dataset) (*dataset.Dataset, *dataset.Dataset, error) {
	outTrain, err := s.Transform(train)
	if err != nil {
		return nil, nil, err
	}
	outTest, err := s.Transform(test)
	if err != nil {
		return nil, nil, err
	}
	return outTrain, outTest, nil
}
