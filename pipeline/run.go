package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/evaluation"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
	"github.com/YuminosukeSato/kddbench/trainer"
)

// Result is the outcome of one algorithm run.
type Result struct {
	Algorithm string
	Params    map[string]any

	// Report is nil when the run failed.
	Report *evaluation.Report
	// Validation is the report on the validation set, if one was given and could be scored.
	Validation *evaluation.Report
	Model      *trainer.Fitted
	Prepared   *Prepared

	// Stage names the failing stage, "" on success.
	Stage string
	Err   error

	Notes    []string
	Duration time.Duration
}

// OK reports whether the run produced a report.
func (r Result) OK() bool { return r.Err == nil }

// BatchOption configures Prepare, Run and RunBatch.
type BatchOption func(*batchOptions)

type batchOptions struct {
	logger   log.Logger
	observer func(i, n int, r Result)
	valid    *dataset.Dataset
}

// WithLogger sets the logger of the run and its stages.
func WithLogger(l log.Logger) BatchOption {
	return func(o *batchOptions) { o.logger = l }
}

// WithObserver is called after each run of a batch with its index, the batch
// size and the result.
func WithObserver(fn func(i, n int, r Result)) BatchOption {
	return func(o *batchOptions) { o.observer = fn }
}

// WithValidation additionally scores every model on d, replaying the
// prepared transforms.
func WithValidation(d *dataset.Dataset) BatchOption {
	return func(o *batchOptions) { o.valid = d }
}

func buildOptions(opts []BatchOption) batchOptions {
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("pipeline")
	}
	return o
}

// Run prepares the data, trains tr and evaluates it on test. Every failure,
// including a panic, ends up in the Result; Run never panics.
func Run(ctx context.Context, cfg Config, tr trainer.Trainer, train, test *dataset.Dataset, opts ...BatchOption) (res Result) {
	o := buildOptions(opts)
	logger := o.logger.With(log.AlgorithmKey, tr.Name())
	start := time.Now()
	res = Result{Algorithm: tr.Name(), Params: tr.Params()}
	defer func() {
		res.Duration = time.Since(start)
		report(logger, res)
	}()

	var prepared *Prepared
	err := errors.SafeExecute("Prepare", func() error {
		var err error
		prepared, err = Prepare(ctx, cfg, train, test, WithLogger(logger))
		return err
	})
	if err != nil {
		res.fail(FailedStage(err), err)
		return res
	}
	res.Prepared = prepared
	res.Notes = append(res.Notes, prepared.Notes...)

	var fitted *trainer.Fitted
	err = errors.SafeExecute(tr.Name()+".Train", func() error {
		var err error
		fitted, err = tr.Train(ctx, prepared.Train)
		return err
	})
	if err != nil {
		res.fail(log.StageTrain, err)
		return res
	}
	res.Model = fitted
	res.Params = fitted.Params

	rep, err := evaluate(ctx, fitted, prepared.Test)
	if err != nil {
		res.fail(log.StageEvaluate, err)
		return res
	}
	res.Report = rep

	if o.valid != nil {
		res.Validation = validate(ctx, logger, prepared, fitted, o.valid, &res.Notes)
	}
	return res
}

// RunBatch runs every trainer in order. A failed run is recorded and the
// batch moves on; a cancelled context fails the remaining runs.
func RunBatch(ctx context.Context, cfg Config, trainers []trainer.Trainer, train, test *dataset.Dataset, opts ...BatchOption) []Result {
	o := buildOptions(opts)
	results := make([]Result, 0, len(trainers))
	for i, tr := range trainers {
		var r Result
		if err := ctx.Err(); err != nil {
			r = Result{Algorithm: tr.Name(), Params: tr.Params()}
			r.fail("", err)
		} else {
			r = Run(ctx, cfg, tr, train, test, opts...)
		}
		results = append(results, r)
		if o.observer != nil {
			o.observer(i, len(trainers), r)
		}
	}
	return results
}

func (r *Result) fail(stage string, err error) {
	r.Stage = stage
	r.Err = err
}

func evaluate(ctx context.Context, fitted *trainer.Fitted, d *dataset.Dataset) (*evaluation.Report, error) {
	var rep *evaluation.Report
	err := errors.SafeExecute("Evaluate", func() error {
		var err error
		rep, err = evaluation.Evaluate(ctx, fitted, d)
		return err
	})
	return rep, err
}

// validate scores the validation set. Its failure is a note, not a failed run.
func validate(ctx context.Context, logger log.Logger, p *Prepared, fitted *trainer.Fitted, valid *dataset.Dataset, notes *[]string) *evaluation.Report {
	d, err := p.Apply(valid)
	if err == nil {
		var rep *evaluation.Report
		if rep, err = evaluate(ctx, fitted, d); err == nil {
			return rep
		}
	}
	logger.Warn("validation set not scored",
		log.DatasetKey, "valid",
		log.ErrorCodeKey, errorCode(err),
		"error", err,
	)
	*notes = append(*notes, "Validation set not scored: "+err.Error())
	return nil
}

func report(logger log.Logger, r Result) {
	if r.Err != nil {
		logger.Error("run failed",
			log.StageKey, r.Stage,
			log.ErrorCodeKey, errorCode(r.Err),
			log.DurationMsKey, r.Duration.Milliseconds(),
			"error", r.Err,
		)
		return
	}
	logger.Info("run finished",
		log.AccuracyKey, r.Report.Accuracy,
		log.KappaKey, r.Report.Kappa,
		log.AUCKey, r.Report.AUC,
		log.DurationMsKey, r.Duration.Milliseconds(),
	)
}

// errorCode maps the error taxonomy to the log error codes.
func errorCode(err error) string {
	var (
		ce *errors.ConfigurationError
		te *errors.TrainingError
		sm *errors.SchemaMismatchError
		pe *errors.PanicError
	)
	switch {
	case errors.As(err, &pe):
		return log.ErrorPanic
	case errors.As(err, &sm):
		return log.ErrorSchemaMismatch
	case errors.As(err, &te):
		return log.ErrorTraining
	case errors.As(err, &ce):
		return log.ErrorConfiguration
	case errors.IsRecoverable(err):
		return log.ErrorStageSkipped
	}
	return ""
}
