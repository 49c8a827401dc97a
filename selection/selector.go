package selection

import (
	"context"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Selector is the feature selection stage. Fit searches the training set;
// Transform keeps the selected attributes, in training order, followed by the
// class attribute.
type Selector struct {
	Options

	state  *model.StateManager
	logger log.Logger

	columns []string
	result  Result
}

// NewSelector returns an unfitted Selector. logger may be nil.
func NewSelector(o Options, logger log.Logger) *Selector {
	if logger == nil {
		logger = log.GetLoggerWithName("selection")
	}
	return &Selector{
		Options: o,
		state:   model.NewStateManager(),
		logger:  logger.With(log.StageKey, log.StageSelect),
	}
}

// Name returns the stage identifier.
func (s *Selector) Name() string { return log.StageSelect }

// Fit is FitContext with a background context.
func (s *Selector) Fit(train *dataset.Dataset) error {
	return s.FitContext(context.Background(), train)
}

// FitContext evaluates and searches train. Every failure of the search itself
// is a StageError.
func (s *Selector) FitContext(ctx context.Context, train *dataset.Dataset) error {
	s.state.Reset()
	class, ok := train.ClassAttribute()
	if !ok {
		return errors.NewConfigurationError(s.Name(), "", "class attribute is not set")
	}

	cfs, err := NewCFS(train)
	if err != nil {
		return errors.NewStageError(s.Name(), err)
	}
	res, err := NewGreedyStepwise(s.Options, s.logger).Search(ctx, cfs)
	if err != nil {
		return err
	}

	s.columns = s.columns[:0]
	for _, k := range res.Subset {
		s.columns = append(s.columns, train.Attribute(cfs.Features[k]).Name)
	}
	s.columns = append(s.columns, class.Name)
	s.result = res

	s.state.SetDimensions(cfs.NumFeatures(), train.NumRows())
	s.state.SetFitted()
	s.logger.Info("feature subset selected",
		log.OperationKey, log.OperationFit,
		log.FeaturesKey, len(res.Subset),
		log.MeritKey, res.Merit,
		log.IterationKey, res.Iterations,
	)
	return nil
}

// Transform implements the stage replay.
func (s *Selector) Transform(d *dataset.Dataset) (*dataset.Dataset, error) {
	if err := s.state.RequireFitted("Selector", "Transform"); err != nil {
		return nil, err
	}
	cols := make([]int, len(s.columns))
	for k, name := range s.columns {
		j := d.AttributeIndex(name)
		if j < 0 {
			return nil, errors.NewConfigurationError(s.Name(), name, "selected attribute is missing")
		}
		cols[k] = j
	}
	return d.Project(cols)
}

// Selected returns the names of the selected features, without the class.
func (s *Selector) Selected() []string {
	if len(s.columns) == 0 {
		return nil
	}
	return append([]string(nil), s.columns[:len(s.columns)-1]...)
}

// Result returns the search outcome of the last successful Fit.
func (s *Selector) Result() Result { return s.result }
