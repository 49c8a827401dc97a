// Package preprocessing contains the dataset stages every algorithm run passes
// through before training: Normalizer, Pruner, Encoder and Scaler.
//
// Each stage is fitted on the training set only and then replayed on any other
// set (test, validation), so that all outputs share one header.
//
//	n := preprocessing.NewNormalizer()
//	train, err := preprocessing.FitTransform(n, rawTrain)
//	test, err := n.Transform(rawTest)
package preprocessing

import (
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Stage is a dataset transform fitted on a training set.
type Stage interface {
	// Name returns the stage identifier used in logs and errors.
	Name() string

	// Fit learns the transform from the training set.
	Fit(train *dataset.Dataset) error

	// Transform applies the fitted transform and returns a new Dataset.
	Transform(d *dataset.Dataset) (*dataset.Dataset, error)
}

// FitTransform fits s on train and returns the transformed train set.
func FitTransform(s Stage, train *dataset.Dataset) (*dataset.Dataset, error) {
	if err := s.Fit(train); err != nil {
		return nil, err
	}
	return s.Transform(train)
}

// Option configures a stage.
type Option func(*options)

type options struct {
	logger log.Logger
}

// WithLogger sets the logger a stage reports to.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(name string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("preprocessing")
	}
	o.logger = o.logger.With(log.StageKey, name)
	return o
}
