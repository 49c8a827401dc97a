package trainer

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Estimator adapts a model.Classifier from sklearn/ to the Trainer contract.
type Estimator struct {
	name   string
	params map[string]any
	build  func() model.Classifier
	logger log.Logger
}

// NewEstimator returns a Trainer that builds a fresh classifier per Train call.
func NewEstimator(name string, params map[string]any, build func() model.Classifier, logger log.Logger) *Estimator {
	if logger == nil {
		logger = log.GetLoggerWithName("trainer")
	}
	return &Estimator{name: name, params: params, build: build, logger: logger}
}

// Name implements Trainer.
func (e *Estimator) Name() string { return e.name }

// Params implements Trainer.
func (e *Estimator) Params() map[string]any {
	out := make(map[string]any, len(e.params))
	for k, v := range e.params {
		out[k] = v
	}
	return out
}

// Train fits the classifier on the rows with a known class.
func (e *Estimator) Train(ctx context.Context, train *dataset.Dataset) (*Fitted, error) {
	if err := checkContext(ctx, e.name); err != nil {
		return nil, err
	}
	X, y, err := trainingMatrix(e.name, train)
	if err != nil {
		return nil, err
	}

	clf := e.build()
	params := e.Params()
	if pg, ok := clf.(model.ParameterGetter); ok {
		for k, v := range pg.GetParams() {
			params[k] = v
		}
	}

	start := time.Now()
	rows, cols := X.Dims()
	e.logger.Debug("fitting estimator",
		log.AlgorithmKey, e.name,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)
	fitErr := errors.SafeExecute(e.name+".Fit", func() error {
		return clf.Fit(X, y)
	})
	if fitErr != nil {
		return nil, errors.NewTrainingError(e.name, fitErr)
	}

	fitted, err := NewFitted(e.name, params, train, &classifierScorer{clf: clf, nClasses: train.NumClasses()})
	if err != nil {
		return nil, errors.NewTrainingError(e.name, err)
	}
	fitted.Duration = time.Since(start)
	e.logger.Info("model built",
		log.AlgorithmKey, e.name,
		log.DurationMsKey, fitted.Duration.Milliseconds(),
	)
	return fitted, nil
}

// classifierScorer maps PredictProba columns onto the training class labels.
type classifierScorer struct {
	clf      model.Classifier
	nClasses int
}

func (s *classifierScorer) Score(X *mat.Dense) (*mat.Dense, error) {
	var out *mat.Dense
	err := errors.SafeExecute("PredictProba", func() error {
		proba, err := s.clf.PredictProba(X)
		if err != nil {
			return err
		}
		out, err = spread(proba, s.clf.Classes(), s.nClasses)
		return err
	})
	return out, err
}
