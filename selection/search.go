package selection

import (
	"context"
	"math"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Options configures the subset search.
type Options struct {
	// MaxIterations caps the number of removals. 0 means no cap.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{}
}

// Result is the outcome of a search.
type Result struct {
	// Subset holds positions into CFS.Features, ascending.
	Subset     []int
	Merit      float64
	Iterations int
}

// GreedyStepwise searches backward from the full feature set. Each iteration
// applies the single removal with the best merit as long as that merit does not
// drop below the current one; ties between candidates go to the earliest
// feature. It stops when every removal lowers the merit.
type GreedyStepwise struct {
	Options
	logger log.Logger
}

// NewGreedyStepwise returns a backward greedy search.
func NewGreedyStepwise(o Options, logger log.Logger) *GreedyStepwise {
	if logger == nil {
		logger = log.GetLoggerWithName("selection")
	}
	return &GreedyStepwise{Options: o, logger: logger}
}

// Search runs the search. Failures are returned as a StageError so the caller
// can keep the unreduced feature set.
func (g *GreedyStepwise) Search(ctx context.Context, cfs *CFS) (Result, error) {
	n := cfs.NumFeatures()
	if n < 1 {
		return Result{}, errors.NewStageError(log.StageSelect, errors.ErrNoFeatures)
	}

	current := make([]int, n)
	for i := range current {
		current[i] = i
	}
	merit := cfs.Merit(current)
	if err := checkMerit(merit, 0); err != nil {
		return Result{}, err
	}

	iter := 0
	candidate := make([]int, 0, n)
	for len(current) > 1 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		best, bestMerit := -1, math.Inf(-1)
		for drop := range current {
			candidate = append(candidate[:0], current[:drop]...)
			candidate = append(candidate, current[drop+1:]...)
			m := cfs.Merit(candidate)
			if err := checkMerit(m, iter); err != nil {
				return Result{}, err
			}
			if m > bestMerit {
				best, bestMerit = drop, m
			}
		}
		if bestMerit < merit {
			break
		}
		if g.MaxIterations > 0 && iter == g.MaxIterations {
			return Result{}, errors.NewStageError(log.StageSelect,
				errors.Newf("search did not converge within %d iterations", g.MaxIterations))
		}

		current = append(current[:best], current[best+1:]...)
		merit = bestMerit
		iter++
		g.logger.Debug("feature removed",
			log.IterationKey, iter,
			log.MeritKey, merit,
			log.FeaturesKey, len(current),
		)
	}

	if len(current) == 0 {
		return Result{}, errors.NewStageError(log.StageSelect, errors.New("empty subset"))
	}
	return Result{Subset: current, Merit: merit, Iterations: iter}, nil
}

func checkMerit(m float64, iter int) error {
	if err := errors.CheckScalar("CFS merit", m, iter); err != nil {
		return errors.NewStageError(log.StageSelect, err)
	}
	return nil
}
