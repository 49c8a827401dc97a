package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// PrunerOptions configures the Pruner.
type PrunerOptions struct {
	// MaxVariancePercent removes a nominal attribute whose distinct value count
	// exceeds this percentage of its non-missing rows. 100 or more disables the check.
	MaxVariancePercent float64 `mapstructure:"max_variance_percent" yaml:"max_variance_percent"`
}

// DefaultPrunerOptions returns the defaults.
func DefaultPrunerOptions() PrunerOptions {
	return PrunerOptions{MaxVariancePercent: 99}
}

// Pruner removes attributes that carry no information: every non-class
// attribute with at most one distinct non-missing value, and nominal
// attributes that behave like row identifiers.
//
// The decision is taken on the training set and replayed by name.
type Pruner struct {
	PrunerOptions

	state *model.StateManager
	opts  options

	kept    []string
	removed []string
}

// NewPruner returns an unfitted Pruner.
func NewPruner(o PrunerOptions, opts ...Option) *Pruner {
	return &Pruner{
		PrunerOptions: o,
		state:         model.NewStateManager(),
		opts:          buildOptions(log.StagePrune, opts),
	}
}

// Name implements Stage.
func (p *Pruner) Name() string { return log.StagePrune }

// Fit implements Stage.
func (p *Pruner) Fit(train *dataset.Dataset) error {
	p.state.Reset()
	if train.ClassIndex() < 0 {
		return errors.NewConfigurationError(p.Name(), "", "class attribute is not set")
	}

	p.kept = p.kept[:0]
	p.removed = p.removed[:0]
	for j := 0; j < train.NumAttributes(); j++ {
		a := train.Attribute(j)
		if j != train.ClassIndex() && p.useless(train, j, a) {
			p.removed = append(p.removed, a.Name)
			continue
		}
		p.kept = append(p.kept, a.Name)
	}

	p.state.SetDimensions(train.NumAttributes(), train.NumRows())
	p.state.SetFitted()
	if len(p.removed) > 0 {
		p.opts.logger.Info("attributes removed",
			log.OperationKey, log.OperationFit,
			log.RemovedKey, p.removed,
		)
	}
	return nil
}

func (p *Pruner) useless(d *dataset.Dataset, j int, a dataset.Attribute) bool {
	distinct := make(map[float64]struct{})
	present := 0
	for i := 0; i < d.NumRows(); i++ {
		v := d.Value(i, j)
		if dataset.IsMissing(v) {
			continue
		}
		present++
		distinct[v] = struct{}{}
	}
	if len(distinct) <= 1 {
		return true
	}
	if a.Type == dataset.Nominal && p.MaxVariancePercent < 100 {
		percent := float64(len(distinct)) / float64(present) * 100
		return percent > p.MaxVariancePercent
	}
	return false
}

// Transform implements Stage.
func (p *Pruner) Transform(d *dataset.Dataset) (*dataset.Dataset, error) {
	if err := p.state.RequireFitted("Pruner", "Transform"); err != nil {
		return nil, err
	}
	cols := make([]int, len(p.kept))
	for k, name := range p.kept {
		j := d.AttributeIndex(name)
		if j < 0 {
			return nil, errors.NewConfigurationError(p.Name(), name, "attribute kept in training is missing")
		}
		cols[k] = j
	}
	if d.NumAttributes() != len(p.kept)+len(p.removed) {
		return nil, errors.NewConfigurationError(p.Name(), "",
			fmt.Sprintf("expected %d attributes, got %d", len(p.kept)+len(p.removed), d.NumAttributes()))
	}
	return d.Project(cols)
}

// Kept returns the names of the retained attributes in order.
func (p *Pruner) Kept() []string { return append([]string(nil), p.kept...) }

// Removed returns the names of the removed attributes.
func (p *Pruner) Removed() []string { return append([]string(nil), p.removed...) }
