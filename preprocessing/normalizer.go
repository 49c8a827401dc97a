package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Normalizer converts string attributes to nominal ones and designates the
// class attribute.
//
// The label set of a converted attribute is the distinct training values in
// first-seen row order. Every transformed set is remapped onto those labels by
// text, so train and test come out with identical headers. A value never seen
// in training becomes missing.
type Normalizer struct {
	state *model.StateManager
	opts  options

	// raw is the fitted input schema, out the schema every Transform produces.
	raw dataset.Header
	out dataset.Header

	// Unseen counts values of the last Transform that were not in the train label set.
	Unseen int
}

// NewNormalizer returns an unfitted Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	return &Normalizer{
		state: model.NewStateManager(),
		opts:  buildOptions(log.StageNormalize, opts),
	}
}

// Name implements Stage.
func (n *Normalizer) Name() string { return log.StageNormalize }

// Fit implements Stage.
func (n *Normalizer) Fit(train *dataset.Dataset) error {
	n.state.Reset()
	if train.NumAttributes() == 0 {
		return errors.NewConfigurationError(n.Name(), "", "dataset has no attributes")
	}

	raw := train.Header()
	out := train.Header()
	if out.ClassIndex < 0 {
		out.ClassIndex = len(out.Attributes) - 1
	}
	if class := out.Attributes[out.ClassIndex]; class.Type == dataset.Numeric {
		return errors.NewConfigurationError(n.Name(), class.Name, "class attribute must be nominal or string")
	}

	for j, a := range raw.Attributes {
		if a.Type != dataset.String {
			continue
		}
		out.Attributes[j] = dataset.NominalAttribute(a.Name, observedLabels(train, j)...)
	}

	n.raw = raw
	n.out = out
	n.state.SetDimensions(len(raw.Attributes), train.NumRows())
	n.state.SetFitted()

	n.opts.logger.Debug("normalizer fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, train.NumRows(),
		"class", out.Attributes[out.ClassIndex].Name,
	)
	return nil
}

// observedLabels returns the distinct non-missing texts of column j in row order.
func observedLabels(d *dataset.Dataset, j int) []string {
	attr := d.Attribute(j)
	seen := make(map[string]bool)
	var labels []string
	for i := 0; i < d.NumRows(); i++ {
		v := d.Value(i, j)
		if dataset.IsMissing(v) {
			continue
		}
		text := attr.Label(v)
		if !seen[text] {
			seen[text] = true
			labels = append(labels, text)
		}
	}
	return labels
}

// Transform implements Stage.
func (n *Normalizer) Transform(d *dataset.Dataset) (*dataset.Dataset, error) {
	if err := n.state.RequireFitted("Normalizer", "Transform"); err != nil {
		return nil, err
	}
	if err := n.checkSchema(d); err != nil {
		return nil, err
	}

	attrs := d.Attributes()
	b, err := dataset.NewBuilder(d.Relation(), n.out.Attributes, n.out.ClassIndex)
	if err != nil {
		return nil, err
	}
	b.Grow(d.NumRows())

	unseen := 0
	for i := 0; i < d.NumRows(); i++ {
		row := d.Row(i)
		for j, a := range attrs {
			if !a.HasLabels() || dataset.IsMissing(row[j]) {
				continue
			}
			idx := n.out.Attributes[j].LabelIndex(a.Label(row[j]))
			if idx < 0 {
				row[j] = dataset.Missing()
				unseen++
				continue
			}
			row[j] = float64(idx)
		}
		if err := b.Add(row); err != nil {
			return nil, err
		}
	}

	n.Unseen = unseen
	if unseen > 0 {
		errors.Warn(errors.NewDataConversionWarning("label", "missing",
			fmt.Sprintf("%d values of %q not present in the training label sets", unseen, d.Relation())))
		n.opts.logger.Warn("unseen labels replaced by missing values",
			log.OperationKey, log.OperationTransform,
			"unseen", unseen,
		)
	}
	return b.Build(), nil
}

func (n *Normalizer) checkSchema(d *dataset.Dataset) error {
	attrs := d.Attributes()
	if len(attrs) != len(n.raw.Attributes) {
		return errors.NewSchemaMismatchError(n.Name(), len(n.raw.Attributes), len(attrs),
			fmt.Sprintf("%s has a different attribute count", d.Relation()))
	}
	for j, a := range attrs {
		want := n.raw.Attributes[j]
		if a.Name != want.Name {
			return errors.NewSchemaMismatchError(n.Name(), len(n.raw.Attributes), len(attrs),
				fmt.Sprintf("attribute %d is %q, expected %q", j, a.Name, want.Name))
		}
		if a.Type != want.Type {
			return errors.NewConfigurationError(n.Name(), a.Name,
				fmt.Sprintf("conflicting types: %s in training, %s here", want.Type, a.Type))
		}
	}
	if ci := d.ClassIndex(); ci >= 0 && ci != n.out.ClassIndex {
		return errors.NewConfigurationError(n.Name(), attrs[ci].Name, "class attribute differs from training")
	}
	return nil
}

// Header returns the schema produced by Transform.
func (n *Normalizer) Header() dataset.Header { return n.out.Clone() }
