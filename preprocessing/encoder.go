package preprocessing

import (
	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Encoder expands every non-class nominal attribute with k labels into k
// numeric indicator attributes named "attr=label", in label order and in
// place. Numeric attributes and the class pass through.
//
// Values are resolved by label text against the training label set. A
// missing or unseen value yields an all-zero block.
type Encoder struct {
	state *model.StateManager
	opts  options

	in  dataset.Header
	out dataset.Header
	// offsets[j] is the first output column of input attribute j.
	offsets []int

	// Unseen counts values of the last Transform encoded as an all-zero block
	// because their label was not in the training label set.
	Unseen int
}

// NewEncoder returns an unfitted Encoder.
func NewEncoder(opts ...Option) *Encoder {
	return &Encoder{
		state: model.NewStateManager(),
		opts:  buildOptions(log.StageEncode, opts),
	}
}

// Name implements Stage.
func (e *Encoder) Name() string { return log.StageEncode }

// Fit implements Stage.
func (e *Encoder) Fit(train *dataset.Dataset) error {
	e.state.Reset()
	in := train.Header()
	if in.ClassIndex < 0 {
		return errors.NewConfigurationError(e.Name(), "", "class attribute is not set")
	}

	out := dataset.Header{Relation: in.Relation, ClassIndex: -1}
	e.offsets = make([]int, len(in.Attributes))
	for j, a := range in.Attributes {
		e.offsets[j] = len(out.Attributes)
		switch {
		case j == in.ClassIndex:
			out.ClassIndex = len(out.Attributes)
			out.Attributes = append(out.Attributes, a)
		case a.Type == dataset.String:
			return errors.NewConfigurationError(e.Name(), a.Name, "string attribute must be normalized before encoding")
		case a.Type == dataset.Nominal:
			for _, l := range a.Labels {
				out.Attributes = append(out.Attributes, dataset.NumericAttribute(a.Name+"="+l))
			}
		default:
			out.Attributes = append(out.Attributes, a)
		}
	}

	e.in = in
	e.out = out
	e.state.SetDimensions(len(in.Attributes), train.NumRows())
	e.state.SetFitted()

	e.opts.logger.Debug("encoder fitted",
		log.OperationKey, log.OperationFit,
		log.FeaturesKey, len(out.Attributes)-1,
	)
	return nil
}

// Transform implements Stage.
func (e *Encoder) Transform(d *dataset.Dataset) (*dataset.Dataset, error) {
	if err := e.state.RequireFitted("Encoder", "Transform"); err != nil {
		return nil, err
	}
	attrs := d.Attributes()
	if len(attrs) != len(e.in.Attributes) {
		return nil, errors.NewSchemaMismatchError("Encoder.Transform", len(e.in.Attributes), len(attrs),
			"attribute count differs from training")
	}
	for j, a := range attrs {
		want := e.in.Attributes[j]
		if a.Name != want.Name || a.HasLabels() != want.HasLabels() {
			return nil, errors.NewConfigurationError(e.Name(), a.Name, "attribute does not match training")
		}
	}

	b, err := dataset.NewBuilder(d.Relation(), e.out.Attributes, e.out.ClassIndex)
	if err != nil {
		return nil, err
	}
	b.Grow(d.NumRows())

	unseen := 0
	for i := 0; i < d.NumRows(); i++ {
		src := d.Row(i)
		row := make([]float64, len(e.out.Attributes))
		for j, a := range e.in.Attributes {
			off := e.offsets[j]
			v := src[j]
			switch {
			case j == e.in.ClassIndex:
				row[off] = relabel(attrs[j], a, v)
			case a.Type == dataset.Nominal:
				if dataset.IsMissing(v) {
					continue
				}
				idx := a.LabelIndex(attrs[j].Label(v))
				if idx < 0 {
					unseen++
					continue
				}
				row[off+idx] = 1
			default:
				row[off] = v
			}
		}
		if err := b.Add(row); err != nil {
			return nil, err
		}
	}

	e.Unseen = unseen
	if unseen > 0 {
		e.opts.logger.Warn("unseen labels encoded as all-zero indicators",
			log.OperationKey, log.OperationTransform,
			"unseen", unseen,
		)
	}
	return b.Build(), nil
}

// relabel maps a label cell of from onto the label set of to by text.
func relabel(from, to dataset.Attribute, v float64) float64 {
	if dataset.IsMissing(v) || !to.HasLabels() {
		return v
	}
	idx := to.LabelIndex(from.Label(v))
	if idx < 0 {
		return dataset.Missing()
	}
	return float64(idx)
}

// Header returns the schema produced by Transform.
func (e *Encoder) Header() dataset.Header { return e.out.Clone() }
