package trainer

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"
	"github.com/sjwhitworth/golearn/filters"
	"github.com/sjwhitworth/golearn/knn"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// golearnModel is the part of a golearn classifier the bridge needs.
type golearnModel interface {
	Predict(base.FixedDataGrid) (base.FixedDataGrid, error)
}

// Golearn adapts a golearn classifier to the Trainer contract. Predictions are
// hard labels, so the class distribution of a row is one-hot.
type Golearn struct {
	name   string
	params map[string]any
	fit    func(train *base.DenseInstances, nFeatures int) (golearnModel, error)
	logger log.Logger
}

// NewIBk returns a k-nearest-neighbour trainer using Euclidean distance and a
// linear scan.
func NewIBk(k int, logger log.Logger) *Golearn {
	return newGolearn("IBk", map[string]any{"k": k, "distance": "euclidean", "search": "linear"},
		func(train *base.DenseInstances, _ int) (golearnModel, error) {
			if k < 1 {
				return nil, errors.NewValidationError("k", "must be >= 1", k)
			}
			cls := knn.NewKnnClassifier("euclidean", "linear", k)
			if err := cls.Fit(train); err != nil {
				return nil, err
			}
			return cls, nil
		}, logger)
}

// ChiMerge settings for the numeric attributes the forest's ID3 trees see.
// Adjacent intervals are merged past chiMergeMaxIntervals even when their
// class distributions differ.
const (
	chiMergeSignificance = 0.90
	chiMergeMaxIntervals = 8
)

// NewRandomForest returns a random forest trainer. features <= 0 picks
// floor(log2(d))+1 features per tree. Numeric attributes are discretised
// with ChiMerge fitted on the training rows; the same intervals are applied
// when scoring.
func NewRandomForest(trees, features int, logger log.Logger) *Golearn {
	params := map[string]any{"trees": trees, "features": features, "discretiser": "chimerge",
		"significance": chiMergeSignificance, "max_intervals": chiMergeMaxIntervals}
	return newGolearn("RandomForest", params,
		func(train *base.DenseInstances, nFeatures int) (golearnModel, error) {
			if trees < 1 {
				return nil, errors.NewValidationError("trees", "must be >= 1", trees)
			}
			f := features
			if f <= 0 {
				f = int(math.Floor(math.Log2(float64(nFeatures)))) + 1
			}
			if f > nFeatures {
				f = nFeatures
			}
			filt, err := trainChiMerge(train)
			if err != nil {
				return nil, err
			}
			rf := ensemble.NewRandomForest(trees, f)
			if err := rf.Fit(base.NewLazilyFilteredInstances(train, filt)); err != nil {
				return nil, err
			}
			return &filteredModel{model: rf, filter: filt}, nil
		}, logger)
}

// trainChiMerge fits a ChiMerge discretiser over every numeric feature of train.
func trainChiMerge(train *base.DenseInstances) (*intervalFilter, error) {
	filt := filters.NewChiMergeFilter(train, chiMergeSignificance)
	filt.MaxRows = chiMergeMaxIntervals
	for _, a := range base.NonClassFloatAttributes(train) {
		if err := filt.AddAttribute(a); err != nil {
			return nil, errors.Wrapf(err, "chimerge: attribute %s", a.GetName())
		}
	}
	if err := filt.Train(); err != nil {
		return nil, errors.Wrap(err, "chimerge")
	}
	return newIntervalFilter(filt), nil
}

// intervalFilter names the ChiMerge intervals "0".."n-1" and places a value
// equal to an interval's lower bound inside that interval. ChiMerge labels
// intervals by their bound formatted with %f, so bounds closer than 1e-6
// collapse into one category while Transform still emits distinct indices.
// The categories are built once so train and test views share them.
type intervalFilter struct {
	*filters.ChiMergeFilter
	after   []base.FilteredAttribute
	numeric map[base.Attribute]bool
}

func newIntervalFilter(f *filters.ChiMergeFilter) *intervalFilter {
	after := f.GetAttributesAfterFiltering()
	numeric := make(map[base.Attribute]bool)
	top := base.PackFloatToBytes(math.Inf(1))
	for i, fa := range after {
		if fa.Old == fa.New {
			continue
		}
		// +Inf falls in the last interval
		n := int(base.UnpackBytesToU64(f.Transform(fa.Old, fa.New, top))) + 1
		cat := base.NewCategoricalAttribute()
		cat.SetName(fa.Old.GetName())
		for k := 0; k < n; k++ {
			cat.GetSysValFromString(strconv.Itoa(k))
		}
		after[i] = base.FilteredAttribute{Old: fa.Old, New: cat}
		numeric[fa.Old] = true
	}
	return &intervalFilter{ChiMergeFilter: f, after: after, numeric: numeric}
}

func (f *intervalFilter) GetAttributesAfterFiltering() []base.FilteredAttribute {
	return f.after
}

// Transform returns the interval index of field. ChiMerge counts the bounds
// strictly below the value; the next float up turns that into bounds <= v.
func (f *intervalFilter) Transform(a, n base.Attribute, field []byte) []byte {
	if !f.numeric[a] {
		return field
	}
	v := math.Nextafter(base.UnpackBytesToFloat(field), math.Inf(1))
	return f.ChiMergeFilter.Transform(a, n, base.PackFloatToBytes(v))
}

// filteredModel predicts through the filter the model was fitted behind.
type filteredModel struct {
	model  golearnModel
	filter base.Filter
}

func (m *filteredModel) Predict(with base.FixedDataGrid) (base.FixedDataGrid, error) {
	return m.model.Predict(base.NewLazilyFilteredInstances(with, m.filter))
}

func newGolearn(name string, params map[string]any,
	fit func(*base.DenseInstances, int) (golearnModel, error), logger log.Logger) *Golearn {
	if logger == nil {
		logger = log.GetLoggerWithName("trainer")
	}
	return &Golearn{name: name, params: params, fit: fit, logger: logger}
}

// Name implements Trainer.
func (g *Golearn) Name() string { return g.name }

// Params implements Trainer.
func (g *Golearn) Params() map[string]any {
	out := make(map[string]any, len(g.params))
	for k, v := range g.params {
		out[k] = v
	}
	return out
}

// Train converts the rows with a known class to DenseInstances and fits.
func (g *Golearn) Train(ctx context.Context, train *dataset.Dataset) (*Fitted, error) {
	if err := checkContext(ctx, g.name); err != nil {
		return nil, err
	}
	X, y, err := trainingMatrix(g.name, train)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	schema := newGrid(train.Header())
	var scorer *golearnScorer
	fitErr := errors.SafeExecute(g.name+".Fit", func() error {
		inst, err := schema.instances(X, y)
		if err != nil {
			return err
		}
		m, err := g.fit(inst, train.NumFeatures())
		if err != nil {
			return err
		}
		scorer = &golearnScorer{model: m, schema: schema, template: inst}
		return nil
	})
	if fitErr != nil {
		return nil, errors.NewTrainingError(g.name, fitErr)
	}

	fitted, err := NewFitted(g.name, g.Params(), train, scorer)
	if err != nil {
		return nil, errors.NewTrainingError(g.name, err)
	}
	fitted.Duration = time.Since(start)
	g.logger.Info("model built",
		log.AlgorithmKey, g.name,
		log.DurationMsKey, fitted.Duration.Milliseconds(),
	)
	return fitted, nil
}

// grid holds the golearn attributes mirroring a training header.
type grid struct {
	features []base.Attribute
	class    *base.CategoricalAttribute
	labels   map[string]int
}

func newGrid(h dataset.Header) *grid {
	g := &grid{labels: make(map[string]int)}
	for j, a := range h.Attributes {
		if j == h.ClassIndex {
			continue
		}
		g.features = append(g.features, base.NewFloatAttribute(a.Name))
	}
	g.class = base.NewCategoricalAttribute()
	g.class.SetName(h.Attributes[h.ClassIndex].Name)
	for k, label := range h.Attributes[h.ClassIndex].Labels {
		// registers the label so system values follow label order
		g.class.GetSysValFromString(label)
		g.labels[label] = k
	}
	return g
}

// instances builds training DenseInstances from X and class indices y.
func (g *grid) instances(X, y *mat.Dense) (*base.DenseInstances, error) {
	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, len(g.features))
	for j, a := range g.features {
		specs[j] = inst.AddAttribute(a)
	}
	classSpec := inst.AddAttribute(g.class)
	if err := inst.AddClassAttribute(g.class); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	if err := inst.Extend(n); err != nil {
		return nil, err
	}
	labels := g.class.GetValues()
	for i := 0; i < n; i++ {
		g.setRow(inst, specs, i, X.RawRowView(i))
		inst.Set(classSpec, i, g.class.GetSysValFromString(labels[int(y.At(i, 0))]))
	}
	return inst, nil
}

// testInstances builds an unlabeled grid with the training structure.
func (g *grid) testInstances(template *base.DenseInstances, X *mat.Dense) (*base.DenseInstances, error) {
	inst := base.NewStructuralCopy(template)
	n, _ := X.Dims()
	if err := inst.Extend(n); err != nil {
		return nil, err
	}
	specs := base.ResolveAttributes(inst, g.features)
	for i := 0; i < n; i++ {
		g.setRow(inst, specs, i, X.RawRowView(i))
	}
	return inst, nil
}

func (g *grid) setRow(inst *base.DenseInstances, specs []base.AttributeSpec, i int, row []float64) {
	for j, v := range row {
		if math.IsNaN(v) {
			v = 0
		}
		inst.Set(specs[j], i, base.PackFloatToBytes(v))
	}
}

type golearnScorer struct {
	model    golearnModel
	schema   *grid
	template *base.DenseInstances
}

func (s *golearnScorer) Score(X *mat.Dense) (*mat.Dense, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, len(s.schema.labels), nil)
	err := errors.SafeExecute("golearn.Predict", func() error {
		test, err := s.schema.testInstances(s.template, X)
		if err != nil {
			return err
		}
		preds, err := s.model.Predict(test)
		if err != nil {
			return err
		}
		if _, rows := preds.Size(); rows != n {
			return errors.NewDimensionError("golearn.Predict", n, rows, 0)
		}
		for i := 0; i < n; i++ {
			label := base.GetClass(preds, i)
			k, ok := s.schema.labels[label]
			if !ok {
				return errors.Newf("unknown predicted label %q", label)
			}
			out.Set(i, k, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
