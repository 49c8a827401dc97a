package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

var nan = math.NaN()

func rawTrain(t *testing.T) *dataset.Dataset {
	t.Helper()
	return dataset.MustNew("KDDTrain", []dataset.Attribute{
		dataset.NumericAttribute("duration"),
		dataset.NominalAttribute("protocol_type", "tcp", "udp", "icmp"),
		dataset.StringAttribute("service", "http", "ftp", "smtp", "telnet"),
		dataset.NumericAttribute("land"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, [][]float64{
		{0, 0, 0, 0, 0},
		{10, 1, 1, 0, 1},
		{5, 2, 0, 0, 0},
		{20, 0, 2, 0, 1},
		{nan, 1, 1, 0, 0},
		{15, 2, 0, 0, 1},
	}, -1)
}

func rawTest(t *testing.T) *dataset.Dataset {
	t.Helper()
	return dataset.MustNew("KDDTest", []dataset.Attribute{
		dataset.NumericAttribute("duration"),
		dataset.NominalAttribute("protocol_type", "tcp", "udp", "icmp", "sctp"),
		dataset.StringAttribute("service", "smtp", "http", "gopher"),
		dataset.NumericAttribute("land"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, [][]float64{
		{30, 3, 0, 0, 1},
		{-5, 0, 2, 0, 0},
		{5, 1, 1, 0, 1},
	}, -1)
}

// prepare runs the four stages fitted on train over train and test.
func prepare(t *testing.T, train, test *dataset.Dataset) (*dataset.Dataset, *dataset.Dataset) {
	t.Helper()
	stages := []Stage{NewNormalizer(), NewPruner(DefaultPrunerOptions()), NewEncoder(), NewScaler()}
	for _, s := range stages {
		var err error
		train, err = FitTransform(s, train)
		require.NoError(t, err, s.Name())
		test, err = s.Transform(test)
		require.NoError(t, err, s.Name())
		require.NoError(t, train.Header().Compatible(test.Header()), s.Name())
	}
	return train, test
}

func classLabels(d *dataset.Dataset) []string {
	a, _ := d.ClassAttribute()
	out := make([]string, d.NumRows())
	for i := range out {
		out[i] = a.Label(d.Value(i, d.ClassIndex()))
	}
	return out
}

func TestNormalizer_SharedLabelSet(t *testing.T) {
	n := NewNormalizer()
	train, err := FitTransform(n, rawTrain(t))
	require.NoError(t, err)

	assert.Equal(t, 4, train.ClassIndex())
	service := train.Attribute(2)
	assert.Equal(t, dataset.Nominal, service.Type)
	assert.Equal(t, []string{"http", "ftp", "smtp"}, service.Labels)

	test, err := n.Transform(rawTest(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n.Unseen)
	assert.True(t, train.Header().Equal(test.Header()))

	// smtp, gopher, http
	assert.Equal(t, 2.0, test.Value(0, 2))
	assert.True(t, dataset.IsMissing(test.Value(1, 2)))
	assert.Equal(t, 0.0, test.Value(2, 2))
	// sctp is not a training label
	assert.True(t, dataset.IsMissing(test.Value(0, 1)))
}

func TestNormalizer_Errors(t *testing.T) {
	t.Run("numeric class", func(t *testing.T) {
		d := dataset.MustNew("r", []dataset.Attribute{
			dataset.NominalAttribute("a", "x", "y"),
			dataset.NumericAttribute("target"),
		}, [][]float64{{0, 1}}, -1)
		err := NewNormalizer().Fit(d)
		var ce *errors.ConfigurationError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "target", ce.Attribute)
	})

	t.Run("conflicting types", func(t *testing.T) {
		n := NewNormalizer()
		require.NoError(t, n.Fit(rawTrain(t)))

		attrs := rawTrain(t).Attributes()
		attrs[2] = dataset.NumericAttribute("service")
		other := dataset.MustNew("r", attrs, nil, -1)
		_, err := n.Transform(other)
		var ce *errors.ConfigurationError
		require.True(t, errors.As(err, &ce))
		assert.Contains(t, ce.Reason, "conflicting types")
	})

	t.Run("missing attribute", func(t *testing.T) {
		n := NewNormalizer()
		require.NoError(t, n.Fit(rawTrain(t)))

		attrs := rawTrain(t).Attributes()
		other := dataset.MustNew("r", attrs[1:], nil, -1)
		_, err := n.Transform(other)
		var sm *errors.SchemaMismatchError
		require.True(t, errors.As(err, &sm))
		assert.Equal(t, len(attrs), sm.Expected)
		assert.Equal(t, len(attrs)-1, sm.Got)
	})

	t.Run("not fitted", func(t *testing.T) {
		_, err := NewNormalizer().Transform(rawTrain(t))
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))
	})
}

func TestNormalizer_WarnsOnUnseen(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	logger, _ := log.NewTestLogger(log.LevelDebug)
	n := NewNormalizer(WithLogger(logger))
	require.NoError(t, n.Fit(rawTrain(t)))
	_, err := n.Transform(rawTest(t))
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	var dcw *errors.DataConversionWarning
	assert.True(t, errors.As(warnings[0], &dcw))
	assert.True(t, logger.ContainsField(log.StageKey, log.StageNormalize))
}

// Scenario C: a constant attribute is gone from both schemas.
func TestPruner_ConstantAttribute(t *testing.T) {
	train, err := FitTransform(NewNormalizer(), rawTrain(t))
	require.NoError(t, err)

	p := NewPruner(DefaultPrunerOptions())
	prunedTrain, err := FitTransform(p, train)
	require.NoError(t, err)
	assert.Equal(t, []string{"land"}, p.Removed())
	assert.Equal(t, []string{"duration", "protocol_type", "service", "class"}, p.Kept())

	test := dataset.MustNew("KDDTest", train.Attributes(), [][]float64{
		{1, 0, 0, 7, 0},
	}, train.ClassIndex())
	prunedTest, err := p.Transform(test)
	require.NoError(t, err)

	assert.Equal(t, -1, prunedTrain.AttributeIndex("land"))
	assert.Equal(t, -1, prunedTest.AttributeIndex("land"))
	assert.Equal(t, prunedTrain.Header().FeatureNames(), prunedTest.Header().FeatureNames())
	assert.Equal(t, 3, prunedTest.ClassIndex())
}

func TestPruner_IdentifierLikeNominal(t *testing.T) {
	d := dataset.MustNew("r", []dataset.Attribute{
		dataset.NominalAttribute("id", "a", "b", "c", "d"),
		dataset.NumericAttribute("x"),
		dataset.NominalAttribute("class", "n", "y"),
	}, [][]float64{
		{0, 1, 0},
		{1, 2, 1},
		{2, 1, 0},
		{3, 2, 1},
	}, 2)

	p := NewPruner(DefaultPrunerOptions())
	require.NoError(t, p.Fit(d))
	assert.Equal(t, []string{"id"}, p.Removed())

	keep := NewPruner(PrunerOptions{MaxVariancePercent: 100})
	require.NoError(t, keep.Fit(d))
	assert.Empty(t, keep.Removed())
}

func TestPruner_MissingAttributeOnReplay(t *testing.T) {
	train, err := FitTransform(NewNormalizer(), rawTrain(t))
	require.NoError(t, err)
	p := NewPruner(DefaultPrunerOptions())
	require.NoError(t, p.Fit(train))

	short, err := train.Project([]int{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = p.Transform(short)
	var ce *errors.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "duration", ce.Attribute)
}

// Scenario B: an unseen protocol yields an all-zero indicator block.
func TestEncoder_UnseenValue(t *testing.T) {
	train := dataset.MustNew("r", []dataset.Attribute{
		dataset.NominalAttribute("protocol_type", "tcp", "udp", "icmp"),
		dataset.NumericAttribute("src_bytes"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, [][]float64{
		{0, 10, 0},
		{1, 20, 1},
		{2, 30, 0},
	}, 2)
	test := dataset.MustNew("r", []dataset.Attribute{
		dataset.NominalAttribute("protocol_type", "tcp", "udp", "icmp", "sctp"),
		dataset.NumericAttribute("src_bytes"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, [][]float64{
		{3, 40, 1},
		{2, 50, 0},
		{nan, 60, 0},
	}, 2)

	e := NewEncoder()
	encTrain, err := FitTransform(e, train)
	require.NoError(t, err)
	assert.Equal(t, []string{"protocol_type=tcp", "protocol_type=udp", "protocol_type=icmp", "src_bytes"},
		encTrain.Header().FeatureNames())
	assert.Equal(t, 4, encTrain.ClassIndex())
	assert.Equal(t, []float64{0, 1, 0, 20, 1}, encTrain.Row(1))

	encTest, err := e.Transform(test)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Unseen)
	assert.Equal(t, []float64{0, 0, 0, 40, 1}, encTest.Row(0))
	assert.Equal(t, []float64{0, 0, 1, 50, 0}, encTest.Row(1))
	assert.Equal(t, []float64{0, 0, 0, 60, 0}, encTest.Row(2))
	assert.True(t, encTrain.Header().Equal(encTest.Header()))
}

func TestEncoder_RejectsStringAttribute(t *testing.T) {
	err := NewEncoder().Fit(dataset.MustNew("r", []dataset.Attribute{
		dataset.StringAttribute("service", "http"),
		dataset.NominalAttribute("class", "a", "b"),
	}, [][]float64{{0, 0}}, 1))
	var ce *errors.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestScaler_TrainEndpoints(t *testing.T) {
	train, test := prepare(t, rawTrain(t), rawTest(t))

	j := train.AttributeIndex("duration")
	got := train.Column(j)
	assert.Equal(t, []float64{0, 0.5, 0.25, 1, 0.5, 0.75}, got)

	// no clamping outside the training range
	assert.InDelta(t, 1.5, test.Value(0, j), 1e-12)
	assert.InDelta(t, -0.25, test.Value(1, j), 1e-12)

	for _, d := range []*dataset.Dataset{train, test} {
		for i := 0; i < d.NumRows(); i++ {
			for _, v := range d.Features(i) {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		}
	}
}

func TestScaler_ZeroRangeAndEmptyColumn(t *testing.T) {
	d := dataset.MustNew("r", []dataset.Attribute{
		dataset.NumericAttribute("flag"),
		dataset.NumericAttribute("never"),
		dataset.NominalAttribute("class", "a", "b"),
	}, [][]float64{
		{3, nan, 0},
		{3, nan, 1},
	}, 2)

	out, err := FitTransform(NewScaler(), d)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, out.Row(0))
	assert.Equal(t, []float64{0, 0, 1}, out.Row(1))
}

func TestStages_PreserveClassColumn(t *testing.T) {
	rawTr, rawTe := rawTrain(t), rawTest(t)
	train, test := prepare(t, rawTr, rawTe)

	assert.Equal(t, classLabels(withLastClass(t, rawTr)), classLabels(train))
	assert.Equal(t, classLabels(withLastClass(t, rawTe)), classLabels(test))
	assert.Equal(t, train.NumAttributes()-1, train.ClassIndex())

	// raw inputs are untouched
	assert.Equal(t, -1, rawTr.ClassIndex())
	assert.Equal(t, dataset.String, rawTr.Attribute(2).Type)
}

func withLastClass(t *testing.T, d *dataset.Dataset) *dataset.Dataset {
	t.Helper()
	out, err := d.WithClassIndex(d.NumAttributes() - 1)
	require.NoError(t, err)
	return out
}
