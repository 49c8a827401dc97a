package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// connections returns scaled (src_bytes, count) rows: normal traffic sends
// few bytes, anomalies many. count overlaps between the classes.
func connections() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, []float64{
		0.01, 3,
		0.02, 1,
		0.03, 4,
		0.04, 1,
		0.05, 5,
		0.80, 2,
		0.85, 6,
		0.90, 5,
		0.95, 3,
		0.99, 5,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_Criteria(t *testing.T) {
	for _, criterion := range []string{CriterionGini, CriterionEntropy, CriterionGainRatio} {
		t.Run(criterion, func(t *testing.T) {
			X, y := connections()
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			require.NoError(t, dt.Fit(X, y))

			assert.Equal(t, 1.0, dt.Score(X, y))
			assert.Equal(t, 1, dt.GetDepth())
			assert.Equal(t, 0, dt.root.feature)

			pred, err := dt.Predict(mat.NewDense(2, 2, []float64{0.02, 9, 0.9, 0}))
			require.NoError(t, err)
			assert.Equal(t, 0.0, pred.At(0, 0))
			assert.Equal(t, 1.0, pred.At(1, 0))
		})
	}
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := connections()
	dt := NewDecisionTreeClassifier(WithMaxDepth(1), WithMinSamplesLeaf(3))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []int{0, 1}, dt.Classes())

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, 10, r)
	require.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9, "row %d", i)
	}
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	// normal, dos and probe clusters
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		5, 5, 5, 6, 6, 5,
		10, 0, 10, 1, 11, 0,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithCriterion(CriterionEntropy))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, dt.Score(X, y))
	assert.Equal(t, 3, dt.GetNLeaves())

	proba, err := dt.PredictProba(mat.NewDense(3, 2, []float64{0.5, 0.5, 5.5, 5.5, 10.5, 0.5}))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, proba.At(i, i), "row %d", i)
	}
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	// the flag column alone decides the class
	X := mat.NewDense(8, 3, []float64{
		0, 1, 0,
		1, 0, 0,
		0, 0, 0,
		1, 1, 0,
		0, 1, 1,
		1, 0, 1,
		0, 0, 1,
		1, 1, 1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[2], 1e-12)
	assert.Zero(t, imp[0])
	assert.Zero(t, imp[1])
}

func TestDecisionTreeClassifier_Limits(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	tests := []struct {
		name      string
		opts      []Option
		maxDepth  int
		maxLeaves int
	}{
		{"max depth", []Option{WithMaxDepth(2)}, 2, 4},
		{"min samples", []Option{WithMinSamplesSplit(8), WithMinSamplesLeaf(4)}, 16, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			require.NoError(t, dt.Fit(X, y))
			assert.LessOrEqual(t, dt.GetDepth(), tt.maxDepth)
			assert.LessOrEqual(t, dt.GetNLeaves(), tt.maxLeaves)
		})
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, CriterionGini, params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Equal(t, 0.0, params["confidence"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":        CriterionGainRatio,
		"max_depth":        5,
		"min_samples_leaf": 2,
		"confidence":       0.25,
	}))
	assert.Equal(t, CriterionGainRatio, dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 2, dt.minSamplesLeaf)
	assert.Equal(t, 0.25, dt.confidence)

	assert.Error(t, dt.SetParams(map[string]interface{}{"max_depth": "deep"}))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(1, 2, []float64{0.1, 3})

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = dt.PredictProba(X)
	assert.True(t, errors.As(err, &nf))

	X2, y := connections()
	require.NoError(t, dt.Fit(X2, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

// TestDecisionTreeClassifier_GainRatio tests the C4.5 split choice
func TestDecisionTreeClassifier_GainRatio(t *testing.T) {
	// feature 1 separates the classes; feature 0 is noise
	X := mat.NewDense(8, 2, []float64{
		3, 0.1,
		1, 0.2,
		2, 0.3,
		4, 0.4,
		1, 0.6,
		3, 0.7,
		4, 0.8,
		2, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier(
		WithCriterion(CriterionGainRatio),
		WithMinSamplesLeaf(2),
	)
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if dt.GetNLeaves() != 2 {
		t.Errorf("Expected a single split, got %d leaves", dt.GetNLeaves())
	}
	if dt.root.feature != 1 || math.Abs(dt.root.threshold-0.5) > 1e-12 {
		t.Errorf("Expected split on feature 1 at 0.5, got feature %d at %v", dt.root.feature, dt.root.threshold)
	}
}

// TestDecisionTreeClassifier_Pruning tests pessimistic error pruning
func TestDecisionTreeClassifier_Pruning(t *testing.T) {
	// one noisy row among twenty; the unpruned tree isolates it
	X := mat.NewDense(20, 1, nil)
	y := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		X.Set(i, 0, float64(i))
		if i >= 10 {
			y.Set(i, 0, 1)
		}
	}
	y.Set(4, 0, 1)

	full := NewDecisionTreeClassifier(WithCriterion(CriterionGainRatio))
	if err := full.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pruned := NewDecisionTreeClassifier(WithCriterion(CriterionGainRatio), WithConfidence(0.25), WithMinSamplesLeaf(2))
	if err := pruned.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if pruned.GetNLeaves() >= full.GetNLeaves() {
		t.Errorf("Pruned tree has %d leaves, unpruned %d", pruned.GetNLeaves(), full.GetNLeaves())
	}
	if score := pruned.Score(X, y); score < 0.9 {
		t.Errorf("Pruned tree score %v too low", score)
	}
}

// TestDecisionTreeClassifier_MissingValues tests NaN routing at predict time
func TestDecisionTreeClassifier_MissingValues(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	probas, err := dt.PredictProba(mat.NewDense(1, 1, []float64{math.NaN()}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(probas.At(0, 0)-0.5) > 1e-12 || math.Abs(probas.At(0, 1)-0.5) > 1e-12 {
		t.Errorf("Expected [0.5 0.5] for a missing value, got [%v %v]", probas.At(0, 0), probas.At(0, 1))
	}
}

// TestDecisionTreeClassifier_InvalidInput tests degenerate training data
func TestDecisionTreeClassifier_InvalidInput(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	if err := NewDecisionTreeClassifier().Fit(X, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("Expected error for a single class")
	}
	y := mat.NewDense(3, 1, []float64{0, 1, 0})
	if err := NewDecisionTreeClassifier(WithCriterion("chi2")).Fit(X, y); err == nil {
		t.Error("Expected error for an unknown criterion")
	}
	if err := NewDecisionTreeClassifier(WithConfidence(0.9)).Fit(X, y); err == nil {
		t.Error("Expected error for confidence above 0.5")
	}
	if err := NewDecisionTreeClassifier().SetParams(map[string]interface{}{"splitter": "best"}); err == nil {
		t.Error("Expected error for an unknown parameter")
	}
}

func TestAddErrs(t *testing.T) {
	if got := addErrs(10, 10, 0.25); got != 0 {
		t.Errorf("addErrs with all errors = %v, want 0", got)
	}
	zero := addErrs(6, 0, 0.25)
	if want := 6 * (1 - math.Pow(0.25, 1.0/6)); math.Abs(zero-want) > 1e-12 {
		t.Errorf("addErrs(6, 0) = %v, want %v", zero, want)
	}
	if addErrs(100, 5, 0.25) <= 0 {
		t.Error("addErrs should be positive for a partial error count")
	}
	if addErrs(100, 5, 0.1) <= addErrs(100, 5, 0.25) {
		t.Error("a smaller confidence factor should give a more pessimistic estimate")
	}
}
