package trainer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// prepared returns a scaled two-feature dataset: class "anomaly" sits near (1, 1).
func prepared(t *testing.T, labels ...string) *dataset.Dataset {
	t.Helper()
	if len(labels) == 0 {
		labels = []string{"normal", "anomaly"}
	}
	rows := [][]float64{
		{0.00, 0.10, 0}, {0.10, 0.00, 0}, {0.20, 0.20, 0}, {0.10, 0.30, 0},
		{0.30, 0.10, 0}, {0.20, 0.00, 0}, {0.00, 0.25, 0}, {0.15, 0.15, 0},
		{0.90, 1.00, 1}, {1.00, 0.80, 1}, {0.80, 0.90, 1}, {1.00, 1.00, 1},
		{0.70, 0.90, 1}, {0.85, 0.75, 1}, {0.95, 0.85, 1}, {0.75, 1.00, 1},
	}
	return dataset.MustNew("prepared", []dataset.Attribute{
		dataset.NumericAttribute("src_bytes"),
		dataset.NumericAttribute("dst_bytes"),
		dataset.NominalAttribute("class", labels...),
	}, rows, 2)
}

func TestRegistry_AllAlgorithmsTrainAndScore(t *testing.T) {
	train := prepared(t)
	for _, name := range DefaultAlgorithms {
		t.Run(name, func(t *testing.T) {
			tr, err := New(name, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, name, tr.Name())

			fitted, err := tr.Train(context.Background(), train)
			require.NoError(t, err)
			assert.Equal(t, name, fitted.Algorithm)
			assert.Equal(t, 2, fitted.NumClasses())
			assert.Equal(t, []string{"normal", "anomaly"}, fitted.ClassLabels())

			dist, err := fitted.Distributions(train)
			require.NoError(t, err)
			r, c := dist.Dims()
			assert.Equal(t, train.NumRows(), r)
			assert.Equal(t, 2, c)
			for i := 0; i < r; i++ {
				assert.InDelta(t, 1.0, dist.At(i, 0)+dist.At(i, 1), 1e-9, "row %d", i)
			}

			preds, err := fitted.Predict(train)
			require.NoError(t, err)
			correct := 0
			for i, p := range preds {
				if p == train.ClassValue(i) {
					correct++
				}
			}
			assert.GreaterOrEqual(t, correct, 13, "training accuracy of %s", name)
		})
	}
}

func TestFitted_Prior(t *testing.T) {
	fitted, err := New(NaiveBayes, nil, nil)
	require.NoError(t, err)
	f, err := fitted.Train(context.Background(), prepared(t))
	require.NoError(t, err)
	// (8+1)/(16+2)
	assert.InDelta(t, 0.5, f.Prior[0], 1e-12)
	assert.Equal(t, 16, f.Rows)
	assert.Equal(t, 1e-9, f.Params["var_smoothing"])
}

func TestFitted_MissingTrainClassGetsZeroColumn(t *testing.T) {
	train := prepared(t, "normal", "anomaly", "probe")
	tr, err := New(Logistic, nil, nil)
	require.NoError(t, err)
	fitted, err := tr.Train(context.Background(), train)
	require.NoError(t, err)

	dist, err := fitted.Distributions(train)
	require.NoError(t, err)
	_, c := dist.Dims()
	require.Equal(t, 3, c)
	for i := 0; i < train.NumRows(); i++ {
		assert.Zero(t, dist.At(i, 2))
	}
	assert.Len(t, fitted.Prior, 3)
	assert.InDelta(t, 1.0/19.0, fitted.Prior[2], 1e-12)
}

func TestFitted_SchemaMismatch(t *testing.T) {
	train := prepared(t)
	tr, err := New(OneR, map[string]any{"min_bucket_size": 2}, nil)
	require.NoError(t, err)
	fitted, err := tr.Train(context.Background(), train)
	require.NoError(t, err)

	narrower, err := train.Project([]int{0, 2})
	require.NoError(t, err)
	_, err = fitted.Distributions(narrower)
	var sm *errors.SchemaMismatchError
	require.True(t, errors.As(err, &sm), "got %v", err)
	assert.Equal(t, 3, sm.Expected)
	assert.Equal(t, 2, sm.Got)
}

func TestTrain_DegenerateInput(t *testing.T) {
	single := dataset.MustNew("single", []dataset.Attribute{
		dataset.NumericAttribute("x"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, [][]float64{{0, 0}, {1, 0}, {2, dataset.Missing()}}, 1)

	noFeatures := dataset.MustNew("nofeatures", []dataset.Attribute{
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, [][]float64{{0}, {1}}, 0)

	empty := dataset.MustNew("empty", []dataset.Attribute{
		dataset.NumericAttribute("x"),
		dataset.NominalAttribute("class", "normal", "anomaly"),
	}, nil, 1)

	tests := []struct {
		name  string
		train *dataset.Dataset
		want  error
	}{
		{"single class", single, errors.ErrSingleClass},
		{"zero features", noFeatures, errors.ErrNoFeatures},
		{"zero rows", empty, errors.ErrEmptyData},
	}
	for _, tt := range tests {
		for _, name := range []string{Logistic, IBk} {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				tr, err := New(name, nil, nil)
				require.NoError(t, err)
				_, err = tr.Train(context.Background(), tt.train)
				var te *errors.TrainingError
				require.True(t, errors.As(err, &te), "got %v", err)
				assert.Equal(t, name, te.Algorithm)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	}
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr, err := New(J48, nil, nil)
	require.NoError(t, err)
	_, err = tr.Train(ctx, prepared(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrain_InvalidKnobValueFailsTraining(t *testing.T) {
	tr, err := New(IBk, map[string]any{"k": 0}, nil)
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), prepared(t))
	var te *errors.TrainingError
	assert.True(t, errors.As(err, &te))
}

func TestRegistry_Errors(t *testing.T) {
	_, err := New("C4.5", nil, nil)
	var ce *errors.ConfigurationError
	assert.True(t, errors.As(err, &ce))

	_, err = New(J48, map[string]any{"pruning": true}, nil)
	assert.True(t, errors.As(err, &ce))

	_, err = New(SVM, map[string]any{"epochs": "many"}, nil)
	assert.True(t, errors.As(err, &ce))

	// keys from configuration files arrive lower-cased
	tr, err := New(SVM, map[string]any{"c": 2.5, "epochs": 3.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, tr.Params()["C"])
	assert.Equal(t, 3, tr.Params()["epochs"])
	assert.Equal(t, 1, tr.Params()["seed"])

	assert.Len(t, Names(), len(DefaultAlgorithms))
	for _, name := range DefaultAlgorithms {
		assert.NotEmpty(t, Titles[name])
	}
}

func TestSpread(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0.25, 0.75, 1, 0})
	out, err := spread(m, []int{0, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0, 0.75}, out.RawRowView(0))
	assert.Equal(t, []float64{1, 0, 0}, out.RawRowView(1))

	_, err = spread(m, []int{0, 3}, 3)
	assert.Error(t, err)
	_, err = spread(m, []int{0}, 3)
	assert.Error(t, err)

	m.Set(0, 0, math.NaN())
	_, err = spread(m, []int{0, 1}, 2)
	assert.Error(t, err)
}
