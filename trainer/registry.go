package trainer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/kddbench/core/model"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
	"github.com/YuminosukeSato/kddbench/sklearn/linear_model"
	"github.com/YuminosukeSato/kddbench/sklearn/naive_bayes"
	"github.com/YuminosukeSato/kddbench/sklearn/rules"
	"github.com/YuminosukeSato/kddbench/sklearn/svm"
	"github.com/YuminosukeSato/kddbench/sklearn/tree"
)

// Algorithm names known to New, in the default batch order.
const (
	RandomForest = "RandomForest"
	OneR         = "OneR"
	IBk          = "IBk"
	NaiveBayes   = "NaiveBayes"
	J48          = "J48"
	SVM          = "SVM"
	Logistic     = "Logistic"
)

// DefaultAlgorithms is the batch order used when none is configured.
var DefaultAlgorithms = []string{RandomForest, OneR, IBk, NaiveBayes, J48, SVM, Logistic}

// Titles are the report banner names.
var Titles = map[string]string{
	RandomForest: "RandomForest",
	OneR:         "OneR",
	IBk:          "IBK",
	NaiveBayes:   "Naive Bayes",
	J48:          "J48",
	SVM:          "SVM",
	Logistic:     "Logistic Regression",
}

// Defaults returns the default knobs of an algorithm.
func Defaults(name string) (map[string]any, bool) {
	switch name {
	case RandomForest:
		return map[string]any{"trees": 10, "features": 0}, true
	case OneR:
		return map[string]any{"min_bucket_size": 6}, true
	case IBk:
		return map[string]any{"k": 1}, true
	case NaiveBayes:
		return map[string]any{"var_smoothing": 1e-9}, true
	case J48:
		return map[string]any{"confidence": 0.25, "min_samples_leaf": 2, "max_depth": 0}, true
	case SVM:
		return map[string]any{"C": 1.0, "epochs": 10, "seed": int64(1)}, true
	case Logistic:
		return map[string]any{"ridge": 0.5, "max_iter": 100}, true
	}
	return nil, false
}

// Names returns every registered algorithm name, sorted.
func Names() []string {
	names := append([]string(nil), DefaultAlgorithms...)
	sort.Strings(names)
	return names
}

// New builds a trainer from its name and knob overrides. Unknown names and
// knobs, and knobs of the wrong type, are ConfigurationErrors.
func New(name string, knobs map[string]any, logger log.Logger) (Trainer, error) {
	k, ok := Defaults(name)
	if !ok {
		return nil, errors.NewConfigurationError("trainer", name, "unknown algorithm")
	}
	// configuration files lower-case their keys, so knobs match case-insensitively
	for key, v := range knobs {
		known := ""
		for d := range k {
			if strings.EqualFold(d, key) {
				known = d
			}
		}
		if known == "" {
			return nil, errors.NewConfigurationError("trainer", name, fmt.Sprintf("unknown knob %q", key))
		}
		k[known] = v
	}
	kn := knobReader{algorithm: name, knobs: k}

	switch name {
	case RandomForest:
		trees, features := kn.getInt("trees"), kn.getInt("features")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewRandomForest(trees, features, logger), nil
	case IBk:
		neighbours := kn.getInt("k")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewIBk(neighbours, logger), nil
	case OneR:
		bucket := kn.getInt("min_bucket_size")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewEstimator(name, kn.resolved(), func() model.Classifier {
			return rules.NewOneR(rules.WithMinBucketSize(bucket))
		}, logger), nil
	case NaiveBayes:
		smoothing := kn.getFloat("var_smoothing")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewEstimator(name, kn.resolved(), func() model.Classifier {
			return naive_bayes.NewGaussianNB(naive_bayes.WithVarSmoothing(smoothing))
		}, logger), nil
	case J48:
		cf, leaf, depth := kn.getFloat("confidence"), kn.getInt("min_samples_leaf"), kn.getInt("max_depth")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewEstimator(name, kn.resolved(), func() model.Classifier {
			return tree.NewDecisionTreeClassifier(
				tree.WithCriterion(tree.CriterionGainRatio),
				tree.WithConfidence(cf),
				tree.WithMinSamplesLeaf(leaf),
				tree.WithMinSamplesSplit(2*leaf),
				tree.WithMaxDepth(depth),
			)
		}, logger), nil
	case SVM:
		c, epochs, seed := kn.getFloat("C"), kn.getInt("epochs"), kn.getInt("seed")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewEstimator(name, kn.resolved(), func() model.Classifier {
			return svm.NewLinearSVC(svm.WithC(c), svm.WithEpochs(epochs), svm.WithRandomState(int64(seed)))
		}, logger), nil
	default: // Logistic
		ridge, maxIter := kn.getFloat("ridge"), kn.getInt("max_iter")
		if kn.err != nil {
			return nil, kn.err
		}
		return NewEstimator(name, kn.resolved(), func() model.Classifier {
			return linear_model.NewLogisticRegression(
				linear_model.WithLRRidge(ridge),
				linear_model.WithLRMaxIter(maxIter),
			)
		}, logger), nil
	}
}

// knobReader converts loosely typed configuration values, keeping the first error.
type knobReader struct {
	algorithm string
	knobs     map[string]any
	err       error
}

func (r *knobReader) resolved() map[string]any {
	out := make(map[string]any, len(r.knobs))
	for k, v := range r.knobs {
		out[k] = v
	}
	return out
}

func (r *knobReader) fail(key string, v any) {
	if r.err == nil {
		r.err = errors.NewConfigurationError("trainer", r.algorithm,
			fmt.Sprintf("knob %q has invalid value %v (%T)", key, v, v))
	}
}

func (r *knobReader) getInt(key string) int {
	n, ok := r.parseInt(r.knobs[key])
	if !ok {
		r.fail(key, r.knobs[key])
		return 0
	}
	r.knobs[key] = n
	return n
}

func (r *knobReader) parseInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (r *knobReader) getFloat(key string) float64 {
	var f float64
	switch v := r.knobs[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v)
			return 0
		}
		f = parsed
	default:
		r.fail(key, v)
		return 0
	}
	r.knobs[key] = f
	return f
}
