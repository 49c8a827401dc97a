// Package kddbench is a batch evaluation harness for intrusion detection
// classifiers on KDD-style network connection data.
//
// kddbench loads an ARFF training and test set, prepares both with the same
// fitted preprocessing chain, trains every configured algorithm and scores it
// on the test set. Each algorithm runs in isolation: a failure in one run is
// reported and the batch moves on.
//
// # Features
//
//   - ARFF loading with numeric, nominal and string attributes
//   - Shared preprocessing: label normalization, useless attribute pruning,
//     one-hot encoding and min-max scaling, all fitted on the training set
//   - Optional CFS feature subset selection and SMOTE on binary training sets
//   - RandomForest, OneR, IBk, Naive Bayes, J48, linear SVM and logistic regression
//   - Weka-style reports: confusion matrix, kappa, AUC, MAE, RMSE, RAE, RRSE,
//     per-class precision, recall and F-measure
//   - ROC curve export (PNG) and one CSV row per run
//
// # Installation
//
//	go install github.com/YuminosukeSato/kddbench/cmd/kddbench@latest
//
// # Quick Start
//
//	kddbench run --train KDDTrain.arff --test KDDTest+.arff --roc-dir roc
//
// or from Go:
//
//	train, _ := dataset.LoadARFF("KDDTrain.arff")
//	test, _ := dataset.LoadARFF("KDDTest+.arff")
//	tr, _ := trainer.New(trainer.J48, nil, log.GetLogger())
//	res := pipeline.Run(ctx, pipeline.DefaultConfig(), tr, train, test)
//	if res.OK() {
//	    fmt.Print(res.Report.Summary())
//	}
//
// # Packages
//
//   - dataset: schema, rows and the ARFF reader
//   - preprocessing: Normalizer, Pruner, Encoder and Scaler stages
//   - selection: CFS subset evaluation with backward search
//   - resample: SMOTE oversampling
//   - sklearn/...: the Go classifiers behind the trainers
//   - trainer: algorithm registry, knobs and fitted models
//   - metrics: classification and error measures over gonum vectors
//   - evaluation: reports, ROC curves and report rendering
//   - pipeline: per-run preparation, training and evaluation, and the batch loop
//   - config: viper-backed configuration and logging setup
//   - core/model, core/parallel: fitted-state handling and worker fan-out
//   - pkg/errors, pkg/log: typed errors, warnings and structured logging
//
// # Configuration
//
// Settings come from flags, KDDBENCH_* environment variables and an optional
// kddbench.yaml, in that order of precedence. "kddbench config" prints the
// effective configuration.
//
// # License
//
// kddbench is released under the MIT License.
package kddbench
