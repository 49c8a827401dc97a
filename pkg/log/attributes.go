// Standard attribute keys for kddbench log records.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "pipeline.stage") so that runs of different algorithms can be filtered
// and compared in the log stream.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "MinMaxScaler", "LogisticRegression".
	ModelNameKey = "model.name"

	// AlgorithmKey identifies the algorithm run inside a batch, e.g. "RandomForest", "OneR".
	AlgorithmKey = "algorithm.name"

	// OperationKey specifies the operation being performed ("fit", "transform", "evaluate").
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or component emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase ("preprocessing", "training", "testing").
	PhaseKey = "ml.phase"

	// StageKey names the pipeline stage ("normalize", "prune", "encode", "scale", "select", "balance").
	StageKey = "pipeline.stage"

	// DatasetKey names the dataset a record refers to ("train", "test", "valid").
	DatasetKey = "data.name"
)

// Data shape.
const (
	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of non-class attributes.
	FeaturesKey = "data.features"

	// ClassesKey is the number of class labels.
	ClassesKey = "data.classes"

	// MinorityRatioKey is min(class count)/max(class count) of a binary problem.
	MinorityRatioKey = "data.minority_ratio"

	// SyntheticKey is the number of rows synthesized by oversampling.
	SyntheticKey = "data.synthetic"

	// RemovedKey lists attributes removed by a stage.
	RemovedKey = "data.removed"
)

// Performance and metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// KappaKey records Cohen's kappa.
	KappaKey = "metrics.kappa"

	// AUCKey records the area under the ROC curve.
	AUCKey = "metrics.auc"

	// MeritKey records a CFS subset merit.
	MeritKey = "metrics.merit"

	// IterationKey records the current iteration of an iterative process.
	IterationKey = "training.iteration"
)

// Error context.
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides a hint for resolving an issue.
	SuggestionKey = "error.suggestion"
)

// Configuration.
const (
	// HyperParamsKey contains resolved model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseValidation    = "validation"

	StageNormalize = "normalize"
	StagePrune     = "prune"
	StageEncode    = "encode"
	StageScale     = "scale"
	StageSelect    = "select"
	StageBalance   = "balance"
	StageTrain     = "train"
	StageEvaluate  = "evaluate"

	ErrorConfiguration  = "CONFIGURATION"
	ErrorStageSkipped   = "STAGE_SKIPPED"
	ErrorTraining       = "TRAINING_FAILURE"
	ErrorSchemaMismatch = "SCHEMA_MISMATCH"
	ErrorPanic          = "PANIC"
)
