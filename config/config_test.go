package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
	"github.com/YuminosukeSato/kddbench/trainer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kddbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// chdir moves into dir for the duration of the test, away from any kddbench.yaml.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	c, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "data/KDDTrain.arff", c.Data.Train)
	assert.Equal(t, "data/KDDTest+.arff", c.Data.Test)
	assert.Equal(t, "data/KDDValid.arff", c.Data.Valid)
	assert.Equal(t, trainer.DefaultAlgorithms, c.Algorithms)
	assert.True(t, c.Pipeline.Select)
	assert.True(t, c.Pipeline.Balance)
	assert.Equal(t, 5, c.Pipeline.SMOTE.K)
	assert.Equal(t, 0.5, c.Pipeline.SMOTE.Threshold)
	assert.Equal(t, 99.0, c.Pipeline.Pruner.MaxVariancePercent)

	pc := c.PipelineConfig()
	assert.True(t, pc.SelectFeatures)
	assert.Equal(t, int64(1), pc.SMOTE.Seed)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
data:
  train: train.arff
  test: test.arff
pipeline:
  select: false
  seed: 42
  smote:
    k: 3
algorithms: [j48, OneR]
knobs:
  J48:
    confidence: 0.1
    min_samples_leaf: 4
`)
	t.Setenv("KDDBENCH_PIPELINE_BALANCE", "false")
	t.Setenv("KDDBENCH_LOG_LEVEL", "debug")

	c, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "train.arff", c.Data.Train)
	assert.False(t, c.Pipeline.Select)
	assert.False(t, c.Pipeline.Balance)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 3, c.Pipeline.SMOTE.K)
	assert.Equal(t, int64(42), c.PipelineConfig().SMOTE.Seed)
	assert.Equal(t, []string{trainer.J48, trainer.OneR}, c.Algorithms)

	trainers, err := c.Trainers(nil)
	require.NoError(t, err)
	require.Len(t, trainers, 2)
	assert.Equal(t, trainer.J48, trainers[0].Name())
	assert.Equal(t, 0.1, trainers[0].Params()["confidence"])
	assert.Equal(t, 4, trainers[0].Params()["min_samples_leaf"])
	assert.Equal(t, 6, trainers[1].Params()["min_bucket_size"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		attr string
	}{
		{"unknown algorithm", "algorithms: [C45]", "algorithms"},
		{"unknown knob section", "knobs:\n  C45:\n    depth: 1", "knobs.c45"},
		{"bad level", "log:\n  level: loud", "log.level"},
		{"bad format", "log:\n  format: xml", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tt.body))
			var ce *errors.ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.attr, ce.Attribute)
		})
	}

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestTrainers_UnknownKnob(t *testing.T) {
	c, err := Load(viper.New(), writeConfig(t, "algorithms: [IBk]\nknobs:\n  ibk:\n    neighbours: 3\n"))
	require.NoError(t, err)
	_, err = c.Trainers(nil)
	var ce *errors.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestConfig_YAML(t *testing.T) {
	chdir(t, t.TempDir())
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	out, err := c.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, c.Algorithms, back.Algorithms)
	assert.Equal(t, c.Pipeline.SMOTE, back.Pipeline.SMOTE)
	assert.Contains(t, string(out), "target_ratio: 1")
}

func TestLog_Setup(t *testing.T) {
	defer errors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	require.NoError(t, Log{Level: "info", Format: "console"}.Setup(&buf))
	errors.Warn(errors.NewConvergenceWarning("Logistic", 100, "not converged"))
	assert.Contains(t, buf.String(), "not converged")

	buf.Reset()
	require.NoError(t, Log{Level: "warn", Format: "json"}.Setup(&buf))
	log.GetLogger().Info("hidden")
	log.GetLogger().Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	var ce *errors.ConfigurationError
	assert.True(t, errors.As(Log{Level: "info", Format: "xml"}.Setup(&buf), &ce))
}
