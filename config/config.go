// Package config resolves the kddbench configuration from defaults, an
// optional kddbench.yaml, KDDBENCH_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/kddbench/pipeline"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
	"github.com/YuminosukeSato/kddbench/preprocessing"
	"github.com/YuminosukeSato/kddbench/resample"
	"github.com/YuminosukeSato/kddbench/selection"
	"github.com/YuminosukeSato/kddbench/trainer"
)

// EnvPrefix prefixes every environment variable, e.g. KDDBENCH_PIPELINE_SEED.
const EnvPrefix = "KDDBENCH"

// Config is the resolved configuration.
type Config struct {
	Data       Data                      `mapstructure:"data" yaml:"data"`
	Log        Log                       `mapstructure:"log" yaml:"log"`
	Pipeline   Pipeline                  `mapstructure:"pipeline" yaml:"pipeline"`
	Algorithms []string                  `mapstructure:"algorithms" yaml:"algorithms"`
	Knobs      map[string]map[string]any `mapstructure:"knobs" yaml:"knobs,omitempty"`
	Output     Output                    `mapstructure:"output" yaml:"output"`
}

// Data locates the ARFF files. Valid is optional.
type Data struct {
	Train string `mapstructure:"train" yaml:"train"`
	Test  string `mapstructure:"test" yaml:"test"`
	Valid string `mapstructure:"valid" yaml:"valid"`
}

// Log selects the log level and format ("text", "json" or "console").
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Pipeline mirrors pipeline.Config. Seed drives SMOTE.
type Pipeline struct {
	Select    bool                        `mapstructure:"select" yaml:"select"`
	Balance   bool                        `mapstructure:"balance" yaml:"balance"`
	Seed      int64                       `mapstructure:"seed" yaml:"seed"`
	SMOTE     resample.Options            `mapstructure:"smote" yaml:"smote"`
	Selection selection.Options           `mapstructure:"selection" yaml:"selection"`
	Pruner    preprocessing.PrunerOptions `mapstructure:"pruner" yaml:"pruner"`
}

// Output controls optional artifacts.
type Output struct {
	ROCDir string `mapstructure:"roc_dir" yaml:"roc_dir"`
	CSV    string `mapstructure:"csv" yaml:"csv"`
}

// SetDefaults registers every key with its default, which also makes the key
// visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	smote := resample.DefaultOptions()
	pr := preprocessing.DefaultPrunerOptions()

	v.SetDefault("data.train", "data/KDDTrain.arff")
	v.SetDefault("data.test", "data/KDDTest+.arff")
	v.SetDefault("data.valid", "data/KDDValid.arff")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("pipeline.select", true)
	v.SetDefault("pipeline.balance", true)
	v.SetDefault("pipeline.seed", smote.Seed)
	v.SetDefault("pipeline.smote.k", smote.K)
	v.SetDefault("pipeline.smote.threshold", smote.Threshold)
	v.SetDefault("pipeline.smote.target_ratio", smote.TargetRatio)
	v.SetDefault("pipeline.selection.max_iterations", selection.DefaultOptions().MaxIterations)
	v.SetDefault("pipeline.pruner.max_variance_percent", pr.MaxVariancePercent)
	v.SetDefault("algorithms", trainer.DefaultAlgorithms)
	v.SetDefault("output.roc_dir", "")
	v.SetDefault("output.csv", "")
}

// Load reads file, or kddbench.yaml from the working directory or
// $HOME/.config/kddbench when file is empty, then applies the environment.
// A missing kddbench.yaml is not an error; a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "kddbench"))
		}
		v.SetConfigName("kddbench")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	// environment variables arrive as one comma separated string
	if len(c.Algorithms) == 1 && strings.Contains(c.Algorithms[0], ",") {
		c.Algorithms = splitList(c.Algorithms[0])
	}
	c.Pipeline.SMOTE.Seed = c.Pipeline.Seed
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the log settings, the algorithm list and the knob sections.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewConfigurationError("config", "log.level", err.Error())
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json", "console":
	default:
		return errors.NewConfigurationError("config", "log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	if len(c.Algorithms) == 0 {
		return errors.NewConfigurationError("config", "algorithms", "no algorithm configured")
	}
	for i, name := range c.Algorithms {
		canonical, ok := canonicalName(name)
		if !ok {
			return errors.NewConfigurationError("config", "algorithms",
				fmt.Sprintf("unknown algorithm %q, known: %s", name, strings.Join(trainer.Names(), ", ")))
		}
		c.Algorithms[i] = canonical
	}
	for name := range c.Knobs {
		if _, ok := canonicalName(name); !ok {
			return errors.NewConfigurationError("config", "knobs."+name, "unknown algorithm")
		}
	}
	return nil
}

// PipelineConfig returns the stage configuration of a run.
func (c *Config) PipelineConfig() pipeline.Config {
	smote := c.Pipeline.SMOTE
	smote.Seed = c.Pipeline.Seed
	return pipeline.Config{
		SelectFeatures: c.Pipeline.Select,
		Selection:      c.Pipeline.Selection,
		Balance:        c.Pipeline.Balance,
		SMOTE:          smote,
		Pruner:         c.Pipeline.Pruner,
	}
}

// Trainers builds the configured algorithms in order, applying their knobs.
func (c *Config) Trainers(logger log.Logger) ([]trainer.Trainer, error) {
	out := make([]trainer.Trainer, 0, len(c.Algorithms))
	for _, name := range c.Algorithms {
		canonical, ok := canonicalName(name)
		if !ok {
			return nil, errors.NewConfigurationError("config", "algorithms", fmt.Sprintf("unknown algorithm %q", name))
		}
		tr, err := trainer.New(canonical, c.knobsFor(canonical), logger)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// knobsFor looks the knob section up case-insensitively; viper lower-cases keys.
func (c *Config) knobsFor(name string) map[string]any {
	for k, knobs := range c.Knobs {
		if strings.EqualFold(k, name) {
			return knobs
		}
	}
	return nil
}

// YAML renders the resolved configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return out, nil
}

func canonicalName(name string) (string, bool) {
	for _, known := range trainer.Names() {
		if strings.EqualFold(known, strings.TrimSpace(name)) {
			return known, true
		}
	}
	return "", false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
