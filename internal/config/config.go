// Package config holds the experiment settings read from a YAML file.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cnclabs/ddi/internal/runner"
	"github.com/cnclabs/ddi/internal/subgroup"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

// EnvFile names the environment variable holding the config path
const EnvFile = "DDI_CONFIG"

// ErrInvalid is returned by Validate for out-of-range settings
var ErrInvalid = errors.New("invalid config")

// Config is the full experiment configuration
type Config struct {
	BatchSize     int     `yaml:"batch_size"`
	PrintStep     int     `yaml:"print_step"`
	GradMaxNorm   float64 `yaml:"grad_max_norm"`
	Binary        bool    `yaml:"binary"`
	SaveEmbed     bool    `yaml:"save_embed"`
	CheckpointDir string  `yaml:"checkpoint_dir"`
	ModelName     string  `yaml:"model_name"`
	RepIdx        int     `yaml:"rep_idx"`

	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Optimizer    string  `yaml:"optimizer"`
	HiddenDim    int     `yaml:"hidden_dim"`
	EmbedDim     int     `yaml:"embed_dim"`
	Seed         int64   `yaml:"seed"`
	Unlisted     string  `yaml:"unlisted"`

	DrugFile    string `yaml:"drug_file"`
	TrainFile   string `yaml:"train_file"`
	ValidFile   string `yaml:"valid_file"`
	TestFile    string `yaml:"test_file"`
	KnownFile   string `yaml:"known_file"`
	UnknownFile string `yaml:"unknown_file"`

	EmbedEntries string `yaml:"embed_entries"`
	PredFile     string `yaml:"pred_file"`
	ScoreDir     string `yaml:"score_dir"`
	ScoreOut     string `yaml:"score_out"`
}

// Default returns the settings used when a field is absent from the file
func Default() *Config {
	return &Config{
		BatchSize:     32,
		PrintStep:     100,
		GradMaxNorm:   5,
		Binary:        true,
		CheckpointDir: "./checkpoint",
		ModelName:     "siamese",
		RepIdx:        int(pairnet.RepChars),
		Epochs:        10,
		LearningRate:  1e-3,
		Optimizer:     "adam",
		HiddenDim:     64,
		EmbedDim:      32,
		Seed:          3,
		Unlisted:      "unknown",
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Validate checks every setting that has a restricted range
func (c *Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return errors.Wrapf(ErrInvalid, "batch_size must be positive, got %d", c.BatchSize)
	case c.PrintStep < 1:
		return errors.Wrapf(ErrInvalid, "print_step must be positive, got %d", c.PrintStep)
	case c.GradMaxNorm < 0:
		return errors.Wrapf(ErrInvalid, "grad_max_norm must not be negative, got %g", c.GradMaxNorm)
	case c.Epochs < 0:
		return errors.Wrapf(ErrInvalid, "epochs must not be negative, got %d", c.Epochs)
	case c.LearningRate <= 0:
		return errors.Wrapf(ErrInvalid, "learning_rate must be positive, got %g", c.LearningRate)
	case c.HiddenDim < 1 || c.EmbedDim < 1:
		return errors.Wrapf(ErrInvalid, "hidden_dim and embed_dim must be positive")
	case c.ModelName == "":
		return errors.Wrap(ErrInvalid, "model_name is empty")
	}
	if c.Optimizer != "sgd" && c.Optimizer != "adam" {
		return errors.Wrapf(ErrInvalid, "optimizer must be sgd or adam, got %q", c.Optimizer)
	}
	if r := pairnet.RepIdx(c.RepIdx); r != pairnet.RepChars && r != pairnet.RepFeatures {
		return errors.Wrapf(pairnet.ErrUnsupportedRep, "rep_idx %d", c.RepIdx)
	}
	if _, err := subgroup.ParsePolicy(c.Unlisted); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

// Rep returns the representation scheme
func (c *Config) Rep() pairnet.RepIdx {
	return pairnet.RepIdx(c.RepIdx)
}

// Policy returns the handling of drugs outside both sets
func (c *Config) Policy() subgroup.Policy {
	p, _ := subgroup.ParsePolicy(c.Unlisted)
	return p
}

// EmbedPath is where captured embeddings are written
func (c *Config) EmbedPath() string {
	return filepath.Join(c.CheckpointDir, "embed_"+c.ModelName+".gob.gz")
}

// RunnerConfig returns the epoch runner settings
func (c *Config) RunnerConfig() runner.Config {
	return runner.Config{
		BatchSize:   c.BatchSize,
		PrintStep:   c.PrintStep,
		GradMaxNorm: c.GradMaxNorm,
		Binary:      c.Binary,
		SaveEmbed:   c.SaveEmbed,
		EmbedPath:   c.EmbedPath(),
	}
}
