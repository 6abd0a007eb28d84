package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ddi/internal/subgroup"
	"github.com/cnclabs/ddi/pkg/pairnet"
)

func write(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "ddi.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(write(t, "batch_size: 8\nbinary: false\nrep_idx: 3\nmodel_name: m1\ncheckpoint_dir: /tmp/ck\nunlisted: reject\n"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.BatchSize)
	assert.False(t, cfg.Binary)
	assert.Equal(t, pairnet.RepFeatures, cfg.Rep())
	assert.Equal(t, subgroup.Reject, cfg.Policy())
	assert.Equal(t, Default().PrintStep, cfg.PrintStep)
	assert.Equal(t, "/tmp/ck/embed_m1.gob.gz", cfg.EmbedPath())

	rc := cfg.RunnerConfig()
	assert.Equal(t, 8, rc.BatchSize)
	assert.Equal(t, cfg.EmbedPath(), rc.EmbedPath)
	assert.NoError(t, rc.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.TrainFile = "train.txt"
	cfg.SaveEmbed = true
	path := filepath.Join(t.TempDir(), "out.yml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"print step", func(c *Config) { c.PrintStep = 0 }},
		{"grad norm", func(c *Config) { c.GradMaxNorm = -1 }},
		{"learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"optimizer", func(c *Config) { c.Optimizer = "rmsprop" }},
		{"rep idx", func(c *Config) { c.RepIdx = 1 }},
		{"unlisted", func(c *Config) { c.Unlisted = "skip" }},
		{"model name", func(c *Config) { c.ModelName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(write(t, "batch_size: [1, 2\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "rep_idx: 2\n"))
	assert.ErrorIs(t, err, pairnet.ErrUnsupportedRep)
}
