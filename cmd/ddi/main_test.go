package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ddi/pkg/pairnet"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitError, exitCode(errors.New("boom")))
	assert.Equal(t, ExitConfigError, exitCode(configErr(errors.New("bad"))))
	assert.Equal(t, ExitConfigError, exitCode(errors.Wrap(configErr(errors.New("bad")), "loading")))
	assert.Nil(t, configErr(nil))
}

// writeFixture lays out a tiny feature-based experiment and returns the config path
func writeFixture(t *testing.T, extra string) (string, string) {
	dir := t.TempDir()
	files := map[string]string{
		"drugs.tsv": "a\t1 0\nb\t0 1\nc\t1 1\nd\t0.5 0.5\n",
		"train.txt": "a b 1\na c 0\nb c 1\n",
		"valid.txt": "a b 1\nc d 0\n",
		"test.txt":  "a d 1\nd d 0\nb c 1\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	cfg := strings.Join([]string{
		"batch_size: 2",
		"print_step: 1",
		"rep_idx: 3",
		"epochs: 2",
		"hidden_dim: 3",
		"embed_dim: 2",
		"optimizer: sgd",
		"learning_rate: 0.01",
		"model_name: fixture",
		"checkpoint_dir: " + filepath.Join(dir, "ckpt"),
		"drug_file: " + filepath.Join(dir, "drugs.tsv"),
		"train_file: " + filepath.Join(dir, "train.txt"),
		"valid_file: " + filepath.Join(dir, "valid.txt"),
		"test_file: " + filepath.Join(dir, "test.txt"),
		extra,
	}, "\n")
	path := filepath.Join(dir, "ddi.yml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return dir, path
}

func execute(args ...string) error {
	configPath = ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestTrainCapturesEmbeddings(t *testing.T) {
	dir, path := writeFixture(t, "save_embed: true")
	require.NoError(t, execute("train", "--config", path))

	_, err := os.Stat(filepath.Join(dir, "ckpt", "embed_fixture.gob.gz"))
	assert.NoError(t, err)
}

func TestPredictWritesReport(t *testing.T) {
	pred := filepath.Join(t.TempDir(), "pred.csv")
	_, path := writeFixture(t, "pred_file: "+pred)
	require.NoError(t, execute("predict", "--config", path, "--epochs", "1"))

	data, err := os.ReadFile(pred)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "pert1,pert1_known,pert2,pert2_known,prediction,target", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a,true,d,false,"))
}

func TestConfigErrors(t *testing.T) {
	_, path := writeFixture(t, "")
	err := execute("train", "--config", path, "--batch-size", "0")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))

	err = execute("embed", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestScoreDirRejectsFeatureSchemeBeforeTraining(t *testing.T) {
	_, path := writeFixture(t, "score_dir: in\nscore_out: out")
	err := execute("score-dir", "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, pairnet.ErrUnsupportedRep)
	assert.Equal(t, ExitConfigError, exitCode(err))
}
