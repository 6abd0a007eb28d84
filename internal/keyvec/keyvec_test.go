package keyvec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cnclabs/ddi/internal/logging"
)

func TestRegisterLastWriteWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(logging.NewZapSink(zap.New(core)))

	require.NoError(t, r.Register([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}}))
	require.NoError(t, r.Register([]string{"A"}, [][]float64{{1, 2}}))
	assert.Equal(t, 0, logs.Len())

	require.NoError(t, r.Register([]string{"A"}, [][]float64{{5, 6}}))
	assert.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "key A re-registered")

	e, ok := r.Get("A")
	require.True(t, ok)
	assert.Equal(t, []float64{5, 6}, e.Vector)
	assert.Equal(t, 2, r.Len())
}

func TestRegisterLengthMismatch(t *testing.T) {
	r := New(nil)
	assert.Error(t, r.Register([]string{"A"}, nil))
}

func TestPutKeepsLabel(t *testing.T) {
	r := New(nil)
	r.Put("A", []float64{1}, "aspirin")
	r.Put("A", []float64{1}, "")
	e, _ := r.Get("A")
	assert.Equal(t, "aspirin", e.Label)
}

func TestPutCopiesVector(t *testing.T) {
	r := New(nil)
	v := []float64{1, 2}
	r.Put("A", v, "")
	v[0] = 9
	e, _ := r.Get("A")
	assert.Equal(t, []float64{1, 2}, e.Vector)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"embed.gob", "nested/embed.gob.gz"} {
		t.Run(name, func(t *testing.T) {
			r := New(nil)
			r.Put("A", []float64{0.1, 0.2, 0.3}, "a")
			r.Put("B", []float64{-1, 0, 1}, "")

			path := filepath.Join(dir, name)
			require.NoError(t, r.Save(path))

			loaded, err := Load(path, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"A", "B"}, loaded.Keys())
			for _, k := range loaded.Keys() {
				e, _ := loaded.Get(k)
				assert.Len(t, e.Vector, 3)
			}
			a, _ := loaded.Get("A")
			assert.Equal(t, Entry{Vector: []float64{0.1, 0.2, 0.3}, Label: "a"}, a)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.gob"), nil)
	assert.Error(t, err)
}

func TestSaveText(t *testing.T) {
	r := New(nil)
	r.Put("B", []float64{1, 2}, "")
	r.Put("A", []float64{0.5, -0.25}, "")

	path := filepath.Join(t.TempDir(), "rep.txt")
	require.NoError(t, r.SaveText(path, 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"2 2",
		"A 0.500000 -0.250000",
		"B 1.000000 2.000000",
	}, lines)
}
