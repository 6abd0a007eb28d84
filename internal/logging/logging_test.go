package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZapSink(zap.New(core))

	sink.Log(Debug, "d")
	sink.Log(Info, "i")
	sink.Log(Warn, "w")
	Logf(sink, Error, "e%d", 1)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "e1", entries[3].Message)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "Level(9)", Level(9).String())
}

func TestNop(t *testing.T) {
	Nop.Log(Error, "ignored")
}
