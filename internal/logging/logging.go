// Package logging provides the log sink handed to every component of the
// experiment driver, together with the zap logger that backs it in the CLI.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the severity of a log message.
type Level int8

const (
	Debug Level = iota - 1
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int8(l))
}

// Sink receives log messages. Components never reach for a global logger;
// they are handed a Sink when they are built.
type Sink interface {
	Log(level Level, msg string)
}

// Logf formats msg and sends it to s.
func Logf(s Sink, level Level, format string, args ...interface{}) {
	s.Log(level, fmt.Sprintf(format, args...))
}

type nop struct{}

func (nop) Log(Level, string) {}

// Nop is a Sink that discards everything.
var Nop Sink = nop{}

// ZapSink forwards messages to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger as a Sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

// Log implements Sink.
func (z *ZapSink) Log(level Level, msg string) {
	switch level {
	case Debug:
		z.logger.Debug(msg)
	case Warn:
		z.logger.Warn(msg)
	case Error:
		z.logger.Error(msg)
	default:
		z.logger.Info(msg)
	}
}

// Sync flushes the underlying logger.
func (z *ZapSink) Sync() error {
	return z.logger.Sync()
}

// NewLogger builds the process logger: errors go to stderr, everything else to
// stdout, timestamps in RFC3339. With asJSON false the console encoder is used.
func NewLogger(asJSON bool, verbose bool) *zap.Logger {
	minLevel := zapcore.InfoLevel
	if verbose {
		minLevel = zapcore.DebugLevel
	}
	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= minLevel
	})
	stdoutWriter := zapcore.Lock(os.Stdout)
	stderrWriter := zapcore.Lock(os.Stderr)

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	var encoder zapcore.Encoder
	if asJSON {
		encoder = zapcore.NewJSONEncoder(config)
	} else {
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(config)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stderrWriter, isErrorLevel),
		zapcore.NewCore(encoder, stdoutWriter, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}
