// Package logging builds the zap loggers used across gitmirror.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level enumerates supported logging granularities.
type Level string

// Format enumerates supported logger output encodings.
type Format string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"

	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

var levelMapping = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

// ParseLevel validates a level name.
func ParseLevel(name string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := levelMapping[level]; !ok {
		return "", fmt.Errorf("unsupported log level: %s", name)
	}
	return level, nil
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(name))); format {
	case FormatConsole, FormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported log format: %s", name)
	}
}

// NewLogger creates a logger writing to w. Console output is meant for
// people watching a run, JSON output for log shippers.
func NewLogger(level Level, format Format, w io.Writer) (*zap.Logger, error) {
	zapLevel, ok := levelMapping[level]
	if !ok {
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch format {
	case FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.CallerKey = zapcore.OmitKey
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapLevel))
	return zap.New(core), nil
}

// WithRunID tags every entry of logger with a fresh run identifier and
// returns the identifier alongside.
func WithRunID(logger *zap.Logger) (*zap.Logger, string) {
	runID := uuid.NewString()
	return logger.With(zap.String("run_id", runID)), runID
}
