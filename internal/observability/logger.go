package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

func NewLogger(env string) *Logger {
	level := zerolog.DebugLevel
	if env == "production" {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.New(io.Discard)}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(message)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.zl.Warn().Fields(fields).Msg(message)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.zl.Error().Fields(fields).Msg(message)
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
