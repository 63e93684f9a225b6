// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance.
var Log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Log = newConsole(os.Stdout).Level(zerolog.InfoLevel)
}

// Setup configures the global logger. Production environments get JSON lines,
// everything else a human readable console writer.
func Setup(env, level string) {
	if env == "production" {
		Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		Log = newConsole(os.Stdout)
	}
	SetLevel(level)
}

// SetLevel sets the log level.
func SetLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	Log = Log.Level(level)
}

// Discard silences the global logger. Used by tests.
func Discard() {
	Log = zerolog.New(io.Discard)
}

func newConsole(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
