// Package logging builds the zerolog loggers used by the client and CLIs.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"bitcoindrpc/internal/config"
)

// Level maps the client's tri-level setting onto a zerolog level
func Level(level string) zerolog.Level {
	switch level {
	case config.LogLevelNone:
		return zerolog.Disabled
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a console logger writing to w at the given tri-level setting.
// A nil w writes to stderr.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).Level(Level(level)).With().Timestamp().Logger()
}
