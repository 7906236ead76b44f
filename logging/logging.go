// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger at level writing JSON to w, or human-readable console
// output when pretty is set. An unknown level falls back to info.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component returns a sub-logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Writer adapts l to an io.Writer, one info event per write. Trailing
// newlines are trimmed.
func Writer(l zerolog.Logger) io.Writer {
	return lineWriter{l}
}

type lineWriter struct {
	l zerolog.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	w.l.Info().Msg(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}
