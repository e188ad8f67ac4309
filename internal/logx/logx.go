package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction. The zero value gives an info-level
// console logger on stdout.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// JSON switches from the console writer to raw JSON lines.
	JSON bool
	// Out defaults to os.Stdout.
	Out io.Writer
}

// NewLogger returns a zerolog logger configured for console output.
func NewLogger(opts ...Options) zerolog.Logger {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		// Extract just the filename, not the full path
		short := file
		if i := strings.LastIndexByte(file, '/'); i >= 0 {
			short = file[i+1:]
		}
		// Pad to 24 characters for alignment
		return fmt.Sprintf("%-24s", fmt.Sprintf("%s:%d", short, line))
	}

	var w io.Writer = o.Out
	if !o.JSON {
		w = zerolog.ConsoleWriter{Out: o.Out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(ParseLevel(o.Level)).With().Timestamp().Caller().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component derives a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
