package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a zerolog logger configured for stdout at info level.
func New() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// NewWithLevel returns a stdout logger at the named level. Unknown
// names fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	parsed := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		parsed = zerolog.TraceLevel
	case "debug":
		parsed = zerolog.DebugLevel
	case "info":
		parsed = zerolog.InfoLevel
	case "warn", "warning":
		parsed = zerolog.WarnLevel
	case "error":
		parsed = zerolog.ErrorLevel
	case "fatal":
		parsed = zerolog.FatalLevel
	case "panic":
		parsed = zerolog.PanicLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(parsed)
}
