package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide base logger. Every component derives its
// own child from it via With().Str("component", ...).
// 'devMode' enables human-readable console logging.
func New(devMode bool) zerolog.Logger {
	var logger zerolog.Logger

	if devMode {
		// Colorful console output for local runs against the memory store
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(consoleWriter).With().Timestamp().Logger()
	} else {
		// JSON to stderr for log shippers in production
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	return logger
}
