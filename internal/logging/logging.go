// Package logging provides the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Safe to use before Init (defaults
// to info level, RFC3339 timestamps, stderr).
var Logger zerolog.Logger

// Config controls the global logger's behavior.
type Config struct {
	Level  zerolog.Level
	Output io.Writer
	Pretty bool
}

// DefaultConfig returns the logger configuration used before Init is called.
func DefaultConfig() Config {
	return Config{Level: zerolog.InfoLevel, Output: os.Stderr}
}

// Init (re)configures the global logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel parses a log level string, defaulting to info on no match.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func init() {
	Init(DefaultConfig())
}
