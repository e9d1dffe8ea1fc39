// Package logging wires the coordinator's structured logging stack:
// github.com/joeycumines/logiface over a zerolog backend.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type threaded through every component
// constructor in this repository.
type Logger = logiface.Logger[*izerolog.Event]

// Config controls construction of the process-wide Logger.
type Config struct {
	// Level is the minimum level that will be logged. Defaults to
	// LevelInformational.
	Level logiface.Level

	// Writer receives the rendered log lines. Defaults to os.Stderr.
	Writer io.Writer

	// Pretty enables zerolog's human-readable console writer, for local
	// development; production deployments should leave this false.
	Pretty bool
}

// New constructs the process-wide Logger from cfg. A nil cfg uses defaults.
func New(cfg *Config) *Logger {
	var (
		level            = logiface.LevelInformational
		w      io.Writer = os.Stderr
		pretty bool
	)
	if cfg != nil {
		if cfg.Level != 0 {
			level = cfg.Level
		}
		if cfg.Writer != nil {
			w = cfg.Writer
		}
		pretty = cfg.Pretty
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}

	zl := zerolog.New(w).With().Timestamp().Logger()

	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](level),
	)
}
