// Package logging is a thin helper around zerolog so library entry
// points and the example command configure it the same way: a disabled
// logger by default (a library must never write to stderr on a caller's
// behalf unless asked), or a console writer for interactive CLI use.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Disabled returns a logger that discards everything, the default a
// library consumer gets until it opts in.
func Disabled() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// Console returns a human-readable, colorized logger writing to w at the
// given level, the shape a CLI wants.
func Console(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// ConsoleStderr is Console applied to os.Stderr, the common case for a CLI.
func ConsoleStderr(level zerolog.Level) zerolog.Logger {
	return Console(os.Stderr, level)
}
