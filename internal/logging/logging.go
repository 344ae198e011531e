// Package logging builds the loggers used by the CLI: diagnostics on stderr,
// optionally mirrored to a rotated log file, and a debug logger that is
// silent unless enabled.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log sinks.
type Options struct {
	// LogFile mirrors all output to a size-rotated file when set.
	LogFile string

	// Debug enables the debug loggers.
	Debug bool

	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// Sinks hands out prefixed loggers sharing one set of writers.
type Sinks struct {
	out   io.Writer
	debug bool
	file  *lumberjack.Logger
}

// New opens the configured sinks. Call Close to flush the log file.
func New(opts Options) *Sinks {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	s := &Sinks{out: stderr, debug: opts.Debug}
	if opts.LogFile != "" {
		s.file = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		s.out = io.MultiWriter(stderr, s.file)
	}
	return s
}

// Logger returns a logger writing with the given prefix, e.g. "[import] ".
func (s *Sinks) Logger(prefix string) *log.Logger {
	return log.New(s.out, prefix, log.LstdFlags)
}

// Debug returns a debug logger with the given prefix. It discards output
// unless debugging is enabled.
func (s *Sinks) Debug(prefix string) *log.Logger {
	if !s.debug {
		return log.New(io.Discard, prefix, 0)
	}
	return log.New(s.out, prefix+"DEBUG ", log.LstdFlags|log.Lmicroseconds)
}

// Enabled reports whether debug output is on.
func (s *Sinks) Enabled() bool {
	return s.debug
}

// Close closes the log file, if any.
func (s *Sinks) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
