// Package logging builds the process logger and the bridge that feeds
// encoder output into it.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	// Verbose lowers the level to Debug and enables tool output.
	Verbose bool
	// File, when set, also receives every record through a rotating log.
	File string
	// Output is the console writer; os.Stderr when nil.
	Output io.Writer
}

// Logging owns the logger and its outputs.
type Logging struct {
	Logger *slog.Logger

	out     io.Writer
	file    *lumberjack.Logger
	verbose bool
}

// New sets up the logger.
func New(opts Options) *Logging {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := &Logging{verbose: opts.Verbose}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		}
		out = io.MultiWriter(out, l.file)
	}
	l.out = out

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}

	l.Logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	return l
}

// ToolWriter returns a writer that turns each line written by an external
// tool into a log record, inferring the level from prefixes such as
// "[WARN]". It returns nil unless verbose logging is on.
func (l *Logging) ToolWriter(name string) io.Writer {
	if !l.verbose {
		return nil
	}
	return newToolLogger(name, l.out).StandardWriter(&hclog.StandardLoggerOptions{
		InferLevels: true,
	})
}

// Close flushes and closes the rotating log file, if any.
func (l *Logging) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// newToolLogger creates an hclog.Logger for subprocess output.
func newToolLogger(name string, out io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.Debug,
		Output: out,
	})
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
