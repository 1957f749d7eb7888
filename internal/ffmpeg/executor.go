package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes one ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// ExecRunner runs the ffmpeg executable.
type ExecRunner struct {
	// Path is the ffmpeg executable; "ffmpeg" when empty.
	Path string
	// Log, when set, receives stderr as it is produced.
	Log io.Writer
}

// Run executes ffmpeg with args and waits for it to exit. A non-zero exit
// yields an *EncodeError with the captured output.
func (r ExecRunner) Run(ctx context.Context, args []string) error {
	bin := r.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if r.Log != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.Log)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &EncodeError{
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}
	return fmt.Errorf("run %s: %w", bin, err)
}

// EncodeError reports a non-zero ffmpeg exit.
type EncodeError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

const errorTailLines = 10

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with status %d", e.ExitCode)
	if tail := lastLines(e.Stderr, errorTailLines); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
