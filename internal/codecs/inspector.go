package codecs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// ErrInspectorUnavailable means the box inspector could not be started.
// It is not a parse failure.
var ErrInspectorUnavailable = errors.New("box inspector unavailable")

// Inspector dumps the box tree of an MP4 file as text.
type Inspector interface {
	Dump(ctx context.Context, path string) ([]byte, error)
}

// Mp4Dump runs Bento4's mp4dump.
type Mp4Dump struct {
	// Path is the executable; "mp4dump" when empty.
	Path string
}

// Dump returns mp4dump's text output for path.
func (m Mp4Dump) Dump(ctx context.Context, path string) ([]byte, error) {
	bin := m.Path
	if bin == "" {
		bin = "mp4dump"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInspectorUnavailable, err)
		}
		return nil, fmt.Errorf("mp4dump %s: %w: %s", path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// Extractor resolves codec strings for probe clips. Once the inspector
// turns out to be unavailable every later call fails fast with an
// InspectorUnavailable failure wrapping ErrInspectorUnavailable.
type Extractor struct {
	inspector   Inspector
	logger      *slog.Logger
	unavailable bool
}

// NewExtractor creates an extractor backed by inspector.
func NewExtractor(inspector Inspector, logger *slog.Logger) *Extractor {
	return &Extractor{inspector: inspector, logger: logger}
}

// Unavailable reports whether the inspector has been found missing.
func (e *Extractor) Unavailable() bool {
	return e.unavailable
}

// Extract returns the comma-joined codec strings of the clip at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if e.unavailable {
		return "", failure.New(failure.InspectorUnavailable, "inspect "+path, ErrInspectorUnavailable)
	}

	out, err := e.inspector.Dump(ctx, path)
	if err != nil {
		if errors.Is(err, ErrInspectorUnavailable) {
			e.unavailable = true
			err = failure.New(failure.InspectorUnavailable, "inspect "+path, err)
			e.logger.Warn("box inspector unavailable, CODECS will be omitted from the master playlist",
				"kind", failure.KindOf(err), "error", err)
			return "", err
		}
		return "", err
	}

	root, err := ParseDump(bytes.NewReader(out))
	if err != nil {
		return "", err
	}
	codecs, err := FromDump(root)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	e.logger.Debug("extracted codecs", "clip", path, "codecs", codecs)
	return codecs, nil
}
