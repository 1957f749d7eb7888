// Package scratch manages the per-run directory for intermediate files.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Dir is a scratch directory unique to one run.
type Dir struct {
	fs   afero.Fs
	root string
	id   string
}

// New creates a fresh scratch directory below parent, or below the system
// temp directory when parent is empty.
func New(fs afero.Fs, parent string) (*Dir, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	id := uuid.NewString()
	root := filepath.Join(parent, "hlsladder-"+id)
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Dir{fs: fs, root: root, id: id}, nil
}

// ID returns the run identifier embedded in the directory name.
func (d *Dir) ID() string { return d.id }

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Path returns the path of name inside the directory.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// WriteText writes text to name and returns its path.
func (d *Dir) WriteText(name, text string) (string, error) {
	p := d.Path(name)
	if err := afero.WriteFile(d.fs, p, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write scratch file %s: %w", name, err)
	}
	return p, nil
}

// Cleanup removes the directory and everything in it.
func (d *Dir) Cleanup() error {
	return d.fs.RemoveAll(d.root)
}
