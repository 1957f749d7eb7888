package scratch

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLifecycle(t *testing.T) {
	fs := afero.NewMemMapFs()

	d, err := New(fs, "/work")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.Root(), "/work/hlsladder-"))
	assert.Equal(t, filepath.Join(d.Root(), "x.mp4"), d.Path("x.mp4"))
	assert.Contains(t, d.Root(), d.ID())

	p, err := d.WriteText("overlay-1.txt", "720p 2800kbps")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	assert.Equal(t, "720p 2800kbps", string(data))

	require.NoError(t, d.Cleanup())
	exists, err := afero.DirExists(fs, d.Root())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewIsUnique(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := New(fs, "/work")
	require.NoError(t, err)
	b, err := New(fs, "/work")
	require.NoError(t, err)
	assert.NotEqual(t, a.Root(), b.Root())
}
