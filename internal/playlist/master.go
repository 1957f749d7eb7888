// Package playlist writes the HLS master playlist.
package playlist

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/agleyzer/hlsladder/internal/variant"
)

// GenerateMaster creates an HLS master playlist listing variants in order.
// The output depends only on its input.
func GenerateMaster(variants []variant.Variant) (string, error) {
	if len(variants) == 0 {
		return "", fmt.Errorf("cannot create master playlist with zero variants")
	}

	var b strings.Builder

	// HLS master playlist header
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	for i, v := range variants {
		if v.URI == "" {
			return "", fmt.Errorf("variant %d has no playlist URI", i)
		}

		b.WriteString("#EXT-X-STREAM-INF:")
		b.WriteString(fmt.Sprintf("BANDWIDTH=%d", v.Bandwidth))
		b.WriteString(fmt.Sprintf(",RESOLUTION=%s", v.Resolution()))

		if v.Codecs != "" {
			b.WriteString(fmt.Sprintf(",CODECS=\"%s\"", v.Codecs))
		}

		b.WriteString(fmt.Sprintf(",FRAME-RATE=%.3f", v.FrameRate))
		b.WriteString(fmt.Sprintf(",NAME=\"%s\"", quotedStringSafe(v.Name)))
		b.WriteString("\n")

		b.WriteString(v.URI)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// WriteMaster renders the master playlist to w.
func WriteMaster(w io.Writer, variants []variant.Variant) error {
	content, err := GenerateMaster(variants)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, content)
	return err
}

// WriteMasterFile atomically creates or replaces the master playlist at path.
func WriteMasterFile(path string, variants []variant.Variant) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending master playlist: %w", err)
	}
	defer pendingFile.Cleanup() //nolint:errcheck // no-op after a successful replace

	if err := WriteMaster(pendingFile, variants); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace master playlist: %w", err)
	}

	return nil
}

// quotedStringSafe strips characters a quoted-string attribute cannot hold.
func quotedStringSafe(s string) string {
	return strings.NewReplacer("\"", "'", "\n", " ", "\r", " ").Replace(s)
}
