// Package variant defines the variant streams listed in a master playlist.
package variant

import (
	"fmt"

	"github.com/agleyzer/hlsladder/internal/plan"
)

// Variant represents a single variant stream in an HLS master playlist.
type Variant struct {
	// Bandwidth is the peak bitrate in bits per second
	Bandwidth int

	// Width and Height are the encoded pixel dimensions
	Width  int
	Height int

	// Codecs is the RFC 6381 codec list (e.g. "avc1.640028,mp4a.40.2").
	// Empty when it could not be determined.
	Codecs string

	// FrameRate is the video frame rate in frames per second
	FrameRate float64

	// Name is the human readable rendition name
	Name string

	// URI is the media playlist reference, relative to the master playlist
	// unless a prefix was configured
	URI string
}

// FromEntry builds the variant for an encoded plan entry. uriPrefix is
// prepended to the entry's playlist name.
func FromEntry(e plan.Entry, frameRate float64, codecs, uriPrefix string) Variant {
	return Variant{
		Bandwidth: e.BitrateKbps * 1000,
		Width:     e.Width,
		Height:    e.Height,
		Codecs:    codecs,
		FrameRate: frameRate,
		Name:      e.Name,
		URI:       uriPrefix + e.PlaylistName,
	}
}

// Resolution returns the RESOLUTION attribute value, e.g. "1280x720".
func (v Variant) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}
