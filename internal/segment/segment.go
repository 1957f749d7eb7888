// Package segment defines data structures for HLS media segments.
package segment

// Segment represents a single segment listed in a media playlist.
type Segment struct {
	// URI is the segment reference as written in the playlist
	URI string

	// Duration is the segment duration in seconds
	Duration float64

	// Sequence is the position in the playlist
	Sequence int
}
