// Package parser reads back the HLS playlists produced by an encode.
package parser

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/spf13/afero"

	"github.com/agleyzer/hlsladder/internal/segment"
	"github.com/agleyzer/hlsladder/internal/variant"
)

// MediaInfo contains the parsed media playlist information.
type MediaInfo struct {
	Segments []segment.Segment

	// TargetDuration is the maximum segment duration in seconds
	TargetDuration int

	// VOD is set for EXT-X-PLAYLIST-TYPE:VOD
	VOD bool

	// Closed is set when the playlist carries EXT-X-ENDLIST
	Closed bool

	// InitSegment is the EXT-X-MAP URI; empty for MPEG-TS playlists
	InitSegment string
}

// TotalDuration returns the sum of all segment durations.
func (m *MediaInfo) TotalDuration() float64 {
	var total float64
	for _, seg := range m.Segments {
		total += seg.Duration
	}
	return total
}

// Verify checks that the playlist is a finished VOD playlist with media.
func (m *MediaInfo) Verify() error {
	if !m.VOD {
		return fmt.Errorf("playlist type is not VOD")
	}
	if !m.Closed {
		return fmt.Errorf("playlist has no EXT-X-ENDLIST")
	}
	if len(m.Segments) == 0 {
		return fmt.Errorf("playlist contains no segments")
	}
	return nil
}

// ParseMedia parses a media playlist.
func ParseMedia(r io.Reader) (*MediaInfo, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected media playlist, got master playlist")
	}

	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	info := &MediaInfo{
		VOD:    mediaPlaylist.MediaType == m3u8.VOD,
		Closed: mediaPlaylist.Closed,
	}
	if mediaPlaylist.Map != nil {
		info.InitSegment = mediaPlaylist.Map.URI
	}

	maxDuration := 0.0
	for i, seg := range mediaPlaylist.Segments {
		if seg == nil {
			break
		}
		if info.InitSegment == "" && seg.Map != nil {
			info.InitSegment = seg.Map.URI
		}

		info.Segments = append(info.Segments, segment.Segment{
			URI:      seg.URI,
			Duration: seg.Duration,
			Sequence: i,
		})
		if seg.Duration > maxDuration {
			maxDuration = seg.Duration
		}
	}

	info.TargetDuration = int(math.Ceil(float64(mediaPlaylist.TargetDuration)))
	if info.TargetDuration == 0 && len(info.Segments) > 0 {
		// If target duration is not set, use the max segment duration
		info.TargetDuration = int(maxDuration) + 1
	}

	return info, nil
}

// ParseMediaFile parses the media playlist at name on fs.
func ParseMediaFile(fs afero.Fs, name string) (*MediaInfo, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	return ParseMedia(f)
}

// ParseMaster parses a master playlist into its variant streams.
func ParseMaster(r io.Reader) ([]variant.Variant, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	if listType != m3u8.MASTER {
		return nil, fmt.Errorf("expected master playlist, got media playlist")
	}

	masterPlaylist, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	if len(masterPlaylist.Variants) == 0 {
		return nil, fmt.Errorf("master playlist contains no variants")
	}

	var variants []variant.Variant
	for i, v := range masterPlaylist.Variants {
		if v == nil {
			continue
		}

		width, height, err := parseResolution(v.Resolution)
		if err != nil {
			return nil, fmt.Errorf("variant %d: %w", i, err)
		}

		variants = append(variants, variant.Variant{
			Bandwidth: int(v.Bandwidth),
			Width:     width,
			Height:    height,
			Codecs:    v.Codecs,
			FrameRate: v.FrameRate,
			Name:      v.Name,
			URI:       v.URI,
		})
	}

	return variants, nil
}

// ParseMasterFile parses the master playlist at name on fs.
func ParseMasterFile(fs afero.Fs, name string) ([]variant.Variant, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	return ParseMaster(f)
}

// MissingFiles returns the local segment and init references of info that
// do not exist next to the playlist at playlistPath. Absolute URLs are
// not checked.
func MissingFiles(fs afero.Fs, playlistPath string, info *MediaInfo) ([]string, error) {
	refs := make([]string, 0, len(info.Segments)+1)
	if info.InitSegment != "" {
		refs = append(refs, info.InitSegment)
	}
	for _, seg := range info.Segments {
		refs = append(refs, seg.URI)
	}

	dir := filepath.Dir(playlistPath)
	var missing []string
	for _, ref := range refs {
		local, ok, err := localPath(dir, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		exists, err := afero.Exists(fs, local)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", local, err)
		}
		if !exists {
			missing = append(missing, ref)
		}
	}
	return missing, nil
}

// localPath resolves a relative reference against dir. ok is false for
// references carrying a scheme or host.
func localPath(dir, ref string) (string, bool, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false, fmt.Errorf("invalid segment reference %q: %w", ref, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", false, nil
	}
	if strings.HasPrefix(u.Path, "/") {
		return "", false, nil
	}
	return filepath.Join(dir, filepath.FromSlash(u.Path)), true, nil
}

func parseResolution(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid resolution %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	return width, height, nil
}
