// Package plan reconciles the normalized renditions with the probed source
// and decides what gets encoded and under which file names.
package plan

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/agleyzer/hlsladder/internal/failure"
	"github.com/agleyzer/hlsladder/internal/ladder"
	"github.com/agleyzer/hlsladder/internal/probe"
)

// SegmentType selects the HLS segment container.
type SegmentType string

const (
	SegmentMPEGTS SegmentType = "mpegts"
	SegmentFMP4   SegmentType = "fmp4"
)

// Extension returns the segment file extension.
func (s SegmentType) Extension() string {
	if s == SegmentFMP4 {
		return ".m4s"
	}
	return ".ts"
}

// NeedsInit reports whether segments need a separate initialization segment.
func (s SegmentType) NeedsInit() bool {
	return s == SegmentFMP4
}

// Valid reports whether s is a known segment type.
func (s SegmentType) Valid() bool {
	return s == SegmentMPEGTS || s == SegmentFMP4
}

// Options controls naming and segmenting of the plan.
type Options struct {
	HLSTime     int // segment duration, seconds
	SegmentType SegmentType
	// SegmentName renders the per-rendition base file name.
	SegmentName *ladder.Template
	// Overlay renders burned-in text; nil or empty disables the overlay.
	Overlay *ladder.Template
}

// Entry is one rendition that will be encoded.
type Entry struct {
	ladder.Rendition

	// Height is the scaled pixel height: Width*srcHeight/srcWidth.
	Height int

	BaseName       string
	PlaylistName   string
	SegmentPattern string // ffmpeg sequence pattern, e.g. "720p_%05d.ts"
	InitName       string // empty unless fmp4
	ProbeClipName  string
	OverlayText    string
}

// Plan is the ordered list of renditions that survived the upscale guard.
type Plan struct {
	Source           *probe.SourceMedia
	Entries          []Entry
	Skipped          []ladder.Rendition
	KeyframeInterval int
	HLSTime          int
	SegmentType      SegmentType
}

// KeyframeInterval returns floor(frameRate*hlsTime), at least 1.
func KeyframeInterval(frameRate float64, hlsTime int) int {
	k := int(math.Floor(frameRate * float64(hlsTime)))
	if k < 1 {
		return 1
	}
	return k
}

// Upscales reports whether encoding width would enlarge the source. The
// rendition must be both wider than the source and taller once scaled.
func Upscales(width, srcWidth, srcHeight int) bool {
	// srcHeight*width/srcWidth > srcHeight without truncating the quotient
	return width > srcWidth && srcHeight*width > srcHeight*srcWidth
}

// Resolve builds the plan. Renditions that would upscale are skipped and
// logged; the rest keep their original index and order.
func Resolve(renditions []ladder.Rendition, source *probe.SourceMedia, opts Options, logger *slog.Logger) (*Plan, error) {
	if source == nil || source.Video == nil {
		return nil, failure.New(failure.NoVideoTrack, "resolve plan", fmt.Errorf("source has no video stream"))
	}
	video := source.Video
	if video.Width <= 0 || video.Height <= 0 {
		return nil, failure.New(failure.NoVideoTrack, "resolve plan",
			fmt.Errorf("video stream %d has no usable dimensions (%dx%d)", video.Index, video.Width, video.Height))
	}
	if opts.HLSTime <= 0 {
		return nil, failure.Configf("hls segment duration must be positive, got %d", opts.HLSTime)
	}
	if !opts.SegmentType.Valid() {
		return nil, failure.Configf("unknown hls segment type %q", opts.SegmentType)
	}
	if opts.SegmentName.Empty() {
		return nil, failure.Configf("hls segment name template is empty")
	}

	p := &Plan{
		Source:           source,
		KeyframeInterval: KeyframeInterval(video.FrameRate(), opts.HLSTime),
		HLSTime:          opts.HLSTime,
		SegmentType:      opts.SegmentType,
	}

	seen := make(map[string]int)
	for _, r := range renditions {
		if Upscales(r.Width, video.Width, video.Height) {
			logger.Warn("skipping rendition that would upscale the source",
				"index", r.Index,
				"name", r.Name,
				"width", r.Width,
				"sourceWidth", video.Width,
				"sourceHeight", video.Height,
			)
			p.Skipped = append(p.Skipped, r)
			continue
		}

		fields := r.Fields()
		base := opts.SegmentName.Render(fields)
		if base == "" {
			return nil, failure.Configf("rendition %d: segment name template %q renders empty", r.Index, opts.SegmentName)
		}
		if prev, dup := seen[base]; dup {
			return nil, failure.Configf("renditions %d and %d both render file name %q; add {index} or {bitrate} to the segment name template",
				prev, r.Index, base)
		}
		seen[base] = r.Index

		e := Entry{
			Rendition:      r,
			Height:         r.Width * video.Height / video.Width,
			BaseName:       base,
			PlaylistName:   base + ".m3u8",
			SegmentPattern: base + "_%05d" + opts.SegmentType.Extension(),
			ProbeClipName:  base + "_probe.mp4",
		}
		if opts.SegmentType.NeedsInit() {
			e.InitName = base + "_init.mp4"
		}
		if !opts.Overlay.Empty() {
			e.OverlayText = opts.Overlay.Render(fields)
		}

		p.Entries = append(p.Entries, e)
	}

	if len(p.Entries) == 0 {
		return nil, failure.Configf("no rendition fits the %dx%d source without upscaling", video.Width, video.Height)
	}

	logger.Debug("resolved rendition plan",
		"renditions", len(p.Entries),
		"skipped", len(p.Skipped),
		"keyframeInterval", p.KeyframeInterval,
	)

	return p, nil
}
