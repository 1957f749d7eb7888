// Package ffmpeg synthesizes ffmpeg argument vectors for the single
// multi-output HLS encode and the poster grab, and runs them.
package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agleyzer/hlsladder/internal/ladder"
	"github.com/agleyzer/hlsladder/internal/plan"
)

// AudioOptions is the one audio configuration shared by every output.
type AudioOptions struct {
	Codec       string
	Profile     string
	BitrateKbps int
	SampleRate  int // 0 keeps the source rate
	Channels    int // 0 keeps the source layout
}

// MP4Options describes the progressive MP4 fallback. Zero-valued video
// fields inherit from the first plan entry.
type MP4Options struct {
	Enabled     bool
	Filename    string
	Width       int
	BitrateKbps int
	Codec       string
	Profile     ladder.Profile
}

// TranscodeJob is everything BuildTranscode needs.
type TranscodeJob struct {
	Input      string
	OutputDir  string
	ScratchDir string
	Plan       *plan.Plan
	Audio      AudioOptions
	MP4        MP4Options
	// SegmentPrefix is written as -hls_base_url in front of segment URIs.
	SegmentPrefix string
	// OverlayFiles maps a rendition index to its rendered overlay text file.
	OverlayFiles map[int]string
	Verbose      bool
}

// BuildTranscode returns the argument vector (without the executable) for
// one ffmpeg run producing the MP4 fallback, every HLS rendition and one
// single-frame probe clip per rendition, in that order.
func BuildTranscode(job TranscodeJob) ([]string, error) {
	if job.Plan == nil || len(job.Plan.Entries) == 0 {
		return nil, fmt.Errorf("empty rendition plan")
	}
	if job.Input == "" {
		return nil, fmt.Errorf("missing input path")
	}
	src := job.Plan.Source
	if src == nil || src.Video == nil {
		return nil, fmt.Errorf("plan has no source video stream")
	}

	args := make([]string, 0, 64+48*len(job.Plan.Entries))

	// --- Global options and input ---
	args = append(args, preamble(job.Verbose)...)
	args = append(args, "-i", job.Input)

	maps := []string{"-map", "0:" + strconv.Itoa(src.Video.Index)}
	var audio []string
	if src.HasAudio() {
		maps = append(maps, "-map", "0:"+strconv.Itoa(src.Audio.Index))
		audio = audioArgs(job.Audio)
	}
	keyint := job.Plan.KeyframeInterval

	// --- Progressive MP4 ---
	if job.MP4.Enabled {
		mp4 := resolveMP4(job.MP4, job.Plan.Entries[0])
		args = append(args, maps...)
		args = append(args, "-filter:v", filterChain(mp4.Width, ""))
		args = append(args, videoArgs(mp4.Codec, mp4.Profile, mp4.BitrateKbps, keyint)...)
		args = append(args, audio...)
		args = append(args, "-movflags", "+faststart", "-f", "mp4", filepath.Join(job.OutputDir, mp4.Filename))
	}

	// --- HLS renditions ---
	for _, e := range job.Plan.Entries {
		args = append(args, maps...)
		args = append(args, "-filter:v", filterChain(e.Width, job.OverlayFiles[e.Index]))
		args = append(args, videoArgs(e.Codec, e.Profile, e.BitrateKbps, keyint)...)
		args = append(args, audio...)
		args = append(args, hlsArgs(job, e)...)
		args = append(args, filepath.Join(job.OutputDir, e.PlaylistName))
	}

	// --- Probe clips ---
	for _, e := range job.Plan.Entries {
		args = append(args, maps...)
		args = append(args, "-filter:v", filterChain(e.Width, job.OverlayFiles[e.Index]))
		args = append(args, videoArgs(e.Codec, e.Profile, e.BitrateKbps, keyint)...)
		args = append(args, audio...)
		args = append(args, "-frames:v", "1")
		if src.HasAudio() {
			args = append(args, "-frames:a", "1")
		}
		args = append(args, "-f", "mp4", filepath.Join(job.ScratchDir, e.ProbeClipName))
	}

	return args, nil
}

// PosterJob describes a single-frame grab from the source.
type PosterJob struct {
	Input      string
	VideoIndex int
	Offset     float64 // seconds
	Output     string
}

// BuildPoster returns the argument vector for extracting one frame as an image.
func BuildPoster(job PosterJob) []string {
	args := preamble(false)
	args = append(args,
		"-ss", strconv.FormatFloat(job.Offset, 'f', 3, 64),
		"-i", job.Input,
		"-map", "0:"+strconv.Itoa(job.VideoIndex),
		"-frames:v", "1",
		"-update", "1",
		"-f", "image2",
		job.Output,
	)
	return args
}

func preamble(verbose bool) []string {
	level := "error"
	if verbose {
		level = "info"
	}
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", level}
}

// videoArgs returns codec, profile and constrained bitrate settings with a
// closed GOP of keyint frames.
func videoArgs(codec string, profile ladder.Profile, kbps, keyint int) []string {
	args := []string{"-c:v", codec}
	if profile.Name != "" {
		args = append(args, "-profile:v", profile.Name)
	}
	if profile.Level != "" {
		args = append(args, "-level:v", profile.Level)
	}
	args = append(args,
		"-b:v", kbpsArg(kbps),
		"-maxrate", kbpsArg(kbps),
		"-bufsize", kbpsArg(kbps*3/2),
		"-g", strconv.Itoa(keyint),
		"-keyint_min", strconv.Itoa(keyint),
		"-sc_threshold", "0",
	)
	return args
}

func audioArgs(a AudioOptions) []string {
	args := []string{"-c:a", a.Codec}
	if a.Profile != "" {
		args = append(args, "-profile:a", a.Profile)
	}
	args = append(args, "-b:a", kbpsArg(a.BitrateKbps))
	if a.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(a.SampleRate))
	}
	if a.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(a.Channels))
	}
	return args
}

func hlsArgs(job TranscodeJob, e plan.Entry) []string {
	p := job.Plan
	args := []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.HLSTime),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_type", string(p.SegmentType),
	}
	if p.SegmentType.NeedsInit() {
		args = append(args, "-hls_fmp4_init_filename", e.InitName)
	}
	if job.SegmentPrefix != "" {
		args = append(args, "-hls_base_url", job.SegmentPrefix)
	}
	args = append(args, "-hls_segment_filename", filepath.Join(job.OutputDir, e.SegmentPattern))
	return args
}

// filterChain scales to width with an even, aspect-preserving height and
// normalizes the pixel format. An overlay is drawn first, on the source frame.
func filterChain(width int, overlayFile string) string {
	filters := make([]string, 0, 3)
	if overlayFile != "" {
		filters = append(filters, drawText(overlayFile))
	}
	filters = append(filters,
		fmt.Sprintf("scale=w=%d:h=-2", width),
		"format=yuv420p",
	)
	return strings.Join(filters, ",")
}

func drawText(textFile string) string {
	return "drawtext=textfile=" + quoteFilterValue(textFile) +
		":fontcolor=white:fontsize=h/12:box=1:boxcolor=black@0.5:boxborderw=10" +
		":x=(w-text_w)/2:y=h-text_h-h/20"
}

// quoteFilterValue single-quotes v for a filtergraph option value.
func quoteFilterValue(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func resolveMP4(o MP4Options, first plan.Entry) MP4Options {
	if o.Width <= 0 {
		o.Width = first.Width
	}
	if o.BitrateKbps <= 0 {
		o.BitrateKbps = first.BitrateKbps
	}
	if o.Codec == "" {
		o.Codec = first.Codec
	}
	if o.Profile.Name == "" {
		o.Profile = first.Profile
	}
	return o
}

func kbpsArg(kbps int) string {
	return strconv.Itoa(kbps) + "k"
}
