// Package config holds the run configuration and loads it from flags,
// environment and config files.
package config

import (
	"path/filepath"
	"strings"

	"github.com/agleyzer/hlsladder/internal/failure"
	"github.com/agleyzer/hlsladder/internal/ffmpeg"
	"github.com/agleyzer/hlsladder/internal/ladder"
	"github.com/agleyzer/hlsladder/internal/plan"
	"github.com/agleyzer/hlsladder/internal/poster"
)

// Config is everything one run needs.
type Config struct {
	Input string

	Video  VideoConfig
	Audio  AudioConfig
	HLS    HLSConfig
	MP4    MP4Config
	Poster PosterConfig
	Output OutputConfig
	Tools  ToolsConfig

	ScratchDir string
	DryRun     bool
	Verbose    bool
	LogFile    string
}

// VideoConfig holds the per-rendition lists. Shorter lists are extended
// with their last value.
type VideoConfig struct {
	Widths      []int
	Bitrates    []int // kbps
	Codecs      []string
	Profiles    []string // name[@level]
	Names       []string
	AspectRatio string
	Overlay     string
}

// AudioConfig applies to every output.
type AudioConfig struct {
	Codec        string
	Profile      string
	Bitrate      int // kbps
	SamplingRate int
	Channels     int
}

type HLSConfig struct {
	Time           int // seconds
	SegmentType    string
	SegmentName    string
	SegmentPrefix  string
	MasterPlaylist string
	MasterPrefix   string
}

// MP4Config describes the progressive fallback. Zero values inherit from
// the first encoded rendition.
type MP4Config struct {
	Enabled  bool
	Filename string
	Width    int
	Bitrate  int
	Codec    string
	Profile  string
}

type PosterConfig struct {
	Enabled  bool
	Filename string
	Seek     string
	Quality  int
	Width    int
}

type OutputConfig struct {
	Directory string
	Overwrite bool
}

type ToolsConfig struct {
	FFmpeg  string
	FFprobe string
	Mp4Dump string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Video: VideoConfig{
			Widths:      []int{1920, 1280, 854, 640, 426},
			Bitrates:    []int{5000, 2800, 1400, 800, 400},
			Codecs:      []string{"h264"},
			Profiles:    []string{"high@4.0", "main@3.1", "main@3.1", "baseline@3.0", "baseline@3.0"},
			Names:       []string{},
			AspectRatio: "16:9",
		},
		Audio: AudioConfig{
			Codec:        "aac",
			Profile:      "aac_low",
			Bitrate:      96,
			SamplingRate: 44100,
			Channels:     2,
		},
		HLS: HLSConfig{
			Time:           6,
			SegmentType:    string(plan.SegmentMPEGTS),
			SegmentName:    "{resolution}p",
			MasterPlaylist: "index.m3u8",
		},
		MP4: MP4Config{
			Enabled:  true,
			Filename: "progressive.mp4",
		},
		Poster: PosterConfig{
			Enabled:  true,
			Filename: "poster.jpg",
			Seek:     "5%",
			Quality:  85,
		},
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			Mp4Dump: "mp4dump",
		},
	}
}

// OutputDir returns the configured output directory, defaulting to the
// input file name without its extension.
func (c Config) OutputDir() string {
	if c.Output.Directory != "" {
		return c.Output.Directory
	}
	base := filepath.Base(c.Input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LadderOptions converts the video lists for ladder.Normalize.
func (c Config) LadderOptions() (ladder.Options, error) {
	ar, err := ladder.ParseAspectRatio(c.Video.AspectRatio)
	if err != nil {
		return ladder.Options{}, err
	}
	return ladder.Options{
		Widths:      c.Video.Widths,
		Bitrates:    c.Video.Bitrates,
		Codecs:      c.Video.Codecs,
		Profiles:    c.Video.Profiles,
		Names:       c.Video.Names,
		AspectRatio: ar,
	}, nil
}

// PlanOptions compiles the naming and overlay templates.
func (c Config) PlanOptions() (plan.Options, error) {
	name, err := ladder.ParseTemplate(c.HLS.SegmentName, ladder.FilenameFields)
	if err != nil {
		return plan.Options{}, err
	}
	var overlay *ladder.Template
	if c.Video.Overlay != "" {
		overlay, err = ladder.ParseTemplate(c.Video.Overlay, ladder.OverlayFields)
		if err != nil {
			return plan.Options{}, err
		}
	}
	return plan.Options{
		HLSTime:     c.HLS.Time,
		SegmentType: plan.SegmentType(c.HLS.SegmentType),
		SegmentName: name,
		Overlay:     overlay,
	}, nil
}

func (c Config) AudioOptions() ffmpeg.AudioOptions {
	return ffmpeg.AudioOptions{
		Codec:       c.Audio.Codec,
		Profile:     c.Audio.Profile,
		BitrateKbps: c.Audio.Bitrate,
		SampleRate:  c.Audio.SamplingRate,
		Channels:    c.Audio.Channels,
	}
}

func (c Config) MP4Options() (ffmpeg.MP4Options, error) {
	opts := ffmpeg.MP4Options{
		Enabled:     c.MP4.Enabled,
		Filename:    c.MP4.Filename,
		Width:       c.MP4.Width,
		BitrateKbps: c.MP4.Bitrate,
		Codec:       c.MP4.Codec,
	}
	if c.MP4.Profile != "" {
		p, err := ladder.ParseProfile(c.MP4.Profile)
		if err != nil {
			return ffmpeg.MP4Options{}, err
		}
		opts.Profile = p
	}
	return opts, nil
}

func (c Config) PosterSeek() (poster.Seek, error) {
	return poster.ParseSeek(c.Poster.Seek)
}

// Validate reports the first configuration problem as a Configuration
// failure.
func (c Config) Validate() error {
	if c.Input == "" {
		return failure.Configf("no input file given")
	}
	if _, err := c.LadderOptions(); err != nil {
		return err
	}
	po, err := c.PlanOptions()
	if err != nil {
		return err
	}
	if c.HLS.Time <= 0 {
		return failure.Configf("hls time must be positive, got %d", c.HLS.Time)
	}
	if !po.SegmentType.Valid() {
		return failure.Configf("unknown hls segment type %q (want %s or %s)",
			c.HLS.SegmentType, plan.SegmentMPEGTS, plan.SegmentFMP4)
	}
	if c.HLS.MasterPlaylist == "" {
		return failure.Configf("master playlist name is empty")
	}
	if c.Audio.Codec == "" {
		return failure.Configf("audio codec is empty")
	}
	if c.Audio.Bitrate <= 0 {
		return failure.Configf("audio bitrate must be positive, got %d", c.Audio.Bitrate)
	}
	if c.Audio.SamplingRate < 0 || c.Audio.Channels < 0 {
		return failure.Configf("audio sampling rate and channels must not be negative")
	}
	if c.MP4.Enabled {
		if c.MP4.Filename == "" {
			return failure.Configf("mp4 filename is empty")
		}
		if c.MP4.Width < 0 || c.MP4.Bitrate < 0 {
			return failure.Configf("mp4 width and bitrate must not be negative")
		}
		if _, err := c.MP4Options(); err != nil {
			return err
		}
	}
	if c.Poster.Enabled {
		if c.Poster.Filename == "" {
			return failure.Configf("poster filename is empty")
		}
		if c.Poster.Quality < 1 || c.Poster.Quality > 100 {
			return failure.Configf("poster quality must be within 1..100, got %d", c.Poster.Quality)
		}
		if c.Poster.Width < 0 {
			return failure.Configf("poster width must not be negative")
		}
		if _, err := c.PosterSeek(); err != nil {
			return err
		}
	}
	if c.Tools.FFmpeg == "" || c.Tools.FFprobe == "" {
		return failure.Configf("ffmpeg and ffprobe paths must be set")
	}
	return nil
}
