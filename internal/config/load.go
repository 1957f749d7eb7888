package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// EnvPrefix prefixes every environment variable, e.g. HLSLADDER_HLS_TIME.
const EnvPrefix = "HLSLADDER"

type flagDef struct {
	key   string
	name  string
	value any
	usage string
}

func flagDefs(d Config) []flagDef {
	return []flagDef{
		{"video.widths", "video-widths", d.Video.Widths, "rendition widths in pixels"},
		{"video.bitrates", "video-bitrates", d.Video.Bitrates, "rendition video bitrates in kbps"},
		{"video.codecs", "video-codecs", d.Video.Codecs, "rendition video encoders"},
		{"video.profiles", "video-profiles", d.Video.Profiles, "rendition profiles as name[@level]"},
		{"video.names", "video-names", d.Video.Names, "rendition display names (default {resolution}p)"},
		{"video.aspect-ratio", "video-aspect-ratio", d.Video.AspectRatio, "aspect ratio W:H used to name resolutions"},
		{"video.overlay", "video-overlay", d.Video.Overlay, "burned-in text template, e.g. \"{name} {bitrate}kbps\""},

		{"audio.codec", "audio-codec", d.Audio.Codec, "audio encoder"},
		{"audio.profile", "audio-profile", d.Audio.Profile, "audio encoder profile"},
		{"audio.bitrate", "audio-bitrate", d.Audio.Bitrate, "audio bitrate in kbps"},
		{"audio.sampling-rate", "audio-sampling-rate", d.Audio.SamplingRate, "audio sampling rate in Hz (0 keeps the source)"},
		{"audio.channels", "audio-channels", d.Audio.Channels, "audio channel count (0 keeps the source)"},

		{"hls.time", "hls-time", d.HLS.Time, "segment duration in seconds"},
		{"hls.segment-type", "hls-segment-type", d.HLS.SegmentType, "segment container: mpegts or fmp4"},
		{"hls.segment-name", "hls-segment-name", d.HLS.SegmentName, "per-rendition file name template"},
		{"hls.segment-prefix", "hls-segment-prefix", d.HLS.SegmentPrefix, "base URL prepended to segment references"},
		{"hls.master-playlist", "hls-master-playlist", d.HLS.MasterPlaylist, "master playlist file name"},
		{"hls.master-prefix", "hls-master-prefix", d.HLS.MasterPrefix, "prefix prepended to media playlist references"},

		{"mp4.enabled", "mp4", d.MP4.Enabled, "write a progressive MP4 fallback"},
		{"mp4.filename", "mp4-filename", d.MP4.Filename, "progressive MP4 file name"},
		{"mp4.width", "mp4-width", d.MP4.Width, "progressive MP4 width (0 uses the first rendition)"},
		{"mp4.bitrate", "mp4-bitrate", d.MP4.Bitrate, "progressive MP4 video bitrate in kbps (0 uses the first rendition)"},
		{"mp4.codec", "mp4-codec", d.MP4.Codec, "progressive MP4 video encoder (empty uses the first rendition)"},
		{"mp4.profile", "mp4-profile", d.MP4.Profile, "progressive MP4 profile (empty uses the first rendition)"},

		{"poster.enabled", "poster", d.Poster.Enabled, "write a poster image"},
		{"poster.filename", "poster-filename", d.Poster.Filename, "poster file name"},
		{"poster.seek", "poster-seek", d.Poster.Seek, "poster time: N%, seconds or [hh:]mm:ss"},
		{"poster.quality", "poster-quality", d.Poster.Quality, "poster JPEG quality 1..100"},
		{"poster.width", "poster-width", d.Poster.Width, "poster width (0 keeps the frame size)"},

		{"output.directory", "output", d.Output.Directory, "output directory (default: input name without extension)"},
		{"output.overwrite", "overwrite", d.Output.Overwrite, "replace a non-empty output directory"},

		{"tools.ffmpeg", "ffmpeg", d.Tools.FFmpeg, "ffmpeg executable"},
		{"tools.ffprobe", "ffprobe", d.Tools.FFprobe, "ffprobe executable"},
		{"tools.mp4dump", "mp4dump", d.Tools.Mp4Dump, "mp4dump executable used for CODECS"},

		{"scratch-dir", "scratch-dir", d.ScratchDir, "parent directory for intermediate files"},
		{"dry-run", "dry-run", d.DryRun, "print the plan and ffmpeg arguments without encoding"},
	}
}

// AddFlags registers every configuration flag on fs with its default and
// binds it to its key in v.
func AddFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	for _, f := range flagDefs(Default()) {
		switch def := f.value.(type) {
		case []int:
			fs.IntSlice(f.name, def, f.usage)
		case []string:
			fs.StringSlice(f.name, def, f.usage)
		case string:
			fs.String(f.name, def, f.usage)
		case int:
			fs.Int(f.name, def, f.usage)
		case bool:
			fs.Bool(f.name, def, f.usage)
		default:
			return fmt.Errorf("flag %s: unsupported type %T", f.name, f.value)
		}
		if err := v.BindPFlag(f.key, fs.Lookup(f.name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.name, err)
		}
	}
	return nil
}

// ReadConfig wires environment lookups and reads the config file: path if
// set, otherwise .hlsladder.{yaml,json,toml} in the working directory or
// the home directory. A missing file is not an error.
func ReadConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".hlsladder")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return failure.New(failure.Configuration, "read config", err)
	}
	return nil
}

// Load builds a Config from v. Values come from flags, environment, the
// config file and defaults, in that order of precedence.
func Load(v *viper.Viper) (Config, error) {
	c := Default()
	var err error

	if c.Video.Widths, err = intList(v, "video.widths", c.Video.Widths); err != nil {
		return Config{}, err
	}
	if c.Video.Bitrates, err = intList(v, "video.bitrates", c.Video.Bitrates); err != nil {
		return Config{}, err
	}
	c.Video.Codecs = stringList(v, "video.codecs", c.Video.Codecs)
	c.Video.Profiles = stringList(v, "video.profiles", c.Video.Profiles)
	c.Video.Names = stringList(v, "video.names", c.Video.Names)
	c.Video.AspectRatio = stringValue(v, "video.aspect-ratio", c.Video.AspectRatio)
	c.Video.Overlay = stringValue(v, "video.overlay", c.Video.Overlay)

	c.Audio.Codec = stringValue(v, "audio.codec", c.Audio.Codec)
	c.Audio.Profile = stringValue(v, "audio.profile", c.Audio.Profile)
	c.Audio.Bitrate = intValue(v, "audio.bitrate", c.Audio.Bitrate)
	c.Audio.SamplingRate = intValue(v, "audio.sampling-rate", c.Audio.SamplingRate)
	c.Audio.Channels = intValue(v, "audio.channels", c.Audio.Channels)

	c.HLS.Time = intValue(v, "hls.time", c.HLS.Time)
	c.HLS.SegmentType = stringValue(v, "hls.segment-type", c.HLS.SegmentType)
	c.HLS.SegmentName = stringValue(v, "hls.segment-name", c.HLS.SegmentName)
	c.HLS.SegmentPrefix = stringValue(v, "hls.segment-prefix", c.HLS.SegmentPrefix)
	c.HLS.MasterPlaylist = stringValue(v, "hls.master-playlist", c.HLS.MasterPlaylist)
	c.HLS.MasterPrefix = stringValue(v, "hls.master-prefix", c.HLS.MasterPrefix)

	c.MP4.Enabled = boolValue(v, "mp4.enabled", c.MP4.Enabled)
	c.MP4.Filename = stringValue(v, "mp4.filename", c.MP4.Filename)
	c.MP4.Width = intValue(v, "mp4.width", c.MP4.Width)
	c.MP4.Bitrate = intValue(v, "mp4.bitrate", c.MP4.Bitrate)
	c.MP4.Codec = stringValue(v, "mp4.codec", c.MP4.Codec)
	c.MP4.Profile = stringValue(v, "mp4.profile", c.MP4.Profile)

	c.Poster.Enabled = boolValue(v, "poster.enabled", c.Poster.Enabled)
	c.Poster.Filename = stringValue(v, "poster.filename", c.Poster.Filename)
	c.Poster.Seek = stringValue(v, "poster.seek", c.Poster.Seek)
	c.Poster.Quality = intValue(v, "poster.quality", c.Poster.Quality)
	c.Poster.Width = intValue(v, "poster.width", c.Poster.Width)

	c.Output.Directory = stringValue(v, "output.directory", c.Output.Directory)
	c.Output.Overwrite = boolValue(v, "output.overwrite", c.Output.Overwrite)

	c.Tools.FFmpeg = stringValue(v, "tools.ffmpeg", c.Tools.FFmpeg)
	c.Tools.FFprobe = stringValue(v, "tools.ffprobe", c.Tools.FFprobe)
	c.Tools.Mp4Dump = stringValue(v, "tools.mp4dump", c.Tools.Mp4Dump)

	c.ScratchDir = stringValue(v, "scratch-dir", c.ScratchDir)
	c.DryRun = boolValue(v, "dry-run", c.DryRun)
	c.Verbose = boolValue(v, "verbose", c.Verbose)
	c.LogFile = stringValue(v, "log-file", c.LogFile)

	return c, nil
}

func stringValue(v *viper.Viper, key, def string) string {
	if !v.IsSet(key) {
		return def
	}
	return v.GetString(key)
}

func intValue(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	return v.GetInt(key)
}

func boolValue(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	return v.GetBool(key)
}

// stringList reads a list given as a sequence (flags, config files) or a
// comma separated string (environment).
func stringList(v *viper.Viper, key string, def []string) []string {
	if !v.IsSet(key) {
		return def
	}
	var out []string
	switch raw := v.Get(key).(type) {
	case string:
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = raw
	case []any:
		for _, item := range raw {
			out = append(out, strings.TrimSpace(fmt.Sprint(item)))
		}
	case []int:
		for _, n := range raw {
			out = append(out, strconv.Itoa(n))
		}
	default:
		out = v.GetStringSlice(key)
	}
	return out
}

func intList(v *viper.Viper, key string, def []int) ([]int, error) {
	if !v.IsSet(key) {
		return def, nil
	}
	if raw, ok := v.Get(key).([]int); ok {
		return raw, nil
	}
	items := stringList(v, key, nil)
	out := make([]int, 0, len(items))
	for _, s := range items {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, failure.Configf("%s: %q is not an integer", key, s)
		}
		out = append(out, n)
	}
	return out, nil
}
