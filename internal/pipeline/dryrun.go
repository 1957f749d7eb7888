package pipeline

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/agleyzer/hlsladder/internal/config"
	"github.com/agleyzer/hlsladder/internal/failure"
	"github.com/agleyzer/hlsladder/internal/ffmpeg"
	"github.com/agleyzer/hlsladder/internal/scratch"
)

type dryRunSource struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FrameRate float64 `yaml:"frame_rate"`
	Duration  float64 `yaml:"duration"`
	Audio     bool    `yaml:"audio"`
}

type dryRunRendition struct {
	Index    int    `yaml:"index"`
	Name     string `yaml:"name"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Bitrate  int    `yaml:"bitrate_kbps"`
	Codec    string `yaml:"codec"`
	Profile  string `yaml:"profile"`
	Playlist string `yaml:"playlist"`
	Segments string `yaml:"segments"`
	Init     string `yaml:"init,omitempty"`
	Overlay  string `yaml:"overlay,omitempty"`
}

type dryRunSkipped struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name"`
	Width int    `yaml:"width"`
}

type dryRunPlan struct {
	Input            string            `yaml:"input"`
	Output           string            `yaml:"output"`
	Source           dryRunSource      `yaml:"source"`
	KeyframeInterval int               `yaml:"keyframe_interval"`
	SegmentType      string            `yaml:"segment_type"`
	Renditions       []dryRunRendition `yaml:"renditions"`
	Skipped          []dryRunSkipped   `yaml:"skipped,omitempty"`
	Master           string            `yaml:"master_playlist"`
	PosterArgs       []string          `yaml:"poster_args,omitempty"`
	FFmpegArgs       []string          `yaml:"ffmpeg_args"`
}

// writeDryRun prints the resolved plan and the ffmpeg arguments as YAML.
func writeDryRun(w io.Writer, cfg config.Config, res *Result, sd *scratch.Dir, job ffmpeg.TranscodeJob) error {
	p := res.Plan
	v := p.Source.Video

	args, err := ffmpeg.BuildTranscode(job)
	if err != nil {
		return failure.New(failure.Internal, "build ffmpeg arguments", err)
	}

	out := dryRunPlan{
		Input:  cfg.Input,
		Output: res.OutputDir,
		Source: dryRunSource{
			Width:     v.Width,
			Height:    v.Height,
			FrameRate: v.FrameRate(),
			Duration:  v.Duration,
			Audio:     p.Source.HasAudio(),
		},
		KeyframeInterval: p.KeyframeInterval,
		SegmentType:      string(p.SegmentType),
		Master:           cfg.HLS.MasterPlaylist,
		FFmpegArgs:       args,
	}
	for _, e := range p.Entries {
		out.Renditions = append(out.Renditions, dryRunRendition{
			Index:    e.Index,
			Name:     e.Name,
			Width:    e.Width,
			Height:   e.Height,
			Bitrate:  e.BitrateKbps,
			Codec:    e.Codec,
			Profile:  e.Profile.String(),
			Playlist: e.PlaylistName,
			Segments: e.SegmentPattern,
			Init:     e.InitName,
			Overlay:  e.OverlayText,
		})
	}
	for _, r := range p.Skipped {
		out.Skipped = append(out.Skipped, dryRunSkipped{Index: r.Index, Name: r.Name, Width: r.Width})
	}
	if cfg.Poster.Enabled {
		seek, err := cfg.PosterSeek()
		if err != nil {
			return err
		}
		out.PosterArgs = ffmpeg.BuildPoster(ffmpeg.PosterJob{
			Input:      cfg.Input,
			VideoIndex: v.Index,
			Offset:     seek.Offset(v.Duration),
			Output:     sd.Path("poster.png"),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write dry-run plan: %w", err)
	}
	return enc.Close()
}
