// Package pipeline runs one ladder encode from configuration to master
// playlist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/agleyzer/hlsladder/internal/codecs"
	"github.com/agleyzer/hlsladder/internal/config"
	"github.com/agleyzer/hlsladder/internal/failure"
	"github.com/agleyzer/hlsladder/internal/ffmpeg"
	"github.com/agleyzer/hlsladder/internal/ladder"
	"github.com/agleyzer/hlsladder/internal/plan"
	"github.com/agleyzer/hlsladder/internal/playlist"
	"github.com/agleyzer/hlsladder/internal/poster"
	"github.com/agleyzer/hlsladder/internal/probe"
	"github.com/agleyzer/hlsladder/internal/scratch"
	"github.com/agleyzer/hlsladder/internal/variant"
)

// Deps are the collaborators of a run.
type Deps struct {
	FS        afero.Fs
	Prober    probe.Prober
	Runner    ffmpeg.Runner
	Inspector codecs.Inspector
	Logger    *slog.Logger
	// Stdout receives the dry-run plan.
	Stdout io.Writer
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	OutputDir string
	Plan      *plan.Plan
	Variants  []variant.Variant
	// Master is the path of the written master playlist.
	Master string
	MP4    string
	Poster string
	// CodecsOmitted is set when the master playlist carries no CODECS.
	CodecsOmitted bool
	Bytes         int64
	// Problems lists post-encode verification findings.
	Problems []string
}

// Run probes the input, encodes every rendition in one ffmpeg invocation,
// resolves codec strings and writes the master playlist. Scratch files
// are removed on every path.
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Result, error) {
	logger := deps.Logger

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ladderOpts, err := cfg.LadderOptions()
	if err != nil {
		return nil, err
	}
	planOpts, err := cfg.PlanOptions()
	if err != nil {
		return nil, err
	}
	mp4Opts, err := cfg.MP4Options()
	if err != nil {
		return nil, err
	}

	renditions, err := ladder.Normalize(ladderOpts)
	if err != nil {
		return nil, err
	}

	if ok, err := afero.Exists(deps.FS, cfg.Input); err != nil || !ok {
		return nil, failure.Configf("input file %q does not exist", cfg.Input)
	}

	logger.Info("probing input", "input", cfg.Input)
	source, err := deps.Prober.Probe(ctx, cfg.Input)
	if err != nil {
		return nil, failure.New(failure.Internal, "probe input", err)
	}
	if source.Video == nil {
		return nil, failure.New(failure.NoVideoTrack, "probe input", fmt.Errorf("%s has no video stream", cfg.Input))
	}
	logger.Info("probed input",
		"width", source.Video.Width,
		"height", source.Video.Height,
		"frameRate", source.Video.FrameRate(),
		"duration", source.Video.Duration,
		"audio", source.HasAudio(),
	)

	p, err := plan.Resolve(renditions, source, planOpts, logger)
	if err != nil {
		return nil, err
	}

	outDir := cfg.OutputDir()
	res := &Result{OutputDir: outDir, Plan: p}

	sd, err := scratch.New(deps.FS, cfg.ScratchDir)
	if err != nil {
		return nil, failure.New(failure.Internal, "create scratch dir", err)
	}
	res.RunID = sd.ID()
	defer func() {
		if err := sd.Cleanup(); err != nil {
			logger.Warn("failed to remove scratch dir", "dir", sd.Root(), "error", err)
		}
	}()

	overlays := make(map[int]string)
	job := ffmpeg.TranscodeJob{
		Input:         cfg.Input,
		OutputDir:     outDir,
		ScratchDir:    sd.Root(),
		Plan:          p,
		Audio:         cfg.AudioOptions(),
		MP4:           mp4Opts,
		SegmentPrefix: cfg.HLS.SegmentPrefix,
		OverlayFiles:  overlays,
		Verbose:       cfg.Verbose,
	}
	for _, e := range p.Entries {
		if e.OverlayText != "" {
			overlays[e.Index] = sd.Path(overlayFileName(e))
		}
	}

	if cfg.DryRun {
		return res, writeDryRun(deps.Stdout, cfg, res, sd, job)
	}

	if err := prepareOutputDir(deps.FS, outDir, cfg.Output.Overwrite, logger); err != nil {
		return nil, err
	}

	if cfg.Poster.Enabled {
		path, err := makePoster(ctx, cfg, deps, source, sd, outDir)
		if err != nil {
			return nil, err
		}
		res.Poster = path
	}

	for _, e := range p.Entries {
		if e.OverlayText == "" {
			continue
		}
		if _, err := sd.WriteText(overlayFileName(e), e.OverlayText); err != nil {
			return nil, failure.New(failure.Internal, "write overlay text", err)
		}
	}

	args, err := ffmpeg.BuildTranscode(job)
	if err != nil {
		return nil, failure.New(failure.Internal, "build ffmpeg arguments", err)
	}

	logger.Info("encoding renditions",
		"renditions", len(p.Entries),
		"segmentType", p.SegmentType,
		"keyframeInterval", p.KeyframeInterval,
	)
	logger.Debug("ffmpeg arguments", "args", args)
	if err := deps.Runner.Run(ctx, args); err != nil {
		return nil, failure.New(failure.Encode, "encode renditions", err)
	}
	if mp4Opts.Enabled {
		res.MP4 = filepath.Join(outDir, mp4Opts.Filename)
	}

	codecList, omitted := extractCodecs(ctx, p, sd, deps, logger)
	res.CodecsOmitted = omitted

	fps := source.Video.FrameRate()
	for i, e := range p.Entries {
		res.Variants = append(res.Variants, variant.FromEntry(e, fps, codecList[i], cfg.HLS.MasterPrefix))
	}

	res.Master = filepath.Join(outDir, cfg.HLS.MasterPlaylist)
	if err := playlist.WriteMasterFile(res.Master, res.Variants); err != nil {
		return nil, failure.New(failure.Internal, "write master playlist", err)
	}
	logger.Info("wrote master playlist", "path", res.Master, "variants", len(res.Variants), "codecs", !omitted)

	res.Problems = verify(deps.FS, outDir, res.Master, p, logger)

	res.Bytes, err = dirSize(deps.FS, outDir)
	if err != nil {
		logger.Warn("failed to measure output", "error", err)
	}
	logger.Info("ladder complete",
		"output", outDir,
		"renditions", len(p.Entries),
		"skipped", len(p.Skipped),
		"size", humanize.Bytes(uint64(res.Bytes)),
	)

	return res, nil
}

// extractCodecs returns one codec string per plan entry. A failed clip
// leaves that rendition and every later one without codecs; an
// unavailable inspector leaves all of them without. omitted reports
// whether any entry ended up empty.
func extractCodecs(ctx context.Context, p *plan.Plan, sd *scratch.Dir, deps Deps, logger *slog.Logger) ([]string, bool) {
	out := make([]string, len(p.Entries))
	ex := codecs.NewExtractor(deps.Inspector, logger)

	for i, e := range p.Entries {
		c, err := ex.Extract(ctx, sd.Path(e.ProbeClipName))
		if errors.Is(err, codecs.ErrInspectorUnavailable) {
			return make([]string, len(p.Entries)), true
		}
		if err != nil {
			logger.Warn("codec extraction failed, omitting CODECS from this rendition on",
				"rendition", e.Name,
				"error", failure.New(failure.CodecExtraction, "extract codecs", err),
			)
			return out, true
		}
		out[i] = c
	}
	return out, false
}

func makePoster(ctx context.Context, cfg config.Config, deps Deps, source *probe.SourceMedia, sd *scratch.Dir, outDir string) (string, error) {
	seek, err := cfg.PosterSeek()
	if err != nil {
		return "", err
	}
	offset := seek.Offset(source.Video.Duration)
	frame := sd.Path("poster.png")

	deps.Logger.Info("extracting poster frame", "seek", seek.String(), "offset", offset)
	args := ffmpeg.BuildPoster(ffmpeg.PosterJob{
		Input:      cfg.Input,
		VideoIndex: source.Video.Index,
		Offset:     offset,
		Output:     frame,
	})
	if err := deps.Runner.Run(ctx, args); err != nil {
		return "", failure.New(failure.Encode, "extract poster frame", err)
	}

	dst := filepath.Join(outDir, cfg.Poster.Filename)
	size, err := poster.Finish(deps.FS, frame, dst, poster.Options{
		Width:   cfg.Poster.Width,
		Quality: cfg.Poster.Quality,
	})
	if err != nil {
		return "", failure.New(failure.Internal, "write poster", err)
	}
	deps.Logger.Info("wrote poster", "path", dst, "width", size.X, "height", size.Y)
	return dst, nil
}

// prepareOutputDir creates dir. An existing non-empty directory is only
// replaced when overwrite is set.
func prepareOutputDir(fs afero.Fs, dir string, overwrite bool, logger *slog.Logger) error {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return failure.New(failure.Internal, "inspect output dir", err)
	}
	if exists {
		empty, err := afero.IsEmpty(fs, dir)
		switch {
		case err != nil:
			return failure.New(failure.Internal, "inspect output dir", err)
		case !empty && !overwrite:
			return failure.Configf("output directory %q is not empty; pass --overwrite to replace it", dir)
		case !empty:
			logger.Warn("removing existing output directory", "dir", dir)
			if err := fs.RemoveAll(dir); err != nil {
				return failure.New(failure.Internal, "remove output dir", err)
			}
		}
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return failure.New(failure.Internal, "create output dir", err)
	}
	return nil
}

func overlayFileName(e plan.Entry) string {
	return fmt.Sprintf("overlay-%d.txt", e.Index)
}

func dirSize(fs afero.Fs, dir string) (int64, error) {
	var total int64
	err := afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
