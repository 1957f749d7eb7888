package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/agleyzer/hlsladder/internal/parser"
	"github.com/agleyzer/hlsladder/internal/plan"
)

// verify reads back every media playlist and the master playlist. Findings
// are logged and returned; none of them fail the run.
func verify(fs afero.Fs, outDir, master string, p *plan.Plan, logger *slog.Logger) []string {
	var problems []string
	report := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		logger.Warn("output verification", "problem", msg)
		problems = append(problems, msg)
	}

	for _, e := range p.Entries {
		path := filepath.Join(outDir, e.PlaylistName)
		info, err := parser.ParseMediaFile(fs, path)
		if err != nil {
			report("%s: %v", e.PlaylistName, err)
			continue
		}
		if err := info.Verify(); err != nil {
			report("%s: %v", e.PlaylistName, err)
		}
		if p.SegmentType.NeedsInit() && info.InitSegment == "" {
			report("%s: fmp4 playlist has no EXT-X-MAP", e.PlaylistName)
		}
		missing, err := parser.MissingFiles(fs, path, info)
		if err != nil {
			report("%s: %v", e.PlaylistName, err)
		} else if len(missing) > 0 {
			report("%s: %d referenced files missing, first %s", e.PlaylistName, len(missing), missing[0])
		}

		logger.Info("rendition ready",
			"name", e.Name,
			"playlist", e.PlaylistName,
			"segments", len(info.Segments),
			"targetDuration", info.TargetDuration,
			"duration", info.TotalDuration(),
		)
	}

	variants, err := parser.ParseMasterFile(fs, master)
	switch {
	case err != nil:
		report("%s: %v", filepath.Base(master), err)
	case len(variants) != len(p.Entries):
		report("%s: lists %d variants, expected %d", filepath.Base(master), len(variants), len(p.Entries))
	}

	return problems
}
