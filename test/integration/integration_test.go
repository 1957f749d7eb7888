package integration

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/agleyzer/hlsladder/internal/parser"
)

var osFs = afero.NewOsFs()

// checkLadder parses the master playlist in outDir and verifies every
// media playlist it lists. It returns the parsed media playlists in
// master order.
func checkLadder(t *testing.T, outDir string, wantVariants int) []*parser.MediaInfo {
	t.Helper()

	variants, err := parser.ParseMasterFile(osFs, filepath.Join(outDir, "index.m3u8"))
	if err != nil {
		t.Fatalf("failed to parse master playlist: %v", err)
	}
	if len(variants) != wantVariants {
		t.Fatalf("expected %d variants, got %d", wantVariants, len(variants))
	}

	var infos []*parser.MediaInfo
	for i, v := range variants {
		if v.Bandwidth == 0 || v.Width == 0 || v.Height == 0 {
			t.Errorf("variant %d: incomplete attributes %+v", i, v)
		}
		if v.FrameRate < 23.9 || v.FrameRate > 24.1 {
			t.Errorf("variant %d: expected frame rate 24, got %f", i, v.FrameRate)
		}
		if HasMp4Dump() && !strings.HasPrefix(v.Codecs, "avc1.") {
			t.Errorf("variant %d: expected avc1 CODECS, got %q", i, v.Codecs)
		}

		mediaPath := filepath.Join(outDir, v.URI)
		info, err := parser.ParseMediaFile(osFs, mediaPath)
		if err != nil {
			t.Fatalf("variant %d: failed to parse %s: %v", i, v.URI, err)
		}
		if err := info.Verify(); err != nil {
			t.Errorf("variant %d: %v", i, err)
		}
		missing, err := parser.MissingFiles(osFs, mediaPath, info)
		if err != nil {
			t.Fatalf("variant %d: %v", i, err)
		}
		if len(missing) > 0 {
			t.Errorf("variant %d: missing files %v", i, missing)
		}
		infos = append(infos, info)
	}
	return infos
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if ok, err := afero.Exists(osFs, path); err != nil || !ok {
		t.Errorf("expected %s to exist", path)
	}
}

// TestLadderMPEGTS encodes a two-rung ladder with audio into MPEG-TS
// segments and checks every output.
func TestLadderMPEGTS(t *testing.T) {
	h := NewTestHarness(t)
	defer h.Cleanup()

	source := h.MakeSource("source.mp4", 640, 360, 4, true)
	outDir := h.Path("mpegts")

	res := h.Run(
		"--video-widths", "640,426",
		"--video-bitrates", "800,400",
		"--video-profiles", "main@3.1",
		"--hls-time", "2",
		"--output", outDir,
		source,
	)
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", res.ExitCode, res.Stderr)
	}
	if got := strings.TrimSpace(res.Stdout); got != filepath.Join(outDir, "index.m3u8") {
		t.Errorf("expected master path on stdout, got %q", got)
	}

	infos := checkLadder(t, outDir, 2)
	for i, info := range infos {
		if info.TotalDuration() < 3.5 {
			t.Errorf("variant %d: expected about 4s of media, got %f", i, info.TotalDuration())
		}
		if info.InitSegment != "" {
			t.Errorf("variant %d: MPEG-TS playlist should not carry EXT-X-MAP", i)
		}
	}

	assertExists(t, filepath.Join(outDir, "progressive.mp4"))
	assertExists(t, filepath.Join(outDir, "poster.jpg"))
}

// TestLadderFMP4 encodes a silent source into fragmented MP4 segments.
func TestLadderFMP4(t *testing.T) {
	h := NewTestHarness(t)
	defer h.Cleanup()

	source := h.MakeSource("silent.mp4", 640, 360, 4, false)
	outDir := h.Path("fmp4")

	res := h.Run(
		"--video-widths", "640",
		"--video-bitrates", "800",
		"--video-profiles", "main@3.1",
		"--hls-time", "2",
		"--hls-segment-type", "fmp4",
		"--mp4=false",
		"--poster=false",
		"--output", outDir,
		source,
	)
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", res.ExitCode, res.Stderr)
	}

	infos := checkLadder(t, outDir, 1)
	if infos[0].InitSegment == "" {
		t.Error("fMP4 playlist should carry EXT-X-MAP")
	}
	if HasMp4Dump() {
		variants, _ := parser.ParseMasterFile(osFs, filepath.Join(outDir, "index.m3u8"))
		if strings.Contains(variants[0].Codecs, "mp4a") {
			t.Errorf("silent source should not list an audio codec, got %q", variants[0].Codecs)
		}
	}

	if ok, _ := afero.Exists(osFs, filepath.Join(outDir, "progressive.mp4")); ok {
		t.Error("progressive.mp4 should not be written with --mp4=false")
	}
}

// TestUpscaleSkipped verifies that a rendition wider and taller than the
// source is left out of the master playlist.
func TestUpscaleSkipped(t *testing.T) {
	h := NewTestHarness(t)
	defer h.Cleanup()

	source := h.MakeSource("small.mp4", 640, 360, 2, true)
	outDir := h.Path("upscale")

	res := h.Run(
		"--video-widths", "1280,640",
		"--video-bitrates", "2500,800",
		"--video-profiles", "main@3.1",
		"--hls-time", "2",
		"--poster=false",
		"--output", outDir,
		source,
	)
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", res.ExitCode, res.Stderr)
	}

	checkLadder(t, outDir, 1)
}

// TestExitCodes checks the documented process exit statuses.
func TestExitCodes(t *testing.T) {
	h := NewTestHarness(t)
	defer h.Cleanup()

	audioOnly := h.Path("audio.m4a")
	if err := afero.WriteFile(osFs, audioOnly, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no input", nil, 2},
		{"missing input", []string{h.Path("nope.mov")}, 2},
		{"bad flag value", []string{"--hls-segment-type", "webm", audioOnly}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.Run(tt.args...)
			if res.ExitCode != tt.want {
				t.Errorf("expected exit code %d, got %d\n%s", tt.want, res.ExitCode, res.Stderr)
			}
		})
	}
}

// TestServeOutput encodes a ladder and plays it back through the preview
// server.
func TestServeOutput(t *testing.T) {
	h := NewTestHarness(t)
	defer h.Cleanup()

	source := h.MakeSource("serve.mp4", 640, 360, 2, true)
	outDir := h.Path("serve")

	res := h.Run(
		"--video-widths", "640",
		"--video-bitrates", "800",
		"--video-profiles", "main@3.1",
		"--hls-time", "2",
		"--poster=false",
		"--output", outDir,
		source,
	)
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", res.ExitCode, res.Stderr)
	}

	base := h.StartServe(outDir)

	body, contentType := h.Fetch(base + "/index.m3u8")
	if contentType != "application/vnd.apple.mpegurl" {
		t.Errorf("unexpected master content type %q", contentType)
	}
	variants, err := parser.ParseMaster(strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to parse served master: %v", err)
	}
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}

	media, _ := h.Fetch(base + "/" + variants[0].URI)
	info, err := parser.ParseMedia(strings.NewReader(media))
	if err != nil {
		t.Fatalf("failed to parse served media playlist: %v", err)
	}
	if len(info.Segments) == 0 {
		t.Fatal("served media playlist has no segments")
	}

	_, segType := h.Fetch(base + "/" + info.Segments[0].URI)
	if segType != "video/mp2t" {
		t.Errorf("unexpected segment content type %q", segType)
	}

	health, _ := h.Fetch(base + "/health")
	if !strings.Contains(health, `"variants":1`) {
		t.Errorf("unexpected health response: %s", health)
	}
}
