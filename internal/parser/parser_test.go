package parser

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/agleyzer/hlsladder/internal/playlist"
	"github.com/agleyzer/hlsladder/internal/segment"
	"github.com/agleyzer/hlsladder/internal/variant"
)

const vodPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:6.000000,
720p_00000.ts
#EXTINF:6.000000,
720p_00001.ts
#EXTINF:2.500000,
720p_00002.ts
#EXT-X-ENDLIST
`

const fmp4Playlist = `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-MAP:URI="720p_init.mp4"
#EXTINF:6.000000,
720p_00000.m4s
#EXTINF:4.000000,
720p_00001.m4s
#EXT-X-ENDLIST
`

func TestParseMedia_VODPlaylist(t *testing.T) {
	info, err := ParseMedia(strings.NewReader(vodPlaylist))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(info.Segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(info.Segments))
	}
	if info.TargetDuration != 6 {
		t.Errorf("Expected target duration 6, got %d", info.TargetDuration)
	}
	if !info.VOD || !info.Closed {
		t.Errorf("Expected closed VOD playlist, got VOD=%v closed=%v", info.VOD, info.Closed)
	}
	if info.Segments[2].URI != "720p_00002.ts" || info.Segments[2].Sequence != 2 {
		t.Errorf("Unexpected last segment %+v", info.Segments[2])
	}
	if got := info.TotalDuration(); got != 14.5 {
		t.Errorf("Expected total duration 14.5, got %f", got)
	}
	if info.InitSegment != "" {
		t.Errorf("Expected no init segment, got %q", info.InitSegment)
	}
	if err := info.Verify(); err != nil {
		t.Errorf("Expected playlist to verify, got %v", err)
	}
}

func TestParseMedia_FMP4InitSegment(t *testing.T) {
	info, err := ParseMedia(strings.NewReader(fmp4Playlist))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if info.InitSegment != "720p_init.mp4" {
		t.Errorf("Expected init segment 720p_init.mp4, got %q", info.InitSegment)
	}
	if len(info.Segments) != 2 {
		t.Errorf("Expected 2 segments, got %d", len(info.Segments))
	}
}

func TestParseMedia_NoTargetDuration(t *testing.T) {
	content := `#EXTM3U
#EXT-X-VERSION:3
#EXTINF:5.5,
segment1.ts
#EXTINF:8.2,
segment2.ts
#EXT-X-ENDLIST
`
	info, err := ParseMedia(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Should be max duration (8.2) + 1 = 9
	if info.TargetDuration != 9 {
		t.Errorf("Expected target duration 9, got %d", info.TargetDuration)
	}
}

func TestMediaInfo_Verify(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not vod",
			content: "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\na.ts\n#EXT-X-ENDLIST\n",
		},
		{
			name:    "not closed",
			content: "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-PLAYLIST-TYPE:VOD\n#EXTINF:6.0,\na.ts\n",
		},
		{
			name:    "no segments",
			content: "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-PLAYLIST-TYPE:VOD\n#EXT-X-ENDLIST\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseMedia(strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Expected no parse error, got %v", err)
			}
			if err := info.Verify(); err == nil {
				t.Error("Expected verification error")
			}
		})
	}
}

func TestParseMedia_RejectsMaster(t *testing.T) {
	content := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000
low.m3u8
`
	if _, err := ParseMedia(strings.NewReader(content)); err == nil {
		t.Error("Expected error for master playlist")
	}
}

func TestParseMedia_InvalidM3U8(t *testing.T) {
	if _, err := ParseMedia(strings.NewReader("This is not a valid M3U8 playlist")); err == nil {
		t.Error("Expected error for invalid M3U8")
	}
}

func TestParseMaster_RoundTrip(t *testing.T) {
	want := []variant.Variant{
		{Bandwidth: 2800000, Width: 1280, Height: 720, Codecs: "avc1.4D401F,mp4a.40.2", FrameRate: 24, Name: "720p", URI: "720p.m3u8"},
		{Bandwidth: 800000, Width: 640, Height: 360, FrameRate: 24, Name: "360p", URI: "360p.m3u8"},
	}
	content, err := playlist.GenerateMaster(want)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := ParseMaster(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d variants, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variant %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseMasterFile_Missing(t *testing.T) {
	if _, err := ParseMasterFile(afero.NewMemMapFs(), "/out/index.m3u8"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestMissingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/out/720p.m3u8", []byte(fmp4Playlist), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/out/720p_init.mp4", "/out/720p_00000.m4s"} {
		if err := afero.WriteFile(fs, name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	info, err := ParseMediaFile(fs, "/out/720p.m3u8")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	missing, err := MissingFiles(fs, "/out/720p.m3u8", info)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(missing) != 1 || missing[0] != "720p_00001.m4s" {
		t.Errorf("Expected [720p_00001.m4s] missing, got %v", missing)
	}
}

func TestMissingFiles_SkipsRemoteReferences(t *testing.T) {
	info := &MediaInfo{
		Segments: []segment.Segment{
			{URI: "https://cdn.example.com/v/720p_00000.ts"},
			{URI: "/abs/720p_00001.ts"},
			{URI: "720p_00002.ts"},
		},
	}

	missing, err := MissingFiles(afero.NewMemMapFs(), "/out/720p.m3u8", info)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(missing) != 1 || missing[0] != "720p_00002.ts" {
		t.Errorf("Expected only the relative reference to be checked, got %v", missing)
	}
}
