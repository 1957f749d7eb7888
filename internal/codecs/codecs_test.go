package codecs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agleyzer/hlsladder/internal/failure"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

const sampleDump = `[ftyp] size=8+24
  major_brand = isom
  minor_version = 200
  compatible_brand = isom
[moov] size=8+1302
  [mvhd] size=12+96
    timescale = 1000
    duration = 42
  [trak] size=8+581
    [tkhd] size=12+80, flags=3
      enabled = 1
      id = 1
    [mdia] size=8+481
      [minf] size=8+408
        [stbl] size=8+344
          [stsd] size=12+160
            entry_count = 1
            [avc1] size=8+148
              data_reference_index = 1
              width = 1280
              height = 720
              compressor =
              [avcC] size=8+46
                Configuration Version = 1
                Profile = High
                Profile Compatibility = 0
                Level = 40
                NALU Length Size = 4
                Sequence Parameter = [67 64 00 28 ac d9 40 50 05 bb 01 10]
                Picture Parameter = [68 eb e3 cb 22 c0]
  [trak] size=8+517
    [mdia] size=8+417
      [minf] size=8+344
        [stbl] size=8+280
          [stsd] size=12+91
            entry_count = 1
            [mp4a] size=8+79
              data_reference_index = 1
              channel_count = 2
              sample_size = 16
              sample_rate = 44100
              [esds] size=12+39
                [ESDescriptor] size=2+37
                  es_id = 0
                  stream_priority = 0
                  [DecoderConfig] size=2+29
                    stream_type = 5
                    object_type = 64
                    up_stream = 0
                    buffer_size = 0
                    max_bitrate = 96000
                    average_bitrate = 96000
                    DecoderSpecificInfo = 15 90
                  [Descriptor:06] size=2+1
`

func mustParse(t *testing.T, dump string) *Node {
	t.Helper()
	root, err := ParseDump(strings.NewReader(dump))
	require.NoError(t, err)
	return root
}

func TestParseDumpTree(t *testing.T) {
	root := mustParse(t, sampleDump)

	require.Len(t, root.Children, 2)
	assert.Equal(t, "ftyp", root.Children[0].Name)
	assert.Equal(t, "isom", root.Children[0].Fields["major_brand"])

	moov := root.Children[1]
	assert.Equal(t, "moov", moov.Name)
	require.Len(t, moov.Children, 3)

	avcc := root.Find("avcC")
	require.NotNil(t, avcc)
	assert.Equal(t, "High", avcc.Fields["Profile"])
	assert.Equal(t, "", avcc.Fields["compressor"], "fields belong to their own box")

	avc1 := root.Find("avc1")
	require.NotNil(t, avc1)
	assert.Equal(t, "", avc1.Fields["compressor"])
	assert.Equal(t, "1280", avc1.Fields["width"])

	// siblings after a deeper subtree attach to the right parent
	tkhd := root.Find("tkhd")
	require.NotNil(t, tkhd)
	assert.Equal(t, "1", tkhd.Fields["id"])
}

func TestParseDumpUnterminatedHeader(t *testing.T) {
	_, err := ParseDump(strings.NewReader("[moov size=8\n"))
	assert.Error(t, err)
}

func TestFromDump(t *testing.T) {
	codecs, err := FromDump(mustParse(t, sampleDump))
	require.NoError(t, err)
	assert.Equal(t, "avc1.640028,mp4a.40.2", codecs)
}

// x264 main profile as printed by mp4dump 1.6.
const mainProfileDump = `[stsd] size=12+167
  entry_count = 1
  [avc1] size=8+155
    data_reference_index = 1
    width = 1280
    height = 720
    compressor =
    [avcC] size=8+47
      Configuration Version = 1
      Profile = Main
      Profile Compatibility = 40
      Level = 31
      NALU Length Size = 4
      Sequence Parameter = [67 4d 40 1f ec a0 28 02 dd 80 88 00 00 03 00 08 00 00 03 01 e0 78 c1 8c b0]
      Picture Parameter = [68 eb ef 2c]
`

func TestFromDumpMainProfile(t *testing.T) {
	codecs, err := FromDump(mustParse(t, mainProfileDump))
	require.NoError(t, err)
	assert.Equal(t, "avc1.4D401F", codecs)
}

func TestParseHexByte(t *testing.T) {
	tests := []struct {
		in   string
		want uint8
	}{
		{"40", 0x40},
		{"c0", 0xC0},
		{"0xE0", 0xE0},
		{" 0 ", 0x00},
	}
	for _, tt := range tests {
		got, err := parseHexByte(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseHexByte("1ff")
	assert.Error(t, err)
}

func TestCodecStringArithmetic(t *testing.T) {
	assert.Equal(t, "avc1.640028", AVC("avc1", 0x64, 0x00, 0x28))
	assert.Equal(t, "avc1.42C01E", AVC("avc1", 66, 0xC0, 30))
	assert.Equal(t, "mp4a.40.2", MP4A(0x40, 0x15))
	assert.Equal(t, "mp4a.40.2", MP4A(0x40, 0x12))
	assert.Equal(t, "mp4a.40.5", MP4A(0x40, 0x2B))
	assert.Equal(t, "mp4a.6B.0", MP4A(0x6B, 0x00))
}

func TestAVCFieldVariants(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		compat  string
		level   string
		want    string
	}{
		{"named profile", "Main", "40", "31", "avc1.4D401F"},
		{"numeric profile", "100", "0", "40", "avc1.640028"},
		{"prefixed hex compatibility", "Baseline", "0xc0", "30", "avc1.42C01E"},
		{"bare hex compatibility", "66", "c0", "30", "avc1.42C01E"},
		{"compatibility with only decimal digits", "Main", "10", "31", "avc1.4D101F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dump := fmt.Sprintf(`[avc1] size=8+100
  [avcC] size=8+30
    Profile = %s
    Profile Compatibility = %s
    Level = %s
`, tt.profile, tt.compat, tt.level)
			got, err := FromDump(mustParse(t, dump))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromDumpMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		dump  string
		field string
	}{
		{
			name:  "no level",
			dump:  "[avc1] size=1\n  [avcC] size=1\n    Profile = High\n    Profile Compatibility = 0\n",
			field: "Level",
		},
		{
			name:  "no profile",
			dump:  "[avc1] size=1\n  [avcC] size=1\n    Profile Compatibility = 0\n    Level = 40\n",
			field: "Profile",
		},
		{
			name:  "no avcC",
			dump:  "[avc1] size=1\n  width = 640\n",
			field: "avcC",
		},
		{
			name:  "no object type",
			dump:  "[mp4a] size=1\n  [esds] size=1\n    [DecoderConfig] size=1\n      DecoderSpecificInfo = 12 10\n",
			field: "object_type",
		},
		{
			name:  "no decoder specific info",
			dump:  "[mp4a] size=1\n  [esds] size=1\n    [DecoderConfig] size=1\n      object_type = 64\n",
			field: "DecoderSpecificInfo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDump(mustParse(t, tt.dump))
			var ee *ExtractionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.field, ee.Field)
		})
	}
}

func TestFromDumpNoSampleEntry(t *testing.T) {
	_, err := FromDump(mustParse(t, "[ftyp] size=8+24\n  major_brand = isom\n"))
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
}

func TestFirstHexByte(t *testing.T) {
	for in, want := range map[string]uint8{
		"12 10":   0x12,
		"[15 90]": 0x15,
		"1190":    0x11,
		"0x2b":    0x2B,
	} {
		got, err := firstHexByte(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := firstHexByte("[]")
	assert.Error(t, err)
}

type fakeInspector struct {
	calls int
	out   string
	err   error
}

func (f *fakeInspector) Dump(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.out), nil
}

func TestExtractorRemembersUnavailability(t *testing.T) {
	insp := &fakeInspector{err: fmt.Errorf("%w: %w", ErrInspectorUnavailable, exec.ErrNotFound)}
	ex := NewExtractor(insp, createTestLogger())

	_, err := ex.Extract(context.Background(), "a_probe.mp4")
	assert.ErrorIs(t, err, ErrInspectorUnavailable)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Equal(t, failure.InspectorUnavailable, failure.KindOf(err))
	assert.True(t, ex.Unavailable())

	_, err = ex.Extract(context.Background(), "b_probe.mp4")
	assert.ErrorIs(t, err, ErrInspectorUnavailable)
	assert.Equal(t, failure.InspectorUnavailable, failure.KindOf(err))
	assert.Equal(t, 1, insp.calls, "inspector is not retried")
}

func TestExtractorSuccessAndFailure(t *testing.T) {
	ex := NewExtractor(&fakeInspector{out: sampleDump}, createTestLogger())
	got, err := ex.Extract(context.Background(), "720p_probe.mp4")
	require.NoError(t, err)
	assert.Equal(t, "avc1.640028,mp4a.40.2", got)

	ex = NewExtractor(&fakeInspector{err: errors.New("exit status 1")}, createTestLogger())
	_, err = ex.Extract(context.Background(), "720p_probe.mp4")
	require.Error(t, err)
	assert.False(t, ex.Unavailable())
}

func TestMp4DumpMissingBinary(t *testing.T) {
	_, err := Mp4Dump{Path: "hlsladder-no-such-mp4dump"}.Dump(context.Background(), "x.mp4")
	assert.ErrorIs(t, err, ErrInspectorUnavailable)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}
