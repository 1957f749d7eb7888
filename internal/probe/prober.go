package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Prober reports the stream layout of a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*SourceMedia, error)
}

// FFprobe is a Prober backed by the ffprobe executable.
type FFprobe struct {
	// Path is the ffprobe executable; "ffprobe" when empty.
	Path string
}

// Probe runs a single ffprobe JSON call against path.
func (f FFprobe) Probe(ctx context.Context, path string) (*SourceMedia, error) {
	bin := f.Path
	if bin == "" {
		bin = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffprobe %q: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	media, err := ParseJSON(out)
	if err != nil {
		return nil, err
	}
	media.Path = path
	return media, nil
}

// ParseJSON converts raw ffprobe JSON output into a SourceMedia.
// Only the first video and the first audio stream are kept.
func ParseJSON(data []byte) (*SourceMedia, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	media := &SourceMedia{}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if media.Video != nil || s.Disposition["attached_pic"] == 1 {
				continue
			}
			media.Video = convertVideo(s, &raw.Format)
		case "audio":
			if media.Audio != nil {
				continue
			}
			media.Audio = &AudioStream{
				Index:      s.Index,
				Codec:      s.CodecName,
				SampleRate: parseInt(s.SampleRate),
				Channels:   s.Channels,
			}
		}
	}
	return media, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Duration     string         `json:"duration"`
	Channels     int            `json:"channels"`
	SampleRate   string         `json:"sample_rate"`
	Disposition  map[string]int `json:"disposition"`
}

func convertVideo(s *ffprobeStream, f *ffprobeFormat) *VideoStream {
	num, den := parseRational(s.AvgFrameRate)
	if num == 0 || den == 0 {
		num, den = parseRational(s.RFrameRate)
	}

	duration := parseFloat(s.Duration)
	if duration <= 0 {
		duration = parseFloat(f.Duration)
	}

	return &VideoStream{
		Index:        s.Index,
		Codec:        s.CodecName,
		Width:        s.Width,
		Height:       s.Height,
		FrameRateNum: num,
		FrameRateDen: den,
		Duration:     duration,
	}
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

// parseRational parses "30000/1001"; malformed input yields 0/0.
func parseRational(s string) (int, int) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0
	}
	num, err1 := strconv.Atoi(a)
	den, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, 0
	}
	return num, den
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
