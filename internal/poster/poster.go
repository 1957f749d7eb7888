// Package poster picks the poster frame time and turns the extracted frame
// into the final thumbnail.
package poster

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// Seek is a parsed poster seek position, either a fraction of the
// duration or an absolute time.
type Seek struct {
	Percent   float64
	Seconds   float64
	IsPercent bool
}

// ParseSeek accepts "N%", plain seconds ("12.5") or "[hh:]mm:ss[.frac]".
func ParseSeek(s string) (Seek, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Seek{}, failure.Configf("empty poster seek")
	}

	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || v > 100 || math.IsNaN(v) {
			return Seek{}, failure.Configf("invalid poster seek %q: percentage must be within 0..100", s)
		}
		return Seek{Percent: v, IsPercent: true}, nil
	}

	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Seek{}, failure.Configf("invalid poster seek %q", s)
		}
		return Seek{Seconds: v}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Seek{}, failure.Configf("invalid poster seek %q: expected [hh:]mm:ss", s)
	}

	var total float64
	for i, part := range parts {
		last := i == len(parts)-1
		var (
			v   float64
			err error
		)
		if last {
			v, err = strconv.ParseFloat(part, 64)
		} else {
			var n int
			n, err = strconv.Atoi(part)
			v = float64(n)
		}
		if err != nil || v < 0 || (i > 0 && v >= 60) {
			return Seek{}, failure.Configf("invalid poster seek %q", s)
		}
		total = total*60 + v
	}
	return Seek{Seconds: total}, nil
}

// Offset returns the seek time in seconds for a source of the given
// duration. Times past the end fall back to one second before it.
func (s Seek) Offset(duration float64) float64 {
	offset := s.Seconds
	if s.IsPercent {
		offset = duration * s.Percent / 100
	}
	if duration > 0 && offset >= duration {
		offset = math.Max(0, duration-1)
	}
	return offset
}

func (s Seek) String() string {
	if s.IsPercent {
		return strconv.FormatFloat(s.Percent, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(s.Seconds, 'f', -1, 64)
}

// Options controls the final thumbnail.
type Options struct {
	// Width scales the frame down to this width; 0 keeps the frame size.
	Width int
	// Quality is the JPEG quality, 1..100.
	Quality int
}

// Finish decodes the extracted frame at src, optionally narrows it and
// writes it to dst as JPEG.
func Finish(fs afero.Fs, src, dst string, opts Options) (image.Point, error) {
	in, err := fs.Open(src)
	if err != nil {
		return image.Point{}, fmt.Errorf("open poster frame: %w", err)
	}
	defer in.Close()

	img, err := imaging.Decode(in, imaging.AutoOrientation(true))
	if err != nil {
		return image.Point{}, fmt.Errorf("decode poster frame: %w", err)
	}

	if opts.Width > 0 && opts.Width < img.Bounds().Dx() {
		img = imaging.Fit(img, opts.Width, img.Bounds().Dy(), imaging.Lanczos)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	out, err := fs.Create(dst)
	if err != nil {
		return image.Point{}, fmt.Errorf("create poster: %w", err)
	}
	if err := imaging.Encode(out, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		out.Close()
		return image.Point{}, fmt.Errorf("encode poster: %w", err)
	}
	if err := out.Close(); err != nil {
		return image.Point{}, fmt.Errorf("close poster: %w", err)
	}

	return img.Bounds().Size(), nil
}
