package ladder

import (
	"strconv"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// Options holds the raw per-rendition lists as the user gave them.
// The lists may have different lengths.
type Options struct {
	Widths      []int
	Bitrates    []int // kbps
	Codecs      []string
	Profiles    []string
	Names       []string
	AspectRatio AspectRatio
}

// Normalize aligns the option lists into N renditions, N being the longest of
// widths, bitrates, codecs and profiles. Shorter lists repeat their last
// element. Missing trailing names are synthesized as "{resolution}p".
func Normalize(opts Options) ([]Rendition, error) {
	if opts.AspectRatio.Num <= 0 || opts.AspectRatio.Den <= 0 {
		return nil, failure.Configf("aspect ratio is not set")
	}

	switch {
	case len(opts.Widths) == 0:
		return nil, failure.Configf("no video widths given")
	case len(opts.Bitrates) == 0:
		return nil, failure.Configf("no video bitrates given")
	case len(opts.Codecs) == 0:
		return nil, failure.Configf("no video codecs given")
	case len(opts.Profiles) == 0:
		return nil, failure.Configf("no video profiles given")
	}

	n := max(len(opts.Widths), len(opts.Bitrates), len(opts.Codecs), len(opts.Profiles))

	widths := extend(opts.Widths, n)
	bitrates := extend(opts.Bitrates, n)
	codecs := extend(opts.Codecs, n)
	rawProfiles := extend(opts.Profiles, n)

	names := make([]string, n)
	copy(names, opts.Names)

	renditions := make([]Rendition, n)
	for i := 0; i < n; i++ {
		if widths[i] <= 0 {
			return nil, failure.Configf("rendition %d: width must be positive, got %d", i, widths[i])
		}
		if bitrates[i] <= 0 {
			return nil, failure.Configf("rendition %d: bitrate must be positive, got %d", i, bitrates[i])
		}
		if codecs[i] == "" {
			return nil, failure.Configf("rendition %d: empty codec", i)
		}

		profile, err := ParseProfile(rawProfiles[i])
		if err != nil {
			return nil, err
		}

		resolution := opts.AspectRatio.Resolution(widths[i])
		name := names[i]
		if i >= len(opts.Names) {
			name = defaultName(resolution)
		}

		renditions[i] = Rendition{
			Index:       i,
			Width:       widths[i],
			BitrateKbps: bitrates[i],
			Codec:       codecs[i],
			Profile:     profile,
			Name:        name,
			Resolution:  resolution,
		}
	}

	return renditions, nil
}

// extend pads s to length n by repeating its last element.
// s must not be empty.
func extend[T any](s []T, n int) []T {
	out := make([]T, n)
	copy(out, s)
	last := s[len(s)-1]
	for i := len(s); i < n; i++ {
		out[i] = last
	}
	return out
}

func defaultName(resolution int) string {
	return strconv.Itoa(resolution) + "p"
}
