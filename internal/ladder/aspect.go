// Package ladder turns the per-rendition option lists into aligned rendition tuples.
package ladder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// AspectRatio is a reduced W:H rational used to derive nominal heights.
// It is never checked against the source's real aspect ratio.
type AspectRatio struct {
	Num int64
	Den int64
}

// ParseAspectRatio parses "W:H" with positive integer parts.
func ParseAspectRatio(s string) (AspectRatio, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return AspectRatio{}, failure.Configf("invalid aspect ratio %q (want W:H)", s)
	}

	num, err := strconv.ParseInt(strings.TrimSpace(w), 10, 64)
	if err != nil {
		return AspectRatio{}, failure.Configf("invalid aspect ratio %q: %v", s, err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(h), 10, 64)
	if err != nil {
		return AspectRatio{}, failure.Configf("invalid aspect ratio %q: %v", s, err)
	}
	if num <= 0 || den <= 0 {
		return AspectRatio{}, failure.Configf("invalid aspect ratio %q: both terms must be positive", s)
	}

	g := gcd(num, den)
	return AspectRatio{Num: num / g, Den: den / g}, nil
}

// String formats the ratio as "W:H".
func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.Num, a.Den)
}

// Resolution returns round(width / ratio), rounding halves to even.
func (a AspectRatio) Resolution(width int) int {
	return int(roundHalfEven(int64(width)*a.Den, a.Num))
}

// roundHalfEven divides n by d (both positive) and rounds to nearest, ties to even.
func roundHalfEven(n, d int64) int64 {
	q, r := n/d, n%d
	switch {
	case 2*r > d:
		q++
	case 2*r == d && q%2 == 1:
		q++
	}
	return q
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
