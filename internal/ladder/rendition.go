package ladder

import (
	"strconv"
	"strings"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// Profile is an encoder profile with an optional level, written "name@level".
type Profile struct {
	Name  string
	Level string
}

// ParseProfile parses "main@3.1" or "high".
func ParseProfile(s string) (Profile, error) {
	name, level, _ := strings.Cut(strings.TrimSpace(s), "@")
	name = strings.TrimSpace(name)
	level = strings.TrimSpace(level)
	if name == "" {
		return Profile{}, failure.Configf("invalid video profile %q: missing profile name", s)
	}
	if strings.Contains(s, "@") && level == "" {
		return Profile{}, failure.Configf("invalid video profile %q: missing level after @", s)
	}
	return Profile{Name: name, Level: level}, nil
}

func (p Profile) String() string {
	if p.Level == "" {
		return p.Name
	}
	return p.Name + "@" + p.Level
}

// Rendition is one aligned (width, bitrate, codec, profile, name) tuple.
// Index is the position in the option lists and survives later filtering.
type Rendition struct {
	Index       int
	Width       int
	BitrateKbps int
	Codec       string
	Profile     Profile
	Name        string
	Resolution  int
}

// Fields returns the placeholder values for this rendition.
func (r Rendition) Fields() map[string]string {
	return map[string]string{
		"index":      strconv.Itoa(r.Index),
		"width":      strconv.Itoa(r.Width),
		"resolution": strconv.Itoa(r.Resolution),
		"bitrate":    strconv.Itoa(r.BitrateKbps),
		"codec":      r.Codec,
		"profile":    r.Profile.String(),
		"name":       r.Name,
	}
}
