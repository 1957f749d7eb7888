// Package codecs reconstructs RFC 6381 codec strings for the CODECS
// attribute from an mp4dump of a single-frame probe clip.
package codecs

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractionError reports a sample entry that lacks a field needed to
// build its codec string.
type ExtractionError struct {
	Box   string
	Field string
}

func (e *ExtractionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("no %s found in probe clip", e.Box)
	}
	return fmt.Sprintf("box %s has no %s", e.Box, e.Field)
}

// H.264 profile_idc values, keyed by the names mp4dump prints.
var avcProfiles = map[string]uint8{
	"Baseline":              66,
	"Main":                  77,
	"Extended":              88,
	"High":                  100,
	"High 10":               110,
	"High 4:2:2":            122,
	"High 4:4:4":            144,
	"High 4:4:4 Predictive": 244,
	"Constrained Baseline":  66,
	"High 10 Intra":         110,
	"High 4:2:2 Intra":      122,
	"High 4:4:4 Intra":      244,
	"CAVLC 4:4:4 Intra":     44,
	"Scalable Baseline":     83,
	"Scalable High":         86,
	"Multiview High":        118,
	"Stereo High":           128,
}

// FromDump returns the comma-joined codec strings of every supported
// sample entry in the dump, in document order.
func FromDump(root *Node) (string, error) {
	var (
		out []string
		err error
	)
	root.Walk(func(n *Node) {
		if err != nil {
			return
		}
		var s string
		switch n.Name {
		case "avc1", "avc3":
			s, err = avcCodec(n)
		case "mp4a":
			s, err = mp4aCodec(n)
		default:
			return
		}
		if err == nil {
			out = append(out, s)
		}
	})
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", &ExtractionError{Box: "sample entry"}
	}
	return strings.Join(out, ","), nil
}

// avcCodec builds avc1.PPCCLL from the avcC configuration record.
func avcCodec(entry *Node) (string, error) {
	cfg := entry.Find("avcC")
	if cfg == nil {
		return "", &ExtractionError{Box: entry.Name, Field: "avcC"}
	}

	raw, ok := cfg.Field("Profile")
	if !ok {
		return "", &ExtractionError{Box: "avcC", Field: "Profile"}
	}
	profile, ok := avcProfiles[raw]
	if !ok {
		n, err := parseByte(raw)
		if err != nil {
			return "", &ExtractionError{Box: "avcC", Field: "Profile"}
		}
		profile = n
	}

	raw, ok = cfg.Field("Profile Compatibility")
	if !ok {
		return "", &ExtractionError{Box: "avcC", Field: "Profile Compatibility"}
	}
	compat, err := parseHexByte(raw)
	if err != nil {
		return "", &ExtractionError{Box: "avcC", Field: "Profile Compatibility"}
	}

	raw, ok = cfg.Field("Level")
	if !ok {
		return "", &ExtractionError{Box: "avcC", Field: "Level"}
	}
	level, err := parseByte(raw)
	if err != nil {
		return "", &ExtractionError{Box: "avcC", Field: "Level"}
	}

	return AVC(entry.Name, profile, compat, level), nil
}

// mp4aCodec builds mp4a.OO.A from the elementary stream descriptor.
func mp4aCodec(entry *Node) (string, error) {
	esds := entry.Find("esds")
	if esds == nil {
		return "", &ExtractionError{Box: "mp4a", Field: "esds"}
	}
	scope := esds
	if dc := esds.Find("DecoderConfig"); dc != nil {
		scope = dc
	}

	raw, ok := scope.FindField("object_type")
	if !ok {
		return "", &ExtractionError{Box: "esds", Field: "object_type"}
	}
	oti, err := parseByte(raw)
	if err != nil {
		return "", &ExtractionError{Box: "esds", Field: "object_type"}
	}

	raw, ok = scope.FindField("DecoderSpecificInfo")
	if !ok {
		return "", &ExtractionError{Box: "esds", Field: "DecoderSpecificInfo"}
	}
	first, err := firstHexByte(raw)
	if err != nil {
		return "", &ExtractionError{Box: "esds", Field: "DecoderSpecificInfo"}
	}

	return MP4A(oti, first), nil
}

// AVC formats an H.264 codec string, e.g. avc1.640028.
func AVC(sampleEntry string, profile, constraints, level uint8) string {
	return fmt.Sprintf("%s.%02X%02X%02X", sampleEntry, profile, constraints, level)
}

// MP4A formats an MPEG-4 audio codec string from the object type
// indication and the first byte of the AudioSpecificConfig.
func MP4A(objectType, asc0 uint8) string {
	return fmt.Sprintf("mp4a.%02X.%d", objectType, (asc0&0xF8)>>3)
}

// parseByte accepts 0x-prefixed hex, decimal, or bare hex.
func parseByte(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 8)
		return uint8(n), err
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return uint8(n), nil
	}
	n, err := strconv.ParseUint(s, 16, 8)
	return uint8(n), err
}

// parseHexByte reads a byte printed in hex, with or without 0x. mp4dump
// prints Profile Compatibility this way, e.g. "40" for x264 main.
func parseHexByte(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 8)
	return uint8(n), err
}

// firstHexByte reads the first byte of a "[12 10]" or "12 10" byte list.
func firstHexByte(s string) (uint8, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty byte list")
	}
	tok := fields[0]
	if len(tok) > 2 && !strings.HasPrefix(tok, "0x") {
		// packed form, e.g. "1210"
		tok = tok[:2]
	}
	tok = strings.TrimPrefix(tok, "0x")
	n, err := strconv.ParseUint(tok, 16, 8)
	return uint8(n), err
}
