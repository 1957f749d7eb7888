package ladder

import (
	"sort"
	"strings"

	"github.com/agleyzer/hlsladder/internal/failure"
)

// Placeholder sets accepted by the two kinds of templates.
var (
	FilenameFields = []string{"index", "width", "resolution", "bitrate", "codec", "name", "profile"}
	OverlayFields  = []string{"width", "resolution", "bitrate", "codec", "profile", "name"}
)

// Template is a parsed "{field}" template. "{{" and "}}" are literal braces.
type Template struct {
	src   string
	parts []part
}

type part struct {
	literal string
	field   string
}

// ParseTemplate parses src and rejects any placeholder not in allowed.
func ParseTemplate(src string, allowed []string) (*Template, error) {
	known := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		known[f] = true
	}

	t := &Template{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, failure.Configf("template %q: unterminated placeholder at offset %d", src, i)
			}
			field := strings.TrimSpace(src[i+1 : i+1+end])
			if !known[field] {
				return nil, failure.Configf("template %q: unknown placeholder {%s} (allowed: %s)",
					src, field, strings.Join(sorted(allowed), ", "))
			}
			flush()
			t.parts = append(t.parts, part{field: field})
			i += end + 1
		case c == '}':
			return nil, failure.Configf("template %q: unmatched } at offset %d", src, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return t, nil
}

// Render substitutes fields into the template. Fields missing from the map
// render as empty strings; ParseTemplate has already rejected unknown names.
func (t *Template) Render(fields map[string]string) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.field != "" {
			b.WriteString(fields[p.field])
			continue
		}
		b.WriteString(p.literal)
	}
	return b.String()
}

// String returns the template source.
func (t *Template) String() string { return t.src }

// Empty reports whether the template renders nothing.
func (t *Template) Empty() bool { return t == nil || len(t.parts) == 0 }

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
