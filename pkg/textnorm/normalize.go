// Package textnorm turns raw post bodies from the API into plain text.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/microcosm-cc/bluemonday"
)

var (
	lineBreak    = regexp.MustCompile(`(?i)<br\s*/?>`)
	escapedRun   = regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4})+`)
	strictPolicy = bluemonday.StrictPolicy()

	// bluemonday re-escapes text it keeps, so the numeric forms it emits are
	// listed next to the named ones
	entities = strings.NewReplacer(
		"&nbsp;", " ",
		"\u00a0", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&hellip;", "…",
	)
)

// Normalize converts a raw body to display text. Escaped \uXXXX sequences are
// decoded, <br> becomes a newline, every other tag is removed, a fixed set of
// entities is replaced and surrounding whitespace is trimmed.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := DecodeEscapes(raw)
	text = lineBreak.ReplaceAllString(text, "\n")
	text = strictPolicy.Sanitize(text)
	text = entities.Replace(text)
	return strings.TrimSpace(text)
}

// DecodeEscapes replaces runs of \uXXXX escapes with the characters they
// encode, pairing UTF-16 surrogates. A run that does not form valid UTF-16 is
// left as it was.
func DecodeEscapes(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	return escapedRun.ReplaceAllStringFunc(s, func(run string) string {
		units := make([]uint16, 0, len(run)/6)
		for i := 0; i+6 <= len(run); i += 6 {
			v, err := strconv.ParseUint(run[i+2:i+6], 16, 16)
			if err != nil {
				return run
			}
			units = append(units, uint16(v))
		}
		for i := 0; i < len(units); i++ {
			u := units[i]
			switch {
			case u >= 0xD800 && u < 0xDC00:
				if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
					return run
				}
				i++
			case u >= 0xDC00 && u <= 0xDFFF:
				return run
			}
		}
		return string(utf16.Decode(units))
	})
}

// ContainsAny reports whether text contains any keyword, ignoring case. An
// empty keyword list matches everything.
func ContainsAny(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
