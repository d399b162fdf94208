package catalog

import "strings"

// Slugify normalizes a heading, anchor, or file name into the catalog's
// slug form: lowercase, leading '#' stripped, whitespace collapsed to
// single hyphens, anything outside [a-z0-9-] dropped, and repeated or
// edge hyphens trimmed.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "#")

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '\t' || r == '\n' || r == '-':
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		// everything else is dropped
	}
	return strings.TrimRight(b.String(), "-")
}
