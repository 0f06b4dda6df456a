package atom

import (
	"fmt"
	"strings"
)

// SlugHeaderValue encodes a slug for the Slug request header per RFC
// 5023: bytes above 0x7F and the percent sign are percent-encoded, CR
// and LF are stripped, and NUL bytes are dropped.
func SlugHeaderValue(slug string) string {
	var sb strings.Builder
	sb.Grow(len(slug))
	for _, b := range []byte(slug) {
		switch {
		case b > 0x7F || b == '%':
			fmt.Fprintf(&sb, "%%%02X", b)
		case b == '\r' || b == '\n':
			// not allowed in slugs
		case b == 0:
			// never expected; drop rather than corrupt the header
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}
