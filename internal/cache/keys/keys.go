// Package keys derives stable cache keys for filtered query responses.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"schoolmap-api/internal/core/model"
)

// Query builds the cache key for a filtered marker response. The readable
// segment is sanitized and capped; the xxhash suffix over the exact selection
// keeps distinct selections from colliding after sanitization.
func Query(version uint64, sel model.Selection) string {
	canonical := canonicalSelection(sel)
	safe := sanitize(canonical)

	const maxTextLen = 160
	if len(safe) > maxTextLen {
		safe = safe[:maxTextLen]
	}

	sum := xxhash.Sum64String(canonical)
	return fmt.Sprintf("query:v%d:%s:f=%016x", version, safe, sum)
}

func canonicalSelection(sel model.Selection) string {
	var b strings.Builder
	for i, lv := range model.Levels() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(lv.String())
		b.WriteByte('=')
		b.WriteString(sel.Value(lv))
	}
	return b.String()
}

// sanitize maps a selection string onto the redis-safe key alphabet:
// whitespace runs become '_', anything outside [A-Za-z0-9:_=|-] becomes '-',
// and repeated '_'/'-' collapse.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '|':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
