// Package docname builds storage-safe filenames for uploaded artifacts.
package docname

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold strips diacritics so "Zürich GmbH" becomes "Zurich GmbH".
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize reduces s to [A-Za-z0-9_-], folding accents and collapsing
// whitespace to underscores. Empty input maps to the fallback.
func Sanitize(s, fallback string) string {
	folded, _, err := transform.String(asciiFold, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case unicode.IsSpace(r):
			// Runs of whitespace (and any dropped punctuation between)
			// collapse to a single separator.
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return fallback
	}
	return out
}

// PDF builds "{prefix}_{position}_{company}_{yyyymmdd}_{id4}.pdf", each
// segment sanitized. The short random suffix keeps same-day uploads for the
// same posting from colliding.
func PDF(prefix, position, company string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s.pdf",
		Sanitize(prefix, "document"),
		Sanitize(position, "role"),
		Sanitize(company, "company"),
		now.UTC().Format("20060102"),
		uuid.NewString()[:4],
	)
}
