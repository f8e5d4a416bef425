// Package textutil holds text helpers shared across services.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespace = regexp.MustCompile(`\s`)
	nonLatin   = regexp.MustCompile(`[^\w-]`)
	dashRuns   = regexp.MustCompile(`-{2,}`)
)

// MakeSlug derives a URL-safe identifier from a human-readable name.
// Accented letters lose their marks, other non-word characters are dropped,
// and whitespace becomes a single dash. Distinct names may share a slug.
func MakeSlug(name string) string {
	if name == "" {
		return ""
	}

	s := whitespace.ReplaceAllString(name, "-")

	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	s = nonLatin.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
