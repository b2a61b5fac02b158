package generator

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keySuffix closes every worksheet file key.
const keySuffix = "worksheet"

// DeriveFileKey builds the externally visible handle for a worksheet:
// an optional subject prefix, the sanitized concept/topic token, the
// sanitized grade token, an optional millisecond timestamp, and a fixed
// suffix, joined with dashes.
//
// Keys without a timestamp are deterministic for identical inputs; keys
// with one are unique per call so concurrent generations by the same
// user cannot overwrite each other.
func DeriveFileKey(prefix, concept, gradeLevel string, ts *time.Time) string {
	parts := make([]string, 0, 5)
	if prefix != "" {
		parts = append(parts, prefix)
	}

	concept = SanitizeToken(concept)
	if concept == "" {
		concept = "untitled"
	}
	parts = append(parts, concept)

	grade := SanitizeToken(gradeLevel)
	if grade == "" {
		grade = "any"
	}
	parts = append(parts, "grade-"+grade)

	if ts != nil {
		parts = append(parts, strconv.FormatInt(ts.UnixMilli(), 10))
	}

	parts = append(parts, keySuffix)
	return strings.Join(parts, "-")
}

// foldDiacritics strips combining marks after NFD decomposition, so
// "Poésie Française" sanitizes the same as "Poesie Francaise".
var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// SanitizeToken lowercases a free-text token, folds diacritics, and
// replaces every non-alphanumeric run with a single dash.
func SanitizeToken(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
