// Package ndc holds helpers for National Drug Code identifiers. Codes are
// nominally NNNNN-NNNN-NN but both OCR output and typed input drift on hyphen
// placement, so matching works on normalized (hyphen-free) forms.
package ndc

import (
	"regexp"
	"strings"
)

// pattern accepts the common segment-length variants seen on packaging.
var pattern = regexp.MustCompile(`\b\d{4,5}-\d{2,4}-\d{1,2}\b`)

// Extract returns every code-shaped substring in text, in order of
// appearance, without deduplication.
func Extract(text string) []string {
	return pattern.FindAllString(text, -1)
}

// Normalize strips hyphens and surrounding space so that variant hyphenations
// of the same code compare equal.
func Normalize(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), "-", "")
}

// FuzzyMatch reports whether two codes refer to the same record under the
// tolerant rule: equal after normalization, or one raw form contains the
// other. Containment can match unrelated codes when one is a prefix of
// another; that recall-over-precision trade-off is deliberate and callers
// must not tighten it without changing observable resolution behavior.
func FuzzyMatch(query, candidate string) bool {
	if Normalize(query) == Normalize(candidate) {
		return true
	}
	return strings.Contains(candidate, query) || strings.Contains(query, candidate)
}
