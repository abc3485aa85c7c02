package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeField canonicalizes a metadata field for comparison: Unicode
// compatibility normalization (NFKC), case folding, and whitespace collapse.
// Fullwidth variants, ligatures, and case differences all compare equal, so
// the same track tagged by different stores yields the same key.
func NormalizeField(value string) string {
	value = norm.NFKC.String(value)
	// Casers are stateful; build one per call.
	value = cases.Fold().String(value)
	return CollapseWhitespace(value)
}

// CollapseWhitespace trims the value and replaces interior whitespace runs
// with single spaces.
func CollapseWhitespace(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	prevSpace := false
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return b.String()
}

// DeriveTitle produces a human-readable title from a file path when embedded
// metadata offers none. Separator runs become single spaces and the result
// is title-cased.
func DeriveTitle(sourcePath string) string {
	if sourcePath == "" {
		return "Unknown Track"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		title = "Unknown Track"
	}
	return cases.Title(language.Und).String(title)
}
