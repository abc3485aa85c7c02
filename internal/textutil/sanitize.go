package textutil

import "strings"

// SanitizeFileName makes a tag-derived string safe to use as a file
// name. Path separators, colons, and asterisks become dashes so word
// boundaries survive; the remaining reserved characters are dropped.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		default:
			return r
		}
	}, name)
	return strings.TrimSpace(mapped)
}
