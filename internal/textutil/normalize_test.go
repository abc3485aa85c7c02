package textutil_test

import (
	"testing"

	"unspool/internal/textutil"
)

func TestNormalizeFieldFoldsCaseAndWidth(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Night Drive", "night drive"},
		{"collapses whitespace", "  night \t drive  ", "night drive"},
		{"folds fullwidth", "ＮＩＧＨＴ", "night"},
		{"folds ligature", "ﬁnal", "final"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.NormalizeField(tc.in); got != tc.want {
				t.Fatalf("NormalizeField(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeFieldEquatesTagVariants(t *testing.T) {
	a := textutil.NormalizeField("Ｃｏｕｎｔｄｏｗｎ　ＴＯ　Midnight")
	b := textutil.NormalizeField("countdown to midnight")
	if a != b {
		t.Fatalf("expected variants to normalize equal: %q vs %q", a, b)
	}
}

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"separators", "/in/box/midnight_city-remaster.ncm", "Midnight City Remaster"},
		{"already clean", "/in/box/Holiday.qmcflac", "Holiday"},
		{"empty", "", "Unknown Track"},
		{"only separators", "/in/box/___.ncm", "Unknown Track"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.DeriveTitle(tc.in); got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := textutil.SanitizeFileName("AC/DC: Back?"); got != "AC-DC- Back" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
	if got := textutil.SanitizeFileName("  "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
