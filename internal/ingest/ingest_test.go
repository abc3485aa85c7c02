package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"unspool/internal/testsupport"
)

func TestMoveRenames(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "staged.flac")
	testsupport.WriteFile(t, src, 512)
	want := testsupport.ReadFileBytes(t, src)

	destDir := filepath.Join(base, "library", "2026")
	dst, err := Move(src, destDir, "Artist - Track.flac")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if dst != filepath.Join(destDir, "Artist - Track.flac") {
		t.Fatalf("dst = %q", dst)
	}
	if got := testsupport.ReadFileBytes(t, dst); string(got) != string(want) {
		t.Fatal("moved content differs from source")
	}
	if _, err := os.Lstat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after move: %v", err)
	}
}

func TestMoveSuffixesCollisions(t *testing.T) {
	base := t.TempDir()
	destDir := filepath.Join(base, "library")

	var got []string
	for i := 0; i < 3; i++ {
		src := filepath.Join(base, "staged.flac")
		testsupport.WriteFile(t, src, int64(64+i))
		dst, err := Move(src, destDir, "Track.flac")
		if err != nil {
			t.Fatalf("Move %d: %v", i, err)
		}
		got = append(got, filepath.Base(dst))
	}

	want := []string{"Track.flac", "Track (2).flac", "Track (3).flac"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("move %d landed at %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReserveUniquePathClaimsName(t *testing.T) {
	dir := t.TempDir()

	// Two movers racing for the same name must claim distinct paths
	// even before either rename lands.
	first, err := reserveUniquePath(dir, "Track.flac")
	if err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	second, err := reserveUniquePath(dir, "Track.flac")
	if err != nil {
		t.Fatalf("second reservation: %v", err)
	}
	if filepath.Base(first) != "Track.flac" || filepath.Base(second) != "Track (2).flac" {
		t.Fatalf("reserved %q and %q", first, second)
	}
	for _, p := range []string{first, second} {
		if _, err := os.Lstat(p); err != nil {
			t.Fatalf("reservation %q not on disk: %v", p, err)
		}
	}
}

func TestMoveCleansUpFailedReservation(t *testing.T) {
	base := t.TempDir()
	destDir := filepath.Join(base, "library")

	if _, err := Move(filepath.Join(base, "absent.flac"), destDir, "Track.flac"); !errors.Is(err, ErrMoveFailed) {
		t.Fatalf("error = %v, want ErrMoveFailed", err)
	}
	if _, err := os.Lstat(filepath.Join(destDir, "Track.flac")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed move left a placeholder: %v", err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	base := t.TempDir()
	if _, err := Move(filepath.Join(base, "absent.flac"), filepath.Join(base, "library"), "x.flac"); !errors.Is(err, ErrMoveFailed) {
		t.Fatalf("error = %v, want ErrMoveFailed", err)
	}
}

func TestCopyAcross(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "staged.flac")
	testsupport.WriteFile(t, src, 2048)
	want := testsupport.ReadFileBytes(t, src)
	dst := filepath.Join(base, "library.flac")

	if err := copyAcross(src, dst); err != nil {
		t.Fatalf("copyAcross: %v", err)
	}
	if got := testsupport.ReadFileBytes(t, dst); string(got) != string(want) {
		t.Fatal("copied content differs from source")
	}
	if _, err := os.Lstat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("source survived a verified copy")
	}
}

func TestCopyAcrossMissingSource(t *testing.T) {
	base := t.TempDir()
	err := copyAcross(filepath.Join(base, "absent.flac"), filepath.Join(base, "out.flac"))
	if !errors.Is(err, ErrMoveFailed) {
		t.Fatalf("error = %v, want ErrMoveFailed", err)
	}
	if _, statErr := os.Lstat(filepath.Join(base, "out.flac")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed copy left a destination file")
	}
}

func TestTrackFileName(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		artists []string
		source  string
		ext     string
		want    string
	}{
		{"full metadata", "Night Drive", []string{"Neon Lights", "Analog Dreams"}, "/in/a.ncm", ".flac", "Neon Lights - Night Drive.flac"},
		{"no artist", "Night Drive", nil, "/in/a.ncm", ".flac", "Night Drive.flac"},
		{"blank artist", "Night Drive", []string{"  "}, "/in/a.ncm", ".mp3", "Night Drive.mp3"},
		{"untitled keeps source stem", "", nil, "/in/mystery_track.ncm", ".flac", "mystery_track.flac"},
		{"unsafe characters", "Back in Black", []string{"AC/DC"}, "/in/a.ncm", ".flac", "AC-DC - Back in Black.flac"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrackFileName(tc.title, tc.artists, tc.source, tc.ext); got != tc.want {
				t.Fatalf("TrackFileName = %q, want %q", got, tc.want)
			}
		})
	}
}
