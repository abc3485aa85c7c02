// Package ingest places unlocked tracks into their final directory with
// exactly one filesystem move per file. Same-filesystem moves rename;
// cross-filesystem moves copy, verify the copy, and only then delete the
// source. A failed verification always leaves the source in place.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"unspool/internal/fileutil"
	"unspool/internal/textutil"
)

var (
	// ErrVerifyFailed reports a cross-filesystem copy whose destination did
	// not match the source. The source file is untouched.
	ErrVerifyFailed = errors.New("moved copy failed verification")

	// ErrMoveFailed reports a move that failed for filesystem reasons other
	// than space or verification.
	ErrMoveFailed = errors.New("move failed")

	// ErrDestinationFull reports a destination filesystem without room for
	// the file.
	ErrDestinationFull = errors.New("destination filesystem full")
)

// Move relocates src into destDir under name, creating destDir as needed.
// When name is already taken the file gets a " (2)", " (3)", ... suffix
// before its extension. Returns the final path.
func Move(src, destDir, name string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrMoveFailed, destDir, err)
	}
	dst, err := reserveUniquePath(destDir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}

	err = os.Rename(src, dst)
	switch {
	case err == nil:
		return dst, nil
	case fileutil.IsCrossDevice(err):
		if err := copyAcross(src, dst); err != nil {
			_ = os.Remove(dst)
			return "", err
		}
		return dst, nil
	case fileutil.IsNoSpace(err):
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: %v", ErrDestinationFull, err)
	default:
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
}

// copyAcross implements the cross-filesystem leg of Move. The source is
// deleted only after the copy verified; if the source cannot be deleted the
// copy is rolled back so the move stays all-or-nothing.
func copyAcross(src, dst string) error {
	if err := fileutil.CopyFileVerified(src, dst, ""); err != nil {
		switch {
		case errors.Is(err, fileutil.ErrVerify):
			return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
		case fileutil.IsNoSpace(err):
			return fmt.Errorf("%w: %v", ErrDestinationFull, err)
		default:
			return fmt.Errorf("%w: %v", ErrMoveFailed, err)
		}
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("%w: source not removed after copy: %v", ErrMoveFailed, err)
	}
	return nil
}

// reserveUniquePath claims the first free destination for name inside
// dir by creating an empty placeholder with O_EXCL. Concurrent movers
// racing for the same name therefore claim distinct paths; the rename
// that follows replaces the claimant's own placeholder.
func reserveUniquePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for n := 2; ; n++ {
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				_ = os.Remove(candidate)
				return "", err
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}

// TrackFileName builds the destination file name for an unlocked track:
// "Artist - Title.ext" when both are known, "Title.ext" without an artist,
// and the source file's own stem when the track carried no usable title.
func TrackFileName(title string, artists []string, sourcePath, ext string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		base := filepath.Base(sourcePath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	} else if len(artists) > 0 && strings.TrimSpace(artists[0]) != "" {
		title = strings.TrimSpace(artists[0]) + " - " + title
	}
	return textutil.SanitizeFileName(title) + ext
}
