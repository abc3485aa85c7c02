package fileutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// ErrVerify reports a copy whose destination does not match its source.
var ErrVerify = errors.New("copy verification failed")

// CopyFileVerified streams src to dst, then re-reads dst from disk and
// compares sizes and BLAKE3 digests before reporting success, removing
// dst on any mismatch. When wantHash is non-empty the copy must also
// match that digest (lowercase hex), which catches a source that
// changed after it was hashed.
func CopyFileVerified(src, dst, wantHash string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	srcHasher := blake3.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("%w: source %d bytes, copied %d bytes", ErrVerify, srcSize, written)
	}

	srcSum := hex.EncodeToString(srcHasher.Sum(nil))
	if wantHash != "" && srcSum != wantHash {
		_ = os.Remove(dst)
		return fmt.Errorf("%w: got %s, want %s", ErrVerify, srcSum, wantHash)
	}

	// The verify reads the destination back from disk, so a write that
	// the filesystem acknowledged but mangled is still caught.
	dstSum, dstSize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("read back destination: %w", err)
	}
	if dstSize != srcSize || dstSum != srcSum {
		_ = os.Remove(dst)
		return fmt.Errorf("%w: destination differs from source after copy", ErrVerify)
	}

	return nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// WriteFileAtomic writes data to a temporary file beside path and renames it
// into place, so readers never observe a partial write.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// IsCrossDevice reports whether err is rename's cross-filesystem failure.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

// IsNoSpace reports whether err indicates the destination filesystem is full.
func IsNoSpace(err error) bool {
	return errors.Is(err, unix.ENOSPC)
}
