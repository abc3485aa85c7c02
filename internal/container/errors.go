package container

import "errors"

var (
	// ErrUnsupported reports a file that matches no known container format.
	ErrUnsupported = errors.New("unsupported container format")
	// ErrBadMagic reports a file whose leading bytes contradict its
	// detected format.
	ErrBadMagic = errors.New("bad container magic")
	// ErrTruncated reports a header-declared length that runs past the end
	// of the file.
	ErrTruncated = errors.New("truncated container")
	// ErrBadChecksum reports a metadata block whose stored checksum does
	// not match its contents.
	ErrBadChecksum = errors.New("metadata checksum mismatch")
)
