package container

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"unspool/internal/cipher"
)

// Metadata is whatever the container header says about its track. All
// fields are best effort; the decrypted stream is the source of truth.
type Metadata struct {
	Title       string
	Artists     []string
	Album       string
	Format      string
	DurationMS  int64
	AlbumPicURL string
}

// Warning records a non-fatal defect found while parsing.
type Warning struct {
	Op      string
	Message string
}

// Container is a parsed container file: recovered key material, metadata
// and artwork when the header carried them, and the location of the still
// encrypted audio payload.
type Container struct {
	Format        Format
	Metadata      *Metadata
	Artwork       []byte
	KeyMaterial   []byte
	PayloadOffset int64
	PayloadSize   int64
	Warnings      []Warning
}

// Scrub zeroes and drops the recovered key material. Call it once the
// payload has been decrypted.
func (c *Container) Scrub() {
	if c == nil {
		return
	}
	cipher.Zero(c.KeyMaterial)
	c.KeyMaterial = nil
}

// Parser recovers structure from one container family.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt, size int64) (*Container, error)
}

// ParserFor returns the parser for a detected format.
func ParserFor(format Format) (Parser, bool) {
	switch format {
	case FormatNCM:
		return NCMParser{}, true
	case FormatQMC:
		return QMCParser{}, true
	default:
		return nil, false
	}
}

// reader walks the header sequentially, bound-checking every declared
// length against the bytes actually present before allocating for them.
type reader struct {
	r    io.ReaderAt
	size int64
	off  int64
}

func (rd *reader) remaining() int64 {
	return rd.size - rd.off
}

func (rd *reader) read(n int64, what string) ([]byte, error) {
	if n < 0 || n > rd.remaining() {
		return nil, fmt.Errorf("%s: need %d bytes, have %d: %w", what, n, rd.remaining(), ErrTruncated)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := rd.r.ReadAt(buf, rd.off); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	rd.off += n
	return buf, nil
}

func (rd *reader) readUint32(what string) (uint32, error) {
	buf, err := rd.read(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (rd *reader) skip(n int64, what string) error {
	if n > rd.remaining() {
		return fmt.Errorf("%s: need %d bytes, have %d: %w", what, n, rd.remaining(), ErrTruncated)
	}
	rd.off += n
	return nil
}
