package container

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"unspool/internal/audio"
	"unspool/internal/cipher"
)

// QMCParser handles the static-mask family. These files carry no header:
// the whole body is ciphertext. Parsing is a decrypt probe of the leading
// bytes plus a scan for the keyed-scheme tails this package does not
// decrypt.
type QMCParser struct{}

const qmcProbeLen = 64

func (QMCParser) Parse(ctx context.Context, r io.ReaderAt, size int64) (*Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("empty file: %w", ErrTruncated)
	}

	if scheme, ok := detectKeyedTail(r, size); ok {
		return nil, fmt.Errorf("%s tail: %w", scheme, cipher.ErrUnknownScheme)
	}

	probeLen := int64(qmcProbeLen)
	if probeLen > size {
		probeLen = size
	}
	probe := make([]byte, probeLen)
	if _, err := r.ReadAt(probe, 0); err != nil {
		return nil, fmt.Errorf("read probe: %w", err)
	}
	cipher.StaticCipher{}.Decrypt(probe, 0)
	if _, err := audio.Sniff(probe); err != nil {
		return nil, fmt.Errorf("static mask probe found no audio stream: %w", cipher.ErrUnknownScheme)
	}

	return &Container{Format: FormatQMC, PayloadOffset: 0, PayloadSize: size}, nil
}

// detectKeyedTail recognizes the per-file-key suffixes: a "QTag"/"STag"
// marker in the last four bytes, or a little-endian key length whose
// base64 key block sits immediately before it.
func detectKeyedTail(r io.ReaderAt, size int64) (string, bool) {
	if size < 8 {
		return "", false
	}
	tail := make([]byte, 8)
	if _, err := r.ReadAt(tail, size-8); err != nil {
		return "", false
	}
	marker := tail[4:8]
	if bytes.Equal(marker, []byte("QTag")) || bytes.Equal(marker, []byte("STag")) {
		return string(marker), true
	}

	keyLen := int64(binary.LittleEndian.Uint32(marker))
	if keyLen >= 0x20 && keyLen <= 0x400 && keyLen+4 <= size {
		key := make([]byte, keyLen)
		if _, err := r.ReadAt(key, size-4-keyLen); err == nil && looksBase64(key) {
			return "embedded key", true
		}
	}
	return "", false
}

func looksBase64(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		case b == '+', b == '/', b == '=':
		default:
			return false
		}
	}
	_, err := base64.StdEncoding.DecodeString(string(data))
	return err == nil
}
