package testsupport

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

// FLACBytes produces a minimal FLAC stream: a STREAMINFO block describing the
// given sample rate and total sample count, followed by the raw frame bytes.
// The frame bytes are opaque filler; only the headers need to parse.
func FLACBytes(t testing.TB, sampleRate int, totalSamples int64, frames []byte) []byte {
	t.Helper()

	const channels, bitsPerSample = 2, 16
	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:2], 4096)
	binary.BigEndian.PutUint16(info[2:4], 4096)
	info[10] = byte(sampleRate >> 12)
	info[11] = byte(sampleRate >> 4)
	info[12] = byte(sampleRate&0xF)<<4 | (channels-1)<<1 | (bitsPerSample-1)>>4
	info[13] = byte((bitsPerSample-1)&0xF)<<4 | byte(totalSamples>>32)&0x0F
	binary.BigEndian.PutUint32(info[14:18], uint32(totalSamples))

	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.WriteByte(0x80)
	buf.Write([]byte{0, 0, 34})
	buf.Write(info)
	buf.Write([]byte{0xFF, 0xF8})
	buf.Write(frames)
	return buf.Bytes()
}

// MP3Bytes produces a constant-bitrate MPEG-1 Layer III stream that probes to
// roughly the requested duration: an empty ID3v2.4 tag followed by a 128 kbps
// 44.1 kHz frame header and silence filler.
func MP3Bytes(t testing.TB, seconds int) []byte {
	t.Helper()

	if seconds <= 0 {
		seconds = 1
	}
	buf := make([]byte, 10+seconds*16000)
	copy(buf, "ID3")
	buf[3] = 4
	copy(buf[10:], []byte{0xFF, 0xFB, 0x90, 0x00})
	return buf
}

// PNGBytes produces a PNG whose dimensions decode, with no pixel data behind
// them. Good enough for cover-art plumbing that only inspects the header.
func PNGBytes(t testing.TB, width, height int) []byte {
	t.Helper()

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(height))
	ihdr[8] = 8
	ihdr[9] = 2

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})
	writePNGChunk(&buf, "IHDR", ihdr)
	writePNGChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writePNGChunk(buf *bytes.Buffer, typ string, data []byte) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(data)))
	buf.Write(scratch[:])
	buf.WriteString(typ)
	buf.Write(data)
	sum := crc32.NewIEEE()
	sum.Write([]byte(typ))
	sum.Write(data)
	binary.BigEndian.PutUint32(scratch[:], sum.Sum32())
	buf.Write(scratch[:])
}
