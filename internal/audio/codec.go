package audio

import (
	"bytes"
	"errors"
	"fmt"
)

// Codec identifies the real stream format of a decrypted payload.
type Codec string

const (
	CodecMP3  Codec = "mp3"
	CodecFLAC Codec = "flac"
	CodecOgg  Codec = "ogg"
	CodecM4A  Codec = "m4a"
	CodecWAV  Codec = "wav"
)

// ErrUnrecognizedCodec reports a payload whose magic bytes match no
// supported stream format.
var ErrUnrecognizedCodec = errors.New("unrecognized audio codec")

// Extension returns the canonical file extension, dot included.
func (c Codec) Extension() string {
	return "." + string(c)
}

// Sniff identifies the codec from the payload's leading bytes.
func Sniff(data []byte) (Codec, error) {
	if len(data) < 4 {
		return "", fmt.Errorf("%w: payload too short", ErrUnrecognizedCodec)
	}
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return CodecFLAC, nil
	case bytes.HasPrefix(data, []byte("ID3")):
		return CodecMP3, nil
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Frame sync without an ID3 tag.
		return CodecMP3, nil
	case bytes.HasPrefix(data, []byte("OggS")):
		return CodecOgg, nil
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WAVE")):
		return CodecWAV, nil
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return CodecM4A, nil
	}
	return "", ErrUnrecognizedCodec
}
