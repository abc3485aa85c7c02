package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrDurationUnavailable reports a payload whose headers carry no usable
// playback length.
var ErrDurationUnavailable = errors.New("duration unavailable")

// MPEG1 Layer III bitrate table in kbps.
var mp3BitrateTable = []int{
	0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0,
}

// MPEG1 sample rate table in Hz.
var mp3SampleRateTable = []int{
	44100, 48000, 32000, 0,
}

const mp3SamplesPerFrame = 1152

// Duration probes stream headers for playback length without decoding
// audio. FLAC reads STREAMINFO; MP3 prefers a Xing/VBRI frame count and
// falls back to a CBR estimate from the first frame's bitrate.
func Duration(r io.ReaderAt, size int64) (time.Duration, error) {
	head := make([]byte, 16)
	if size < int64(len(head)) {
		return 0, fmt.Errorf("%w: payload too short", ErrDurationUnavailable)
	}
	if _, err := r.ReadAt(head, 0); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	codec, err := Sniff(head)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDurationUnavailable, err)
	}
	switch codec {
	case CodecFLAC:
		return flacDuration(r, size)
	case CodecMP3:
		return mp3Duration(r, size, head)
	default:
		return 0, fmt.Errorf("%w: no %s prober", ErrDurationUnavailable, codec)
	}
}

// flacDuration reads sample rate and total samples out of STREAMINFO,
// which the format guarantees is the first metadata block.
func flacDuration(r io.ReaderAt, size int64) (time.Duration, error) {
	// magic(4) + block header(4) + STREAMINFO(34)
	buf := make([]byte, 42)
	if size < int64(len(buf)) {
		return 0, fmt.Errorf("%w: flac header truncated", ErrDurationUnavailable)
	}
	if _, err := r.ReadAt(buf, 0); err != nil {
		return 0, fmt.Errorf("read streaminfo: %w", err)
	}
	if buf[4]&0x7F != 0 {
		return 0, fmt.Errorf("%w: first block is not STREAMINFO", ErrDurationUnavailable)
	}

	info := buf[8:42]
	sampleRate := int(info[10])<<12 | int(info[11])<<4 | int(info[12])>>4
	totalSamples := uint64(info[13]&0x0F)<<32 |
		uint64(info[14])<<24 |
		uint64(info[15])<<16 |
		uint64(info[16])<<8 |
		uint64(info[17])
	if sampleRate == 0 {
		return 0, fmt.Errorf("%w: zero sample rate", ErrDurationUnavailable)
	}
	if totalSamples == 0 {
		return 0, fmt.Errorf("%w: unknown sample count", ErrDurationUnavailable)
	}
	seconds := float64(totalSamples) / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}

// mp3Duration skips any ID3v2 tag, finds the first frame header, and
// derives the length from a Xing/VBRI frame count or a CBR estimate.
func mp3Duration(r io.ReaderAt, size int64, head []byte) (time.Duration, error) {
	var audioStart int64
	if head[0] == 'I' && head[1] == 'D' && head[2] == '3' {
		// ID3v2 size is a 28-bit synchsafe integer.
		tagSize := int64(head[6]&0x7F)<<21 | int64(head[7]&0x7F)<<14 | int64(head[8]&0x7F)<<7 | int64(head[9]&0x7F)
		audioStart = tagSize + 10
	}
	if audioStart+4 > size {
		return 0, fmt.Errorf("%w: no audio after tag", ErrDurationUnavailable)
	}

	// Scan a bounded window for the frame sync.
	window := size - audioStart
	if window > 64*1024 {
		window = 64 * 1024
	}
	buf := make([]byte, window)
	if _, err := r.ReadAt(buf, audioStart); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read frames: %w", err)
	}

	for i := 0; i+4 <= len(buf); i++ {
		header := binary.BigEndian.Uint32(buf[i : i+4])
		if header&0xFFE00000 != 0xFFE00000 {
			continue
		}
		version := (header >> 19) & 0x3
		layer := (header >> 17) & 0x3
		if (version != 3 && version != 2) || layer != 1 {
			continue
		}

		bitrate := mp3BitrateTable[(header>>12)&0xF] * 1000
		sampleRate := mp3SampleRateTable[(header>>10)&0x3]
		if bitrate == 0 || sampleRate == 0 {
			continue
		}

		if frames, ok := vbrFrameCount(buf[i:]); ok {
			seconds := float64(frames) * mp3SamplesPerFrame / float64(sampleRate)
			return time.Duration(seconds * float64(time.Second)), nil
		}
		seconds := float64(size-audioStart) * 8 / float64(bitrate)
		return time.Duration(seconds * float64(time.Second)), nil
	}

	return 0, fmt.Errorf("%w: no valid mp3 frame found", ErrDurationUnavailable)
}

// vbrFrameCount looks for a Xing/Info or VBRI header in the first frame.
func vbrFrameCount(frame []byte) (uint32, bool) {
	if len(frame) >= 48 {
		marker := string(frame[36:40])
		if marker == "Xing" || marker == "Info" {
			flags := binary.BigEndian.Uint32(frame[40:44])
			if flags&0x1 != 0 {
				return binary.BigEndian.Uint32(frame[44:48]), true
			}
		}
		if marker == "VBRI" && len(frame) >= 54 {
			return binary.BigEndian.Uint32(frame[50:54]), true
		}
	}
	return 0, false
}
