package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"time"

	id3v2 "github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"

	"unspool/internal/testsupport"
)

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Codec
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22"), CodecFLAC},
		{"id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), CodecMP3},
		{"framesync", []byte{0xFF, 0xFB, 0x90, 0x00}, CodecMP3},
		{"ogg", []byte("OggS\x00\x02"), CodecOgg},
		{"wav", append([]byte("RIFF\x24\x00\x00\x00"), []byte("WAVE")...), CodecWAV},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), CodecM4A},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sniff(tc.data)
			if err != nil {
				t.Fatalf("Sniff: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Sniff = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSniffRejectsUnknownPayloads(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("fL"), []byte("garbage bytes here")} {
		if _, err := Sniff(data); !errors.Is(err, ErrUnrecognizedCodec) {
			t.Fatalf("Sniff(%q) error = %v, want ErrUnrecognizedCodec", data, err)
		}
	}
}

func TestCodecExtension(t *testing.T) {
	if got := CodecFLAC.Extension(); got != ".flac" {
		t.Fatalf("Extension = %q, want .flac", got)
	}
	if got := CodecMP3.Extension(); got != ".mp3" {
		t.Fatalf("Extension = %q, want .mp3", got)
	}
}

func TestDurationFLAC(t *testing.T) {
	data := testsupport.FLACBytes(t, 44100, 3*44100, bytes.Repeat([]byte{0xA5}, 256))
	got, err := Duration(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 3*time.Second {
		t.Fatalf("Duration = %v, want 3s", got)
	}
}

func TestDurationFLACUnknownSampleCount(t *testing.T) {
	data := testsupport.FLACBytes(t, 44100, 0, nil)
	if _, err := Duration(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrDurationUnavailable) {
		t.Fatalf("Duration error = %v, want ErrDurationUnavailable", err)
	}
}

func TestDurationMP3CBR(t *testing.T) {
	data := testsupport.MP3Bytes(t, 4)
	got, err := Duration(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 4*time.Second {
		t.Fatalf("Duration = %v, want 4s", got)
	}
}

func TestDurationMP3Xing(t *testing.T) {
	const frames = 3830
	data := make([]byte, 2048)
	copy(data, "ID3")
	data[3] = 4
	copy(data[10:], []byte{0xFF, 0xFB, 0x90, 0x00})
	copy(data[10+36:], "Xing")
	binary.BigEndian.PutUint32(data[10+40:], 0x1)
	binary.BigEndian.PutUint32(data[10+44:], frames)

	got, err := Duration(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	seconds := float64(frames) * 1152 / 44100
	want := time.Duration(seconds * float64(time.Second))
	if got.Round(time.Millisecond) != want.Round(time.Millisecond) {
		t.Fatalf("Duration = %v, want %v", got, want)
	}
}

func TestDurationMP3VBRI(t *testing.T) {
	const frames = 1915
	data := make([]byte, 2048)
	copy(data, []byte{0xFF, 0xFB, 0x90, 0x00})
	copy(data[36:], "VBRI")
	binary.BigEndian.PutUint32(data[50:], frames)

	got, err := Duration(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	seconds := float64(frames) * 1152 / 44100
	want := time.Duration(seconds * float64(time.Second))
	if got.Round(time.Millisecond) != want.Round(time.Millisecond) {
		t.Fatalf("Duration = %v, want %v", got, want)
	}
}

func TestDurationUnavailable(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("fLaC")},
		{"no prober", append([]byte("OggS"), make([]byte, 32)...)},
		{"no frame", append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Duration(bytes.NewReader(tc.data), int64(len(tc.data))); !errors.Is(err, ErrDurationUnavailable) {
				t.Fatalf("Duration error = %v, want ErrDurationUnavailable", err)
			}
		})
	}
}

func TestEmbedTagsMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	testsupport.WriteFileBytes(t, path, testsupport.MP3Bytes(t, 1))

	tags := Tags{Title: "Midnight City", Artists: []string{"M83", "Guest"}, Album: "Hurry Up"}
	if err := EmbedTags(path, CodecMP3, tags, testsupport.PNGBytes(t, 600, 600)); err != nil {
		t.Fatalf("EmbedTags: %v", err)
	}

	file, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen id3: %v", err)
	}
	defer file.Close()
	if got := file.Title(); got != "Midnight City" {
		t.Fatalf("Title = %q", got)
	}
	if got := file.Artist(); got != "M83/Guest" {
		t.Fatalf("Artist = %q", got)
	}
	if got := file.Album(); got != "Hurry Up" {
		t.Fatalf("Album = %q", got)
	}
	if frames := file.GetFrames(file.CommonID("Attached picture")); len(frames) != 1 {
		t.Fatalf("attached pictures = %d, want 1", len(frames))
	}
}

func TestEmbedTagsMP3FillsGapsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	testsupport.WriteFileBytes(t, path, testsupport.MP3Bytes(t, 1))

	seed, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open id3: %v", err)
	}
	seed.SetTitle("Stream Title")
	if err := seed.Save(); err != nil {
		t.Fatalf("save seed tag: %v", err)
	}
	seed.Close()

	if err := EmbedTags(path, CodecMP3, Tags{Title: "Container Title", Album: "Container Album"}, nil); err != nil {
		t.Fatalf("EmbedTags: %v", err)
	}

	file, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen id3: %v", err)
	}
	defer file.Close()
	if got := file.Title(); got != "Stream Title" {
		t.Fatalf("Title = %q, stream field should win", got)
	}
	if got := file.Album(); got != "Container Album" {
		t.Fatalf("Album = %q, gap should be filled", got)
	}
}

func TestEmbedTagsFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.flac")
	testsupport.WriteFileBytes(t, path, testsupport.FLACBytes(t, 44100, 44100, bytes.Repeat([]byte{0x5A}, 128)))

	tags := Tags{Title: "Holocene", Artists: []string{"Bon Iver"}, Album: "Bon Iver"}
	if err := EmbedTags(path, CodecFLAC, tags, testsupport.PNGBytes(t, 500, 500)); err != nil {
		t.Fatalf("EmbedTags: %v", err)
	}

	f, err := flac.ParseFile(path)
	if err != nil {
		t.Fatalf("reparse flac: %v", err)
	}
	var vc *vorbisComment
	sawPicture := false
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			parsed, err := parseVorbisComment(block.Data)
			if err != nil {
				t.Fatalf("parse vorbis comments: %v", err)
			}
			vc = parsed
		case flac.Picture:
			sawPicture = true
			if got := binary.BigEndian.Uint32(block.Data[0:4]); got != 3 {
				t.Fatalf("picture type = %d, want 3 (front cover)", got)
			}
		}
	}
	if vc == nil {
		t.Fatal("no vorbis comment block written")
	}
	for _, key := range []string{"TITLE", "ARTIST", "ALBUM"} {
		if !vc.has(key) {
			t.Fatalf("missing %s comment", key)
		}
	}
	if !sawPicture {
		t.Fatal("no picture block written")
	}
}

func TestEmbedTagsNothingToEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	original := testsupport.MP3Bytes(t, 1)
	testsupport.WriteFileBytes(t, path, original)

	if err := EmbedTags(path, CodecMP3, Tags{}, nil); err != nil {
		t.Fatalf("EmbedTags: %v", err)
	}
	if !bytes.Equal(testsupport.ReadFileBytes(t, path), original) {
		t.Fatal("file modified with nothing to embed")
	}
}

func TestEmbedTagsUnsupportedCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.ogg")
	testsupport.WriteFileBytes(t, path, []byte("OggS"))

	if err := EmbedTags(path, CodecOgg, Tags{Title: "x"}, nil); !errors.Is(err, ErrNoTagConvention) {
		t.Fatalf("error = %v, want ErrNoTagConvention", err)
	}
}

func TestVorbisCommentRoundTrip(t *testing.T) {
	vc := &vorbisComment{
		Vendor:   "unspool",
		Comments: []string{"TITLE=Song", "ARTIST=One", "ARTIST=Two", "ALBUM=LP"},
	}
	parsed, err := parseVorbisComment(vc.marshal())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Vendor != vc.Vendor {
		t.Fatalf("vendor = %q", parsed.Vendor)
	}
	if len(parsed.Comments) != len(vc.Comments) {
		t.Fatalf("comments = %d, want %d", len(parsed.Comments), len(vc.Comments))
	}
	if !parsed.has("title") || !parsed.has("ARTIST") {
		t.Fatal("has should match keys case-insensitively")
	}
	if parsed.has("GENRE") {
		t.Fatal("has matched a missing key")
	}
}

func TestDetectImageMIME(t *testing.T) {
	if got := detectImageMIME([]byte{0xFF, 0xD8, 0xFF, 0xE0}); got != "image/jpeg" {
		t.Fatalf("jpeg mime = %q", got)
	}
	if got := detectImageMIME(testsupport.PNGBytes(t, 1, 1)); got != "image/png" {
		t.Fatalf("png mime = %q", got)
	}
	if got := detectImageMIME([]byte("bmp?")); got != "application/octet-stream" {
		t.Fatalf("fallback mime = %q", got)
	}
}
