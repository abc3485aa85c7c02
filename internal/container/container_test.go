package container_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"unspool/internal/cipher"
	"unspool/internal/container"
	"unspool/internal/testsupport"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		header []byte
		want   container.Format
	}{
		{"ncm magic", "track.bin", []byte("CTENFDAM\x00\x00"), container.FormatNCM},
		{"ncm extension without magic", "track.ncm", []byte("not a magic"), container.FormatNCM},
		{"qmcflac extension", "track.qmcflac", []byte{0x9E, 0x21, 0x44}, container.FormatQMC},
		{"qmc0 extension uppercased", "TRACK.QMC0", nil, container.FormatQMC},
		{"mflac extension", "track.mflac", nil, container.FormatQMC},
		{"plain mp3", "track.mp3", []byte("ID3\x04"), container.FormatUnknown},
		{"no hints", "track", nil, container.FormatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := container.DetectFormat(tc.path, tc.header); got != tc.want {
				t.Fatalf("DetectFormat = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSupportedExtension(t *testing.T) {
	for _, path := range []string{"a.ncm", "b.qmc0", "c.qmcflac", "d.MFLAC", "e.mgg"} {
		if !container.SupportedExtension(path) {
			t.Fatalf("SupportedExtension(%q) = false", path)
		}
	}
	for _, path := range []string{"a.mp3", "b.flac", "c", "d.ncm.bak"} {
		if container.SupportedExtension(path) {
			t.Fatalf("SupportedExtension(%q) = true", path)
		}
	}
}

func TestParserFor(t *testing.T) {
	if _, ok := container.ParserFor(container.FormatNCM); !ok {
		t.Fatal("no NCM parser")
	}
	if _, ok := container.ParserFor(container.FormatQMC); !ok {
		t.Fatal("no QMC parser")
	}
	if _, ok := container.ParserFor(container.FormatUnknown); ok {
		t.Fatal("FormatUnknown should have no parser")
	}
}

func TestNCMParseRoundTrip(t *testing.T) {
	payload := testsupport.FLACBytes(t, 44100, 44100*7, bytes.Repeat([]byte{0xC3, 0x19}, 512))
	cover := testsupport.PNGBytes(t, 300, 300)
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Title:      "Night Drive",
		Artists:    []string{"Neon Lights", "Analog Dreams"},
		Album:      "City Loops",
		Format:     "flac",
		DurationMS: 201000,
		Cover:      cover,
		Payload:    payload,
	})

	cont, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cont.Format != container.FormatNCM {
		t.Fatalf("Format = %q", cont.Format)
	}
	if cont.Metadata == nil {
		t.Fatal("metadata missing")
	}
	if cont.Metadata.Title != "Night Drive" || cont.Metadata.Album != "City Loops" {
		t.Fatalf("metadata = %+v", cont.Metadata)
	}
	if len(cont.Metadata.Artists) != 2 || cont.Metadata.Artists[0] != "Neon Lights" {
		t.Fatalf("artists = %v", cont.Metadata.Artists)
	}
	if cont.Metadata.DurationMS != 201000 {
		t.Fatalf("duration = %d", cont.Metadata.DurationMS)
	}
	if !bytes.Equal(cont.Artwork, cover) {
		t.Fatal("artwork does not match")
	}
	if cont.PayloadSize != int64(len(payload)) {
		t.Fatalf("payload size = %d, want %d", cont.PayloadSize, len(payload))
	}

	keybox, err := cipher.NewKeybox(cont.KeyMaterial)
	if err != nil {
		t.Fatalf("keybox from recovered seed: %v", err)
	}
	got := make([]byte, cont.PayloadSize)
	copy(got, data[cont.PayloadOffset:])
	keybox.Decrypt(got, 0)
	if !bytes.Equal(got, payload) {
		t.Fatal("decrypted payload does not match original")
	}
}

func TestNCMParseBadMagic(t *testing.T) {
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{Payload: []byte("audio")})
	data[0] ^= 0xFF

	_, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, container.ErrBadMagic) {
		t.Fatalf("Parse error = %v, want ErrBadMagic", err)
	}
}

func TestNCMParseBadChecksum(t *testing.T) {
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload:         testsupport.MP3Bytes(t, 1),
		CorruptChecksum: true,
	})

	_, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, container.ErrBadChecksum) {
		t.Fatalf("Parse error = %v, want ErrBadChecksum", err)
	}
}

func TestNCMParseGarbledMetadataWarns(t *testing.T) {
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload:        []byte("payload bytes"),
		GarbleMetadata: true,
	})

	cont, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cont.Metadata != nil {
		t.Fatal("garbled metadata should not decode")
	}
	if len(cont.Warnings) == 0 {
		t.Fatal("expected a metadata warning")
	}
	if cont.PayloadSize != int64(len("payload bytes")) {
		t.Fatalf("payload size = %d", cont.PayloadSize)
	}
}

func TestNCMParseOmittedMetadataWarns(t *testing.T) {
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Payload:      []byte("payload bytes"),
		OmitMetadata: true,
	})

	cont, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cont.Metadata != nil {
		t.Fatal("metadata should be absent")
	}
	if len(cont.Warnings) == 0 {
		t.Fatal("expected a warning for the missing metadata")
	}
}

func TestNCMParseTruncationFuzz(t *testing.T) {
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{
		Cover:   testsupport.PNGBytes(t, 64, 64),
		Payload: []byte("just enough payload to exist"),
	})
	full, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Parse full container: %v", err)
	}

	// Every prefix that ends at or before the payload start must fail
	// cleanly; nothing may panic or read out of bounds.
	for cut := 0; cut <= int(full.PayloadOffset); cut++ {
		_, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data[:cut]), int64(cut))
		if err == nil {
			t.Fatalf("cut %d: parse succeeded on truncated container", cut)
		}
		if !errors.Is(err, container.ErrTruncated) {
			t.Fatalf("cut %d: error = %v, want ErrTruncated", cut, err)
		}
	}

	// Cutting into the payload itself still parses; the payload is simply
	// shorter. Bound checks only cover declared lengths.
	cut := int(full.PayloadOffset) + 1
	cont, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data[:cut]), int64(cut))
	if err != nil {
		t.Fatalf("cut %d: %v", cut, err)
	}
	if cont.PayloadSize != 1 {
		t.Fatalf("payload size = %d, want 1", cont.PayloadSize)
	}
}

func TestNCMParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := testsupport.NCMBytes(t, testsupport.NCMSpec{Payload: []byte("audio")})
	if _, err := (container.NCMParser{}).Parse(ctx, bytes.NewReader(data), int64(len(data))); !errors.Is(err, context.Canceled) {
		t.Fatalf("Parse error = %v, want context.Canceled", err)
	}
}

func TestNCMScrubZeroesKeyMaterial(t *testing.T) {
	data := testsupport.NCMBytes(t, testsupport.NCMSpec{Payload: []byte("audio")})
	cont, err := container.NCMParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	seed := cont.KeyMaterial
	if len(seed) == 0 {
		t.Fatal("no key material recovered")
	}
	cont.Scrub()
	if cont.KeyMaterial != nil {
		t.Fatal("key material still referenced after Scrub")
	}
	for i, b := range seed {
		if b != 0 {
			t.Fatalf("seed byte %d not zeroed", i)
		}
	}
}

func TestQMCParseStaticMask(t *testing.T) {
	payload := testsupport.FLACBytes(t, 48000, 48000*2, bytes.Repeat([]byte{0x11, 0xEE}, 300))
	data := testsupport.QMCBytes(t, payload)

	cont, err := container.QMCParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cont.Format != container.FormatQMC {
		t.Fatalf("Format = %q", cont.Format)
	}
	if cont.PayloadOffset != 0 || cont.PayloadSize != int64(len(data)) {
		t.Fatalf("payload range = [%d, %d)", cont.PayloadOffset, cont.PayloadSize)
	}
	if cont.Metadata != nil {
		t.Fatal("static mask files carry no metadata")
	}

	got := bytes.Clone(data)
	cipher.StaticCipher{}.Decrypt(got, 0)
	if !bytes.Equal(got, payload) {
		t.Fatal("decrypted payload does not match original")
	}
}

func TestQMCParseKeyedTails(t *testing.T) {
	body := testsupport.QMCBytes(t, testsupport.MP3Bytes(t, 1))

	qtag := append(bytes.Clone(body), 0, 0, 1, 0)
	qtag = append(qtag, []byte("QTag")...)

	stag := append(bytes.Clone(body), 0, 0, 2, 0)
	stag = append(stag, []byte("STag")...)

	key := bytes.Repeat([]byte("QQMusicKeyBlock0"), 4)
	keyed := append(bytes.Clone(body), key...)
	var lenField [4]byte
	binary.LittleEndian.PutUint32(lenField[:], uint32(len(key)))
	keyed = append(keyed, lenField[:]...)

	cases := []struct {
		name string
		data []byte
	}{
		{"qtag", qtag},
		{"stag", stag},
		{"embedded key", keyed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := container.QMCParser{}.Parse(context.Background(), bytes.NewReader(tc.data), int64(len(tc.data)))
			if !errors.Is(err, cipher.ErrUnknownScheme) {
				t.Fatalf("Parse error = %v, want ErrUnknownScheme", err)
			}
		})
	}
}

func TestQMCParseProbeMiss(t *testing.T) {
	data := bytes.Repeat([]byte{0x42, 0x87, 0x13}, 100)

	_, err := container.QMCParser{}.Parse(context.Background(), bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, cipher.ErrUnknownScheme) {
		t.Fatalf("Parse error = %v, want ErrUnknownScheme", err)
	}
}

func TestQMCParseEmpty(t *testing.T) {
	_, err := container.QMCParser{}.Parse(context.Background(), bytes.NewReader(nil), 0)
	if !errors.Is(err, container.ErrTruncated) {
		t.Fatalf("Parse error = %v, want ErrTruncated", err)
	}
}
