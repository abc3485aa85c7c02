package testsupport

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"testing"

	"unspool/internal/cipher"
)

// NCMSpec describes the synthetic container produced by NCMBytes. Zero fields
// are filled with defaults, so NCMSpec{Payload: p} yields a well-formed file.
type NCMSpec struct {
	Seed       string
	Title      string
	Artists    []string
	Album      string
	Format     string
	DurationMS int64
	CoverURL   string
	Cover      []byte
	Payload    []byte

	// OmitMetadata drops the metadata block entirely.
	OmitMetadata bool
	// CorruptChecksum stores a checksum that does not match the metadata.
	CorruptChecksum bool
	// GarbleMetadata stores an undecodable metadata block with a checksum
	// that still matches it.
	GarbleMetadata bool
}

// NCMBytes seals a complete container around the payload in spec.
func NCMBytes(t testing.TB, spec NCMSpec) []byte {
	t.Helper()

	if spec.Seed == "" {
		spec.Seed = "0123456789abcdefFEDCBA9876543210"
	}
	if spec.Title == "" {
		spec.Title = "Test Track"
	}
	if len(spec.Artists) == 0 {
		spec.Artists = []string{"Test Artist"}
	}
	if spec.Album == "" {
		spec.Album = "Test Album"
	}
	if spec.Format == "" {
		spec.Format = "flac"
	}
	if spec.DurationMS == 0 {
		spec.DurationMS = 180000
	}

	keyBlock, err := cipher.WrapKey([]byte(spec.Seed))
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}

	var metaRaw []byte
	if !spec.OmitMetadata {
		artists := make([][]any, 0, len(spec.Artists))
		for i, name := range spec.Artists {
			artists = append(artists, []any{name, i + 1})
		}
		doc, err := json.Marshal(map[string]any{
			"musicName": spec.Title,
			"artist":    artists,
			"album":     spec.Album,
			"format":    spec.Format,
			"duration":  spec.DurationMS,
			"albumPic":  spec.CoverURL,
		})
		if err != nil {
			t.Fatalf("marshal metadata: %v", err)
		}
		metaRaw, err = cipher.WrapMeta(doc)
		if err != nil {
			t.Fatalf("wrap metadata: %v", err)
		}
		if spec.GarbleMetadata {
			metaRaw = []byte("garbled metadata block")
		}
	}

	checksum := crc32.ChecksumIEEE(metaRaw)
	if spec.CorruptChecksum {
		checksum ^= 0xDEADBEEF
	}

	keybox, err := cipher.NewKeybox([]byte(spec.Seed))
	if err != nil {
		t.Fatalf("derive keybox: %v", err)
	}
	// The keystream is XOR, so sealing and opening are the same operation.
	sealed := bytes.Clone(spec.Payload)
	keybox.Decrypt(sealed, 0)

	var buf bytes.Buffer
	buf.WriteString("CTENFDAM")
	buf.Write([]byte{0, 0})
	writeUint32(&buf, uint32(len(keyBlock)))
	buf.Write(keyBlock)
	writeUint32(&buf, uint32(len(metaRaw)))
	buf.Write(metaRaw)
	writeUint32(&buf, checksum)
	buf.Write([]byte{0, 0, 0, 0, 0})
	writeUint32(&buf, uint32(len(spec.Cover)))
	buf.Write(spec.Cover)
	buf.Write(sealed)
	return buf.Bytes()
}

// QMCBytes seals the payload with the static mask.
func QMCBytes(t testing.TB, payload []byte) []byte {
	t.Helper()

	sealed := bytes.Clone(payload)
	cipher.StaticCipher{}.Decrypt(sealed, 0)
	return sealed
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	buf.Write(scratch[:])
}
