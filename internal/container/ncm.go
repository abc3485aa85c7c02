package container

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"

	"unspool/internal/cipher"
)

// NCMParser parses the NCM layout: magic, obfuscated key block, obfuscated
// metadata block with checksum, cover art, then the encrypted audio
// payload as the file remainder.
type NCMParser struct{}

// ncmMeta is the JSON document inside the metadata block. Artists arrive
// as [name, id] pairs.
type ncmMeta struct {
	MusicName string  `json:"musicName"`
	Artist    [][]any `json:"artist"`
	Album     string  `json:"album"`
	Format    string  `json:"format"`
	Duration  int64   `json:"duration"`
	AlbumPic  string  `json:"albumPic"`
}

func (NCMParser) Parse(ctx context.Context, r io.ReaderAt, size int64) (*Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rd := &reader{r: r, size: size}

	magic, err := rd.read(8, "magic")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, ncmMagic) {
		return nil, fmt.Errorf("leading bytes %q: %w", magic, ErrBadMagic)
	}
	if err := rd.skip(2, "post-magic gap"); err != nil {
		return nil, err
	}

	keyLen, err := rd.readUint32("key length")
	if err != nil {
		return nil, err
	}
	keyBlock, err := rd.read(int64(keyLen), "key block")
	if err != nil {
		return nil, err
	}
	seed, err := cipher.UnwrapKey(keyBlock)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}

	cont := &Container{Format: FormatNCM, KeyMaterial: seed}

	metaLen, err := rd.readUint32("metadata length")
	if err != nil {
		return nil, err
	}
	metaRaw, err := rd.read(int64(metaLen), "metadata block")
	if err != nil {
		return nil, err
	}
	checksum, err := rd.readUint32("metadata checksum")
	if err != nil {
		return nil, err
	}
	if metaLen > 0 {
		// The checksum covers the metadata block as stored, obfuscation
		// included.
		if got := crc32.ChecksumIEEE(metaRaw); got != checksum {
			return nil, fmt.Errorf("metadata: stored %08x, computed %08x: %w", checksum, got, ErrBadChecksum)
		}
		if meta, metaErr := decodeNCMMeta(metaRaw); metaErr != nil {
			cont.Warnings = append(cont.Warnings, Warning{Op: "parse metadata", Message: metaErr.Error()})
		} else {
			cont.Metadata = meta
		}
	} else {
		cont.Warnings = append(cont.Warnings, Warning{Op: "parse metadata", Message: "container carries no metadata"})
	}

	if err := rd.skip(5, "pre-cover gap"); err != nil {
		return nil, err
	}
	coverLen, err := rd.readUint32("cover length")
	if err != nil {
		return nil, err
	}
	cover, err := rd.read(int64(coverLen), "cover block")
	if err != nil {
		return nil, err
	}
	cont.Artwork = cover

	cont.PayloadOffset = rd.off
	cont.PayloadSize = rd.remaining()
	if cont.PayloadSize <= 0 {
		return nil, fmt.Errorf("no audio payload after headers: %w", ErrTruncated)
	}
	return cont, nil
}

func decodeNCMMeta(raw []byte) (*Metadata, error) {
	doc, err := cipher.UnwrapMeta(raw)
	if err != nil {
		return nil, fmt.Errorf("unwrap metadata: %w", err)
	}
	var parsed ncmMeta
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("decode metadata json: %w", err)
	}
	meta := &Metadata{
		Title:       parsed.MusicName,
		Album:       parsed.Album,
		Format:      parsed.Format,
		DurationMS:  parsed.Duration,
		AlbumPicURL: parsed.AlbumPic,
	}
	for _, pair := range parsed.Artist {
		if len(pair) == 0 {
			continue
		}
		if name, ok := pair[0].(string); ok && name != "" {
			meta.Artists = append(meta.Artists, name)
		}
	}
	return meta, nil
}
