package audio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"
)

// ErrNoTagConvention reports a codec without a supported tag format.
// Tracks in such codecs are still unlocked; they just keep only the
// metadata their stream already carries.
var ErrNoTagConvention = errors.New("no tag convention for codec")

// Tags carries the fields worth writing back into a reconstructed file.
type Tags struct {
	Title   string
	Artists []string
	Album   string
}

func (t Tags) empty() bool {
	return t.Title == "" && len(t.Artists) == 0 && t.Album == ""
}

// EmbedTags writes tags and artwork into the file at path using the codec's
// native convention. Fields already present in the stream win; the container
// metadata only fills gaps. Codecs without a supported convention return an
// error the caller records as a warning.
func EmbedTags(path string, codec Codec, tags Tags, cover []byte) error {
	if tags.empty() && len(cover) == 0 {
		return nil
	}
	switch codec {
	case CodecMP3:
		return embedID3(path, tags, cover)
	case CodecFLAC:
		return embedFLAC(path, tags, cover)
	default:
		return fmt.Errorf("%w: %s", ErrNoTagConvention, codec)
	}
}

func embedID3(path string, tags Tags, cover []byte) error {
	file, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3: %w", err)
	}
	defer file.Close()

	if tags.Title != "" && file.Title() == "" {
		file.SetTitle(tags.Title)
	}
	if len(tags.Artists) > 0 && file.Artist() == "" {
		file.SetArtist(strings.Join(tags.Artists, "/"))
	}
	if tags.Album != "" && file.Album() == "" {
		file.SetAlbum(tags.Album)
	}
	if len(cover) > 0 && len(file.GetFrames(file.CommonID("Attached picture"))) == 0 {
		file.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectImageMIME(cover),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     cover,
		})
	}
	if err := file.Save(); err != nil {
		return fmt.Errorf("save id3: %w", err)
	}
	return nil
}

func embedFLAC(path string, tags Tags, cover []byte) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse flac: %w", err)
	}

	modified := false

	if !tags.empty() {
		changed, err := mergeVorbisComments(f, tags)
		if err != nil {
			return err
		}
		modified = modified || changed
	}

	if len(cover) > 0 && !hasPictureBlock(f) {
		f.Meta = append(f.Meta, &flac.MetaDataBlock{
			Type: flac.Picture,
			Data: buildFrontCover(cover).marshal(),
		})
		modified = true
	}

	if !modified {
		return nil
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac: %w", err)
	}
	return nil
}

func mergeVorbisComments(f *flac.File, tags Tags) (bool, error) {
	var block *flac.MetaDataBlock
	for _, b := range f.Meta {
		if b.Type == flac.VorbisComment {
			block = b
			break
		}
	}

	vc := &vorbisComment{Vendor: "unspool"}
	if block != nil {
		parsed, err := parseVorbisComment(block.Data)
		if err != nil {
			return false, fmt.Errorf("parse vorbis comments: %w", err)
		}
		vc = parsed
	}

	changed := false
	if tags.Title != "" && !vc.has("TITLE") {
		vc.Comments = append(vc.Comments, "TITLE="+tags.Title)
		changed = true
	}
	if len(tags.Artists) > 0 && !vc.has("ARTIST") {
		for _, artist := range tags.Artists {
			vc.Comments = append(vc.Comments, "ARTIST="+artist)
		}
		changed = true
	}
	if tags.Album != "" && !vc.has("ALBUM") {
		vc.Comments = append(vc.Comments, "ALBUM="+tags.Album)
		changed = true
	}
	if !changed {
		return false, nil
	}

	if block != nil {
		block.Data = vc.marshal()
	} else {
		f.Meta = append(f.Meta, &flac.MetaDataBlock{Type: flac.VorbisComment, Data: vc.marshal()})
	}
	return true, nil
}

func hasPictureBlock(f *flac.File) bool {
	for _, b := range f.Meta {
		if b.Type == flac.Picture {
			return true
		}
	}
	return false
}

func buildFrontCover(cover []byte) *flacPicture {
	pic := &flacPicture{
		PictureType: 3, // front cover
		MimeType:    detectImageMIME(cover),
		Depth:       24,
		Data:        cover,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(cover)); err == nil {
		pic.Width = uint32(cfg.Width)
		pic.Height = uint32(cfg.Height)
	}
	return pic
}

func detectImageMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
