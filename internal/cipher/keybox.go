package cipher

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ncmCoreKey   = []byte("hzHRAmso5kInbaxW")
	ncmMetaKey   = []byte(`#14ljk_!\]&0U<'(`)
	ncmKeyPrefix = []byte("neteasecloudmusic")
	ncmMetaMagic = []byte("163 key(Don't modify):")
	ncmMusicTag  = []byte("music:")
)

// Keybox is the RC4-flavored keystream NetEase derives from a per-file key.
// A standard RC4 key schedule builds the S-box, then a fixed 256-byte mask
// is read out of it, so decryption is a pure XOR at any offset.
type Keybox struct {
	table [256]byte
}

// NewKeybox derives the mask table from the unwrapped key seed.
func NewKeybox(seed []byte) (*Keybox, error) {
	if len(seed) == 0 {
		return nil, errors.New("empty keybox seed")
	}

	var box [256]byte
	for i := range box {
		box[i] = byte(i)
	}
	var j byte
	for i := 0; i < 256; i++ {
		j += box[i] + seed[i%len(seed)]
		box[i], box[j] = box[j], box[i]
	}

	kb := &Keybox{}
	for i := 0; i < 256; i++ {
		base := byte(i + 1)
		si := box[base]
		sj := box[base+si]
		kb.table[i] = box[si+sj]
	}
	return kb, nil
}

// Decrypt XORs buf in place with the mask at the given payload offset.
func (k *Keybox) Decrypt(buf []byte, offset int64) {
	for i := range buf {
		buf[i] ^= k.table[(offset+int64(i))&0xff]
	}
}

// UnwrapKey reverses the obfuscation on a stored key block: XOR 0x64,
// AES-ECB with the core key, padding strip, and the fixed seed prefix.
// The result seeds NewKeybox.
func UnwrapKey(block []byte) ([]byte, error) {
	if len(block) == 0 {
		return nil, errors.New("empty key block")
	}
	buf := make([]byte, len(block))
	for i, b := range block {
		buf[i] = b ^ 0x64
	}
	plain, err := DecryptAESECB(ncmCoreKey, buf)
	Zero(buf)
	if err != nil {
		return nil, fmt.Errorf("key block: %w", err)
	}
	if !bytes.HasPrefix(plain, ncmKeyPrefix) {
		Zero(plain)
		return nil, errors.New("key block: unexpected seed prefix")
	}
	seed := plain[len(ncmKeyPrefix):]
	if len(seed) == 0 {
		return nil, errors.New("key block: empty seed")
	}
	return seed, nil
}

// WrapKey is the inverse of UnwrapKey, sealing a keybox seed the way the
// container format stores it.
func WrapKey(seed []byte) ([]byte, error) {
	plain := make([]byte, 0, len(ncmKeyPrefix)+len(seed))
	plain = append(plain, ncmKeyPrefix...)
	plain = append(plain, seed...)
	sealed, err := EncryptAESECB(ncmCoreKey, plain)
	if err != nil {
		return nil, err
	}
	for i := range sealed {
		sealed[i] ^= 0x64
	}
	return sealed, nil
}

// UnwrapMeta reverses the obfuscation on a stored metadata block: XOR 0x63,
// the "163 key" marker, base64, AES-ECB with the metadata key, padding
// strip, and the "music:" tag. The result is the raw JSON document.
func UnwrapMeta(block []byte) ([]byte, error) {
	if len(block) == 0 {
		return nil, errors.New("empty metadata block")
	}
	buf := make([]byte, len(block))
	for i, b := range block {
		buf[i] = b ^ 0x63
	}
	if !bytes.HasPrefix(buf, ncmMetaMagic) {
		return nil, errors.New("metadata block: missing marker")
	}
	encoded := buf[len(ncmMetaMagic):]
	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(sealed, encoded)
	if err != nil {
		return nil, fmt.Errorf("metadata block: %w", err)
	}
	plain, err := DecryptAESECB(ncmMetaKey, sealed[:n])
	if err != nil {
		return nil, fmt.Errorf("metadata block: %w", err)
	}
	if !bytes.HasPrefix(plain, ncmMusicTag) {
		return nil, errors.New("metadata block: missing music tag")
	}
	return plain[len(ncmMusicTag):], nil
}

// WrapMeta is the inverse of UnwrapMeta, sealing a metadata JSON document
// the way the container format stores it.
func WrapMeta(doc []byte) ([]byte, error) {
	plain := make([]byte, 0, len(ncmMusicTag)+len(doc))
	plain = append(plain, ncmMusicTag...)
	plain = append(plain, doc...)
	sealed, err := EncryptAESECB(ncmMetaKey, plain)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(encoded, sealed)
	block := make([]byte, 0, len(ncmMetaMagic)+len(encoded))
	block = append(block, ncmMetaMagic...)
	block = append(block, encoded...)
	for i := range block {
		block[i] ^= 0x63
	}
	return block, nil
}
