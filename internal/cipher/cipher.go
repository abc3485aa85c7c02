package cipher

import (
	"crypto/aes"
	"fmt"
)

// Stream decrypts payload bytes in place. The offset is absolute within the
// encrypted payload, so chunked and whole-buffer decryption agree byte for
// byte. Output length always equals input length.
type Stream interface {
	Decrypt(buf []byte, offset int64)
}

// DecryptAESECB decrypts data with AES in ECB mode using the given key and
// strips the PKCS#7 padding. The container formats predate authenticated
// modes; ECB here only unwraps short key and metadata blocks.
func DecryptAESECB(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	size := block.BlockSize()
	if len(data) == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a multiple of %d", ErrBadPadding, len(data), size)
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += size {
		block.Decrypt(out[i:i+size], data[i:i+size])
	}
	return StripPKCS7(out, size)
}

// EncryptAESECB is the inverse of DecryptAESECB: it pads data with PKCS#7
// and encrypts it with the given key.
func EncryptAESECB(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	size := block.BlockSize()
	padded := PadPKCS7(data, size)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += size {
		block.Encrypt(out[i:i+size], padded[i:i+size])
	}
	return out, nil
}

// PadPKCS7 appends PKCS#7 padding up to a whole block.
func PadPKCS7(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

// StripPKCS7 validates and removes PKCS#7 padding. Every padding byte must
// equal the pad length; anything else is ErrBadPadding rather than a silent
// truncation.
func StripPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length %d", ErrBadPadding, len(data))
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("%w: pad length %d", ErrBadPadding, pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: inconsistent pad bytes", ErrBadPadding)
		}
	}
	return data[:len(data)-pad], nil
}

// Zero overwrites key material once it is no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
