package cipher

import "errors"

var (
	// ErrBadPadding reports a block whose PKCS#7 padding is malformed after
	// AES decryption, which almost always means the block was corrupted or
	// sealed with a different key.
	ErrBadPadding = errors.New("bad padding")

	// ErrUnknownScheme reports a container sealed with a scheme this build
	// cannot derive keys for, such as the QMC v2 key tails.
	ErrUnknownScheme = errors.New("unknown encryption scheme")
)
