package container

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format classifies the encryption container wrapped around a file.
type Format string

const (
	FormatNCM     Format = "ncm"
	FormatQMC     Format = "qmc"
	FormatUnknown Format = "unknown"
)

var ncmMagic = []byte("CTENFDAM")

// qmcExtensions covers the static-mask family plus the keyed tails that
// ride the same extensions.
var qmcExtensions = map[string]struct{}{
	".qmc0":    {},
	".qmc2":    {},
	".qmc3":    {},
	".qmcflac": {},
	".qmcogg":  {},
	".mflac":   {},
	".mgg":     {},
}

// DetectFormat classifies a file from its leading bytes, falling back to
// the extension for formats whose bodies are pure ciphertext.
// FormatUnknown is a classification, not an error.
func DetectFormat(path string, header []byte) Format {
	if bytes.HasPrefix(header, ncmMagic) {
		return FormatNCM
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".ncm" {
		// Extension claims NCM without the magic. Handing it to the parser
		// anyway gets the mismatch reported precisely.
		return FormatNCM
	}
	if _, ok := qmcExtensions[ext]; ok {
		return FormatQMC
	}
	return FormatUnknown
}

// SupportedExtension reports whether a path looks like a container this
// package can handle. The inbox watcher uses it to filter candidates.
func SupportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".ncm" {
		return true
	}
	_, ok := qmcExtensions[ext]
	return ok
}
