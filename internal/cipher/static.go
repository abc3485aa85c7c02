package cipher

// qmcStaticBox is the fixed 128-byte mask table shared by every QMC v1 file.
var qmcStaticBox = [128]byte{
	0x77, 0x48, 0x32, 0x73, 0xDE, 0xF2, 0xC0, 0xC8,
	0x95, 0xEC, 0x30, 0xB2, 0x51, 0xC3, 0xE1, 0xA0,
	0x9E, 0xE6, 0x9D, 0xCF, 0xFA, 0x7F, 0x14, 0xD1,
	0xCE, 0xB8, 0xDC, 0xC3, 0x4A, 0x67, 0x93, 0xD6,
	0x28, 0xC2, 0x91, 0x70, 0xCA, 0x8D, 0xA2, 0xA4,
	0xF0, 0x08, 0x61, 0x90, 0x7E, 0x6F, 0xA2, 0xE0,
	0xEB, 0xAE, 0x3E, 0xB6, 0x67, 0xC7, 0x92, 0xF4,
	0x91, 0xB5, 0xF6, 0x6C, 0x5E, 0x84, 0x40, 0xF7,
	0xF3, 0x1B, 0x02, 0x7F, 0xD5, 0xAB, 0x41, 0x89,
	0x28, 0xF4, 0x25, 0xCC, 0x52, 0x11, 0xAD, 0x43,
	0x68, 0xA6, 0x41, 0x8B, 0x84, 0xB5, 0xFF, 0x2C,
	0x92, 0x4A, 0x26, 0xD8, 0x47, 0x6A, 0x7C, 0x95,
	0x61, 0xCC, 0xE6, 0xCB, 0xBB, 0x3F, 0x47, 0x58,
	0x89, 0x75, 0xC3, 0x75, 0xA1, 0xD9, 0xAF, 0xCC,
	0x08, 0x73, 0x17, 0xDC, 0xAA, 0x9A, 0xA2, 0x16,
	0x41, 0xD8, 0xA2, 0x06, 0x0C, 0x38, 0x02, 0x65,
}

// StaticCipher applies the QMC v1 mask. The mask index is a quadratic
// function of the offset and repeats on a 0x7FFF cycle; the off-by-one
// modulus is the original player's quirk and must be kept for
// compatibility.
type StaticCipher struct{}

// Decrypt XORs buf in place with the mask at the given payload offset.
func (StaticCipher) Decrypt(buf []byte, offset int64) {
	for i := range buf {
		buf[i] ^= staticMask(offset + int64(i))
	}
}

func staticMask(offset int64) byte {
	if offset > 0x7FFF {
		offset %= 0x7FFF
	}
	return qmcStaticBox[(offset*offset+27)&0x7f]
}
