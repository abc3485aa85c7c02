package cipher_test

import (
	"bytes"
	"errors"
	"testing"

	"unspool/internal/cipher"
)

// fillBytes produces deterministic pseudo-random content for round trips.
func fillBytes(n int, seed byte) []byte {
	out := make([]byte, n)
	state := uint32(seed) | 1
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = byte(state >> 24)
	}
	return out
}

func TestPadStripRoundTrip(t *testing.T) {
	for size := 0; size <= 33; size++ {
		data := fillBytes(size, byte(size))
		padded := cipher.PadPKCS7(data, 16)
		if len(padded)%16 != 0 {
			t.Fatalf("size %d: padded length %d not block aligned", size, len(padded))
		}
		stripped, err := cipher.StripPKCS7(padded, 16)
		if err != nil {
			t.Fatalf("size %d: strip failed: %v", size, err)
		}
		if !bytes.Equal(stripped, data) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}

func TestStripPKCS7Rejects(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not block aligned", fillBytes(15, 1)},
		{"zero pad byte", append(fillBytes(15, 2), 0x00)},
		{"pad longer than block", append(fillBytes(15, 3), 0x11)},
		{"inconsistent pad bytes", append(fillBytes(13, 4), 0x02, 0x02, 0x03)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := cipher.StripPKCS7(tc.data, 16); !errors.Is(err, cipher.ErrBadPadding) {
				t.Fatalf("expected ErrBadPadding, got %v", err)
			}
		})
	}
}

func TestAESECBRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	plain := []byte("the payload under the padding")

	sealed, err := cipher.EncryptAESECB(key, plain)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	got, err := cipher.DecryptAESECB(key, sealed)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %q", got)
	}

	if _, err := cipher.DecryptAESECB(key, sealed[:len(sealed)-1]); !errors.Is(err, cipher.ErrBadPadding) {
		t.Fatalf("expected ErrBadPadding for truncated ciphertext, got %v", err)
	}
}

func TestKeyboxChunkedMatchesWhole(t *testing.T) {
	kb, err := cipher.NewKeybox([]byte("keybox seed material"))
	if err != nil {
		t.Fatalf("NewKeybox failed: %v", err)
	}

	original := fillBytes(1500, 7)
	sealed := append([]byte(nil), original...)
	kb.Decrypt(sealed, 0) // XOR stream, sealing and unsealing are the same

	whole := append([]byte(nil), sealed...)
	kb.Decrypt(whole, 0)
	if !bytes.Equal(whole, original) {
		t.Fatal("whole-buffer decrypt did not restore original")
	}

	for _, chunk := range []int{1, 7, 255, 256, 1000} {
		got := append([]byte(nil), sealed...)
		for off := 0; off < len(got); off += chunk {
			end := off + chunk
			if end > len(got) {
				end = len(got)
			}
			kb.Decrypt(got[off:end], int64(off))
		}
		if !bytes.Equal(got, original) {
			t.Fatalf("chunk size %d: chunked decrypt diverged", chunk)
		}
	}
}

func TestNewKeyboxRejectsEmptySeed(t *testing.T) {
	if _, err := cipher.NewKeybox(nil); err == nil {
		t.Fatal("expected error for empty seed")
	}
}

func TestWrapUnwrapKey(t *testing.T) {
	seed := []byte("E7fT49x7dof9OKCgg9cdvhEuezy3iZCL")
	block, err := cipher.WrapKey(seed)
	if err != nil {
		t.Fatalf("WrapKey failed: %v", err)
	}
	got, err := cipher.UnwrapKey(block)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Fatalf("seed mismatch: got %q", got)
	}
}

func TestUnwrapKeyRejectsCorruptBlock(t *testing.T) {
	if _, err := cipher.UnwrapKey(nil); err == nil {
		t.Fatal("expected error for empty block")
	}
	if _, err := cipher.UnwrapKey(fillBytes(21, 9)); !errors.Is(err, cipher.ErrBadPadding) {
		t.Fatalf("expected ErrBadPadding for misaligned block, got %v", err)
	}
}

func TestWrapUnwrapMeta(t *testing.T) {
	doc := []byte(`{"musicName":"Night Drive","artist":[["Vega",101]],"album":"Roads","format":"flac"}`)
	block, err := cipher.WrapMeta(doc)
	if err != nil {
		t.Fatalf("WrapMeta failed: %v", err)
	}
	got, err := cipher.UnwrapMeta(block)
	if err != nil {
		t.Fatalf("UnwrapMeta failed: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Fatalf("doc mismatch: got %s", got)
	}
}

func TestUnwrapMetaRejectsMissingMarker(t *testing.T) {
	doc := []byte(`{"musicName":"x"}`)
	block, err := cipher.WrapMeta(doc)
	if err != nil {
		t.Fatalf("WrapMeta failed: %v", err)
	}
	block[0] ^= 0xFF
	if _, err := cipher.UnwrapMeta(block); err == nil {
		t.Fatal("expected error for corrupted marker")
	}
}

func TestStaticCipherSymmetry(t *testing.T) {
	var sc cipher.StaticCipher
	original := fillBytes(4096, 11)
	buf := append([]byte(nil), original...)
	sc.Decrypt(buf, 0)
	if bytes.Equal(buf, original) {
		t.Fatal("mask should change the payload")
	}
	sc.Decrypt(buf, 0)
	if !bytes.Equal(buf, original) {
		t.Fatal("double XOR did not restore original")
	}
}

func TestStaticCipherChunkedAcrossWrap(t *testing.T) {
	var sc cipher.StaticCipher
	const start = int64(0x7FF0)
	original := fillBytes(64, 13)

	whole := append([]byte(nil), original...)
	sc.Decrypt(whole, start)

	chunked := append([]byte(nil), original...)
	for off := 0; off < len(chunked); off += 5 {
		end := off + 5
		if end > len(chunked) {
			end = len(chunked)
		}
		sc.Decrypt(chunked[off:end], start+int64(off))
	}
	if !bytes.Equal(whole, chunked) {
		t.Fatal("chunked decrypt diverged across mask wrap")
	}
}

func TestStaticCipherWrapQuirk(t *testing.T) {
	var sc cipher.StaticCipher
	// 0x8000 % 0x7FFF == 1, so those offsets share a mask byte.
	a := []byte{0}
	b := []byte{0}
	sc.Decrypt(a, 0x8000)
	sc.Decrypt(b, 1)
	if a[0] != b[0] {
		t.Fatalf("expected wrap to alias offsets 0x8000 and 1: %#x vs %#x", a[0], b[0])
	}
	// Offset 0x7FFF itself is not reduced.
	c := []byte{0}
	d := []byte{0}
	sc.Decrypt(c, 0x7FFF)
	sc.Decrypt(d, 0)
	if c[0] == d[0] {
		t.Fatal("offset 0x7FFF should not alias offset 0")
	}
}
