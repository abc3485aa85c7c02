// Package cipher implements the stream and block transforms that seal
// proprietary music containers.
//
// Two stream families are supported: the RC4-flavored keybox NetEase derives
// per file (Keybox) and the fixed 128-byte QQ Music mask (StaticCipher).
// Both XOR in place at an absolute payload offset, so callers may decrypt a
// payload whole or in chunks and get identical bytes.
//
// The fixed AES keys and the mask table are published constants of the file
// formats themselves; this package only applies them.
package cipher
