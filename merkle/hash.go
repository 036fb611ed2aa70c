package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the size of every node in the tree.
const HashSize = sha256.Size

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// Hash is a tree node or leaf value.
type Hash [HashSize]byte

// Root is the durable summary of a finalized tree. Unlike Tree it is a plain
// value and safe to share.
type Root Hash

// LeafHash domain-separates a leaf value from inner nodes.
func LeafHash(value Hash) Hash {
	var buf [1 + HashSize]byte
	buf[0] = leafPrefix
	copy(buf[1:], value[:])
	return sha256.Sum256(buf[:])
}

func nodeHash(left, right Hash) Hash {
	var buf [1 + 2*HashSize]byte
	buf[0] = nodePrefix
	copy(buf[1:], left[:])
	copy(buf[1+HashSize:], right[:])
	return sha256.Sum256(buf[:])
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	return decodeHex(h[:], b)
}

func (r Root) String() string {
	return Hash(r).String()
}

func (r Root) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Root) UnmarshalText(b []byte) error {
	return decodeHex(r[:], b)
}

func decodeHex(dst, src []byte) error {
	if hex.DecodedLen(len(src)) != len(dst) {
		return fmt.Errorf("merkle: expected %d hex bytes, got %d chars", len(dst), len(src))
	}
	_, err := hex.Decode(dst, src)
	return err
}
