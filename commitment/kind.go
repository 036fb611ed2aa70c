package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"

	"tlsn-notary/shared"
)

// Kind is the discriminator stored next to every commitment so a verifier
// knows how to recompute it. The set is closed: unknown values are rejected.
type Kind uint8

const (
	KindSHA256    Kind = 0x01
	KindBLAKE3    Kind = 0x02
	KindKeccak256 Kind = 0x03
)

// DigestSize is the output size of every supported kind.
const DigestSize = 32

// Digest is a commitment value.
type Digest [DigestSize]byte

func (k Kind) Valid() bool {
	switch k {
	case KindSHA256, KindBLAKE3, KindKeccak256:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindSHA256:
		return "sha256"
	case KindBLAKE3:
		return "blake3"
	case KindKeccak256:
		return "keccak256"
	}
	return fmt.Sprintf("kind(0x%02x)", uint8(k))
}

// ParseKind maps a String form back to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindSHA256, KindBLAKE3, KindKeccak256} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, shared.Errorf(shared.KindEncoding, "parse commitment kind", "unknown kind %q", s)
}

// Hash digests data with the kind's hash function.
func (k Kind) Hash(data []byte) (Digest, error) {
	switch k {
	case KindSHA256:
		return sha256.Sum256(data), nil
	case KindBLAKE3:
		return blake3.Sum256(data), nil
	case KindKeccak256:
		return Digest(crypto.Keccak256Hash(data)), nil
	}
	return Digest{}, shared.Errorf(shared.KindEncoding, "commitment hash", "unsupported kind 0x%02x", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unsupported commitment kind 0x%02x", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(b []byte) error {
	return decodeFixedHex(d[:], b, "digest")
}

func decodeFixedHex(dst, src []byte, what string) error {
	if hex.DecodedLen(len(src)) != len(dst) {
		return fmt.Errorf("%s: expected %d hex bytes, got %d chars", what, len(dst), len(src))
	}
	if _, err := hex.Decode(dst, src); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
