// Package commitment turns transcript slices into salted, domain-separated
// digests and checks openings against them.
//
// The digest input is the "tlsn/commitment/v1" label followed by the
// canonical wire fields
//
//	1 kind, 2 id, 3 direction, 4 start, 5 length, 6 salt, 7 data
//
// hashed with the kind's function. Binding the id and position means an
// opening cannot be replayed at another leaf or offset.
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"tlsn-notary/shared"
	"tlsn-notary/transcript"
	"tlsn-notary/wire"
)

const (
	digestLabel = "tlsn/commitment/v1"
	saltInfo    = "tlsn/commitment-salt/v1"

	// SaltSize is the size of the per-commitment blinding salt.
	SaltSize = 32
	// SeedSize is the size of the Prover's session seed.
	SeedSize = 32
)

// ID is the dense index of a commitment within a session. It is also the
// Merkle leaf index.
type ID uint32

// Salt blinds a commitment so low-entropy slices cannot be brute forced.
type Salt [SaltSize]byte

func (s Salt) MarshalText() ([]byte, error) {
	return []byte(Digest(s).String()), nil
}

func (s *Salt) UnmarshalText(b []byte) error {
	return decodeFixedHex(s[:], b, "salt")
}

// Commitment is the typed digest registered as a Merkle leaf.
type Commitment struct {
	Kind   Kind   `json:"kind"`
	Digest Digest `json:"digest"`
}

// NewSeed draws a fresh session seed.
func NewSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate commitment seed: %w", err)
	}
	return seed, nil
}

// DeriveSalt expands the session seed into the salt of commitment id.
func DeriveSalt(seed []byte, id ID) (Salt, error) {
	var salt Salt
	if len(seed) < SeedSize {
		return salt, shared.Errorf(shared.KindState, "derive salt", "seed must be at least %d bytes, got %d", SeedSize, len(seed))
	}
	info := make([]byte, len(saltInfo)+4)
	copy(info, saltInfo)
	binary.BigEndian.PutUint32(info[len(saltInfo):], uint32(id))

	r := hkdf.New(sha256.New, seed, nil, info)
	if _, err := io.ReadFull(r, salt[:]); err != nil {
		return salt, fmt.Errorf("failed to derive salt for commitment %d: %w", id, err)
	}
	return salt, nil
}

// Encode computes the commitment to data located at slice.
func Encode(kind Kind, id ID, slice transcript.Slice, salt Salt, data []byte) (Commitment, error) {
	if !kind.Valid() {
		return Commitment{}, shared.Errorf(shared.KindEncoding, "encode commitment", "unsupported kind 0x%02x", uint8(kind))
	}
	if !slice.Direction.Valid() || slice.Start < 0 || slice.Length <= 0 {
		return Commitment{}, shared.Errorf(shared.KindRange, "encode commitment", "invalid slice %s", slice)
	}
	if len(data) != slice.Length {
		return Commitment{}, shared.Errorf(shared.KindRange, "encode commitment", "slice %s given %d bytes", slice, len(data))
	}

	input := wire.NewEncoder(digestLabel).
		Uint(1, uint64(kind)).
		Uint(2, uint64(id)).
		Uint(3, uint64(slice.Direction)).
		Uint(4, uint64(slice.Start)).
		Uint(5, uint64(slice.Length)).
		Bytes(6, salt[:]).
		Bytes(7, data).
		Output()

	digest, err := kind.Hash(input)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{Kind: kind, Digest: digest}, nil
}

// Commit reads slice from t and commits to it. The slice is range-checked
// against the transcript; nothing is truncated.
func Commit(t *transcript.Transcript, kind Kind, id ID, slice transcript.Slice, salt Salt) (Commitment, Opening, error) {
	data, err := t.Get(slice)
	if err != nil {
		return Commitment{}, Opening{}, err
	}
	c, err := Encode(kind, id, slice, salt, data)
	if err != nil {
		return Commitment{}, Opening{}, err
	}
	return c, Opening{ID: id, Kind: kind, Slice: slice, Salt: salt, Data: data}, nil
}
