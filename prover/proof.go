package prover

import (
	"google.golang.org/protobuf/encoding/protowire"

	"tlsn-notary/commitment"
	"tlsn-notary/merkle"
	"tlsn-notary/shared"
	"tlsn-notary/transcript"
	"tlsn-notary/wire"
)

const (
	proofLabel = "tlsn/substrings-proof/v1"

	// ProofVersion is the encoding version of SubstringsProof.
	ProofVersion = 1

	// MaxOpenings bounds the openings accepted from an encoded proof.
	MaxOpenings = 1 << 20
)

// OpeningProof is an opening together with the digest committed at its
// leaf, so a Verifier can tell a bad opening from a bad inclusion proof.
type OpeningProof struct {
	commitment.Opening
	Digest commitment.Digest `json:"digest"`
}

// SubstringsProof discloses a set of transcript slices under a signed root.
type SubstringsProof struct {
	Version    uint32            `json:"version"`
	Root       merkle.Root       `json:"root"`
	Openings   []OpeningProof    `json:"openings"`
	MultiProof merkle.MultiProof `json:"multi_proof"`
}

// IDs lists the opened commitment ids in proof order.
func (p *SubstringsProof) IDs() []commitment.ID {
	ids := make([]commitment.ID, len(p.Openings))
	for i, o := range p.Openings {
		ids[i] = o.ID
	}
	return ids
}

// MarshalBinary encodes label, 1 version, 2 root, 3 repeated opening,
// 4 multi-proof. Each opening is the nested message 1 id, 2 kind,
// 3 direction, 4 start, 5 length, 6 salt, 7 data, 8 digest.
func (p *SubstringsProof) MarshalBinary() ([]byte, error) {
	openings := make([][]byte, len(p.Openings))
	for i, o := range p.Openings {
		if o.Slice.Start < 0 || o.Slice.Length < 0 {
			return nil, shared.Errorf(shared.KindEncoding, "encode proof", "opening %d has negative slice bounds", o.ID)
		}
		openings[i] = wire.NewEncoder("").
			Uint(1, uint64(o.ID)).
			Uint(2, uint64(o.Kind)).
			Uint(3, uint64(o.Slice.Direction)).
			Uint(4, uint64(o.Slice.Start)).
			Uint(5, uint64(o.Slice.Length)).
			Bytes(6, o.Salt[:]).
			Bytes(7, o.Data).
			Bytes(8, o.Digest[:]).
			Output()
	}
	mp, err := p.MultiProof.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return wire.NewEncoder(proofLabel).
		Uint(1, ProofVersion).
		Bytes(2, p.Root[:]).
		RepeatedBytes(3, openings).
		Bytes(4, mp).
		Output(), nil
}

// UnmarshalBinary decodes the MarshalBinary form. Unknown commitment kinds
// and directions are rejected here.
func (p *SubstringsProof) UnmarshalBinary(b []byte) error {
	d, err := wire.NewDecoder(b, proofLabel)
	if err != nil {
		return err
	}
	if err := d.Version(ProofVersion); err != nil {
		return err
	}
	root, err := d.FixedBytes(2, merkle.HashSize)
	if err != nil {
		return err
	}
	raw, err := d.RepeatedBytes(3, MaxOpenings)
	if err != nil {
		return err
	}
	mpBytes, err := d.Bytes(4)
	if err != nil {
		return err
	}
	if err := d.Finish(); err != nil {
		return err
	}

	out := SubstringsProof{Version: ProofVersion, Openings: make([]OpeningProof, len(raw))}
	copy(out.Root[:], root)
	for i, r := range raw {
		if out.Openings[i], err = decodeOpening(r); err != nil {
			return err
		}
	}
	if err := out.MultiProof.UnmarshalBinary(mpBytes); err != nil {
		return err
	}
	*p = out
	return nil
}

func decodeOpening(b []byte) (OpeningProof, error) {
	const op = "decode opening"
	var o OpeningProof
	d, err := wire.NewDecoder(b, "")
	if err != nil {
		return o, err
	}

	var nums [5]uint64
	for i := range nums {
		if nums[i], err = d.Uint(protowire.Number(i + 1)); err != nil {
			return o, err
		}
	}
	if nums[0] > uint64(^uint32(0)) {
		return o, shared.Errorf(shared.KindEncoding, op, "commitment id %d out of range", nums[0])
	}
	o.ID = commitment.ID(nums[0])
	if nums[1] > 0xff || !commitment.Kind(nums[1]).Valid() {
		return o, shared.Errorf(shared.KindEncoding, op, "unknown commitment kind %d", nums[1])
	}
	o.Kind = commitment.Kind(nums[1])
	if nums[2] > 0xff || !transcript.Direction(nums[2]).Valid() {
		return o, shared.Errorf(shared.KindEncoding, op, "unknown direction %d", nums[2])
	}
	o.Slice.Direction = transcript.Direction(nums[2])
	if o.Slice.Start, err = wire.CheckedInt(nums[3], "start"); err != nil {
		return o, err
	}
	if o.Slice.Length, err = wire.CheckedInt(nums[4], "length"); err != nil {
		return o, err
	}

	salt, err := d.FixedBytes(6, commitment.SaltSize)
	if err != nil {
		return o, err
	}
	copy(o.Salt[:], salt)
	data, err := d.Bytes(7)
	if err != nil {
		return o, err
	}
	o.Data = append([]byte{}, data...)
	digest, err := d.FixedBytes(8, commitment.DigestSize)
	if err != nil {
		return o, err
	}
	copy(o.Digest[:], digest)
	return o, d.Finish()
}
