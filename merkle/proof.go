package merkle

import (
	"crypto/subtle"

	"tlsn-notary/shared"
	"tlsn-notary/wire"
)

const (
	proofLabel = "tlsn/merkle-multiproof"
	// ProofVersion is the encoding version written by MarshalBinary.
	ProofVersion = 1
)

// Leaf is a proven leaf: its index and its value (not its node hash).
type Leaf struct {
	Index int
	Value Hash
}

// MultiProof proves inclusion of several leaves under one root.
type MultiProof struct {
	LeafCount int    `json:"leaf_count"`
	Siblings  []Hash `json:"siblings"`
}

// Verify recomputes the root from leaves and the proof siblings. Leaves must
// be strictly ascending by index. Every failure is a MerkleInconsistency
// error; Verify never panics on malformed input.
func (p *MultiProof) Verify(root Root, leaves []Leaf) error {
	got, err := p.ComputeRoot(leaves)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(got[:], root[:]) != 1 {
		return shared.Errorf(shared.KindMerkleInconsistency, "merkle verify", "recomputed root %s does not match %s", got, root)
	}
	return nil
}

// ComputeRoot replays the proof and returns the implied root.
func (p *MultiProof) ComputeRoot(leaves []Leaf) (Root, error) {
	const op = "merkle verify"
	if p == nil {
		return Root{}, shared.Errorf(shared.KindMerkleInconsistency, op, "missing proof")
	}
	if p.LeafCount <= 0 || uint64(p.LeafCount) > MaxLeaves {
		return Root{}, shared.Errorf(shared.KindMerkleInconsistency, op, "invalid leaf count %d", p.LeafCount)
	}
	if len(leaves) == 0 {
		return Root{}, shared.Errorf(shared.KindMerkleInconsistency, op, "no leaves to verify")
	}

	idx := make([]int, len(leaves))
	nodes := make([]Hash, len(leaves))
	for i, l := range leaves {
		if l.Index < 0 || l.Index >= p.LeafCount {
			return Root{}, shared.Errorf(shared.KindMerkleInconsistency, op, "leaf index %d out of range [0, %d)", l.Index, p.LeafCount)
		}
		if i > 0 && l.Index <= idx[i-1] {
			return Root{}, shared.Errorf(shared.KindMerkleInconsistency, op, "leaf indices not strictly ascending at %d", l.Index)
		}
		idx[i] = l.Index
		nodes[i] = LeafHash(l.Value)
	}

	used := 0
	pop := func() (Hash, error) {
		if used == len(p.Siblings) {
			return Hash{}, shared.Errorf(shared.KindMerkleInconsistency, op, "proof has too few siblings for %d leaves", p.LeafCount)
		}
		h := p.Siblings[used]
		used++
		return h, nil
	}

	for width := p.LeafCount; width > 1; width = (width + 1) / 2 {
		nextIdx := make([]int, 0, len(idx))
		nextNodes := make([]Hash, 0, len(idx))
		for i := 0; i < len(idx); i++ {
			x := idx[i]
			var parent Hash
			if x%2 == 0 {
				switch {
				case i+1 < len(idx) && idx[i+1] == x+1:
					parent = nodeHash(nodes[i], nodes[i+1])
					i++
				case x+1 < width:
					sib, err := pop()
					if err != nil {
						return Root{}, err
					}
					parent = nodeHash(nodes[i], sib)
				default:
					parent = nodes[i]
				}
			} else {
				sib, err := pop()
				if err != nil {
					return Root{}, err
				}
				parent = nodeHash(sib, nodes[i])
			}
			nextIdx = append(nextIdx, x/2)
			nextNodes = append(nextNodes, parent)
		}
		idx, nodes = nextIdx, nextNodes
	}

	if used != len(p.Siblings) {
		return Root{}, shared.Errorf(shared.KindMerkleInconsistency, op, "proof has %d unused siblings", len(p.Siblings)-used)
	}
	return Root(nodes[0]), nil
}

// MarshalBinary encodes the proof as label, 1 version, 2 leaf count,
// 3 repeated sibling (32 bytes each, in consumption order).
func (p *MultiProof) MarshalBinary() ([]byte, error) {
	sibs := make([][]byte, len(p.Siblings))
	for i := range p.Siblings {
		sibs[i] = p.Siblings[i][:]
	}
	return wire.NewEncoder(proofLabel).
		Uint(1, ProofVersion).
		Uint(2, uint64(p.LeafCount)).
		RepeatedBytes(3, sibs).
		Output(), nil
}

// UnmarshalBinary decodes the MarshalBinary form.
func (p *MultiProof) UnmarshalBinary(b []byte) error {
	d, err := wire.NewDecoder(b, proofLabel)
	if err != nil {
		return err
	}
	if err := d.Version(ProofVersion); err != nil {
		return err
	}
	count, err := d.Uint(2)
	if err != nil {
		return err
	}
	if count == 0 || count > MaxLeaves {
		return shared.Errorf(shared.KindEncoding, "decode multiproof", "invalid leaf count %d", count)
	}
	leafCount, err := wire.CheckedInt(count, "leaf count")
	if err != nil {
		return err
	}
	// a proof never needs more siblings than there are leaves
	raw, err := d.RepeatedBytes(3, leafCount)
	if err != nil {
		return err
	}
	if err := d.Finish(); err != nil {
		return err
	}

	sibs := make([]Hash, len(raw))
	for i, r := range raw {
		if len(r) != HashSize {
			return shared.Errorf(shared.KindEncoding, "decode multiproof", "sibling %d has %d bytes", i, len(r))
		}
		copy(sibs[i][:], r)
	}
	p.LeafCount = leafCount
	p.Siblings = sibs
	return nil
}
