// Package merkle is the accumulator over commitment digests.
//
// Nodes are SHA-256. A leaf node is H(0x00 || value), an inner node is
// H(0x01 || left || right). When a level has an odd number of nodes the
// last one is promoted unchanged to the next level; nothing is duplicated
// or padded. A one-leaf tree's root is that leaf's node hash. Empty trees
// are not representable.
//
// A MultiProof for a set of leaves lists, level by level from the leaves
// up and left to right within a level, the siblings that the verifier
// cannot compute itself. Siblings shared by several proven leaves appear
// once, so k leaves out of n cost O(k·log(n/k)) hashes.
package merkle

import (
	"sort"

	"tlsn-notary/shared"
)

// MaxLeaves bounds the leaf count accepted from untrusted proofs.
const MaxLeaves = 1 << 32

// Tree is the Prover's build-time structure. It is not safe for concurrent
// mutation and is discarded once the root and proofs are extracted.
type Tree struct {
	// levels[0] holds leaf node hashes, the last level holds the root
	levels [][]Hash
}

// NewTree hashes leaves in order (index i is leaf i) and builds every level.
func NewTree(leaves []Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, shared.Errorf(shared.KindState, "build tree", "no leaves")
	}
	if uint64(len(leaves)) > MaxLeaves {
		return nil, shared.Errorf(shared.KindRange, "build tree", "%d leaves exceeds maximum", len(leaves))
	}

	level := make([]Hash, len(leaves))
	for i, v := range leaves {
		level[i] = LeafHash(v)
	}
	t := &Tree{levels: [][]Hash{level}}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// Root returns the tree root.
func (t *Tree) Root() Root {
	return Root(t.levels[len(t.levels)-1][0])
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Height is the number of levels above the leaves.
func (t *Tree) Height() int {
	return len(t.levels) - 1
}

// Prove builds a multi-proof for the given leaf indices. Duplicate indices
// are collapsed.
func (t *Tree) Prove(indices []int) (*MultiProof, error) {
	if len(indices) == 0 {
		return nil, shared.Errorf(shared.KindNotFound, "merkle prove", "no leaf indices requested")
	}
	idx := sortedUnique(indices)
	n := t.LeafCount()
	if idx[0] < 0 || idx[len(idx)-1] >= n {
		return nil, shared.Errorf(shared.KindNotFound, "merkle prove", "leaf index out of range [0, %d)", n)
	}

	var siblings []Hash
	for _, nodes := range t.levels[:len(t.levels)-1] {
		next := make([]int, 0, len(idx))
		for i := 0; i < len(idx); i++ {
			x := idx[i]
			if x%2 == 0 {
				switch {
				case i+1 < len(idx) && idx[i+1] == x+1:
					i++
				case x+1 < len(nodes):
					siblings = append(siblings, nodes[x+1])
				}
			} else {
				// x-1 is untracked, otherwise the pair was consumed above
				siblings = append(siblings, nodes[x-1])
			}
			next = append(next, x/2)
		}
		idx = next
	}

	return &MultiProof{LeafCount: n, Siblings: siblings}, nil
}

func sortedUnique(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	j := 0
	for i, v := range out {
		if i == 0 || v != out[j-1] {
			out[j] = v
			j++
		}
	}
	return out[:j]
}
