// Package prover commits to a finished transcript and later builds
// selective-disclosure proofs against the Notary-signed root.
package prover

import (
	"sort"

	"go.uber.org/zap"

	"tlsn-notary/commitment"
	"tlsn-notary/merkle"
	"tlsn-notary/notary"
	"tlsn-notary/session"
	"tlsn-notary/shared"
	"tlsn-notary/transcript"
)

var logger = zap.NewNop()

// SetLogger allows the main package to inject its configured logger
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l.With(zap.String("package", "prover"))
	}
}

// CommitmentBuilder registers commitments in id order and turns them into a
// Merkle tree once. It is owned by a single goroutine; see Accumulator for
// concurrent producers.
type CommitmentBuilder struct {
	transcript     *transcript.Transcript
	seed           []byte
	maxCommitments int

	commitments []commitment.Commitment
	openings    []commitment.Opening

	tree      *merkle.Tree
	discarded bool
}

// NewCommitmentBuilder commits against t. seed blinds every commitment and
// must stay secret; pass nil to draw a fresh one.
func NewCommitmentBuilder(t *transcript.Transcript, seed []byte, cfg *Config) (*CommitmentBuilder, error) {
	if t == nil {
		return nil, shared.Errorf(shared.KindState, "new builder", "no transcript")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if seed == nil {
		var err error
		if seed, err = commitment.NewSeed(); err != nil {
			return nil, err
		}
	}
	if len(seed) < commitment.SeedSize {
		return nil, shared.Errorf(shared.KindState, "new builder", "seed must be at least %d bytes", commitment.SeedSize)
	}
	return &CommitmentBuilder{
		transcript:     t,
		seed:           append([]byte(nil), seed...),
		maxCommitments: cfg.MaxCommitments,
	}, nil
}

// Transcript returns the transcript being committed to.
func (b *CommitmentBuilder) Transcript() *transcript.Transcript {
	return b.transcript
}

// Commit registers a commitment to slice and returns its id. Ids are dense
// from 0 in call order.
func (b *CommitmentBuilder) Commit(slice transcript.Slice, kind commitment.Kind) (commitment.ID, error) {
	const op = "commit"
	if b.tree != nil || b.discarded {
		return 0, shared.Errorf(shared.KindState, op, "builder is finalized")
	}
	if !kind.Valid() {
		return 0, shared.Errorf(shared.KindEncoding, op, "unsupported commitment kind 0x%02x", uint8(kind))
	}
	if len(b.commitments) >= b.maxCommitments {
		return 0, shared.Errorf(shared.KindState, op, "commitment limit %d reached", b.maxCommitments)
	}

	id := commitment.ID(len(b.commitments))
	salt, err := commitment.DeriveSalt(b.seed, id)
	if err != nil {
		return 0, err
	}
	c, o, err := commitment.Commit(b.transcript, kind, id, slice, salt)
	if err != nil {
		return 0, err
	}
	b.commitments = append(b.commitments, c)
	b.openings = append(b.openings, o)
	return id, nil
}

// Len is the number of registered commitments.
func (b *CommitmentBuilder) Len() int {
	return len(b.commitments)
}

// Finalize builds the tree and returns its root. Later calls return the
// same root without rebuilding.
func (b *CommitmentBuilder) Finalize() (merkle.Root, error) {
	if b.tree != nil {
		return b.tree.Root(), nil
	}
	if b.discarded {
		return merkle.Root{}, shared.Errorf(shared.KindState, "finalize", "builder was discarded")
	}
	leaves := make([]merkle.Hash, len(b.commitments))
	for i, c := range b.commitments {
		leaves[i] = merkle.Hash(c.Digest)
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return merkle.Root{}, err
	}
	b.tree = tree
	logger.Debug("Commitments finalized",
		zap.Int("leaf_count", tree.LeafCount()),
		zap.Int("height", tree.Height()),
		zap.String("root", tree.Root().String()))
	return tree.Root(), nil
}

// Request builds the notarization request for the finalized tree.
func (b *CommitmentBuilder) Request(hs session.HandshakeSummary) (notary.Request, error) {
	if b.tree == nil {
		return notary.Request{}, shared.Errorf(shared.KindState, "notarization request", "builder is not finalized")
	}
	return notary.Request{
		Root:      b.tree.Root(),
		LeafCount: b.tree.LeafCount(),
		SentLen:   b.transcript.Len(transcript.Sent),
		RecvLen:   b.transcript.Len(transcript.Received),
		Handshake: hs,
	}, nil
}

// BuildProof opens the given commitments. Duplicate ids are collapsed and
// openings come out in ascending id order.
func (b *CommitmentBuilder) BuildProof(ids []commitment.ID) (*SubstringsProof, error) {
	const op = "build proof"
	switch {
	case b.discarded:
		return nil, shared.Errorf(shared.KindState, op, "opening data was discarded")
	case b.tree == nil:
		return nil, shared.Errorf(shared.KindState, op, "builder is not finalized")
	case len(ids) == 0:
		return nil, shared.Errorf(shared.KindNotFound, op, "no commitment ids requested")
	}

	sorted := append([]commitment.ID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := make([]int, 0, len(sorted))
	openings := make([]OpeningProof, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		if int(id) >= len(b.openings) {
			return nil, shared.Errorf(shared.KindNotFound, op, "unknown commitment id %d", id)
		}
		o := b.openings[id]
		if o.Data == nil {
			return nil, shared.Errorf(shared.KindState, op, "commitment %d has no opening data", id)
		}
		o.Data = append([]byte(nil), o.Data...)
		idx = append(idx, int(id))
		openings = append(openings, OpeningProof{Opening: o, Digest: b.commitments[id].Digest})
	}

	mp, err := b.tree.Prove(idx)
	if err != nil {
		return nil, err
	}
	return &SubstringsProof{
		Version:    ProofVersion,
		Root:       b.tree.Root(),
		Openings:   openings,
		MultiProof: *mp,
	}, nil
}

// Discard zeroes the opening data and seed. The builder is unusable
// afterwards, apart from returning errors.
func (b *CommitmentBuilder) Discard() {
	for i := range b.openings {
		clear(b.openings[i].Data)
		b.openings[i].Data = nil
	}
	clear(b.seed)
	b.discarded = true
	b.tree = nil
}
