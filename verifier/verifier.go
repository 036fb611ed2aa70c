// Package verifier checks a SubstringsProof against a Notary-signed session
// header. It never needs the Prover's tree or the undisclosed transcript.
package verifier

import (
	"go.uber.org/zap"

	"tlsn-notary/commitment"
	"tlsn-notary/merkle"
	"tlsn-notary/prover"
	"tlsn-notary/session"
	"tlsn-notary/shared"
	"tlsn-notary/transcript"
)

var logger = zap.NewNop()

// SetLogger allows the main package to inject its configured logger
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l.With(zap.String("package", "verifier"))
	}
}

// Check names the verification step that failed.
type Check string

const (
	CheckStructure Check = "structure"
	CheckSignature Check = "signature"
	CheckBinding   Check = "binding"
	CheckRange     Check = "range"
	CheckOpening   Check = "opening"
	CheckInclusion Check = "inclusion"
)

// Options are the Verifier's expectations beyond the Notary key.
type Options struct {
	session.BindingOptions
}

// Disclosed is one verified opening.
type Disclosed struct {
	ID    commitment.ID    `json:"id"`
	Slice transcript.Slice `json:"slice"`
	Data  []byte           `json:"data"`
}

// Disclosure is the result of a successful verification.
type Disclosure struct {
	Header session.Header `json:"header"`
	Items  []Disclosed    `json:"items"`

	redacted *transcript.Redacted
}

// Slices lists the disclosed slices in commitment id order.
func (d *Disclosure) Slices() []transcript.Slice {
	out := make([]transcript.Slice, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Slice
	}
	return out
}

// Redacted is the transcript as the Verifier may see it: header lengths
// with only the disclosed bytes filled in.
func (d *Disclosure) Redacted() *transcript.Redacted {
	return d.redacted
}

// Verify checks, in order, the header signature, the handshake binding,
// each opening against its committed digest and the transcript lengths,
// and finally the multi-proof against the signed root. Nothing is
// returned unless every check passes. Verify is safe for concurrent use.
func Verify(proof *prover.SubstringsProof, sh *session.SignedHeader, key session.NotaryKey, opts Options) (*Disclosure, error) {
	d, check, err := verify(proof, sh, key, opts)
	if err != nil {
		logger.Warn("Proof rejected",
			zap.String("check", string(check)),
			zap.String("kind", shared.KindOf(err).String()),
			zap.Error(err))
		return nil, err
	}
	logger.Debug("Proof verified",
		zap.String("session_id", d.Header.SessionID.String()),
		zap.String("server_name", d.Header.Handshake.ServerName),
		zap.Int("disclosed", len(d.Items)))
	return d, nil
}

func verify(proof *prover.SubstringsProof, sh *session.SignedHeader, key session.NotaryKey, opts Options) (*Disclosure, Check, error) {
	const op = "verify proof"
	switch {
	case proof == nil:
		return nil, CheckStructure, shared.Errorf(shared.KindState, op, "missing proof")
	case sh == nil:
		return nil, CheckStructure, shared.Errorf(shared.KindState, op, "missing session header")
	case proof.Version != prover.ProofVersion:
		return nil, CheckStructure, shared.Errorf(shared.KindEncoding, op, "unsupported proof version %d", proof.Version)
	case len(proof.Openings) == 0:
		return nil, CheckStructure, shared.Errorf(shared.KindNotFound, op, "proof discloses nothing")
	}

	if err := sh.Verify(key); err != nil {
		return nil, CheckSignature, err
	}
	h := sh.Header

	if err := h.Handshake.VerifyBinding(opts.BindingOptions); err != nil {
		return nil, CheckBinding, err
	}

	leaves := make([]merkle.Leaf, len(proof.Openings))
	for i, o := range proof.Openings {
		total := h.SentLen
		if o.Slice.Direction == transcript.Received {
			total = h.RecvLen
		}
		if err := o.Slice.Validate(total); err != nil {
			return nil, CheckRange, shared.NewError(shared.KindRange, op, err)
		}
		if err := o.Verify(commitment.Commitment{Kind: o.Kind, Digest: o.Digest}); err != nil {
			return nil, CheckOpening, err
		}
		leaves[i] = merkle.Leaf{Index: int(o.ID), Value: merkle.Hash(o.Digest)}
	}

	if proof.Root != h.Root {
		return nil, CheckInclusion, shared.Errorf(shared.KindMerkleInconsistency, op, "proof root %s does not match signed root %s", proof.Root, h.Root)
	}
	if proof.MultiProof.LeafCount != h.LeafCount {
		return nil, CheckInclusion, shared.Errorf(shared.KindMerkleInconsistency, op, "proof claims %d leaves, header signs %d", proof.MultiProof.LeafCount, h.LeafCount)
	}
	if err := proof.MultiProof.Verify(h.Root, leaves); err != nil {
		return nil, CheckInclusion, err
	}

	d := &Disclosure{
		Header:   h,
		Items:    make([]Disclosed, len(proof.Openings)),
		redacted: transcript.NewRedacted(h.SentLen, h.RecvLen),
	}
	for i, o := range proof.Openings {
		// overlapping openings must agree byte for byte
		if err := d.redacted.Reveal(o.Slice, o.Data); err != nil {
			return nil, CheckOpening, err
		}
		d.Items[i] = Disclosed{ID: o.ID, Slice: o.Slice, Data: append([]byte(nil), o.Data...)}
	}
	return d, "", nil
}
