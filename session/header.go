// Package session defines the Notary-signed header that binds a transcript
// commitment root to a TLS handshake, and the checks a Verifier runs on it.
package session

import (
	"crypto/sha256"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"tlsn-notary/commitment"
	"tlsn-notary/merkle"
	"tlsn-notary/shared"
	"tlsn-notary/wire"
)

const (
	headerLabel       = "tlsn/header/v1"
	signedHeaderLabel = "tlsn/signed-header/v1"

	// HeaderVersion is the only header encoding version understood.
	HeaderVersion = 1
)

// Header is the record the Notary signs. Its canonical bytes are
//
//	"tlsn/header/v1" 1 version, 2 session id, 3 root, 4 leaf count,
//	5 sent length, 6 received length, 7 notarized at (unix seconds),
//	8 handshake {1 time, 2 server name, 3 cipher suite, 4 commitment},
//	9 notary key id
type Header struct {
	Version     uint32           `json:"version"`
	SessionID   uuid.UUID        `json:"session_id"`
	Root        merkle.Root      `json:"root"`
	LeafCount   int              `json:"leaf_count"`
	SentLen     int              `json:"sent_len"`
	RecvLen     int              `json:"recv_len"`
	NotarizedAt time.Time        `json:"notarized_at"`
	Handshake   HandshakeSummary `json:"handshake"`
	NotaryKeyID hexutil.Bytes    `json:"notary_key_id"`
}

// Validate checks the header fields that every consumer relies on.
func (h *Header) Validate() error {
	const op = "validate header"
	switch {
	case h.Version != HeaderVersion:
		return shared.Errorf(shared.KindEncoding, op, "unsupported version %d", h.Version)
	case h.LeafCount <= 0 || uint64(h.LeafCount) > merkle.MaxLeaves:
		return shared.Errorf(shared.KindEncoding, op, "invalid leaf count %d", h.LeafCount)
	case h.SentLen < 0 || h.RecvLen < 0:
		return shared.Errorf(shared.KindEncoding, op, "negative transcript length")
	case len(h.NotaryKeyID) == 0:
		return shared.Errorf(shared.KindEncoding, op, "missing notary key id")
	}
	return nil
}

// CanonicalBytes is the byte string that gets signed.
func (h *Header) CanonicalBytes() []byte {
	hs := wire.NewEncoder("").
		Uint(1, wire.EncodeInt64(h.Handshake.Time.Unix())).
		String(2, h.Handshake.ServerName).
		Uint(3, uint64(h.Handshake.CipherSuite)).
		Bytes(4, h.Handshake.Commitment[:]).
		Output()

	return wire.NewEncoder(headerLabel).
		Uint(1, uint64(h.Version)).
		Bytes(2, h.SessionID[:]).
		Bytes(3, h.Root[:]).
		Uint(4, uint64(h.LeafCount)).
		Uint(5, uint64(h.SentLen)).
		Uint(6, uint64(h.RecvLen)).
		Uint(7, wire.EncodeInt64(h.NotarizedAt.Unix())).
		Bytes(8, hs).
		Bytes(9, h.NotaryKeyID).
		Output()
}

// Digest is SHA-256 of the canonical bytes.
func (h *Header) Digest() [32]byte {
	return sha256.Sum256(h.CanonicalBytes())
}

func (h *Header) MarshalBinary() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h.CanonicalBytes(), nil
}

// UnmarshalBinary decodes canonical bytes. Fields out of order, duplicated,
// unknown or trailing are rejected.
func (h *Header) UnmarshalBinary(b []byte) error {
	d, err := wire.NewDecoder(b, headerLabel)
	if err != nil {
		return err
	}
	if err := d.Version(HeaderVersion); err != nil {
		return err
	}
	var out Header
	out.Version = HeaderVersion

	id, err := d.FixedBytes(2, len(out.SessionID))
	if err != nil {
		return err
	}
	copy(out.SessionID[:], id)
	root, err := d.FixedBytes(3, merkle.HashSize)
	if err != nil {
		return err
	}
	copy(out.Root[:], root)

	var lens [3]int
	for i, name := range []string{"leaf count", "sent length", "received length"} {
		v, err := d.Uint(protowire.Number(4 + i))
		if err != nil {
			return err
		}
		if lens[i], err = wire.CheckedInt(v, name); err != nil {
			return err
		}
	}
	out.LeafCount, out.SentLen, out.RecvLen = lens[0], lens[1], lens[2]

	at, err := d.Uint(7)
	if err != nil {
		return err
	}
	out.NotarizedAt = time.Unix(wire.DecodeInt64(at), 0).UTC()

	hsBytes, err := d.Bytes(8)
	if err != nil {
		return err
	}
	if out.Handshake, err = decodeHandshakeSummary(hsBytes); err != nil {
		return err
	}
	keyID, err := d.Bytes(9)
	if err != nil {
		return err
	}
	out.NotaryKeyID = append(hexutil.Bytes(nil), keyID...)
	if err := d.Finish(); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*h = out
	return nil
}

func decodeHandshakeSummary(b []byte) (HandshakeSummary, error) {
	var s HandshakeSummary
	d, err := wire.NewDecoder(b, "")
	if err != nil {
		return s, err
	}
	t, err := d.Uint(1)
	if err != nil {
		return s, err
	}
	s.Time = time.Unix(wire.DecodeInt64(t), 0).UTC()
	if s.ServerName, err = d.String(2); err != nil {
		return s, err
	}
	suite, err := d.Uint(3)
	if err != nil {
		return s, err
	}
	if suite > 0xffff {
		return s, shared.Errorf(shared.KindEncoding, "decode handshake summary", "cipher suite 0x%x out of range", suite)
	}
	s.CipherSuite = uint16(suite)
	c, err := d.FixedBytes(4, commitment.DigestSize)
	if err != nil {
		return s, err
	}
	copy(s.Commitment[:], c)
	return s, d.Finish()
}

// SignedHeader is the portable session artifact.
type SignedHeader struct {
	Header    Header    `json:"header"`
	Signature Signature `json:"signature"`
}

// Verify checks that key signed the header. The header must also name key
// as its signer, so a signature cannot be re-attributed to another Notary.
func (s *SignedHeader) Verify(key NotaryKey) error {
	const op = "verify header"
	if err := s.Header.Validate(); err != nil {
		return shared.NewError(shared.KindSignature, op, err)
	}
	if !key.Algorithm.Valid() {
		return shared.Errorf(shared.KindSignature, op, "unsupported notary key algorithm %q", key.Algorithm)
	}
	want := key.ID()
	if len(want) == 0 || string(want) != string(s.Header.NotaryKeyID) {
		return shared.Errorf(shared.KindSignature, op, "header names notary %x, verifying with %s", []byte(s.Header.NotaryKeyID), key)
	}
	return key.Verify(s.Header.CanonicalBytes(), s.Signature)
}

// MarshalBinary encodes label, 1 version, 2 header, 3 algorithm, 4 signature.
func (s *SignedHeader) MarshalBinary() ([]byte, error) {
	hb, err := s.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return wire.NewEncoder(signedHeaderLabel).
		Uint(1, HeaderVersion).
		Bytes(2, hb).
		String(3, string(s.Signature.Algorithm)).
		Bytes(4, s.Signature.Bytes).
		Output(), nil
}

func (s *SignedHeader) UnmarshalBinary(b []byte) error {
	d, err := wire.NewDecoder(b, signedHeaderLabel)
	if err != nil {
		return err
	}
	if err := d.Version(HeaderVersion); err != nil {
		return err
	}
	hb, err := d.Bytes(2)
	if err != nil {
		return err
	}
	var out SignedHeader
	if err := out.Header.UnmarshalBinary(hb); err != nil {
		return err
	}
	alg, err := d.String(3)
	if err != nil {
		return err
	}
	out.Signature.Algorithm = Algorithm(alg)
	sig, err := d.Bytes(4)
	if err != nil {
		return err
	}
	out.Signature.Bytes = append(hexutil.Bytes(nil), sig...)
	if err := d.Finish(); err != nil {
		return err
	}
	*s = out
	return nil
}
