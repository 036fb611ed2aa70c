package proofverifier

import (
	"encoding/json"
	"fmt"
	"os"

	"tlsn-notary/prover"
	"tlsn-notary/session"
	"tlsn-notary/shared"
)

// Bundle is everything an offline Verifier needs for one disclosure.
type Bundle struct {
	Version       int                    `json:"version"`
	Header        session.SignedHeader   `json:"header"`
	Proof         prover.SubstringsProof `json:"proof"`
	HandshakeData *session.HandshakeData `json:"handshake_data,omitempty"`
	NotaryKey     session.NotaryKey      `json:"notary_key"`
}

// NewBundle packages a proof for offline verification. hs may be nil when
// the Prover does not reveal its handshake.
func NewBundle(sh *session.SignedHeader, proof *prover.SubstringsProof, hs *session.HandshakeData, key session.NotaryKey) *Bundle {
	return &Bundle{
		Version:       BundleVersion,
		Header:        *sh,
		Proof:         *proof,
		HandshakeData: hs,
		NotaryKey:     key,
	}
}

// ParseBundle validates data against the bundle schema and decodes it.
func ParseBundle(data []byte) (*Bundle, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, shared.NewError(shared.KindEncoding, "decode bundle", err)
	}
	if b.Version != BundleVersion {
		return nil, shared.Errorf(shared.KindEncoding, "decode bundle", "unsupported bundle version %d", b.Version)
	}
	return &b, nil
}

// LoadBundle reads and parses a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return ParseBundle(data)
}

// WriteFile stores the bundle as indented JSON.
func (b *Bundle) WriteFile(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}
