package session

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"tlsn-notary/shared"
)

// Algorithm names a notary signature scheme.
type Algorithm string

const (
	// AlgSecp256k1Eth is a 65-byte recoverable secp256k1 signature over the
	// Ethereum text hash of the signed bytes. Keys are Ethereum addresses.
	AlgSecp256k1Eth Algorithm = "secp256k1-eth"
	// AlgP256SHA256 is an ASN.1 ECDSA P-256 signature over SHA-256 of the
	// signed bytes. Keys are PKIX DER public keys.
	AlgP256SHA256 Algorithm = "p256-sha256"
)

func (a Algorithm) Valid() bool {
	return a == AlgSecp256k1Eth || a == AlgP256SHA256
}

// Signature is a notary signature tagged with its scheme.
type Signature struct {
	Algorithm Algorithm     `json:"algorithm"`
	Bytes     hexutil.Bytes `json:"bytes"`
}

// NotaryKey is the public key a Verifier trusts. Key holds the 20-byte
// address for secp256k1-eth and the PKIX DER encoding for p256-sha256.
type NotaryKey struct {
	Algorithm Algorithm     `json:"algorithm"`
	Key       hexutil.Bytes `json:"key"`
}

// NewEthNotaryKey identifies a secp256k1 notary by its address.
func NewEthNotaryKey(addr common.Address) NotaryKey {
	return NotaryKey{Algorithm: AlgSecp256k1Eth, Key: addr.Bytes()}
}

// NewP256NotaryKey wraps a P-256 public key.
func NewP256NotaryKey(pub *ecdsa.PublicKey) (NotaryKey, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return NotaryKey{}, shared.Errorf(shared.KindSignature, "notary key", "not a P-256 public key")
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return NotaryKey{}, shared.NewError(shared.KindSignature, "notary key", err)
	}
	return NotaryKey{Algorithm: AlgP256SHA256, Key: der}, nil
}

// ParseP256NotaryKey accepts a PKIX DER encoded P-256 public key.
func ParseP256NotaryKey(der []byte) (NotaryKey, error) {
	pub, err := parseP256(der)
	if err != nil {
		return NotaryKey{}, err
	}
	return NewP256NotaryKey(pub)
}

// ID is the value the header carries to name its signer: the address for
// secp256k1-eth, SHA-256 of the PKIX bytes for p256-sha256.
func (k NotaryKey) ID() []byte {
	switch k.Algorithm {
	case AlgSecp256k1Eth:
		return append([]byte(nil), k.Key...)
	case AlgP256SHA256:
		sum := sha256.Sum256(k.Key)
		return sum[:]
	default:
		return nil
	}
}

func (k NotaryKey) String() string {
	switch k.Algorithm {
	case AlgSecp256k1Eth:
		return fmt.Sprintf("%s:%s", k.Algorithm, common.BytesToAddress(k.Key).Hex())
	default:
		return fmt.Sprintf("%s:%x", k.Algorithm, k.ID())
	}
}

// Verify checks sig over msg. Every failure is a signature error.
func (k NotaryKey) Verify(msg []byte, sig Signature) error {
	const op = "verify signature"
	if sig.Algorithm != k.Algorithm {
		return shared.Errorf(shared.KindSignature, op, "signature algorithm %q does not match key algorithm %q", sig.Algorithm, k.Algorithm)
	}

	switch k.Algorithm {
	case AlgSecp256k1Eth:
		if len(k.Key) != common.AddressLength {
			return shared.Errorf(shared.KindSignature, op, "address has %d bytes", len(k.Key))
		}
		if err := shared.VerifyEthSignature(msg, sig.Bytes, common.BytesToAddress(k.Key)); err != nil {
			return shared.NewError(shared.KindSignature, op, err)
		}
		return nil
	case AlgP256SHA256:
		pub, err := parseP256(k.Key)
		if err != nil {
			return err
		}
		digest := sha256.Sum256(msg)
		if !ecdsa.VerifyASN1(pub, digest[:], sig.Bytes) {
			return shared.Errorf(shared.KindSignature, op, "p256 signature does not verify")
		}
		return nil
	default:
		return shared.Errorf(shared.KindSignature, op, "unsupported algorithm %q", k.Algorithm)
	}
}

func parseP256(der []byte) (*ecdsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, shared.NewError(shared.KindSignature, "parse notary key", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, shared.Errorf(shared.KindSignature, "parse notary key", "expected P-256 key, got %T", parsed)
	}
	return pub, nil
}
