package notary

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"tlsn-notary/session"
	"tlsn-notary/shared"
)

// Signer produces notary signatures over canonical header bytes.
type Signer interface {
	Key() session.NotaryKey
	Sign(ctx context.Context, msg []byte) (session.Signature, error)
}

// EthSigner signs with a local secp256k1 key, Ethereum style.
type EthSigner struct {
	kp *shared.SigningKeyPair
}

func NewEthSigner(kp *shared.SigningKeyPair) *EthSigner {
	return &EthSigner{kp: kp}
}

func (s *EthSigner) Key() session.NotaryKey {
	return session.NewEthNotaryKey(s.kp.GetEthAddress())
}

func (s *EthSigner) Sign(ctx context.Context, msg []byte) (session.Signature, error) {
	if err := ctx.Err(); err != nil {
		return session.Signature{}, err
	}
	sig, err := s.kp.SignData(msg)
	if err != nil {
		return session.Signature{}, err
	}
	return session.Signature{Algorithm: session.AlgSecp256k1Eth, Bytes: sig}, nil
}

// ECDSASigner signs with a local P-256 key.
type ECDSASigner struct {
	priv *ecdsa.PrivateKey
	key  session.NotaryKey
}

func NewECDSASigner(priv *ecdsa.PrivateKey) (*ECDSASigner, error) {
	if priv == nil || priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("ECDSA notary key must be P-256")
	}
	key, err := session.NewP256NotaryKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &ECDSASigner{priv: priv, key: key}, nil
}

// GenerateECDSASigner creates a signer with a fresh random key.
func GenerateECDSASigner() (*ECDSASigner, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate P-256 key: %w", err)
	}
	return NewECDSASigner(priv)
}

func (s *ECDSASigner) Key() session.NotaryKey { return s.key }

func (s *ECDSASigner) Sign(ctx context.Context, msg []byte) (session.Signature, error) {
	if err := ctx.Err(); err != nil {
		return session.Signature{}, err
	}
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, s.priv, digest[:])
	if err != nil {
		return session.Signature{}, fmt.Errorf("failed to sign with ECDSA: %w", err)
	}
	return session.Signature{Algorithm: session.AlgP256SHA256, Bytes: sig}, nil
}
