package shared

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthSignatureLength is the size of a recoverable secp256k1 signature (r || s || v).
const EthSignatureLength = 65

// SigningKeyPair represents a secp256k1 key pair producing Ethereum-style signatures
type SigningKeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// GenerateSigningKeyPair generates a new secp256k1 signing key pair
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key pair: %w", err)
	}

	return &SigningKeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// SigningKeyPairFromHex parses a hex encoded secp256k1 private key, with or
// without 0x prefix.
func SigningKeyPairFromHex(s string) (*SigningKeyPair, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	privateKey, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 private key: %w", err)
	}
	return &SigningKeyPair{PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// PrivateKeyHex returns the hex encoding of the private key without prefix
func (kp *SigningKeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(kp.PrivateKey))
}

// SignData signs the given data using Ethereum-style signatures
func (kp *SigningKeyPair) SignData(data []byte) ([]byte, error) {
	// Standard Ethereum message signing (includes prefix)
	hash := accounts.TextHash(data)

	signature, err := crypto.Sign(hash, kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data with ETH style: %w", err)
	}

	return signature, nil
}

// GetEthAddress returns the Ethereum address for this key pair
func (kp *SigningKeyPair) GetEthAddress() common.Address {
	return crypto.PubkeyToAddress(*kp.PublicKey)
}

// VerifyEthSignature verifies an Ethereum-style signature against the given data and address
func VerifyEthSignature(data []byte, signature []byte, expectedAddress common.Address) error {
	if len(signature) != EthSignatureLength {
		return fmt.Errorf("invalid ETH signature length: expected %d bytes, got %d", EthSignatureLength, len(signature))
	}

	hash := accounts.TextHash(data)

	recoveredPubKey, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return fmt.Errorf("failed to recover public key from signature: %w", err)
	}

	recoveredAddress := crypto.PubkeyToAddress(*recoveredPubKey)
	if recoveredAddress != expectedAddress {
		return fmt.Errorf("signature verification failed: expected address %s, got %s",
			expectedAddress.Hex(), recoveredAddress.Hex())
	}

	return nil
}
