package notary

import (
	"context"
	"crypto/sha256"
	"encoding/pem"
	"fmt"
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tlsn-notary/session"
	"tlsn-notary/shared"
)

// kmsClient is the subset of *kms.KeyManagementClient the signer uses.
type kmsClient interface {
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest, opts ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error)
	Close() error
}

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// KMSSigner signs with an EC_SIGN_P256_SHA256 key version held in Google
// Cloud KMS. The private key never leaves KMS.
type KMSSigner struct {
	client  kmsClient
	keyName string
	key     session.NotaryKey
	retry   *shared.RetryConfig
}

// NewKMSSigner connects to Cloud KMS and loads the public key of
// keyVersionName, a full
// projects/*/locations/*/keyRings/*/cryptoKeys/*/cryptoKeyVersions/* path.
func NewKMSSigner(ctx context.Context, keyVersionName string) (*KMSSigner, error) {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP KMS client: %w", err)
	}
	s, err := newKMSSigner(ctx, client, keyVersionName)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func newKMSSigner(ctx context.Context, client kmsClient, keyVersionName string) (*KMSSigner, error) {
	pk, err := client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: keyVersionName})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch KMS public key: %w", err)
	}
	if pk.GetAlgorithm() != kmspb.CryptoKeyVersion_EC_SIGN_P256_SHA256 {
		return nil, fmt.Errorf("KMS key %s has algorithm %s, need EC_SIGN_P256_SHA256", keyVersionName, pk.GetAlgorithm())
	}
	if pk.GetPemCrc32C() != nil && int64(crc32.Checksum([]byte(pk.GetPem()), crc32c)) != pk.GetPemCrc32C().GetValue() {
		return nil, fmt.Errorf("KMS public key response corrupted in transit")
	}
	block, _ := pem.Decode([]byte(pk.GetPem()))
	if block == nil {
		return nil, fmt.Errorf("KMS public key is not PEM")
	}
	key, err := session.ParseP256NotaryKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &KMSSigner{client: client, keyName: keyVersionName, key: key, retry: shared.DefaultRetryConfig()}, nil
}

func (s *KMSSigner) Key() session.NotaryKey { return s.key }

// Sign asks KMS for a signature, retrying transient failures and
// responses corrupted in transit.
func (s *KMSSigner) Sign(ctx context.Context, msg []byte) (session.Signature, error) {
	digest := sha256.Sum256(msg)
	req := &kmspb.AsymmetricSignRequest{
		Name: s.keyName,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest[:]},
		},
		DigestCrc32C: wrapperspb.Int64(int64(crc32.Checksum(digest[:], crc32c))),
	}

	var sig []byte
	err := shared.RetryWithBackoff(ctx, s.retry, func() error {
		resp, err := s.client.AsymmetricSign(ctx, req)
		if err != nil {
			return fmt.Errorf("KMS AsymmetricSign failed: %w", err)
		}
		if !resp.GetVerifiedDigestCrc32C() {
			return fmt.Errorf("KMS did not verify the request digest checksum")
		}
		if resp.GetName() != s.keyName {
			return shared.Errorf(shared.KindSignature, "kms sign", "KMS signed with %s, expected %s", resp.GetName(), s.keyName)
		}
		if int64(crc32.Checksum(resp.GetSignature(), crc32c)) != resp.GetSignatureCrc32C().GetValue() {
			return fmt.Errorf("KMS signature response corrupted in transit")
		}
		sig = resp.GetSignature()
		return nil
	})
	if err != nil {
		return session.Signature{}, err
	}
	return session.Signature{Algorithm: session.AlgP256SHA256, Bytes: sig}, nil
}

// Close releases the KMS connection.
func (s *KMSSigner) Close() error {
	return s.client.Close()
}
