package notary

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"

	"tlsn-notary/shared"
)

// KeySource yields private key material: a hex secp256k1 scalar or a PEM
// encoded P-256 key, depending on the signing backend.
type KeySource interface {
	Load(ctx context.Context) ([]byte, error)
}

// EnvKeySource reads key material from an environment variable.
type EnvKeySource struct {
	Var string
}

func (s EnvKeySource) Load(ctx context.Context) ([]byte, error) {
	v := os.Getenv(s.Var)
	if v == "" {
		return nil, shared.Errorf(shared.KindConfig, "load notary key", "%s is not set", s.Var)
	}
	return []byte(v), nil
}

// FileKeySource reads key material from a file.
type FileKeySource struct {
	Path string
}

func (s FileKeySource) Load(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, shared.NewError(shared.KindConfig, "load notary key", err)
	}
	return bytes.TrimSpace(b), nil
}

// secretAccessor is the subset of *secretmanager.Client used to load keys.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretspb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretspb.AccessSecretVersionResponse, error)
	Close() error
}

// SecretManagerKeySource reads the latest version of a GCP Secret Manager
// secret.
type SecretManagerKeySource struct {
	client    secretAccessor
	projectID string
	secretID  string
}

func NewSecretManagerKeySource(ctx context.Context, projectID, secretID string) (*SecretManagerKeySource, error) {
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &SecretManagerKeySource{client: c, projectID: projectID, secretID: secretID}, nil
}

func (s *SecretManagerKeySource) Load(ctx context.Context) ([]byte, error) {
	req := &secretspb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, s.secretID),
	}
	var resp *secretspb.AccessSecretVersionResponse
	err := shared.RetryWithBackoff(ctx, nil, func() (err error) {
		resp, err = s.client.AccessSecretVersion(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret %s: %w", s.secretID, err)
	}
	data := bytes.TrimSpace(resp.GetPayload().GetData())
	if len(data) == 0 {
		return nil, shared.Errorf(shared.KindConfig, "load notary key", "secret %s is empty", s.secretID)
	}
	return data, nil
}

func (s *SecretManagerKeySource) Close() error {
	return s.client.Close()
}

// parseP256PrivateKey accepts SEC 1 ("EC PRIVATE KEY") or PKCS #8 PEM.
func parseP256PrivateKey(material []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(material)
	if block == nil {
		return nil, shared.Errorf(shared.KindConfig, "parse notary key", "P-256 key must be PEM encoded")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		k, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, shared.NewError(shared.KindConfig, "parse notary key", err)
		}
		return k, nil
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, shared.NewError(shared.KindConfig, "parse notary key", err)
		}
		ec, ok := k.(*ecdsa.PrivateKey)
		if !ok {
			return nil, shared.Errorf(shared.KindConfig, "parse notary key", "PKCS #8 key is %T, not ECDSA", k)
		}
		return ec, nil
	default:
		return nil, shared.Errorf(shared.KindConfig, "parse notary key", "unexpected PEM block %q", block.Type)
	}
}
