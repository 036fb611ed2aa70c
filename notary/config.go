package notary

import (
	"context"
	"fmt"

	"tlsn-notary/shared"
)

// Signing backends.
const (
	BackendSecp256k1 = "secp256k1"
	BackendP256      = "p256"
	BackendGCPKMS    = "gcp-kms"
)

// Key sources for the local backends.
const (
	SourceEnv       = "env"
	SourceFile      = "file"
	SourceGCPSecret = "gcp-secret"
)

// DefaultMaxTranscriptBytes bounds each direction of a notarized session.
const DefaultMaxTranscriptBytes = 16384

type Config struct {
	SigningBackend string `json:"signing_backend"`
	KeySource      string `json:"key_source"`
	PrivateKeyVar  string `json:"private_key_var"`
	KeyFile        string `json:"key_file"`
	GCPProjectID   string `json:"gcp_project_id"`
	SecretID       string `json:"secret_id"`
	KMSKey         string `json:"kms_key"`

	Limits      Limits `json:"limits"`
	Development bool   `json:"development"`
}

// Limits caps the transcript a Notary will sign for.
type Limits struct {
	MaxSentBytes int `json:"max_sent_bytes"`
	MaxRecvBytes int `json:"max_recv_bytes"`
}

func DefaultLimits() Limits {
	return Limits{MaxSentBytes: DefaultMaxTranscriptBytes, MaxRecvBytes: DefaultMaxTranscriptBytes}
}

// LoadConfig reads the Notary configuration from the environment, after
// loading a .env file if present.
func LoadConfig() (*Config, error) {
	if err := shared.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{
		SigningBackend: shared.GetEnvOrDefault("NOTARY_SIGNING_BACKEND", BackendSecp256k1),
		KeySource:      shared.GetEnvOrDefault("NOTARY_KEY_SOURCE", SourceEnv),
		PrivateKeyVar:  "NOTARY_PRIVATE_KEY",
		KeyFile:        shared.GetEnvOrDefault("NOTARY_KEY_FILE", ""),
		GCPProjectID:   shared.GetEnvOrDefault("GCP_PROJECT_ID", ""),
		SecretID:       shared.GetEnvOrDefault("NOTARY_SECRET_ID", ""),
		KMSKey:         shared.GetEnvOrDefault("NOTARY_KMS_KEY", ""),
		Limits: Limits{
			MaxSentBytes: shared.GetEnvIntOrDefault("NOTARY_MAX_SENT_BYTES", DefaultMaxTranscriptBytes),
			MaxRecvBytes: shared.GetEnvIntOrDefault("NOTARY_MAX_RECV_BYTES", DefaultMaxTranscriptBytes),
		},
		Development: shared.GetEnvBoolOrDefault("DEVELOPMENT", false),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	const op = "notary config"
	if c.Limits.MaxSentBytes <= 0 || c.Limits.MaxRecvBytes <= 0 {
		return shared.Errorf(shared.KindConfig, op, "transcript limits must be positive")
	}
	switch c.SigningBackend {
	case BackendGCPKMS:
		if c.KMSKey == "" {
			return shared.Errorf(shared.KindConfig, op, "NOTARY_KMS_KEY is required for the %s backend", c.SigningBackend)
		}
		return nil
	case BackendSecp256k1, BackendP256:
	default:
		return shared.Errorf(shared.KindConfig, op, "unknown signing backend %q", c.SigningBackend)
	}

	switch c.KeySource {
	case SourceEnv:
	case SourceFile:
		if c.KeyFile == "" {
			return shared.Errorf(shared.KindConfig, op, "NOTARY_KEY_FILE is required for the %s key source", c.KeySource)
		}
	case SourceGCPSecret:
		if c.GCPProjectID == "" || c.SecretID == "" {
			return shared.Errorf(shared.KindConfig, op, "GCP_PROJECT_ID and NOTARY_SECRET_ID are required for the %s key source", c.KeySource)
		}
	default:
		return shared.Errorf(shared.KindConfig, op, "unknown key source %q", c.KeySource)
	}
	return nil
}

// NewSigner builds the signer described by the configuration.
func NewSigner(ctx context.Context, c *Config) (Signer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.SigningBackend == BackendGCPKMS {
		return NewKMSSigner(ctx, c.KMSKey)
	}

	var src KeySource
	switch c.KeySource {
	case SourceFile:
		src = FileKeySource{Path: c.KeyFile}
	case SourceGCPSecret:
		sm, err := NewSecretManagerKeySource(ctx, c.GCPProjectID, c.SecretID)
		if err != nil {
			return nil, err
		}
		defer sm.Close()
		src = sm
	default:
		src = EnvKeySource{Var: c.PrivateKeyVar}
	}
	material, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return signerFromKey(c.SigningBackend, material)
}

func signerFromKey(backend string, material []byte) (Signer, error) {
	switch backend {
	case BackendSecp256k1:
		kp, err := shared.SigningKeyPairFromHex(string(material))
		if err != nil {
			return nil, shared.NewError(shared.KindConfig, "parse notary key", err)
		}
		return NewEthSigner(kp), nil
	case BackendP256:
		priv, err := parseP256PrivateKey(material)
		if err != nil {
			return nil, err
		}
		s, err := NewECDSASigner(priv)
		if err != nil {
			return nil, shared.NewError(shared.KindConfig, "parse notary key", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("backend %q has no local key", backend)
	}
}
