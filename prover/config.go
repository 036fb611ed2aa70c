package prover

import (
	"tlsn-notary/commitment"
	"tlsn-notary/shared"
)

// DefaultMaxCommitments bounds the leaves of one session's tree.
const DefaultMaxCommitments = 1 << 16

type Config struct {
	CommitmentKind commitment.Kind `json:"commitment_kind"`
	MaxCommitments int             `json:"max_commitments"`
}

func DefaultConfig() *Config {
	return &Config{
		CommitmentKind: commitment.KindSHA256,
		MaxCommitments: DefaultMaxCommitments,
	}
}

// LoadConfig reads PROVER_COMMITMENT_KIND and PROVER_MAX_COMMITMENTS,
// after loading a .env file if present.
func LoadConfig() (*Config, error) {
	const op = "prover config"
	if err := shared.LoadDotEnv(); err != nil {
		return nil, err
	}
	kind, err := commitment.ParseKind(shared.GetEnvOrDefault("PROVER_COMMITMENT_KIND", commitment.KindSHA256.String()))
	if err != nil {
		return nil, shared.NewError(shared.KindConfig, op, err)
	}
	cfg := &Config{
		CommitmentKind: kind,
		MaxCommitments: shared.GetEnvIntOrDefault("PROVER_MAX_COMMITMENTS", DefaultMaxCommitments),
	}
	if cfg.MaxCommitments <= 0 || int64(cfg.MaxCommitments) > 1<<32 {
		return nil, shared.Errorf(shared.KindConfig, op, "max commitments %d out of range", cfg.MaxCommitments)
	}
	return cfg, nil
}
