package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"tlsn-notary/commitment"
	"tlsn-notary/shared"
	"tlsn-notary/wire"
)

const handshakeLabel = "tlsn/handshake/v1"

// HandshakeSummary is the condensed view of the TLS handshake that the
// Notary signs. The full handshake stays with the Prover.
type HandshakeSummary struct {
	Time        time.Time         `json:"time"`
	ServerName  string            `json:"server_name"`
	CipherSuite uint16            `json:"cipher_suite"`
	Commitment  commitment.Digest `json:"commitment"`
}

// HandshakeData is what the Prover may reveal about the handshake so the
// Verifier can tie the session to a server certificate.
type HandshakeData struct {
	ServerName   string          `json:"server_name"`
	CipherSuite  uint16          `json:"cipher_suite"`
	ClientRandom hexutil.Bytes   `json:"client_random"`
	ServerRandom hexutil.Bytes   `json:"server_random"`
	CertChain    []hexutil.Bytes `json:"cert_chain"` // DER, leaf first
}

// Commitment hashes the handshake data into the value carried by the
// summary.
func (d *HandshakeData) Commitment() commitment.Digest {
	certs := make([][]byte, len(d.CertChain))
	for i, c := range d.CertChain {
		certs[i] = c
	}
	b := wire.NewEncoder(handshakeLabel).
		String(1, d.ServerName).
		Uint(2, uint64(d.CipherSuite)).
		Bytes(3, d.ClientRandom).
		Bytes(4, d.ServerRandom).
		RepeatedBytes(5, certs).
		Output()
	return commitment.Digest(sha256.Sum256(b))
}

// Summary condenses the data for a handshake completed at t.
func (d *HandshakeData) Summary(t time.Time) HandshakeSummary {
	return HandshakeSummary{
		Time:        t.UTC().Truncate(time.Second),
		ServerName:  d.ServerName,
		CipherSuite: d.CipherSuite,
		Commitment:  d.Commitment(),
	}
}

// BindingOptions controls VerifyBinding.
type BindingOptions struct {
	// ServerName is the identity the Verifier expects. Empty accepts the
	// summary's name as is.
	ServerName string
	// Data is the revealed handshake, if any.
	Data *HandshakeData
	// Roots enables certificate chain validation of Data at the handshake
	// time. Nil skips chain validation.
	Roots *x509.CertPool
}

// VerifyBinding checks that the summary belongs to the expected server.
// Every failure is a binding error.
func (s HandshakeSummary) VerifyBinding(opts BindingOptions) error {
	const op = "verify binding"
	if s.ServerName == "" {
		return shared.Errorf(shared.KindBinding, op, "handshake summary has no server name")
	}
	if opts.ServerName != "" && !strings.EqualFold(opts.ServerName, s.ServerName) {
		return shared.Errorf(shared.KindBinding, op, "session is for %q, expected %q", s.ServerName, opts.ServerName)
	}

	d := opts.Data
	if d == nil {
		if opts.Roots != nil {
			return shared.Errorf(shared.KindBinding, op, "certificate validation requested without handshake data")
		}
		return nil
	}
	if d.ServerName != s.ServerName || d.CipherSuite != s.CipherSuite {
		return shared.Errorf(shared.KindBinding, op, "handshake data does not match summary")
	}
	got := d.Commitment()
	if subtle.ConstantTimeCompare(got[:], s.Commitment[:]) != 1 {
		return shared.Errorf(shared.KindBinding, op, "handshake commitment mismatch")
	}
	if opts.Roots == nil {
		return nil
	}
	return verifyChain(d.CertChain, s.ServerName, s.Time, opts.Roots)
}

func verifyChain(chain []hexutil.Bytes, serverName string, at time.Time, roots *x509.CertPool) error {
	const op = "verify certificate chain"
	if len(chain) == 0 {
		return shared.Errorf(shared.KindBinding, op, "no certificates provided")
	}
	certs := make([]*x509.Certificate, len(chain))
	for i, der := range chain {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return shared.Errorf(shared.KindBinding, op, "certificate %d: %w", i, err)
		}
		certs[i] = c
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{
		DNSName:       serverName,
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return shared.NewError(shared.KindBinding, op, err)
	}
	return nil
}
