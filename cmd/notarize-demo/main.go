package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tlsn-notary/metrics"
	"tlsn-notary/notary"
	"tlsn-notary/proofverifier"
	"tlsn-notary/prover"
	"tlsn-notary/session"
	"tlsn-notary/shared"
	"tlsn-notary/span"
	"tlsn-notary/transcript"
)

// A recorded exchange with a bank API. The Authorization value is never
// committed, so no proof can ever reveal it.
const (
	demoServer  = "bank.example.com"
	demoRequest = "GET /api/balance HTTP/1.1\r\n" +
		"Host: bank.example.com\r\n" +
		"Authorization: Bearer secret-token-12345\r\n" +
		"Accept: application/json\r\n" +
		"\r\n"
	demoResponse = "HTTP/1.1 200 OK\r\n" +
		"Content-Type: application/json\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"1c\r\n" + `{"account":"DE89","balance":` + "\r\n" +
		"7\r\n" + `1234.5}` + "\r\n" +
		"0\r\n" +
		"\r\n"
)

func main() {
	fmt.Println("=== TLS Notary Session Demo ===")
	fmt.Println()

	out := "bundle.json"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	logger, err := shared.NewLoggerFromEnv("prover")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	prover.SetLogger(logger.Logger)
	span.SetLogger(logger.Logger)

	if err := run(context.Background(), logger, out); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
	fmt.Println()
	fmt.Println("✅ Demo completed successfully!")
}

func run(ctx context.Context, logger *shared.Logger, out string) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Step 1: Notary
	fmt.Println("📝 Step 1: Starting the Notary")
	cfg, err := notary.LoadConfig()
	if err != nil {
		return err
	}
	signer, err := demoSigner(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := signer.(io.Closer); ok {
		defer c.Close()
	}
	n := notary.New(signer,
		notary.WithLogger(shared.WrapLogger(logger.Logger, "notary")),
		notary.WithMetrics(m),
		notary.WithLimits(cfg.Limits))
	fmt.Printf("✅ Notary key: %s\n", n.Key())

	// Step 2: Prover commits to the transcript
	fmt.Println("📝 Step 2: Committing to the transcript")
	pcfg, err := prover.LoadConfig()
	if err != nil {
		return err
	}
	t := transcript.New([]byte(demoRequest), []byte(demoResponse))
	b, err := prover.NewCommitmentBuilder(t, nil, pcfg)
	if err != nil {
		return err
	}
	defer b.Discard()

	spanner := span.NewHTTPSpanner()
	spanner.JSONPaths = []string{"$.balance"}
	ids, err := prover.CommitSpans(b, spanner, pcfg.CommitmentKind)
	if err != nil {
		return err
	}
	root, err := b.Finalize()
	if err != nil {
		return err
	}
	fmt.Printf("🔒 %d commitments (%s), Merkle root %s\n", len(ids), pcfg.CommitmentKind, root)

	// Step 3: Notary signs the session header
	fmt.Println("📝 Step 3: Notarizing the session")
	hs := &session.HandshakeData{
		ServerName:   demoServer,
		CipherSuite:  shared.TLS_AES_128_GCM_SHA256,
		ClientRandom: make([]byte, 32),
		ServerRandom: make([]byte, 32),
	}
	if _, err := rand.Read(hs.ClientRandom); err != nil {
		return err
	}
	if _, err := rand.Read(hs.ServerRandom); err != nil {
		return err
	}
	req, err := b.Request(hs.Summary(time.Now()))
	if err != nil {
		return err
	}
	sh, err := n.Notarize(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("✍️  Session %s notarized (%s, %s)\n",
		sh.Header.SessionID, sh.Signature.Algorithm, shared.GetCipherSuiteName(sh.Header.Handshake.CipherSuite))

	// Step 4: Prover builds the disclosure bundle
	fmt.Println("📝 Step 4: Building the disclosure bundle")
	proof, err := b.BuildProof(ids)
	if err != nil {
		return err
	}
	bundle := proofverifier.NewBundle(sh, proof, hs, n.Key())
	if err := bundle.WriteFile(out); err != nil {
		return err
	}
	keyPath := filepath.Join(filepath.Dir(out), "notary_key.json")
	if err := writeKey(keyPath, n.Key()); err != nil {
		return err
	}
	fmt.Printf("📦 Bundle written to %s (%d openings)\n", out, len(proof.Openings))
	fmt.Printf("🔑 Notary key written to %s\n", keyPath)

	// Step 5: check the bundle as a Verifier would
	fmt.Println("📝 Step 5: Verifying the bundle")
	key := n.Key()
	report, err := proofverifier.Validate(ctx, out, proofverifier.Options{
		ServerName: demoServer,
		TrustedKey: &key,
		Logger:     shared.WrapLogger(logger.Logger, "verifier"),
		Metrics:    m,
	})
	if err != nil {
		return err
	}
	fmt.Printf("✅ Disclosed %d sent and %d received bytes\n", report.SentBytes, report.RecvBytes)
	fmt.Println(strings.Repeat("-", 50))
	fmt.Print(report.Sent)
	fmt.Println(strings.Repeat("-", 50))
	fmt.Print(report.Received)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	logger.Debug("Metrics gathered", zap.Int("families", len(families)))
	return nil
}

// demoSigner uses the configured key, or an ephemeral one when the env key
// source has nothing to load.
func demoSigner(ctx context.Context, cfg *notary.Config) (notary.Signer, error) {
	if cfg.SigningBackend == notary.BackendGCPKMS || cfg.KeySource != notary.SourceEnv || os.Getenv(cfg.PrivateKeyVar) != "" {
		return notary.NewSigner(ctx, cfg)
	}
	fmt.Printf("⚠️  %s not set, generating an ephemeral %s key\n", cfg.PrivateKeyVar, cfg.SigningBackend)
	if cfg.SigningBackend == notary.BackendP256 {
		return notary.GenerateECDSASigner()
	}
	kp, err := shared.GenerateSigningKeyPair()
	if err != nil {
		return nil, err
	}
	return notary.NewEthSigner(kp), nil
}

func writeKey(path string, key session.NotaryKey) error {
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
