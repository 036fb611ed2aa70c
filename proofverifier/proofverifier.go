// Package proofverifier verifies disclosure bundles offline and renders the
// disclosed transcript for people to read.
package proofverifier

import (
	"context"
	"crypto/x509"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tlsn-notary/metrics"
	"tlsn-notary/session"
	"tlsn-notary/shared"
	"tlsn-notary/transcript"
	"tlsn-notary/verifier"
)

// Options are the offline Verifier's expectations and instrumentation.
type Options struct {
	// ServerName is the server the disclosure must come from. Empty accepts
	// whatever the header names.
	ServerName string
	// Roots enables certificate validation of the bundle's handshake data.
	Roots *x509.CertPool
	// TrustedKey, if set, must equal the bundle's notary key. Without it the
	// bundle's own key is trusted, which only proves internal consistency.
	TrustedKey *session.NotaryKey

	Logger  *shared.Logger
	Metrics *metrics.Metrics
}

// Report summarizes a verified bundle.
type Report struct {
	SessionID   string               `json:"session_id"`
	ServerName  string               `json:"server_name"`
	NotarizedAt time.Time            `json:"notarized_at"`
	NotaryKey   string               `json:"notary_key"`
	Disclosed   []verifier.Disclosed `json:"disclosed"`
	Sent        string               `json:"sent"`
	Received    string               `json:"received"`
	SentBytes   int                  `json:"sent_bytes"`
	RecvBytes   int                  `json:"recv_bytes"`
}

var tracer = otel.Tracer("tlsn-notary/proofverifier")

// Validate loads the bundle at bundlePath and verifies it.
func Validate(ctx context.Context, bundlePath string, opts Options) (*Report, error) {
	b, err := LoadBundle(bundlePath)
	if err != nil {
		logger(opts).Security("Bundle rejected", zap.String("path", bundlePath), zap.Error(err))
		opts.Metrics.ObserveVerification(shared.KindOf(err).String(), time.Now(), 0, 0)
		return nil, err
	}
	return ValidateBundle(ctx, b, opts)
}

// ValidateBundle verifies an already parsed bundle.
func ValidateBundle(ctx context.Context, b *Bundle, opts Options) (*Report, error) {
	started := time.Now()
	_, span := tracer.Start(ctx, "proofverifier.ValidateBundle", trace.WithAttributes(
		attribute.String("tlsn.session_id", b.Header.Header.SessionID.String()),
		attribute.String("tlsn.server_name", b.Header.Header.Handshake.ServerName),
		attribute.Int("tlsn.openings", len(b.Proof.Openings)),
	))
	defer span.End()

	l := logger(opts).WithSession(b.Header.Header.SessionID.String())
	l.Info("Loading verification bundle",
		zap.String("notary_key", b.NotaryKey.String()),
		zap.Int("openings", len(b.Proof.Openings)))

	r, err := validateBundle(b, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		opts.Metrics.ObserveVerification(shared.KindOf(err).String(), started, 0, 0)
		logger(opts).Security("Bundle rejected",
			zap.String("session_id", b.Header.Header.SessionID.String()),
			zap.String("kind", shared.KindOf(err).String()),
			zap.Error(err))
		return nil, err
	}

	opts.Metrics.ObserveVerification(metrics.ResultOK, started, r.SentBytes, r.RecvBytes)
	l.Info("Offline verification complete",
		zap.Int("disclosed_sent_bytes", r.SentBytes),
		zap.Int("disclosed_recv_bytes", r.RecvBytes),
		zap.Duration("duration", time.Since(started)))
	return r, nil
}

func validateBundle(b *Bundle, opts Options) (*Report, error) {
	key := b.NotaryKey
	if opts.TrustedKey != nil {
		if opts.TrustedKey.Algorithm != key.Algorithm || string(opts.TrustedKey.Key) != string(key.Key) {
			return nil, shared.Errorf(shared.KindSignature, "validate bundle", "bundle notary %s is not trusted", key)
		}
	}

	d, err := verifier.Verify(&b.Proof, &b.Header, key, verifier.Options{BindingOptions: session.BindingOptions{
		ServerName: opts.ServerName,
		Data:       b.HandshakeData,
		Roots:      opts.Roots,
	}})
	if err != nil {
		return nil, err
	}

	r := &Report{
		SessionID:   d.Header.SessionID.String(),
		ServerName:  d.Header.Handshake.ServerName,
		NotarizedAt: d.Header.NotarizedAt,
		NotaryKey:   key.String(),
		Disclosed:   d.Items,
		Sent:        RenderRedacted(d.Redacted(), transcript.Sent),
		Received:    RenderRedacted(d.Redacted(), transcript.Received),
	}
	for _, s := range d.Redacted().Revealed(transcript.Sent) {
		r.SentBytes += s.Length
	}
	for _, s := range d.Redacted().Revealed(transcript.Received) {
		r.RecvBytes += s.Length
	}
	return r, nil
}

func logger(opts Options) *shared.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return shared.WrapLogger(nil, "proofverifier")
}
