// Package notary signs session headers. It sees the commitment root and the
// handshake summary, never the plaintext transcript.
package notary

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tlsn-notary/merkle"
	"tlsn-notary/metrics"
	"tlsn-notary/session"
	"tlsn-notary/shared"
)

// Request is what the Prover submits once the transcript is committed.
type Request struct {
	Root      merkle.Root              `json:"root"`
	LeafCount int                      `json:"leaf_count"`
	SentLen   int                      `json:"sent_len"`
	RecvLen   int                      `json:"recv_len"`
	Handshake session.HandshakeSummary `json:"handshake"`
}

// Notary turns requests into signed headers. It is safe for concurrent use
// if its Signer is.
type Notary struct {
	signer  Signer
	limits  Limits
	logger  *shared.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Notary)

func WithLogger(l *shared.Logger) Option {
	return func(n *Notary) { n.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notary) { n.metrics = m }
}

func WithLimits(l Limits) Option {
	return func(n *Notary) { n.limits = l }
}

// WithClock overrides the notarization time source.
func WithClock(now func() time.Time) Option {
	return func(n *Notary) { n.now = now }
}

func New(signer Signer, opts ...Option) *Notary {
	n := &Notary{
		signer: signer,
		limits: DefaultLimits(),
		logger: shared.WrapLogger(nil, "notary"),
		tracer: otel.Tracer("tlsn-notary/notary"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Key is the public key Verifiers should trust for this Notary.
func (n *Notary) Key() session.NotaryKey {
	return n.signer.Key()
}

// Notarize validates req, assigns a session id and signs the header. The
// call blocks on the signer and honours ctx cancellation.
func (n *Notary) Notarize(ctx context.Context, req Request) (*session.SignedHeader, error) {
	started := time.Now()
	ctx, span := n.tracer.Start(ctx, "notary.Notarize", trace.WithAttributes(
		attribute.Int("tlsn.leaf_count", req.LeafCount),
		attribute.Int("tlsn.sent_len", req.SentLen),
		attribute.Int("tlsn.recv_len", req.RecvLen),
		attribute.String("tlsn.server_name", req.Handshake.ServerName),
	))
	defer span.End()

	sh, err := n.notarize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.metrics.ObserveNotarization(shared.KindOf(err).String(), started, 0, 0, 0)
		n.logger.Security("Notarization rejected",
			zap.String("server_name", req.Handshake.ServerName),
			zap.Int("leaf_count", req.LeafCount),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("tlsn.session_id", sh.Header.SessionID.String()))
	n.metrics.ObserveNotarization(metrics.ResultOK, started, req.LeafCount, req.SentLen, req.RecvLen)
	n.logger.WithSession(sh.Header.SessionID.String()).Info("Session notarized",
		zap.String("root", sh.Header.Root.String()),
		zap.Int("leaf_count", req.LeafCount),
		zap.String("server_name", req.Handshake.ServerName),
		zap.Duration("duration", time.Since(started)))
	return sh, nil
}

func (n *Notary) notarize(ctx context.Context, req Request) (*session.SignedHeader, error) {
	const op = "notarize"
	if err := ctx.Err(); err != nil {
		return nil, shared.NewError(shared.KindState, op, err)
	}
	switch {
	case req.SentLen < 0 || req.RecvLen < 0:
		return nil, shared.Errorf(shared.KindRange, op, "negative transcript length")
	case req.SentLen > n.limits.MaxSentBytes:
		return nil, shared.Errorf(shared.KindRange, op, "sent transcript of %d bytes exceeds limit %d", req.SentLen, n.limits.MaxSentBytes)
	case req.RecvLen > n.limits.MaxRecvBytes:
		return nil, shared.Errorf(shared.KindRange, op, "received transcript of %d bytes exceeds limit %d", req.RecvLen, n.limits.MaxRecvBytes)
	case req.LeafCount <= 0:
		return nil, shared.Errorf(shared.KindState, op, "no commitments")
	case uint64(req.LeafCount) > merkle.MaxLeaves:
		return nil, shared.Errorf(shared.KindRange, op, "leaf count %d exceeds maximum", req.LeafCount)
	case req.Handshake.ServerName == "":
		return nil, shared.Errorf(shared.KindBinding, op, "handshake summary has no server name")
	}
	if _, ok := shared.GetCipherSuiteInfo(req.Handshake.CipherSuite); !ok {
		return nil, shared.Errorf(shared.KindBinding, op, "unsupported cipher suite %s", shared.GetCipherSuiteName(req.Handshake.CipherSuite))
	}

	key := n.signer.Key()
	h := session.Header{
		Version:     session.HeaderVersion,
		SessionID:   uuid.New(),
		Root:        req.Root,
		LeafCount:   req.LeafCount,
		SentLen:     req.SentLen,
		RecvLen:     req.RecvLen,
		NotarizedAt: n.now().UTC().Truncate(time.Second),
		Handshake:   req.Handshake,
		NotaryKeyID: key.ID(),
	}
	h.Handshake.Time = h.Handshake.Time.UTC().Truncate(time.Second)

	n.logger.WithCryptoOp("sign_header").Debug("Signing session header",
		zap.String("session_id", h.SessionID.String()),
		zap.String("notary_key", key.String()))
	sig, err := n.signer.Sign(ctx, h.CanonicalBytes())
	if err != nil {
		return nil, shared.NewError(shared.KindSignature, op, err)
	}
	sh := &session.SignedHeader{Header: h, Signature: sig}

	// a misconfigured remote signer must not hand out unverifiable headers
	if err := sh.Verify(key); err != nil {
		return nil, err
	}
	return sh, nil
}
