// Package metrics holds the Prometheus collectors shared by the Notary and
// the bundle verifier.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for notarization and verification.
type Metrics struct {
	NotarizationsTotal    *prometheus.CounterVec
	NotarizationDuration  prometheus.Histogram
	TranscriptBytesTotal  *prometheus.CounterVec
	VerificationsTotal    *prometheus.CounterVec
	VerificationDuration  prometheus.Histogram
	DisclosedBytesTotal   *prometheus.CounterVec
	CommitmentsPerSession prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NotarizationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tlsn_notarizations_total",
				Help: "Notarization requests by result",
			},
			[]string{"result"},
		),

		NotarizationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tlsn_notarization_duration_seconds",
				Help:    "Time to validate and sign a session header",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),

		TranscriptBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tlsn_transcript_bytes_total",
				Help: "Transcript bytes covered by signed headers",
			},
			[]string{"direction"},
		),

		VerificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tlsn_verifications_total",
				Help: "Proof verifications by result (ok or the failed check)",
			},
			[]string{"result"},
		),

		VerificationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tlsn_verification_duration_seconds",
				Help:    "Time to verify a substrings proof",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
		),

		DisclosedBytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tlsn_disclosed_bytes_total",
				Help: "Bytes revealed by verified proofs",
			},
			[]string{"direction"},
		),

		CommitmentsPerSession: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tlsn_commitments_per_session",
				Help:    "Merkle leaf count of notarized sessions",
				Buckets: prometheus.ExponentialBuckets(1, 2, 17),
			},
		),
	}
}

// ObserveNotarization records one notarization attempt.
func (m *Metrics) ObserveNotarization(result string, started time.Time, leaves, sent, recv int) {
	if m == nil {
		return
	}
	m.NotarizationsTotal.WithLabelValues(result).Inc()
	m.NotarizationDuration.Observe(time.Since(started).Seconds())
	if result != ResultOK {
		return
	}
	m.CommitmentsPerSession.Observe(float64(leaves))
	m.TranscriptBytesTotal.WithLabelValues("sent").Add(float64(sent))
	m.TranscriptBytesTotal.WithLabelValues("received").Add(float64(recv))
}

// ObserveVerification records one verification attempt.
func (m *Metrics) ObserveVerification(result string, started time.Time, sent, recv int) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
	m.VerificationDuration.Observe(time.Since(started).Seconds())
	if result != ResultOK {
		return
	}
	m.DisclosedBytesTotal.WithLabelValues("sent").Add(float64(sent))
	m.DisclosedBytesTotal.WithLabelValues("received").Add(float64(recv))
}

// ResultOK labels a successful operation. Failures are labelled with the
// error kind.
const ResultOK = "ok"
