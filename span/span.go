// Package span finds the transcript ranges worth committing to separately:
// HTTP request and response parts, JSON values and HTML elements. The
// Prover commits to each range so it can later reveal them one by one.
package span

import (
	"fmt"

	"go.uber.org/zap"

	"tlsn-notary/transcript"
)

var logger = zap.NewNop()

// SetLogger allows the main package to inject its configured logger
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l.With(zap.String("package", "span"))
	}
}

// Spanner maps a transcript to the slices a Prover should commit to.
type Spanner interface {
	Spans(sent, received []byte) ([]transcript.Slice, error)
}

// SpannerFunc adapts a function to Spanner.
type SpannerFunc func(sent, received []byte) ([]transcript.Slice, error)

func (f SpannerFunc) Spans(sent, received []byte) ([]transcript.Slice, error) {
	return f(sent, received)
}

// Range is a half-open byte range [Start, End) within a document such as a
// decoded HTTP body.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d, %d)", r.Start, r.End) }

// dedupe drops exact duplicates, keeping first occurrence order.
func dedupe(in []transcript.Slice) []transcript.Slice {
	seen := make(map[transcript.Slice]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s.Length == 0 || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
