package span

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tlsn-notary/transcript"
)

// DefaultSecretHeaders are request headers kept out of every Sent span.
var DefaultSecretHeaders = []string{"authorization", "cookie"}

// XPathQuery selects HTML elements in the response body.
type XPathQuery struct {
	Expr         string `json:"xpath"`
	ContentsOnly bool   `json:"contents_only,omitempty"`
}

// HTTPSpanner splits an HTTP/1.1 exchange into commit-worthy slices.
//
// On the Sent side it yields everything except the values of SecretHeaders,
// so those values can never be revealed. Header names match case-insensitively. On the Received side it yields the
// status line, each header line, each body chunk, the framing bytes in
// between and, when configured, the values matched by JSONPaths and XPaths
// inside the body.
type HTTPSpanner struct {
	SecretHeaders []string
	JSONPaths     []string
	XPaths        []XPathQuery
}

// NewHTTPSpanner returns a spanner hiding DefaultSecretHeaders.
func NewHTTPSpanner() *HTTPSpanner {
	return &HTTPSpanner{SecretHeaders: DefaultSecretHeaders}
}

func (h *HTTPSpanner) Spans(sent, received []byte) ([]transcript.Slice, error) {
	out, err := h.sentSpans(sent)
	if err != nil {
		return nil, err
	}
	recv, err := h.receivedSpans(received)
	if err != nil {
		return nil, err
	}
	out = dedupe(append(out, recv...))
	logger.Debug("HTTP spans computed",
		zap.Int("sent_bytes", len(sent)),
		zap.Int("received_bytes", len(received)),
		zap.Int("spans", len(out)))
	return out, nil
}

func (h *HTTPSpanner) sentSpans(sent []byte) ([]transcript.Slice, error) {
	if len(sent) == 0 {
		return nil, nil
	}
	req, err := ParseRequest(sent)
	if err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	var secrets []transcript.Slice
	for _, name := range h.SecretHeaders {
		for _, hdr := range req.Headers {
			if strings.EqualFold(hdr.Name, name) && hdr.Span.Length > 0 {
				secrets = append(secrets, hdr.Span)
			}
		}
	}
	return transcript.Invert(secrets, transcript.Sent, len(sent))
}

func (h *HTTPSpanner) receivedSpans(received []byte) ([]transcript.Slice, error) {
	if len(received) == 0 {
		return nil, nil
	}
	resp, err := ParseResponse(received)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	out := []transcript.Slice{resp.StatusLine}
	for _, hdr := range resp.Headers {
		out = append(out, hdr.Line)
	}
	out = append(out, resp.Chunks...)
	// line breaks and chunk framing get their own slices so every received
	// byte is committed
	rest, err := transcript.Invert(out, transcript.Received, len(received))
	if err != nil {
		return nil, err
	}
	out = append(out, rest...)

	var ranges []Range
	for _, expr := range h.JSONPaths {
		rs, err := JSONPathRanges(resp.Body, expr)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rs...)
	}
	for _, q := range h.XPaths {
		rs, err := XPathRanges(string(resp.Body), q.Expr, q.ContentsOnly)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rs...)
	}
	for _, rg := range ranges {
		slices, err := resp.BodySlices(rg)
		if err != nil {
			return nil, err
		}
		out = append(out, slices...)
	}
	return out, nil
}
