package span

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"tlsn-notary/transcript"
)

// Request is a parsed HTTP/1.1 request with positions in the Sent stream.
type Request struct {
	Method      string
	Target      string
	RequestLine transcript.Slice
	Headers     []Header
	// Body is the slice after the blank line, empty when there is none.
	Body transcript.Slice
}

// Header returns the first header named name (case-insensitive).
func (r *Request) Header(name string) (Header, bool) {
	return findHeader(r.Headers, name)
}

// ParseRequest parses the first request in sent. Only Content-Length bodies
// are supported; anything after the declared body is ignored.
func ParseRequest(sent []byte) (*Request, error) {
	var (
		req = &Request{}
		pos int
	)
	for first := true; ; first = false {
		i := bytes.Index(sent[pos:], []byte("\r\n"))
		if i == -1 {
			return nil, fmt.Errorf("request headers are incomplete")
		}
		line := string(sent[pos : pos+i])
		start := pos
		pos += i + 2

		if first {
			parts := strings.Split(line, " ")
			if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
				return nil, fmt.Errorf("invalid HTTP request line: %q", line)
			}
			req.Method, req.Target = parts[0], parts[1]
			req.RequestLine = transcript.NewSlice(transcript.Sent, start, start+len(line))
			continue
		}
		if line == "" {
			break
		}
		h, err := parseHeaderLine(line, start, transcript.Sent)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, h)
	}

	req.Body = transcript.Slice{Direction: transcript.Sent, Start: pos}
	if cl, ok := req.Header("content-length"); ok {
		n, err := strconv.Atoi(cl.Value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", cl.Value)
		}
		if pos+n > len(sent) {
			return nil, fmt.Errorf("request body is truncated: want %d bytes, have %d", n, len(sent)-pos)
		}
		req.Body.Length = n
	}
	return req, nil
}
