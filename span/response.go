package span

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tlsn-notary/transcript"
)

// Header is one parsed header line with its position in the transcript.
type Header struct {
	Name  string           `json:"name"` // lower case
	Value string           `json:"value"`
	Line  transcript.Slice `json:"line"`  // whole line without CRLF
	Span  transcript.Slice `json:"value_span"`
}

// Response is a parsed HTTP/1.1 response with transcript positions.
type Response struct {
	StatusCode    int
	StatusMessage string
	StatusLine    transcript.Slice
	Headers       []Header
	HeaderEnd     int // offset just past the blank line
	Body          []byte
	// Chunks are the transcript slices holding Body, in order. A plain body
	// has one chunk; a chunked body has one per non-empty chunk.
	Chunks   []transcript.Slice
	Complete bool
}

// Header returns the first header named name (case-insensitive).
func (r *Response) Header(name string) (Header, bool) {
	return findHeader(r.Headers, name)
}

func findHeader(hs []Header, name string) (Header, bool) {
	name = strings.ToLower(name)
	for _, h := range hs {
		if h.Name == name {
			return h, true
		}
	}
	return Header{}, false
}

// BodySlices maps a range of the decoded body onto transcript slices,
// splitting it where the body crosses chunk boundaries.
func (r *Response) BodySlices(rg Range) ([]transcript.Slice, error) {
	if rg.Start < 0 || rg.End > len(r.Body) || rg.Start >= rg.End {
		return nil, fmt.Errorf("body range %s outside body of %d bytes", rg, len(r.Body))
	}
	var out []transcript.Slice
	pos := 0
	for _, c := range r.Chunks {
		lo, hi := max(rg.Start, pos), min(rg.End, pos+c.Length)
		if lo < hi {
			out = append(out, transcript.Slice{
				Direction: transcript.Received,
				Start:     c.Start + lo - pos,
				Length:    hi - lo,
			})
		}
		pos += c.Length
	}
	return out, nil
}

type chunkState int

const (
	chunkSize chunkState = iota
	chunkData
	chunkCRLF
	chunkTrailer
)

// ResponseParser is a streaming HTTP/1.1 response parser that handles
// partial data, Content-Length, chunked encoding and read-until-close bodies.
type ResponseParser struct {
	Response *Response

	remainingBodyBytes int64 // -1 reads until the stream ends
	isChunked          bool
	chunkState         chunkState
	remaining          []byte
	currentByteIdx     int

	headersComplete bool
	complete        bool
}

func NewResponseParser() *ResponseParser {
	return &ResponseParser{Response: &Response{}}
}

// OnChunk processes the next piece of response data. It may be called any
// number of times as data arrives.
func (p *ResponseParser) OnChunk(data []byte) error {
	if p.complete {
		return errors.New("got more data after response was complete")
	}
	p.remaining = append(p.remaining, data...)

	if !p.headersComplete {
		if err := p.processHeaders(); err != nil {
			return err
		}
	}
	if p.headersComplete {
		return p.processBody()
	}
	return nil
}

// StreamEnded marks the end of input and validates completeness.
func (p *ResponseParser) StreamEnded() error {
	if !p.headersComplete {
		return errors.New("stream ended before headers were complete")
	}
	if p.remainingBodyBytes > 0 {
		return errors.New("stream ended before all body bytes were received")
	}
	if p.isChunked && !p.complete {
		return errors.New("stream ended before the final chunk")
	}

	if len(p.remaining) > 0 && p.remainingBodyBytes == -1 {
		p.appendBody(len(p.remaining))
	}
	p.remaining = nil

	p.complete = true
	p.Response.Complete = true
	logger.Debug("Response parsed",
		zap.Int("status_code", p.Response.StatusCode),
		zap.Int("body_bytes", len(p.Response.Body)),
		zap.Int("chunks", len(p.Response.Chunks)))
	return nil
}

func (p *ResponseParser) processHeaders() error {
	for {
		line, found := p.getLine()
		if !found {
			return nil
		}
		if p.Response.StatusCode == 0 {
			if err := p.parseStatusLine(line); err != nil {
				return err
			}
			continue
		}
		if line == "" {
			return p.finishHeaders()
		}
		h, err := parseHeaderLine(line, p.currentByteIdx-len(line)-2, transcript.Received)
		if err != nil {
			return err
		}
		p.Response.Headers = append(p.Response.Headers, h)
	}
}

func (p *ResponseParser) parseStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return fmt.Errorf("invalid HTTP status line: %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return fmt.Errorf("invalid status code %q", parts[1])
	}
	p.Response.StatusCode = code
	if len(parts) == 3 {
		p.Response.StatusMessage = parts[2]
	}
	p.Response.StatusLine = transcript.NewSlice(transcript.Received, 0, len(line))
	return nil
}

// parseHeaderLine splits "Name: value" found at offset start.
func parseHeaderLine(line string, start int, dir transcript.Direction) (Header, error) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return Header{}, fmt.Errorf("malformed header line %q", line)
	}
	valueStart := colon + 1
	for valueStart < len(line) && (line[valueStart] == ' ' || line[valueStart] == '\t') {
		valueStart++
	}
	valueEnd := len(line)
	for valueEnd > valueStart && (line[valueEnd-1] == ' ' || line[valueEnd-1] == '\t') {
		valueEnd--
	}
	return Header{
		Name:  strings.ToLower(strings.TrimSpace(line[:colon])),
		Value: line[valueStart:valueEnd],
		Line:  transcript.NewSlice(dir, start, start+len(line)),
		Span:  transcript.NewSlice(dir, start+valueStart, start+valueEnd),
	}, nil
}

func (p *ResponseParser) finishHeaders() error {
	p.headersComplete = true
	p.Response.HeaderEnd = p.currentByteIdx

	te, _ := p.Response.Header("transfer-encoding")
	cl, hasLength := p.Response.Header("content-length")

	switch {
	case strings.Contains(strings.ToLower(te.Value), "chunked"):
		p.isChunked = true
	case hasLength:
		length, err := strconv.ParseInt(cl.Value, 10, 64)
		if err != nil || length < 0 {
			return fmt.Errorf("invalid Content-Length %q", cl.Value)
		}
		p.remainingBodyBytes = length
		if length == 0 {
			p.complete = true
			p.Response.Complete = true
		}
	case p.Response.StatusCode == 204 || p.Response.StatusCode == 304 || p.Response.StatusCode < 200:
		p.complete = true
		p.Response.Complete = true
	default:
		p.remainingBodyBytes = -1
	}
	return nil
}

func (p *ResponseParser) processBody() error {
	if p.complete {
		return nil
	}
	if p.isChunked {
		return p.processChunkedBody()
	}
	return p.processFixedBody()
}

func (p *ResponseParser) processFixedBody() error {
	if len(p.remaining) == 0 {
		return nil
	}
	n := len(p.remaining)
	if p.remainingBodyBytes >= 0 {
		n = int(min(p.remainingBodyBytes, int64(n)))
		p.remainingBodyBytes -= int64(n)
	}
	p.appendBody(n)
	if p.remainingBodyBytes == 0 {
		p.complete = true
		p.Response.Complete = true
	}
	return nil
}

func (p *ResponseParser) processChunkedBody() error {
	for {
		switch p.chunkState {
		case chunkSize:
			line, found := p.getLine()
			if !found {
				return nil
			}
			sizeStr := line
			if semi := strings.IndexByte(line, ';'); semi != -1 {
				sizeStr = line[:semi]
			}
			sizeStr = strings.TrimSpace(sizeStr)
			size, err := strconv.ParseInt(sizeStr, 16, 64)
			if err != nil || size < 0 {
				return fmt.Errorf("invalid chunk size %q", sizeStr)
			}
			if size == 0 {
				p.chunkState = chunkTrailer
				continue
			}
			p.Response.Chunks = append(p.Response.Chunks, transcript.Slice{
				Direction: transcript.Received,
				Start:     p.currentByteIdx,
			})
			p.remainingBodyBytes = size
			p.chunkState = chunkData

		case chunkData:
			n := int(min(p.remainingBodyBytes, int64(len(p.remaining))))
			if n == 0 {
				return nil
			}
			p.appendBody(n)
			p.remainingBodyBytes -= int64(n)
			if p.remainingBodyBytes > 0 {
				return nil
			}
			p.chunkState = chunkCRLF

		case chunkCRLF:
			if len(p.remaining) < 2 {
				return nil
			}
			if !bytes.HasPrefix(p.remaining, []byte("\r\n")) {
				return errors.New("invalid chunk: missing CRLF after data")
			}
			p.remaining = p.remaining[2:]
			p.currentByteIdx += 2
			p.chunkState = chunkSize

		case chunkTrailer:
			// trailers are not part of the body; an empty line ends them
			line, found := p.getLine()
			if !found {
				return nil
			}
			if line == "" {
				p.complete = true
				p.Response.Complete = true
				return nil
			}
		}
	}
}

// appendBody moves n buffered bytes into the body and records where they
// came from.
func (p *ResponseParser) appendBody(n int) {
	if n == 0 {
		return
	}
	p.Response.Body = append(p.Response.Body, p.remaining[:n]...)
	if p.isChunked {
		p.Response.Chunks[len(p.Response.Chunks)-1].Length += n
	} else if len(p.Response.Chunks) == 0 {
		p.Response.Chunks = append(p.Response.Chunks, transcript.Slice{Direction: transcript.Received, Start: p.currentByteIdx, Length: n})
	} else {
		p.Response.Chunks[0].Length += n
	}
	p.remaining = p.remaining[n:]
	p.currentByteIdx += n
}

// getLine extracts a CRLF-terminated line from the buffer
func (p *ResponseParser) getLine() (string, bool) {
	i := bytes.Index(p.remaining, []byte("\r\n"))
	if i == -1 {
		return "", false
	}
	line := string(p.remaining[:i])
	p.remaining = p.remaining[i+2:]
	p.currentByteIdx += i + 2
	return line, true
}

// ParseResponse parses a complete response found at the start of data.
func ParseResponse(data []byte) (*Response, error) {
	p := NewResponseParser()
	if err := p.OnChunk(data); err != nil {
		return nil, err
	}
	if err := p.StreamEnded(); err != nil {
		return nil, err
	}
	return p.Response, nil
}
