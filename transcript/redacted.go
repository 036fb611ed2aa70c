package transcript

import (
	"bytes"

	"tlsn-notary/shared"
)

// Redacted is the Verifier's view of a transcript: the lengths are known from
// the signed header, and only disclosed ranges carry data.
type Redacted struct {
	sent     []byte
	received []byte
	sentSet  []bool
	recvSet  []bool
}

// NewRedacted creates an empty view of the given lengths.
func NewRedacted(sentLen, recvLen int) *Redacted {
	return &Redacted{
		sent:     make([]byte, sentLen),
		received: make([]byte, recvLen),
		sentSet:  make([]bool, sentLen),
		recvSet:  make([]bool, recvLen),
	}
}

func (r *Redacted) parts(dir Direction) ([]byte, []bool) {
	if dir == Sent {
		return r.sent, r.sentSet
	}
	return r.received, r.recvSet
}

// Reveal fills s with data. Revealing the same byte twice with a different
// value is an error.
func (r *Redacted) Reveal(s Slice, data []byte) error {
	buf, set := r.parts(s.Direction)
	if err := s.Validate(len(buf)); err != nil {
		return err
	}
	if len(data) != s.Length {
		return shared.Errorf(shared.KindRange, "reveal", "%s given %d bytes", s, len(data))
	}
	for i, b := range data {
		pos := s.Start + i
		if set[pos] && buf[pos] != b {
			return shared.Errorf(shared.KindOpeningMismatch, "reveal", "conflicting byte at %s offset %d", s.Direction, pos)
		}
		buf[pos] = b
		set[pos] = true
	}
	return nil
}

// Bytes returns the view of one direction with unrevealed bytes set to fill.
func (r *Redacted) Bytes(dir Direction, fill byte) []byte {
	buf, set := r.parts(dir)
	out := bytes.Repeat([]byte{fill}, len(buf))
	for i, ok := range set {
		if ok {
			out[i] = buf[i]
		}
	}
	return out
}

// Revealed returns the merged disclosed ranges of one direction.
func (r *Redacted) Revealed(dir Direction) []Slice {
	_, set := r.parts(dir)
	var out []Slice
	start := -1
	for i, ok := range set {
		switch {
		case ok && start < 0:
			start = i
		case !ok && start >= 0:
			out = append(out, NewSlice(dir, start, i))
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, NewSlice(dir, start, len(set)))
	}
	return out
}
