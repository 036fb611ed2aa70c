// Package transcript holds the plaintext of a finished TLS session, split by
// direction, and the slice arithmetic used to pick ranges out of it.
package transcript

import (
	"fmt"

	"tlsn-notary/shared"
)

// Direction identifies one side of the TLS stream.
type Direction uint8

const (
	// Sent is data written by the Prover to the server.
	Sent Direction = 1
	// Received is data the Prover read from the server.
	Received Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Sent || d == Received
}

// ParseDirection accepts the String form of a direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "sent":
		return Sent, nil
	case "received", "recv":
		return Received, nil
	}
	return 0, shared.Errorf(shared.KindRange, "parse direction", "unknown direction %q", s)
}

// Transcript is the immutable plaintext of a closed TLS session.
type Transcript struct {
	sent     []byte
	received []byte
}

// New copies sent and received so later mutation by the caller cannot
// change committed data.
func New(sent, received []byte) *Transcript {
	return &Transcript{
		sent:     append([]byte(nil), sent...),
		received: append([]byte(nil), received...),
	}
}

// Data returns the bytes of one direction. Callers must not modify them.
func (t *Transcript) Data(dir Direction) []byte {
	switch dir {
	case Sent:
		return t.sent
	case Received:
		return t.received
	}
	return nil
}

// Len returns the number of bytes in one direction.
func (t *Transcript) Len(dir Direction) int {
	return len(t.Data(dir))
}

// Get returns a copy of the bytes covered by s.
func (t *Transcript) Get(s Slice) ([]byte, error) {
	if !s.Direction.Valid() {
		return nil, shared.Errorf(shared.KindRange, "transcript get", "invalid direction %d", s.Direction)
	}
	if err := s.Validate(t.Len(s.Direction)); err != nil {
		return nil, err
	}
	data := t.Data(s.Direction)
	return append([]byte(nil), data[s.Start:s.End()]...), nil
}
