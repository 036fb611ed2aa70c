package transcript

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"tlsn-notary/shared"
)

func TestTranscriptGet(t *testing.T) {
	sent := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	recv := []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi")
	tr := New(sent, recv)

	// caller mutation must not leak into the transcript
	sent[0] = 'X'
	require.Equal(t, byte('G'), tr.Data(Sent)[0])

	got, err := tr.Get(NewSlice(Received, 9, 15))
	require.NoError(t, err)
	require.Equal(t, "200 OK", string(got))

	tests := []struct {
		name  string
		slice Slice
	}{
		{"negative start", Slice{Direction: Sent, Start: -1, Length: 2}},
		{"empty", Slice{Direction: Sent, Start: 0, Length: 0}},
		{"past end", Slice{Direction: Sent, Start: 30, Length: 20}},
		{"overflow", Slice{Direction: Sent, Start: math.MaxInt, Length: math.MaxInt}},
		{"bad direction", Slice{Direction: 7, Start: 0, Length: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Get(tt.slice)
			require.Error(t, err)
			require.True(t, errors.Is(err, shared.ErrRange), "got %v", err)
		})
	}
}

func TestMergeAndInvert(t *testing.T) {
	merged := Merge([]Slice{
		NewSlice(Received, 10, 12),
		NewSlice(Sent, 5, 8),
		NewSlice(Sent, 0, 3),
		NewSlice(Sent, 3, 4),
		NewSlice(Sent, 6, 10),
	})
	require.Equal(t, []Slice{
		NewSlice(Sent, 0, 4),
		NewSlice(Sent, 5, 10),
		NewSlice(Received, 10, 12),
	}, merged)

	inv, err := Invert(merged, Sent, 12)
	require.NoError(t, err)
	require.Equal(t, []Slice{NewSlice(Sent, 4, 5), NewSlice(Sent, 10, 12)}, inv)

	inv, err = Invert(nil, Received, 3)
	require.NoError(t, err)
	require.Equal(t, []Slice{NewSlice(Received, 0, 3)}, inv)

	_, err = Invert([]Slice{NewSlice(Sent, 0, 20)}, Sent, 12)
	require.True(t, errors.Is(err, shared.ErrRange))
}

func TestRedacted(t *testing.T) {
	r := NewRedacted(6, 4)
	require.NoError(t, r.Reveal(NewSlice(Sent, 1, 3), []byte("ab")))
	require.NoError(t, r.Reveal(NewSlice(Sent, 2, 4), []byte("bc")))
	require.Equal(t, "*abc**", string(r.Bytes(Sent, '*')))
	require.Equal(t, []Slice{NewSlice(Sent, 1, 4)}, r.Revealed(Sent))
	require.Empty(t, r.Revealed(Received))

	err := r.Reveal(NewSlice(Sent, 3, 4), []byte("z"))
	require.True(t, errors.Is(err, shared.ErrOpeningMismatch))

	err = r.Reveal(NewSlice(Received, 2, 5), []byte("xyz"))
	require.True(t, errors.Is(err, shared.ErrRange))

	err = r.Reveal(NewSlice(Received, 0, 2), []byte("xyz"))
	require.True(t, errors.Is(err, shared.ErrRange))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(Sent.String())
	require.NoError(t, err)
	require.Equal(t, Sent, d)
	d, err = ParseDirection("received")
	require.NoError(t, err)
	require.Equal(t, Received, d)
	_, err = ParseDirection("sideways")
	require.Error(t, err)
}
