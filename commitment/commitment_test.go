package commitment

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"tlsn-notary/shared"
	"tlsn-notary/transcript"
)

func testSeed() []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestEncodeDeterministic(t *testing.T) {
	salt, err := DeriveSalt(testSeed(), 3)
	require.NoError(t, err)

	slice := transcript.NewSlice(transcript.Received, 4, 9)
	data := []byte("hello")

	for _, kind := range []Kind{KindSHA256, KindBLAKE3, KindKeccak256} {
		t.Run(kind.String(), func(t *testing.T) {
			a, err := Encode(kind, 3, slice, salt, data)
			require.NoError(t, err)
			b, err := Encode(kind, 3, slice, salt, data)
			require.NoError(t, err)
			require.Equal(t, a, b)
			require.Equal(t, kind, a.Kind)

			variants := map[string]func() (Commitment, error){
				"data bit": func() (Commitment, error) {
					return Encode(kind, 3, slice, salt, []byte("hellp"))
				},
				"direction": func() (Commitment, error) {
					return Encode(kind, 3, transcript.NewSlice(transcript.Sent, 4, 9), salt, data)
				},
				"position": func() (Commitment, error) {
					return Encode(kind, 3, transcript.NewSlice(transcript.Received, 5, 10), salt, data)
				},
				"id": func() (Commitment, error) {
					return Encode(kind, 4, slice, salt, data)
				},
				"salt": func() (Commitment, error) {
					other := salt
					other[0] ^= 1
					return Encode(kind, 3, slice, other, data)
				},
			}
			for name, f := range variants {
				c, err := f()
				require.NoError(t, err, name)
				require.NotEqual(t, a.Digest, c.Digest, name)
			}
		})
	}
}

func TestKindsProduceDistinctDigests(t *testing.T) {
	slice := transcript.NewSlice(transcript.Sent, 0, 3)
	var salt Salt
	seen := map[Digest]Kind{}
	for _, kind := range []Kind{KindSHA256, KindBLAKE3, KindKeccak256} {
		c, err := Encode(kind, 0, slice, salt, []byte("abc"))
		require.NoError(t, err)
		_, dup := seen[c.Digest]
		require.False(t, dup)
		seen[c.Digest] = kind
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	var salt Salt
	_, err := Encode(Kind(0x7f), 0, transcript.NewSlice(transcript.Sent, 0, 1), salt, []byte("a"))
	require.True(t, errors.Is(err, shared.ErrEncoding))

	_, err = Encode(KindSHA256, 0, transcript.NewSlice(transcript.Sent, 0, 2), salt, []byte("a"))
	require.True(t, errors.Is(err, shared.ErrRange))

	tr := transcript.New([]byte("abc"), nil)
	_, _, err = Commit(tr, KindSHA256, 0, transcript.NewSlice(transcript.Sent, 1, 4), salt)
	require.True(t, errors.Is(err, shared.ErrRange))
	_, _, err = Commit(tr, KindSHA256, 0, transcript.NewSlice(transcript.Received, 0, 1), salt)
	require.True(t, errors.Is(err, shared.ErrRange))
}

func TestDeriveSalt(t *testing.T) {
	a, err := DeriveSalt(testSeed(), 0)
	require.NoError(t, err)
	again, err := DeriveSalt(testSeed(), 0)
	require.NoError(t, err)
	b, err := DeriveSalt(testSeed(), 1)
	require.NoError(t, err)
	require.Equal(t, a, again)
	require.NotEqual(t, a, b)

	_, err = DeriveSalt([]byte("short"), 0)
	require.True(t, errors.Is(err, shared.ErrState))
}

func TestOpeningVerify(t *testing.T) {
	tr := transcript.New([]byte("user=alice&secret=hunter2"), []byte("OK"))
	salt, err := DeriveSalt(testSeed(), 0)
	require.NoError(t, err)

	c, o, err := Commit(tr, KindBLAKE3, 0, transcript.NewSlice(transcript.Sent, 0, 10), salt)
	require.NoError(t, err)
	require.NoError(t, o.Verify(c))
	require.Equal(t, "user=alice", string(o.Data))

	for i := range o.Data {
		tampered := o
		tampered.Data = append([]byte(nil), o.Data...)
		tampered.Data[i] ^= 0x01
		err := tampered.Verify(c)
		require.True(t, errors.Is(err, shared.ErrOpeningMismatch), "byte %d", i)
	}

	wrongKind := o
	wrongKind.Kind = KindSHA256
	require.True(t, errors.Is(wrongKind.Verify(c), shared.ErrOpeningMismatch))

	truncated := o
	truncated.Data = o.Data[:5]
	err = truncated.Verify(c)
	require.True(t, errors.Is(err, shared.ErrOpeningMismatch))
}

func TestJSONRoundTrip(t *testing.T) {
	salt, err := DeriveSalt(testSeed(), 2)
	require.NoError(t, err)
	tr := transcript.New([]byte("abcdef"), nil)
	_, o, err := Commit(tr, KindKeccak256, 2, transcript.NewSlice(transcript.Sent, 2, 4), salt)
	require.NoError(t, err)

	b, err := json.Marshal(o)
	require.NoError(t, err)
	require.Contains(t, string(b), `"kind":"keccak256"`)

	var back Opening
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, o, back)

	require.Error(t, json.Unmarshal([]byte(`{"kind":"md5"}`), &back))
}
