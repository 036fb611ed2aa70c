package verifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tlsn-notary/commitment"
	"tlsn-notary/notary"
	"tlsn-notary/prover"
	"tlsn-notary/session"
	"tlsn-notary/shared"
	"tlsn-notary/span"
	"tlsn-notary/transcript"
)

const (
	testSent     = "GET /v1/me HTTP/1.1\r\nHost: api.example.com\r\nAuthorization: Bearer tok3n\r\n\r\n"
	testReceived = "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 30\r\n\r\n{\"user\":\"bob\",\"verified\":true}"
)

type fixture struct {
	notary    *notary.Notary
	builder   *prover.CommitmentBuilder
	handshake *session.HandshakeData
	header    *session.SignedHeader
	ids       []commitment.ID
}

func testHandshake() *session.HandshakeData {
	return &session.HandshakeData{
		ServerName:   "api.example.com",
		CipherSuite:  0x1301,
		ClientRandom: make([]byte, 32),
		ServerRandom: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32},
	}
}

// newFixture commits to every HTTP span of the test exchange and has it
// notarized. mutate may adjust the request before signing.
func newFixture(t *testing.T, signer notary.Signer, mutate func(*notary.Request)) *fixture {
	t.Helper()
	b, err := prover.NewCommitmentBuilder(transcript.New([]byte(testSent), []byte(testReceived)), nil, nil)
	require.NoError(t, err)
	ids, err := prover.CommitSpans(b, span.NewHTTPSpanner(), commitment.KindSHA256)
	require.NoError(t, err)
	_, err = b.Finalize()
	require.NoError(t, err)

	hs := testHandshake()
	req, err := b.Request(hs.Summary(time.Now()))
	require.NoError(t, err)
	if mutate != nil {
		mutate(&req)
	}

	n := notary.New(signer, notary.WithLogger(shared.WrapLogger(zaptest.NewLogger(t), "notary")))
	sh, err := n.Notarize(context.Background(), req)
	require.NoError(t, err)
	return &fixture{notary: n, builder: b, handshake: hs, header: sh, ids: ids}
}

func ethSigner(t *testing.T) notary.Signer {
	t.Helper()
	kp, err := shared.GenerateSigningKeyPair()
	require.NoError(t, err)
	return notary.NewEthSigner(kp)
}

func (f *fixture) proof(t *testing.T, ids ...commitment.ID) *prover.SubstringsProof {
	t.Helper()
	p, err := f.builder.BuildProof(ids)
	require.NoError(t, err)
	return p
}

// clone deep-copies a proof through its binary form.
func clone(t *testing.T, p *prover.SubstringsProof) *prover.SubstringsProof {
	t.Helper()
	b, err := p.MarshalBinary()
	require.NoError(t, err)
	var out prover.SubstringsProof
	require.NoError(t, out.UnmarshalBinary(b))
	return &out
}

func TestVerifyRoundTrip(t *testing.T) {
	SetLogger(zaptest.NewLogger(t))
	p256, err := notary.GenerateECDSASigner()
	require.NoError(t, err)

	for name, signer := range map[string]notary.Signer{"secp256k1": ethSigner(t), "p256": p256} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, signer, nil)
			last := f.ids[len(f.ids)-1]
			proof := f.proof(t, 0, last)

			d, err := Verify(proof, f.header, f.notary.Key(), Options{session.BindingOptions{
				ServerName: "API.example.com",
				Data:       f.handshake,
			}})
			require.NoError(t, err)
			require.Equal(t, f.header.Header, d.Header)
			require.Len(t, d.Items, 2)
			require.Equal(t, []transcript.Slice{proof.Openings[0].Slice, proof.Openings[1].Slice}, d.Slices())

			for _, it := range d.Items {
				full := []byte(testSent)
				if it.Slice.Direction == transcript.Received {
					full = []byte(testReceived)
				}
				require.Equal(t, full[it.Slice.Start:it.Slice.End()], it.Data)
			}

			sent := d.Redacted().Bytes(transcript.Sent, '*')
			require.Len(t, sent, len(testSent))
			require.NotContains(t, string(sent), "tok3n")
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	signer := ethSigner(t)
	f := newFixture(t, signer, nil)
	headerB := newFixture(t, signer, nil).header
	short := newFixture(t, signer, func(r *notary.Request) { r.RecvLen = 20 })
	last := f.ids[len(f.ids)-1]
	good := f.proof(t, 1, 2, last)
	opts := Options{session.BindingOptions{ServerName: "api.example.com"}}

	otherKey := ethSigner(t).Key()
	tamperedHeader := *f.header
	tamperedHeader.Header.RecvLen++
	tamperedData := testHandshake()
	tamperedData.ServerRandom[0] ^= 1

	cases := []struct {
		name   string
		proof  func() *prover.SubstringsProof
		header *session.SignedHeader
		key    session.NotaryKey
		opts   Options
		want   error
	}{
		{name: "nil proof", proof: func() *prover.SubstringsProof { return nil }, want: shared.ErrState},
		{name: "no openings", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.Openings = nil
			return p
		}, want: shared.ErrNotFound},
		{name: "version", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.Version = 2
			return p
		}, want: shared.ErrEncoding},
		{name: "other notary key", key: otherKey, want: shared.ErrSignature},
		{name: "tampered header", header: &tamperedHeader, want: shared.ErrSignature},
		{name: "wrong server", opts: Options{session.BindingOptions{ServerName: "evil.example.com"}}, want: shared.ErrBinding},
		{name: "tampered handshake data", opts: Options{session.BindingOptions{Data: tamperedData}}, want: shared.ErrBinding},
		{name: "byte flip in opening", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.Openings[1].Data[0] ^= 0x01
			return p
		}, want: shared.ErrOpeningMismatch},
		{name: "moved opening", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.Openings[1].Slice.Start++
			return p
		}, want: shared.ErrOpeningMismatch},
		{name: "swapped digest", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.Openings[0].Digest, p.Openings[1].Digest = p.Openings[1].Digest, p.Openings[0].Digest
			return p
		}, want: shared.ErrOpeningMismatch},
		{name: "sibling flip", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.MultiProof.Siblings[0][0] ^= 0x80
			return p
		}, want: shared.ErrMerkleInconsistency},
		{name: "missing sibling", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.MultiProof.Siblings = p.MultiProof.Siblings[1:]
			return p
		}, want: shared.ErrMerkleInconsistency},
		{name: "leaf count", proof: func() *prover.SubstringsProof {
			p := clone(t, good)
			p.MultiProof.LeafCount++
			return p
		}, want: shared.ErrMerkleInconsistency},
		{name: "header from another session", header: headerB, want: shared.ErrMerkleInconsistency},
		{name: "opening beyond signed length", proof: func() *prover.SubstringsProof {
			return short.proof(t, short.ids[len(short.ids)-1])
		}, header: short.header, want: shared.ErrRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proof := good
			if tc.proof != nil {
				proof = tc.proof()
			}
			header := f.header
			if tc.header != nil {
				header = tc.header
			}
			key := f.notary.Key()
			if tc.key.Algorithm != "" {
				key = tc.key
			}
			o := opts
			if tc.opts.ServerName != "" || tc.opts.Data != nil {
				o = tc.opts
			}
			d, err := Verify(proof, header, key, o)
			require.ErrorIs(t, err, tc.want)
			require.Nil(t, d)
		})
	}

	// the untouched proof still passes
	_, err := Verify(good, f.header, f.notary.Key(), opts)
	require.NoError(t, err)
}

func TestVerifyReportsOneKind(t *testing.T) {
	f := newFixture(t, ethSigner(t), nil)
	proof := clone(t, f.proof(t, 0))
	proof.Openings[0].Kind = commitment.Kind(0x7f)

	_, err := Verify(proof, f.header, f.notary.Key(), Options{})
	require.ErrorIs(t, err, shared.ErrOpeningMismatch)
	require.NotErrorIs(t, err, shared.ErrEncoding)
	require.Equal(t, shared.KindOpeningMismatch, shared.KindOf(err))
	require.Contains(t, err.Error(), "unsupported kind 0x7f")
}

func TestVerifyOverlappingOpenings(t *testing.T) {
	b, err := prover.NewCommitmentBuilder(transcript.New([]byte(testSent), []byte(testReceived)), nil, nil)
	require.NoError(t, err)
	_, err = b.Commit(transcript.NewSlice(transcript.Received, 0, 10), commitment.KindSHA256)
	require.NoError(t, err)
	_, err = b.Commit(transcript.NewSlice(transcript.Received, 5, 15), commitment.KindKeccak256)
	require.NoError(t, err)
	_, err = b.Finalize()
	require.NoError(t, err)
	req, err := b.Request(testHandshake().Summary(time.Now()))
	require.NoError(t, err)

	n := notary.New(ethSigner(t))
	sh, err := n.Notarize(context.Background(), req)
	require.NoError(t, err)
	proof, err := b.BuildProof([]commitment.ID{0, 1})
	require.NoError(t, err)

	d, err := Verify(proof, sh, n.Key(), Options{})
	require.NoError(t, err)
	require.Equal(t, []transcript.Slice{transcript.NewSlice(transcript.Received, 0, 15)}, d.Redacted().Revealed(transcript.Received))
	require.Equal(t, testReceived[:15], string(d.Redacted().Bytes(transcript.Received, 0)[:15]))
}

func TestVerifyParallel(t *testing.T) {
	f := newFixture(t, ethSigner(t), nil)
	proof := f.proof(t, f.ids...)
	key := f.notary.Key()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := Verify(proof, f.header, key, Options{session.BindingOptions{Data: f.handshake}})
			if err != nil {
				t.Error(err)
				return
			}
			if len(d.Items) != len(f.ids) {
				t.Errorf("got %d items, want %d", len(d.Items), len(f.ids))
			}
		}()
	}
	wg.Wait()
}
