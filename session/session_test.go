package session

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tlsn-notary/merkle"
	"tlsn-notary/shared"
	"tlsn-notary/wire"
)

var handshakeTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testHeader(key NotaryKey, hs HandshakeSummary) Header {
	var root merkle.Root
	copy(root[:], "0123456789abcdef0123456789abcdef")
	return Header{
		Version:     HeaderVersion,
		SessionID:   uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Root:        root,
		LeafCount:   5,
		SentLen:     120,
		RecvLen:     2048,
		NotarizedAt: handshakeTime.Add(time.Minute),
		Handshake:   hs,
		NotaryKeyID: key.ID(),
	}
}

func testSummary() HandshakeSummary {
	d := &HandshakeData{ServerName: "api.example.com", CipherSuite: 0x1301}
	return d.Summary(handshakeTime)
}

type signerFunc func(msg []byte) Signature

func ethNotary(t *testing.T) (NotaryKey, signerFunc) {
	kp, err := shared.GenerateSigningKeyPair()
	require.NoError(t, err)
	return NewEthNotaryKey(kp.GetEthAddress()), func(msg []byte) Signature {
		sig, err := kp.SignData(msg)
		require.NoError(t, err)
		return Signature{Algorithm: AlgSecp256k1Eth, Bytes: sig}
	}
}

func p256Notary(t *testing.T) (NotaryKey, signerFunc) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := NewP256NotaryKey(&priv.PublicKey)
	require.NoError(t, err)
	return key, func(msg []byte) Signature {
		digest := sha256.Sum256(msg)
		sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
		require.NoError(t, err)
		return Signature{Algorithm: AlgP256SHA256, Bytes: sig}
	}
}

func TestSignedHeaderVerify(t *testing.T) {
	notaries := map[string]func(*testing.T) (NotaryKey, signerFunc){
		"secp256k1": ethNotary,
		"p256":      p256Notary,
	}
	for name, mk := range notaries {
		t.Run(name, func(t *testing.T) {
			key, sign := mk(t)
			h := testHeader(key, testSummary())
			sh := SignedHeader{Header: h, Signature: sign(h.CanonicalBytes())}
			require.NoError(t, sh.Verify(key))

			mutations := map[string]func(h *Header){
				"root":       func(h *Header) { h.Root[0] ^= 1 },
				"leaf count": func(h *Header) { h.LeafCount++ },
				"sent len":   func(h *Header) { h.SentLen++ },
				"time":       func(h *Header) { h.NotarizedAt = h.NotarizedAt.Add(time.Second) },
				"server":     func(h *Header) { h.Handshake.ServerName = "evil.example.com" },
				"session":    func(h *Header) { h.SessionID[15] ^= 1 },
			}
			for field, mutate := range mutations {
				bad := sh
				mutate(&bad.Header)
				err := bad.Verify(key)
				require.True(t, errors.Is(err, shared.ErrSignature), field)
			}

			otherKey, otherSign := mk(t)
			require.True(t, errors.Is(sh.Verify(otherKey), shared.ErrSignature))

			// a signature by another notary over the same header
			forged := SignedHeader{Header: h, Signature: otherSign(h.CanonicalBytes())}
			require.True(t, errors.Is(forged.Verify(key), shared.ErrSignature))
		})
	}
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	key, sign := ethNotary(t)
	h := testHeader(key, testSummary())
	sh := SignedHeader{Header: h, Signature: sign(h.CanonicalBytes())}
	sh.Signature.Algorithm = AlgP256SHA256
	require.True(t, errors.Is(sh.Verify(key), shared.ErrSignature))

	sh.Signature.Algorithm = AlgSecp256k1Eth
	sh.Signature.Bytes = sh.Signature.Bytes[:64]
	require.True(t, errors.Is(sh.Verify(key), shared.ErrSignature))

	require.True(t, errors.Is(sh.Verify(NotaryKey{Algorithm: "rsa"}), shared.ErrSignature))
}

func TestHeaderBinaryEncoding(t *testing.T) {
	key, sign := p256Notary(t)
	h := testHeader(key, testSummary())
	sh := SignedHeader{Header: h, Signature: sign(h.CanonicalBytes())}

	b, err := sh.MarshalBinary()
	require.NoError(t, err)
	var back SignedHeader
	require.NoError(t, back.UnmarshalBinary(b))
	require.Equal(t, sh, back)
	require.NoError(t, back.Verify(key))
	require.Equal(t, h.Digest(), back.Header.Digest())

	hb, err := h.MarshalBinary()
	require.NoError(t, err)

	isEncoding := func(b []byte) bool {
		var h Header
		return errors.Is(h.UnmarshalBinary(b), shared.ErrEncoding)
	}
	require.True(t, isEncoding(wire.NewEncoder("").Bytes(10, []byte("x")).Output()), "missing label")
	require.True(t, isEncoding(append(append([]byte(nil), hb...), 0x50, 0x01)), "unknown trailing field")

	dup := wire.NewEncoder(headerLabel).Uint(1, HeaderVersion).Uint(1, HeaderVersion).Output()
	require.True(t, isEncoding(dup), "duplicate field")

	swapped := wire.NewEncoder(headerLabel).
		Uint(1, HeaderVersion).
		Bytes(3, h.Root[:]).
		Bytes(2, h.SessionID[:]).
		Output()
	require.True(t, isEncoding(swapped), "out of order")

	_, err = (&Header{Version: HeaderVersion}).MarshalBinary()
	require.True(t, errors.Is(err, shared.ErrEncoding))
}

func TestHeaderJSON(t *testing.T) {
	key, sign := ethNotary(t)
	h := testHeader(key, testSummary())
	sh := SignedHeader{Header: h, Signature: sign(h.CanonicalBytes())}

	b, err := json.Marshal(sh)
	require.NoError(t, err)
	var back SignedHeader
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, sh.Header.CanonicalBytes(), back.Header.CanonicalBytes())
	require.NoError(t, back.Verify(key))

	var keyBack NotaryKey
	kb, err := json.Marshal(key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(kb, &keyBack))
	require.Equal(t, key, keyBack)
}

type testPKI struct {
	roots *x509.CertPool
	chain []hexutil.Bytes
}

func newTestPKI(t *testing.T, host string) testPKI {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root"},
		NotBefore:             handshakeTime.Add(-24 * time.Hour),
		NotAfter:              handshakeTime.Add(365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	ca, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     []string{host},
		NotBefore:    handshakeTime.Add(-time.Hour),
		NotAfter:     handshakeTime.Add(30 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, ca, &leafKey.PublicKey, caKey)
	require.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(ca)
	return testPKI{roots: roots, chain: []hexutil.Bytes{leafDER}}
}

func TestVerifyBinding(t *testing.T) {
	pki := newTestPKI(t, "api.example.com")
	data := &HandshakeData{
		ServerName:   "api.example.com",
		CipherSuite:  0x1301,
		ClientRandom: make([]byte, 32),
		ServerRandom: make([]byte, 32),
		CertChain:    pki.chain,
	}
	summary := data.Summary(handshakeTime)

	require.NoError(t, summary.VerifyBinding(BindingOptions{ServerName: "api.example.com"}))
	require.NoError(t, summary.VerifyBinding(BindingOptions{ServerName: "API.example.com", Data: data}))
	require.NoError(t, summary.VerifyBinding(BindingOptions{Data: data, Roots: pki.roots}))

	isBinding := func(err error) bool { return errors.Is(err, shared.ErrBinding) }

	require.True(t, isBinding(summary.VerifyBinding(BindingOptions{ServerName: "other.example.com"})))
	require.True(t, isBinding(summary.VerifyBinding(BindingOptions{Roots: pki.roots})))

	tampered := *data
	tampered.ServerRandom = append(hexutil.Bytes(nil), data.ServerRandom...)
	tampered.ServerRandom[0] ^= 1
	require.True(t, isBinding(summary.VerifyBinding(BindingOptions{Data: &tampered})))

	renamed := *data
	renamed.ServerName = "other.example.com"
	require.True(t, isBinding(summary.VerifyBinding(BindingOptions{Data: &renamed})))

	otherPKI := newTestPKI(t, "api.example.com")
	require.True(t, isBinding(summary.VerifyBinding(BindingOptions{Data: data, Roots: otherPKI.roots})))

	expired := data.Summary(handshakeTime.Add(90 * 24 * time.Hour))
	require.True(t, isBinding(expired.VerifyBinding(BindingOptions{Data: data, Roots: pki.roots})))

	wrongHost := newTestPKI(t, "www.example.org")
	misissued := *data
	misissued.CertChain = wrongHost.chain
	s := misissued.Summary(handshakeTime)
	require.True(t, isBinding(s.VerifyBinding(BindingOptions{Data: &misissued, Roots: wrongHost.roots})))

	require.True(t, isBinding(HandshakeSummary{}.VerifyBinding(BindingOptions{})))
}
