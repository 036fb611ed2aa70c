package shared

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", NewError(KindOpeningMismatch, "verify opening", cause))

	require.ErrorIs(t, err, ErrOpeningMismatch)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrRange)
	require.Equal(t, KindOpeningMismatch, KindOf(err))
	require.Equal(t, KindUnknown, KindOf(cause))
	require.Equal(t, "verify opening: opening_mismatch error: boom", errors.Unwrap(err).Error())

	wrapped := Errorf(KindConfig, "load", "reading %s: %w", "x", os.ErrNotExist)
	require.ErrorIs(t, wrapped, os.ErrNotExist)
	require.ErrorIs(t, wrapped, ErrConfig)
	require.ErrorIs(t, wrapped, &Error{Kind: KindConfig, Op: "load"})
	require.NotErrorIs(t, wrapped, &Error{Kind: KindConfig, Op: "other"})

	require.Equal(t, "range error", ErrRange.Error())
	require.Equal(t, "unknown", ErrorKind(99).String())
}

func TestNestedErrorKeepsOuterKind(t *testing.T) {
	root := errors.New("bad input")
	inner := Errorf(KindEncoding, "encode commitment", "unsupported kind: %w", root)

	for _, err := range []error{
		NewError(KindOpeningMismatch, "verify opening", inner),
		Errorf(KindOpeningMismatch, "verify opening", "commitment 3: %w", inner),
		NewError(KindOpeningMismatch, "verify opening", fmt.Errorf("recompute: %w", inner)),
	} {
		require.ErrorIs(t, err, ErrOpeningMismatch)
		require.NotErrorIs(t, err, ErrEncoding)
		require.NotErrorIs(t, err, &Error{Kind: KindEncoding, Op: "encode commitment"})
		require.ErrorIs(t, err, root)
		require.Equal(t, KindOpeningMismatch, KindOf(err))
		require.Contains(t, err.Error(), "encode commitment: encoding error: unsupported kind: bad input")

		var e *Error
		require.True(t, errors.As(err, &e))
		require.Equal(t, KindOpeningMismatch, e.Kind)
	}

	// unclassified causes are left alone
	plain := NewError(KindState, "accumulator", context.Canceled)
	require.Equal(t, context.Canceled, plain.Err)
}

func TestRetryWithBackoff(t *testing.T) {
	fast := &RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffMultiplier: 2, JitterPercent: 10}
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, fast, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	calls = 0
	err = RetryWithBackoff(ctx, fast, func() error {
		calls++
		return errors.New("unavailable")
	})
	require.EqualError(t, err, "unavailable")
	require.Equal(t, 4, calls)

	// classified errors are final
	calls = 0
	err = RetryWithBackoff(ctx, fast, func() error {
		calls++
		return Errorf(KindSignature, "sign", "wrong key")
	})
	require.ErrorIs(t, err, ErrSignature)
	require.Equal(t, 1, calls)

	calls = 0
	err = RetryWithBackoff(ctx, fast, func() error {
		calls++
		return errors.New("rpc error: code = PermissionDenied desc = permission denied")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	calls = 0
	slow := &RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffMultiplier: 1}
	err = RetryWithBackoff(cancelled, slow, func() error {
		calls++
		return errors.New("timeout")
	})
	require.EqualError(t, err, "timeout")
	require.Equal(t, 1, calls)
}

func TestBackoffIsCapped(t *testing.T) {
	c := &RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffMultiplier: 2}
	require.Equal(t, 10*time.Millisecond, c.backoff(1))
	require.Equal(t, 40*time.Millisecond, c.backoff(3))
	require.Equal(t, 50*time.Millisecond, c.backoff(10))

	c.JitterPercent = 10
	d := c.backoff(10)
	require.GreaterOrEqual(t, d, 50*time.Millisecond)
	require.Less(t, d, 55*time.Millisecond)
}

func TestCipherSuites(t *testing.T) {
	id, err := ParseCipherSuite("TLS_AES_128_GCM_SHA256")
	require.NoError(t, err)
	require.Equal(t, uint16(TLS_AES_128_GCM_SHA256), id)

	id, err = ParseCipherSuite("ECDHE-RSA-AES256-GCM-SHA384")
	require.NoError(t, err)
	require.Equal(t, uint16(TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384), id)

	id, err = ParseCipherSuite("0x1303")
	require.NoError(t, err)
	info, ok := GetCipherSuiteInfo(id)
	require.True(t, ok)
	require.Equal(t, uint16(VersionTLS13), info.TLSVersion)
	require.Equal(t, "ChaCha20-Poly1305", info.Algorithm)

	for _, bad := range []string{"", "0xzz", "RC4"} {
		_, err := ParseCipherSuite(bad)
		require.ErrorIs(t, err, ErrConfig, bad)
	}

	_, ok = GetCipherSuiteInfo(0x0005)
	require.False(t, ok)
	require.Equal(t, "0x0005", GetCipherSuiteName(0x0005))
	require.Equal(t, "TLS_AES_256_GCM_SHA384", GetCipherSuiteName(TLS_AES_256_GCM_SHA384))
}

func TestEthSignatures(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	require.NoError(t, err)
	msg := []byte("session header")

	sig, err := kp.SignData(msg)
	require.NoError(t, err)
	require.Len(t, sig, EthSignatureLength)
	require.NoError(t, VerifyEthSignature(msg, sig, kp.GetEthAddress()))
	require.Error(t, VerifyEthSignature([]byte("other"), sig, kp.GetEthAddress()))
	require.Error(t, VerifyEthSignature(msg, sig[:64], kp.GetEthAddress()))

	again, err := SigningKeyPairFromHex("0x" + kp.PrivateKeyHex() + "\n")
	require.NoError(t, err)
	require.Equal(t, kp.GetEthAddress(), again.GetEthAddress())

	_, err = SigningKeyPairFromHex("not a key")
	require.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TLSN_TEST_INT", "42")
	t.Setenv("TLSN_TEST_BAD_INT", "x")
	t.Setenv("TLSN_TEST_BOOL", "true")
	require.Equal(t, 42, GetEnvIntOrDefault("TLSN_TEST_INT", 1))
	require.Equal(t, 1, GetEnvIntOrDefault("TLSN_TEST_BAD_INT", 1))
	require.True(t, GetEnvBoolOrDefault("TLSN_TEST_BOOL", false))
	require.Equal(t, "d", GetEnvOrDefault("TLSN_TEST_UNSET", "d"))

	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("TLSN_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("TLSN_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("TLSN_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(env))
	require.Equal(t, "from-file", os.Getenv("TLSN_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestLogger(t *testing.T) {
	l := WrapLogger(zaptest.NewLogger(t), "notary")
	require.Equal(t, "notary", l.ServiceName())
	l.WithSession("abc").Info("session scoped")
	l.WithCryptoOp("sign_header").Debug("crypto scoped")
	l.Security("rejected")

	nop := WrapLogger(nil, "verifier")
	require.Same(t, nop.Logger, nop.WithSession(""))

	q, err := NewLogger(LoggerConfig{ServiceName: "verifier", Quiet: true})
	require.NoError(t, err)
	require.False(t, q.Core().Enabled(-1))
}
