package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"time"
)

const (
	initialBackoffDelay = 100 * time.Millisecond
	maxBackoffDelay     = 10 * time.Second
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64
}

// DefaultRetryConfig suits calls to remote signers and secret stores.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      initialBackoffDelay,
		MaxDelay:          maxBackoffDelay,
		BackoffMultiplier: 2.0,
		JitterPercent:     10.0,
	}
}

// backoff returns the delay before the given retry (1-based).
func (c *RetryConfig) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialDelay
	}
	delay := time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay + cryptoJitter(float64(delay)*c.JitterPercent/100)
}

// cryptoJitter returns a uniformly random duration below maxJitter.
func cryptoJitter(maxJitter float64) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	ratio := float64(binary.LittleEndian.Uint64(b[:])) / float64(^uint64(0))
	return time.Duration(ratio * maxJitter)
}

var nonRetryablePatterns = []string{
	"invalid argument",
	"permission denied",
	"access denied",
	"not found",
	"unauthenticated",
	"failed precondition",
}

// isRetryableError reports whether err may be transient. Classified errors
// and context errors never are.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}
	return true
}

// RetryWithBackoff runs operation until it succeeds, fails permanently,
// runs out of attempts or ctx is done. It returns the last error.
func RetryWithBackoff(ctx context.Context, config *RetryConfig, operation func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if lastErr = operation(); lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) || attempt == config.MaxAttempts {
			break
		}

		timer := time.NewTimer(config.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
