package retrypolicy

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]FailureType{
		404: Permanent,
		410: Permanent,
		451: Permanent,
		401: NeedsAuth,
		403: NeedsAuth,
		408: Transient,
		500: Transient,
		503: Transient,
		429: RateLimited,
	}
	for status, want := range cases {
		require.Equal(t, want, ClassifyHTTPStatus(status), "status %d", status)
	}
}

func TestClassifyErrorTransportFailures(t *testing.T) {
	require.Equal(t, Transient, ClassifyError(errors.New("dial tcp: connection refused")))
	require.Equal(t, Transient, ClassifyError(errors.New("context deadline exceeded")))
	require.Equal(t, Permanent, ClassifyError(errors.New("x509: certificate signed by unknown authority")))
}

func TestShouldRetryPermanentNeverRetries(t *testing.T) {
	p := Default()
	d := p.ShouldRetry(Permanent, 1)
	require.False(t, d.Retry)

	d = p.ShouldRetry(NeedsAuth, 1)
	require.False(t, d.Retry)
}

func TestShouldRetryStopsAtMaxAttempts(t *testing.T) {
	p := Default()
	d := p.ShouldRetry(Transient, 3)
	require.False(t, d.Retry)
	require.Equal(t, "max_attempts_exceeded", d.Reason)
}

func TestShouldRetryBackoffGrowsAndCaps(t *testing.T) {
	p := New(10, time.Second, 32*time.Second, 2.0)

	d1 := p.ShouldRetry(Transient, 1)
	require.True(t, d1.Retry)
	require.GreaterOrEqual(t, d1.Delay, time.Second)
	require.LessOrEqual(t, d1.Delay, time.Second+maxJitter)

	d5 := p.ShouldRetry(Transient, 6)
	require.True(t, d5.Retry)
	require.LessOrEqual(t, d5.Delay, 32*time.Second+maxJitter)
}

func TestJitterBoundsOverManySamples(t *testing.T) {
	p := New(10, time.Second, 32*time.Second, 2.0)
	var total time.Duration
	const n = 200
	for i := 0; i < n; i++ {
		d := p.ShouldRetry(Transient, 1)
		jitter := d.Delay - time.Second
		require.GreaterOrEqual(t, jitter, time.Duration(0))
		require.LessOrEqual(t, jitter, maxJitter)
		total += jitter
	}
	mean := total / n
	require.GreaterOrEqual(t, mean, 150*time.Millisecond)
	require.LessOrEqual(t, mean, 350*time.Millisecond)
}

func TestParseRetryAfterSeconds(t *testing.T) {
	now := time.Now()
	d, ok := ParseRetryAfter("5", now)
	require.True(t, ok)
	require.Equal(t, 5*time.Second, d)
}

func TestParseRetryAfterCapsAboveOneHour(t *testing.T) {
	now := time.Now()
	d, ok := ParseRetryAfter("7200", now)
	require.True(t, ok)
	require.Equal(t, maxRetryAfter, d)
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(10 * time.Second).Format(http.TimeFormat)
	d, ok := ParseRetryAfter(future, now)
	require.True(t, ok)
	require.InDelta(t, 10*time.Second, d, float64(2*time.Second))
}

func TestParseRetryAfterUnparseableFallsBack(t *testing.T) {
	_, ok := ParseRetryAfter("not-a-value", time.Now())
	require.False(t, ok)
}
