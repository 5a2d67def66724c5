// Package retrypolicy classifies download failures and decides whether a
// failed attempt should be retried, and after how long.
package retrypolicy

import (
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FailureType is the outcome of classifying a download error.
type FailureType int

const (
	Transient FailureType = iota
	Permanent
	RateLimited
	NeedsAuth
)

func (f FailureType) String() string {
	switch f {
	case Permanent:
		return "permanent"
	case RateLimited:
		return "rate_limited"
	case NeedsAuth:
		return "needs_auth"
	default:
		return "transient"
	}
}

// ClassifyHTTPStatus maps an HTTP response status to a FailureType, per
// the table in the download-error taxonomy.
func ClassifyHTTPStatus(status int) FailureType {
	switch status {
	case 400, 404, 410, 451:
		return Permanent
	case 401, 403:
		return NeedsAuth
	case 408, 500, 502, 503, 504:
		return Transient
	case 429:
		return RateLimited
	default:
		if status >= 500 {
			return Transient
		}
		return Permanent
	}
}

// ClassifyError classifies a transport-level error (no HTTP response was
// received at all).
func ClassifyError(err error) FailureType {
	if err == nil {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "certificate"), strings.Contains(msg, "x509"), strings.Contains(msg, "invalid url"):
		return Permanent
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "eof"):
		return Transient
	default:
		return Transient
	}
}

// Decision is the result of should_retry.
type Decision struct {
	Retry  bool
	Delay  time.Duration
	Reason string // populated when Retry is false
	Attempt int
}

// Policy holds the tunable retry parameters. Zero-value Policy is not
// usable; construct with Default or New.
type Policy struct {
	MaxAttempts int // default 3, range 0-10
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// Default returns the policy's documented defaults.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    32 * time.Second,
		Multiplier:  2.0,
	}
}

// New builds a Policy, clamping maxAttempts to [0, 10].
func New(maxAttempts int, baseDelay, maxDelay time.Duration, multiplier float64) Policy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if maxAttempts > 10 {
		maxAttempts = 10
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Multiplier:  multiplier,
	}
}

const maxJitter = 500 * time.Millisecond

// ShouldRetry decides between retrying and giving up, given the
// classified failure and the number of attempts made so far (1-indexed,
// i.e. the attempt that just failed).
func (p Policy) ShouldRetry(failureType FailureType, attemptCount int) Decision {
	if failureType == Permanent || failureType == NeedsAuth {
		return Decision{Retry: false, Reason: failureType.String(), Attempt: attemptCount}
	}
	if attemptCount >= p.MaxAttempts {
		return Decision{Retry: false, Reason: "max_attempts_exceeded", Attempt: attemptCount}
	}

	backoff := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attemptCount-1))
	delay := time.Duration(backoff)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	delay += time.Duration(rand.Int63n(int64(maxJitter) + 1))

	return Decision{Retry: true, Delay: delay, Attempt: attemptCount}
}

// ShouldRetryAfter behaves like ShouldRetry, but when the decision is to
// retry, the delay is retryAfter instead of the exponential backoff. Use
// this when the failed response carried a server-parsed Retry-After.
func (p Policy) ShouldRetryAfter(failureType FailureType, attemptCount int, retryAfter time.Duration) Decision {
	decision := p.ShouldRetry(failureType, attemptCount)
	if decision.Retry {
		decision.Delay = retryAfter
	}
	return decision
}

// maxRetryAfter is the cap applied to a server-supplied Retry-After value.
const maxRetryAfter = 3600 * time.Second

// ParseRetryAfter parses an HTTP Retry-After header value, which may be
// an integer number of seconds or an HTTP-date. Values exceeding 3600s
// are capped. An unparseable header returns (0, false).
func ParseRetryAfter(header string, now time.Time) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		d := time.Duration(secs) * time.Second
		if d < 0 {
			return 0, false
		}
		return capRetryAfter(d), true
	}
	if t, err := http.ParseTime(header); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return capRetryAfter(d), true
	}
	return 0, false
}

func capRetryAfter(d time.Duration) time.Duration {
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}
