package engine

import (
	"fmt"
	"net/http"
	"net/url"
)

// DownloadErrorKind enumerates the download-level failure categories.
type DownloadErrorKind int

const (
	ErrNetwork DownloadErrorKind = iota
	ErrTimeout
	ErrHTTPStatus
	ErrIO
	ErrInvalidURL
	ErrDiskFull
)

// DownloadError carries enough context to classify a failed attempt and
// to render a redacted What/Why/Fix message.
type DownloadError struct {
	Kind       DownloadErrorKind
	Status     int    // valid when Kind == ErrHTTPStatus
	RetryAfter string // raw Retry-After header value, if present
	Path       string // valid when Kind == ErrIO
	Message    string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "download error"
}

func (e *DownloadError) Unwrap() error { return e.Err }

// redactURL strips userinfo, query string, and fragment before a URL is
// placed in a user-facing message or log line, so query-string secrets
// (API keys, signed-URL tokens) never leak.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// friendlyMessage renders the What/Why/Fix template required for every
// user-visible failure.
func friendlyMessage(rawURL string, derr *DownloadError) string {
	what := fmt.Sprintf("download failed for %s", redactURL(rawURL))
	why, fix := whyAndFix(derr)
	return fmt.Sprintf("What: %s\nWhy: %s\nFix: %s", what, why, fix)
}

func whyAndFix(derr *DownloadError) (why, fix string) {
	switch derr.Kind {
	case ErrHTTPStatus:
		switch derr.Status {
		case http.StatusNotFound, http.StatusGone:
			return "server reported the resource does not exist", "check the URL"
		case http.StatusUnauthorized, http.StatusForbidden:
			return "server requires authentication", "run cookie capture"
		case http.StatusTooManyRequests:
			return "server is rate limiting this domain", "increase rate_limit_ms or wait and retry"
		default:
			return fmt.Sprintf("server returned HTTP %d", derr.Status), "increase max_retries or check the URL"
		}
	case ErrTimeout:
		return "the connection timed out", "check network connectivity or increase the read timeout"
	case ErrIO:
		return "writing the file to disk failed", "check available disk space and permissions"
	case ErrDiskFull:
		return "not enough free disk space for this file", "free up space or point output_dir elsewhere"
	case ErrInvalidURL:
		return "the URL is malformed", "check the URL"
	default:
		return "a network error occurred", "check network connectivity and retry"
	}
}
