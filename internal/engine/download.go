package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fetchcite/fetchcite/internal/bandwidth"
	"github.com/fetchcite/fetchcite/internal/filesystem"
)

// streamToFile implements the streaming contract: the body is written to
// disk in bounded-size chunks so memory use is independent of file size,
// and any error after the file is opened removes the partial file.
// finalURL reports where the response actually landed after the shared
// client's own redirect handling (equal to rawURL when nothing
// redirected, or when e.HTTPClient does not follow redirects).
func (e *Engine) streamToFile(ctx context.Context, rawURL, outputDir string, onProgress func(written, total int64)) (path string, written int64, contentType string, finalURL string, derr *DownloadError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, "", "", &DownloadError{Kind: ErrInvalidURL, Err: err, Message: err.Error()}
	}
	ua := e.UserAgent
	if ua == "" {
		ua = "fetchcite/1.0"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", 0, "", "", &DownloadError{Kind: ErrTimeout, Err: err, Message: err.Error()}
		}
		return "", 0, "", "", &DownloadError{Kind: ErrNetwork, Err: err, Message: err.Error()}
	}
	defer resp.Body.Close()

	finalURL = rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, "", finalURL, &DownloadError{
			Kind:       ErrHTTPStatus,
			Status:     resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	if err := filesystem.CheckSpace(outputDir, resp.ContentLength); err != nil {
		return "", 0, "", finalURL, &DownloadError{Kind: ErrDiskFull, Err: err, Message: err.Error()}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", 0, "", finalURL, &DownloadError{Kind: ErrIO, Err: err, Path: outputDir, Message: err.Error()}
	}

	filename := filesystem.DeriveFilename(resp.Header.Get("Content-Disposition"), finalURL, time.Now())
	destPath := filesystem.ResolveCollision(outputDir, filename)

	f, err := os.Create(destPath)
	if err != nil {
		return "", 0, "", finalURL, &DownloadError{Kind: ErrIO, Err: err, Path: destPath, Message: err.Error()}
	}

	contentType = resp.Header.Get("Content-Type")
	written, copyErr := copyWithProgress(ctx, f, resp.Body, resp.ContentLength, e.Bandwidth, onProgress)
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(destPath)
		failErr := copyErr
		if failErr == nil {
			failErr = closeErr
		}
		kind := ErrIO
		if isTimeout(failErr) {
			kind = ErrTimeout
		}
		return "", 0, "", finalURL, &DownloadError{Kind: kind, Err: failErr, Path: destPath, Message: failErr.Error()}
	}

	return destPath, written, contentType, finalURL, nil
}

// copyWithProgress copies src into dst in fixed-size chunks, invoking
// onProgress after every chunk so the caller can throttle queue writes.
// When limiter is non-nil, each chunk is paced against the global
// bytes/sec cap before it is written.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, contentLength int64, limiter *bandwidth.Limiter, onProgress func(written, total int64)) (int64, error) {
	buf := make([]byte, readBufferSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(written, contentLength)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
