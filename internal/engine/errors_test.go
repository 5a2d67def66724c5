package engine

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fetchcite/fetchcite/internal/retrypolicy"
)

// A full disk is never worth retrying, unlike the generic I/O errors
// ClassifyError defaults to Transient.
func TestClassifyDiskFullIsPermanent(t *testing.T) {
	derr := &DownloadError{Kind: ErrDiskFull, Err: errors.New("insufficient disk space: need 900 bytes, have 100 free")}
	require.Equal(t, retrypolicy.Permanent, classify(derr))
}

func TestClassifyHTTPStatusUsesStatusTable(t *testing.T) {
	derr := &DownloadError{Kind: ErrHTTPStatus, Status: http.StatusNotFound}
	require.Equal(t, retrypolicy.Permanent, classify(derr))
}

func TestFriendlyMessageRedactsQueryAndIncludesDiskFullFix(t *testing.T) {
	derr := &DownloadError{Kind: ErrDiskFull, Err: errors.New("insufficient disk space")}
	msg := friendlyMessage("https://example.com/file.pdf?token=secret", derr)
	require.Contains(t, msg, "What:")
	require.Contains(t, msg, "free up space")
	require.NotContains(t, msg, "token=secret")
}
