package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunDownloadsAResolvedURLAndExitsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	outDir := t.TempDir()
	stdin := strings.NewReader(srv.URL + "\n")

	code := run([]string{"-output-dir", outDir}, stdin)
	require.Equal(t, 0, code)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var sawFile bool
	for _, e := range entries {
		if !e.IsDir() {
			sawFile = true
		}
	}
	require.True(t, sawFile, "expected a downloaded file in %s", outDir)
}

func TestRunExitsNonZeroWhenTheOnlyInputFailsPermanently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	outDir := t.TempDir()
	stdin := strings.NewReader(srv.URL + "\n")

	code := run([]string{"-output-dir", outDir}, stdin)
	require.Equal(t, 1, code)
}

func TestRunSkipsUnparseableInputLinesWithoutFailing(t *testing.T) {
	outDir := t.TempDir()
	stdin := strings.NewReader("\n   \n")

	code := run([]string{"-output-dir", outDir}, stdin)
	require.Equal(t, 0, code)
}

func TestRunRejectsUnknownFlags(t *testing.T) {
	code := run([]string{"-not-a-real-flag"}, strings.NewReader(""))
	require.Equal(t, 2, code)
}

func TestRunUsesConfigOverlayWhenGiven(t *testing.T) {
	outDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("concurrency: 2\nmax_retries: 1\n"), 0o644))

	code := run([]string{"-config", cfgPath, "-output-dir", outDir}, strings.NewReader(""))
	require.Equal(t, 0, code)
}
