package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactingHandlerScrubsSensitiveAttributeValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("request sent", "authorization", "Bearer secret-token", "url", "https://example.com")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, redactedPlaceholder, entry["authorization"])
	require.Equal(t, "https://example.com", entry["url"])
}

func TestRedactingHandlerScrubsAttrsAddedViaWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil)))
	logger.With("cookie", "session=abc123").Info("fetched page")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, redactedPlaceholder, entry["cookie"])
}

func TestFanoutHandlerDispatchesToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	fanout := NewFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	logger := slog.New(fanout)
	logger.Info("hello")

	require.NotEmpty(t, a.String())
	require.NotEmpty(t, b.String())
}

func TestConsoleHandlerWritesAHumanReadableLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf))
	logger.Warn("disk space low", "free_bytes", 1024)

	require.Contains(t, buf.String(), "disk space low")
	require.Contains(t, buf.String(), "free_bytes=1024")
}

func TestNewCreatesTheLogFileUnderStoreDir(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, &bytes.Buffer{})
	require.NoError(t, err)

	logger.Info("boot")

	path := filepath.Join(dir, "logs", "fetchcite.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "boot"))
}
