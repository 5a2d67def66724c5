package filesystem

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		filename string
		category string
	}{
		{"pic.jpg", "Images"},
		{"song.mp3", "Audio"},
		{"doc.pdf", "Documents"},
		{"movie.mp4", "Videos"},
		{"archive.zip", "Archives"},
		{"refs.bib", "References"},
		{"unknown.xyz", "Other"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.category, CategoryFor(tt.filename), tt.filename)
	}
}

func TestSanitizeReplacesInvalidCharacters(t *testing.T) {
	require.Equal(t, "a_b_c_d.pdf", Sanitize(`a/b:c*d.pdf`))
}

func TestDeriveFilenameFromContentDisposition(t *testing.T) {
	got := DeriveFilename(`attachment; filename="paper.pdf"`, "https://example.com/x", time.Now())
	require.Equal(t, "paper.pdf", got)
}

func TestDeriveFilenameFromURLPath(t *testing.T) {
	got := DeriveFilename("", "https://example.com/files/paper.pdf", time.Now())
	require.Equal(t, "paper.pdf", got)
}

func TestDeriveFilenameFallsBackToTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := DeriveFilename("", "https://example.com/", now)
	require.Equal(t, "download_1700000000.bin", got)
}

func TestResolveCollisionAppendsNumericSuffix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.jpg"), []byte("existing"), 0o644))

	got := ResolveCollision(dir, "test.jpg")
	require.Equal(t, filepath.Join(dir, "test_1.jpg"), got)
}

func TestResolveCollisionNoConflictReturnsOriginal(t *testing.T) {
	dir := t.TempDir()
	got := ResolveCollision(dir, "fresh.jpg")
	require.Equal(t, filepath.Join(dir, "fresh.jpg"), got)
}
