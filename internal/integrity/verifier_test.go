package integrity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestChecksumIsStableForTheSameContent(t *testing.T) {
	path := writeTempFile(t, "hello world")

	first, err := Checksum(path)
	require.NoError(t, err)
	second, err := Checksum(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, first, 64) // hex sha256
}

func TestChecksumDiffersForDifferentContent(t *testing.T) {
	a := writeTempFile(t, "hello world")
	b := writeTempFile(t, "goodbye world")

	sumA, err := Checksum(a)
	require.NoError(t, err)
	sumB, err := Checksum(b)
	require.NoError(t, err)

	require.NotEqual(t, sumA, sumB)
}

func TestVerifyRejectsAMismatchedDigest(t *testing.T) {
	path := writeTempFile(t, "hello world")
	err := Verify(path, "0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
}

func TestVerifyAcceptsAMatchingDigest(t *testing.T) {
	path := writeTempFile(t, "hello world")
	sum, err := Checksum(path)
	require.NoError(t, err)
	require.NoError(t, Verify(path, sum))
}
