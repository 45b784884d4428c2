package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var reader io.Reader
	if strings.HasSuffix(path, ".br") {
		reader = brotli.NewReader(f)
	} else {
		reader, err = xz.NewReader(f)
		require.NoError(t, err)
	}

	result := map[string]string{}
	archive := tar.NewReader(reader)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(archive)
		require.NoError(t, err)
		result[header.Name] = string(content)
	}

	return result
}

func writeLogs(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	logDir := filepath.Join(root, "Testing")
	require.NoError(t, os.MkdirAll(filepath.Join(logDir, "Temporary"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "TAG"), []byte("20261017-0400\nExperimental\n"), 0660))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "Temporary", "LastTest.log"), []byte("1/2 Test #1: test1 ... Passed"), 0660))

	return root, logDir
}

var expectedEntries = map[string]string{
	"Testing/":                       "",
	"Testing/TAG":                    "20261017-0400\nExperimental\n",
	"Testing/Temporary/":             "",
	"Testing/Temporary/LastTest.log": "1/2 Test #1: test1 ... Passed",
}

func TestPackDir(t *testing.T) {
	root, logDir := writeLogs(t)

	dest := filepath.Join(root, "logs.tar.xz")
	count, err := PackDir(dest, logDir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, expectedEntries, readArchive(t, dest))
}

func TestPackDirBrotli(t *testing.T) {
	root, logDir := writeLogs(t)

	dest := filepath.Join(root, "logs.tar.br")
	count, err := PackDir(dest, logDir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, expectedEntries, readArchive(t, dest))
}

func TestPackDirMissing(t *testing.T) {
	root := t.TempDir()

	_, err := PackDir(filepath.Join(root, "logs.tar.xz"), filepath.Join(root, "Testing"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "logs.tar.xz"))
	assert.True(t, os.IsNotExist(statErr))
}
