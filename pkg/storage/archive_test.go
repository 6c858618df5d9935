package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	rel, err := archive.Save("audit-20260301-120000.csv", []byte("id,timestamp\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(time.Now().UTC().Format("2006-01-02"), "audit-20260301-120000.csv"), rel)

	file, err := archive.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "id,timestamp\n", string(content))
}

func TestArchiveStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	rel, err := archive.Save("../../escape.csv", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.csv", filepath.Base(rel))

	_, err = os.Stat(filepath.Join(dir, rel))
	require.NoError(t, err)
}
