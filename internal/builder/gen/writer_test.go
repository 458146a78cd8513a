package gen

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/qobs-build/mike/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFilesReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MakefileName)
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, WriteFiles([]File{{Path: path, Content: "all:\n"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "all:\n", string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, ".Makefile.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteFilesMany(t *testing.T) {
	dir := t.TempDir()
	var files []File
	for _, sub := range []string{"a", "b", "c", "d"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, sub), 0o755))
		files = append(files, File{Path: filepath.Join(dir, sub, MakefileName), Content: sub})
	}
	// duplicates are written once
	files = append(files, files[0])

	require.NoError(t, WriteFiles(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Content, string(data))
	}

	assert.NoError(t, WriteFiles(nil))
}

func TestWriteFilesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", MakefileName)
	err := WriteFiles([]File{{Path: path, Content: "x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, project.ErrFileSystem))
	assert.Contains(t, err.Error(), path)
}
