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

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDiscoverCurrentDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.c":        "",
		"a.cpp":      "",
		"readme.md":  "",
		"a.h":        "",
		"src/x.cpp":  "",
		"notes.cpp~": "",
	})

	for _, marker := range []string{".", "", "./"} {
		got, err := discover(DirFS(dir), dir, []string{marker}, sourceExts)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.cpp", "b.c"}, got, "marker %q", marker)
	}

	got, err := discover(DirFS(dir), dir, []string{"."}, headerExts)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.h"}, got)
}

func TestDiscoverDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/y.cc":      "",
		"src/x.cpp":     "",
		"src/x.hpp":     "",
		"src/sub/z.cpp": "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src", "dir.c"), 0o755))

	got, err := discover(DirFS(dir), dir, []string{"src/"}, sourceExts)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/x.cpp", "src/y.cc"}, got)

	got, err = discover(DirFS(dir), dir, []string{"src"}, headerExts)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/x.hpp"}, got)
}

func TestDiscoverLiteralsAndDrops(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.cpp": "", "b.c": ""})

	got, err := discover(DirFS(dir), dir, []string{
		"gen/generated.cpp", // does not exist yet, kept as written
		"notes.txt",
		"missing/",
		"./a.cpp",
		".",
		"gen/../gen/generated.cpp",
	}, sourceExts)
	require.NoError(t, err)
	assert.Equal(t, []string{"gen/generated.cpp", "a.cpp", "b.c"}, got)
}

type brokenFS struct{}

func (brokenFS) IsDir(string) (bool, error) { return false, os.ErrPermission }
func (brokenFS) List(string, []string) ([]string, error) { return nil, os.ErrPermission }

func TestDiscoverProbeFailure(t *testing.T) {
	_, err := discover(brokenFS{}, "/project", []string{"src"}, sourceExts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, project.ErrFileSystem))
	assert.True(t, errors.Is(err, os.ErrPermission))

	_, err = discover(brokenFS{}, "/project", []string{"."}, sourceExts)
	assert.True(t, errors.Is(err, project.ErrFileSystem))
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "$(T_BUILD_DIR)/sub/dir/x.cpp.o", objectPath("$(T_BUILD_DIR)", "sub/dir/x.cpp"))
	assert.NotEqual(t, objectPath("b", "sub/dir/x.cpp"), objectPath("b", "other/x.cpp"))
	assert.NotEqual(t, objectPath("b", "x.c"), objectPath("b", "x.cpp"))

	// sources outside the project stay inside the build directory
	assert.Equal(t, "$(A_BUILD_DIR)/__/shared/x.cpp.o", objectPath("$(A_BUILD_DIR)", "../shared/x.cpp"))
	assert.Equal(t, "b/__/__/x.cpp.o", objectPath("b", "../../x.cpp"))
	assert.Equal(t, "b/__/usr/src/x.cpp.o", objectPath("b", "/usr/src/x.cpp"))
	assert.Equal(t, "b/a..b/x.cpp.o", objectPath("b", "a..b/x.cpp"))

	assert.True(t, hasPatternObject("src/x.cpp"))
	assert.False(t, hasPatternObject("../shared/x.cpp"))
	assert.False(t, hasPatternObject("/abs/x.cpp"))
}
