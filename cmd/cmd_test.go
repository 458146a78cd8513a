package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/qobs-build/mike/internal/builder/gen"
	"github.com/qobs-build/mike/internal/msg"
	"github.com/qobs-build/mike/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	msg.Output = io.Discard
	color.NoColor = true
	os.Exit(m.Run())
}

func TestEnumValue(t *testing.T) {
	e := NewEnumValue("recursive", map[string]string{"recursive": "", "flat": "one file"})
	assert.Equal(t, "recursive", e.Value())
	assert.Equal(t, []string{"flat", "recursive"}, e.AllowedKeys())
	assert.Equal(t, "[flat, recursive]", e.HelpString())

	require.NoError(t, e.Set("flat"))
	assert.Equal(t, "flat", e.String())
	assert.Equal(t, "recursive", e.Default())

	assert.Error(t, e.Set("ninja"))
	assert.Equal(t, "flat", e.Value())

	items, _ := e.CompletionFunc()(nil, nil, "")
	assert.Equal(t, []string{"flat\tone file", "recursive"}, items)

	assert.Panics(t, func() { NewEnumValue("x", map[string]string{"y": ""}) })
}

func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.ConfigFilename), []byte("[targets.app]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cpp"), nil, 0o644))
	return dir
}

func TestGenerateUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, generate(&out, []string{"a", "b"}, generateOptions{}))
	assert.True(t, strings.HasPrefix(out.String(), "Usage: "))
	assert.Contains(t, out.String(), " [folder]\n")
}

func TestGenerateWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generate(io.Discard, []string{dir}, generateOptions{}))

	_, err := os.Stat(filepath.Join(dir, gen.MakefileName))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateModes(t *testing.T) {
	dir := projectDir(t)
	path := filepath.Join(dir, gen.MakefileName)

	var out bytes.Buffer
	require.NoError(t, generate(&out, []string{dir}, generateOptions{dryRun: true}))
	assert.Contains(t, out.String(), "Makefile:\n    # Generated by mike")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	out.Reset()
	err = generate(&out, []string{dir}, generateOptions{check: true})
	assert.ErrorIs(t, err, errStale)
	assert.Contains(t, out.String(), "    +SHELL = /bin/bash\n")

	require.NoError(t, generate(io.Discard, []string{dir}, generateOptions{}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "app/all: app\n")

	assert.NoError(t, generate(io.Discard, []string{dir}, generateOptions{check: true}))
}

func TestGenerateReportsConfigErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.ConfigFilename), []byte("[targets.all]\n"), 0o644))

	err := generate(io.Discard, []string{dir}, generateOptions{})
	assert.ErrorIs(t, err, gen.ErrNameCollision)
	_, statErr := os.Stat(filepath.Join(dir, gen.MakefileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "demo", targetName("demo"))
	assert.Equal(t, "my_project", targetName("my project"))
	assert.Equal(t, "app", targetName("???"))
}

func TestInitIn(t *testing.T) {
	dir := t.TempDir()
	initIn(dir, "hello world", false, true)

	for _, name := range []string{project.ConfigFilename, "src/main.cpp", ".gitignore", ".git"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	cfg, err := project.ParseConfigFromFile(filepath.Join(dir, project.ConfigFilename), project.NewConfigEnv(dir))
	require.NoError(t, err)
	assert.Equal(t, "hello world", cfg.Name)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "hello_world", cfg.Targets[0].Name)
	require.Len(t, cfg.Tests, 1)
	assert.Equal(t, "Hello, World!", cfg.Tests[0].Expect)

	// running again keeps existing files and tolerates the repository
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.cpp"), []byte("int main() {}\n"), 0o644))
	initIn(dir, "hello world", false, true)
	data, err := os.ReadFile(filepath.Join(dir, "src", "main.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "int main() {}\n", string(data))
}

func TestInitLibrary(t *testing.T) {
	dir := t.TempDir()
	initIn(dir, "core", true, false)

	_, err := os.Stat(filepath.Join(dir, ".git"))
	assert.True(t, os.IsNotExist(err))

	cfg, err := project.ParseConfigFromFile(filepath.Join(dir, project.ConfigFilename), project.NewConfigEnv(dir))
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 1)
	assert.True(t, cfg.Targets[0].StaticLibrary)
	assert.False(t, cfg.Targets[0].Executable)
	assert.Empty(t, cfg.Tests)
}
