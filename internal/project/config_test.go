package project

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, doc string) *Config {
	t.Helper()
	cfg, err := ParseConfig(strings.NewReader(doc), NewConfigEnv(t.TempDir()))
	require.NoError(t, err)
	return cfg
}

func targetNames(targets []Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}

func TestTargetKindInference(t *testing.T) {
	tests := []struct {
		name    string
		section TargetSection
		want    [3]bool
	}{
		{"no flags", TargetSection{}, [3]bool{true, false, false}},
		{"static only", TargetSection{StaticLibrary: true}, [3]bool{false, true, false}},
		{"shared only", TargetSection{SharedLibrary: true}, [3]bool{false, false, true}},
		{"executable and shared", TargetSection{Executable: true, SharedLibrary: true}, [3]bool{true, false, true}},
		{"all", TargetSection{Executable: true, StaticLibrary: true, SharedLibrary: true}, [3]bool{true, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := tt.section.Resolve("app")
			require.NoError(t, err)
			assert.Equal(t, tt.want, [3]bool{target.Executable, target.StaticLibrary, target.SharedLibrary})
			assert.NotEmpty(t, target.Kinds())
		})
	}
}

func TestTargetDefaults(t *testing.T) {
	target, err := TargetSection{}.Resolve("app")
	require.NoError(t, err)

	assert.Equal(t, []string{CurrentDir}, target.Sources)
	assert.Equal(t, []string{CurrentDir}, target.Headers)
	assert.Empty(t, target.Includes)
	assert.Empty(t, target.Libraries)
	assert.Equal(t, []Kind{Executable}, target.Kinds())
}

func TestTargetDefineFlags(t *testing.T) {
	target := Target{Defines: map[string]string{"VERSION": "2", "DEBUG": ""}}
	assert.Equal(t, []string{"-DDEBUG", "-DVERSION=2"}, target.DefineFlags())
}

func TestInvalidNames(t *testing.T) {
	_, err := TargetSection{}.Resolve("my app")
	assert.Error(t, err)

	_, err = TestSection{Target: "app"}.Resolve("a:b")
	assert.Error(t, err)

	_, err = ParseScript("run$", "echo")
	assert.Error(t, err)

	_, err = TargetSection{}.Resolve("lib-core.v2+")
	assert.NoError(t, err)
}

func TestTestRequiresTarget(t *testing.T) {
	_, err := TestSection{Expect: "ok"}.Resolve("t1")
	assert.Error(t, err)

	test, err := TestSection{Target: "app", Expect: "ok"}.Resolve("t1")
	require.NoError(t, err)
	assert.Equal(t, Test{Name: "t1", Target: "app", Expect: "ok"}, test)
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript("build", "  make a\n   echo b\r\n\r\n c  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"make a", "echo b", "c"}, s.Commands)

	s, err = ParseScript("build", "one\rtwo | grep x > out")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two | grep x > out"}, s.Commands)

	s, err = ParseScript("build", []any{" a ", "", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Commands)

	s, err = ParseScript("empty", "   ")
	require.NoError(t, err)
	assert.Empty(t, s.Commands)

	_, err = ParseScript("build", []any{"a", int64(1)})
	assert.Error(t, err)

	_, err = ParseScript("build", int64(1))
	assert.Error(t, err)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg := parse(t, `name = "demo"`)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, DefaultOptions(), cfg.Options)
	assert.Empty(t, cfg.Children)
	assert.Empty(t, cfg.Targets)
	assert.Empty(t, cfg.Scripts)
	assert.Empty(t, cfg.Tests)
}

func TestParseConfigOptions(t *testing.T) {
	cfg := parse(t, `
CXX = "clang++"
BUILD_DIR = "out"
LDFLAGS = "-pthread"
children = ["lib", "tools/"]
`)

	assert.Equal(t, "clang++", cfg.Options.Compiler)
	assert.Equal(t, "out", cfg.Options.BuildDir)
	assert.Equal(t, "-pthread", cfg.Options.LinkerFlags)
	assert.Equal(t, "g++", cfg.Options.Linker)
	assert.Equal(t, "rc", cfg.Options.ArchiverFlags)
	assert.Equal(t, []string{"lib", "tools/"}, cfg.Children)
}

func TestParseConfigPreservesOrder(t *testing.T) {
	cfg := parse(t, `
[targets.zeta]

[targets.alpha]
sources = ["src"]

[targets.mid]
staticLibrary = true

[scripts]
b = "echo b"
a = "echo a"

[tests.second]
target = "zeta"
expect = "x"

[tests.first]
target = "alpha"
expect = "y"
`)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, targetNames(cfg.Targets))
	assert.Equal(t, []string{"src"}, cfg.Targets[1].Sources)
	assert.True(t, cfg.Targets[2].StaticLibrary)
	assert.False(t, cfg.Targets[2].Executable)

	require.Len(t, cfg.Scripts, 2)
	assert.Equal(t, "b", cfg.Scripts[0].Name)
	assert.Equal(t, "a", cfg.Scripts[1].Name)

	require.Len(t, cfg.Tests, 2)
	assert.Equal(t, "second", cfg.Tests[0].Name)
	assert.Equal(t, "first", cfg.Tests[1].Name)
}

func TestParseConfigArrayOfTables(t *testing.T) {
	cfg := parse(t, `
[[targets]]
name = "core"
staticLibrary = true

[[targets]]
name = "app"
libraries = ["core.a"]

[[tests]]
name = "smoke"
target = "app"
input = "x"
expect = "ok"
`)

	assert.Equal(t, []string{"core", "app"}, targetNames(cfg.Targets))
	assert.Equal(t, []string{"core.a"}, cfg.Targets[1].Libraries)
	require.Len(t, cfg.Tests, 1)
	assert.Equal(t, Test{Name: "smoke", Target: "app", Input: "x", Expect: "ok"}, cfg.Tests[0])
}

func TestParseConfigInlineTables(t *testing.T) {
	cfg := parse(t, `targets = { zed = { staticLibrary = true }, app = {} }`)
	assert.Equal(t, []string{"zed", "app"}, targetNames(cfg.Targets))
}

func TestParseConfigExpressions(t *testing.T) {
	cfg := parse(t, `
name = "{{ target_os }}-demo"

[targets.app]
sources = ["src"]

[targets.app.'target_os == "`+runtime.GOOS+`"']
cflags = ["-O2"]
defines = { OS = "yes" }

[targets.app.'target_os == "plan10"']
cflags = ["-O0"]
sharedLibrary = true
`)

	assert.Equal(t, runtime.GOOS+"-demo", cfg.Name)
	require.Len(t, cfg.Targets, 1)
	app := cfg.Targets[0]
	assert.Equal(t, []string{"src"}, app.Sources)
	assert.Equal(t, []string{"-O2"}, app.Cflags)
	assert.Equal(t, map[string]string{"OS": "yes"}, app.Defines)
	assert.False(t, app.SharedLibrary)
	assert.True(t, app.Executable)
}

func TestParseConfigReadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("1.2.3\n"), 0o644))

	cfg, err := ParseConfig(strings.NewReader(`
[targets.app]
defines = { VERSION = "{{ ReadFile('VERSION') }}" }
`), NewConfigEnv(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"-DVERSION=1.2.3"}, cfg.Targets[0].DefineFlags())

	_, err = ParseConfig(strings.NewReader(`name = "{{ ReadFile('../secret') }}"`), NewConfigEnv(dir))
	assert.Error(t, err)
}

func TestParseConfigErrors(t *testing.T) {
	docs := map[string]string{
		"malformed":         `name = `,
		"bad sources":       "[targets.app]\nsources = 5",
		"bad child":         `children = ["a b"]`,
		"child with colon":  `children = ["c:d"]`,
		"test no target":    "[tests.t]\nexpect = \"x\"",
		"bad target name":   `[targets."bad name"]`,
		"scripts not table": `scripts = "x"`,
		"target not table":  `targets = { app = 1 }`,
		"unnamed entry":     "[[targets]]\nsources = [\".\"]",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(doc), NewConfigEnv(t.TempDir()))
			assert.Error(t, err)
		})
	}
}

func TestParseConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFilename)

	_, err := ParseConfigFromFile(path, NewConfigEnv(dir))
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	require.NoError(t, os.WriteFile(path, []byte("name = ["), 0o644))
	_, err = ParseConfigFromFile(path, NewConfigEnv(dir))
	assert.True(t, errors.Is(err, ErrConfigParse))
	assert.Contains(t, err.Error(), path)

	require.NoError(t, os.WriteFile(path, []byte(`name = "ok"`), 0o644))
	cfg, err := ParseConfigFromFile(path, NewConfigEnv(dir))
	require.NoError(t, err)
	assert.Equal(t, "ok", cfg.Name)
}
