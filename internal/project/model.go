package project

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ConfigFilename is the name of the per-project description file
const ConfigFilename = "mike.toml"

// CurrentDir is the source entry that stands for the project root itself
const CurrentDir = "."

// Options are the toolchain and directory settings of a project
type Options struct {
	BuildDir      string `toml:"BUILD_DIR"`
	InstallDir    string `toml:"INSTALL_DIR"`
	Compiler      string `toml:"CXX"`
	CompilerFlags string `toml:"CXXFLAGS"`
	Linker        string `toml:"LD"`
	LinkerFlags   string `toml:"LDFLAGS"`
	Archiver      string `toml:"AR"`
	ArchiverFlags string `toml:"ARFLAGS"`
}

func DefaultOptions() Options {
	return Options{
		BuildDir:      "./build",
		InstallDir:    "/usr/local",
		Compiler:      "g++",
		CompilerFlags: "-Wall",
		Linker:        "g++",
		LinkerFlags:   "",
		Archiver:      "ar",
		ArchiverFlags: "rc",
	}
}

// Option is a single named option value
type Option struct {
	Name  string
	Value string
}

// Fields returns the options in their fixed emission order
func (o Options) Fields() []Option {
	return []Option{
		{"BUILD_DIR", o.BuildDir},
		{"INSTALL_DIR", o.InstallDir},
		{"CXX", o.Compiler},
		{"CXXFLAGS", o.CompilerFlags},
		{"LD", o.Linker},
		{"LDFLAGS", o.LinkerFlags},
		{"AR", o.Archiver},
		{"ARFLAGS", o.ArchiverFlags},
	}
}

// Kind is one of the artifact kinds a target can produce
type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	SharedLibrary
)

// Kinds lists every kind in flag declaration order
var Kinds = []Kind{Executable, StaticLibrary, SharedLibrary}

func (k Kind) String() string {
	switch k {
	case Executable:
		return "executable"
	case StaticLibrary:
		return "staticLibrary"
	case SharedLibrary:
		return "sharedLibrary"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Target describes one build artifact
type Target struct {
	Name      string
	Sources   []string
	Headers   []string
	Includes  []string
	Libraries []string
	Cflags    []string
	Defines   map[string]string

	Executable    bool
	StaticLibrary bool
	SharedLibrary bool
}

// Has reports whether the kind flag k is set
func (t Target) Has(k Kind) bool {
	switch k {
	case Executable:
		return t.Executable
	case StaticLibrary:
		return t.StaticLibrary
	case SharedLibrary:
		return t.SharedLibrary
	}
	return false
}

// Kinds returns the active kinds in flag declaration order
func (t Target) Kinds() []Kind {
	var kinds []Kind
	for _, k := range Kinds {
		if t.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// DefineFlags returns -D flags sorted by macro name
func (t Target) DefineFlags() []string {
	keys := make([]string, 0, len(t.Defines))
	for k := range t.Defines {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	flags := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := t.Defines[k]; v != "" {
			flags = append(flags, "-D"+k+"="+v)
		} else {
			flags = append(flags, "-D"+k)
		}
	}
	return flags
}

// Script is a named sequence of shell command lines
type Script struct {
	Name     string
	Commands []string
}

// Test is a smoke test comparing a target's stdout with an expected string
type Test struct {
	Name   string
	Target string
	Args   string
	Input  string
	Expect string
}

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)

func validateName(kind, name string) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid %s name %q: only letters, digits and _.+- are allowed", kind, name)
	}
	return nil
}

func validateChildPath(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("empty child path")
	}
	if i := strings.IndexAny(dir, " \t\r\n:#=$%\"'\\"); i >= 0 {
		return fmt.Errorf("child path %q contains %q", dir, dir[i])
	}
	return nil
}
