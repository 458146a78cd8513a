// mike init [name], mike new [path]
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/mike/internal/builder"
	"github.com/qobs-build/mike/internal/msg"
	"github.com/qobs-build/mike/internal/project"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "mike"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// targetName turns a project name into something usable as a bare TOML key and target name
func targetName(name string) string {
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "app"
	}
	return name
}

func configFor(name string, lib bool) string {
	target := targetName(name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "name = %q\n\n", name)
	if cxx := builder.FindCompiler(); cxx != "" {
		fmt.Fprintf(&sb, "CXX = %q\nLD = %q\n\n", cxx, cxx)
	}
	fmt.Fprintf(&sb, "[targets.%s]\nsources = [\"src\"]\nheaders = [\"src\"]\n", target)

	if lib {
		sb.WriteString("staticLibrary = true\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, `
[scripts]
run = """
./%s
"""

[tests.hello]
target = %q
expect = "Hello, World!"
`, target, target)
	return sb.String()
}

// initIn initializes a project in an existing directory
func initIn(dir, name string, lib, initGit bool) {
	writefile(configFor(name, lib), dir, project.ConfigFilename)

	mkdir(dir, "src")

	if lib {
		// src/hello_world.cpp
		writefile(`#include <cstdio>
#include "hello_world.hpp"

void hello_world() {
    std::puts("Hello, World!");
}
`, dir, "src", "hello_world.cpp")

		// src/hello_world.hpp
		writefile(`#ifndef HELLO_WORLD_HPP
#define HELLO_WORLD_HPP

void hello_world();

#endif
`, dir, "src", "hello_world.hpp")
	} else {
		// src/main.cpp
		writefile(`#include <cstdio>

int main() {
    std::printf("Hello, World!\n");
    return 0;
}
`, dir, "src", "main.cpp")
	}

	// .gitignore
	writefile(`build/
*.tar.gz
`, dir, ".gitignore")

	if initGit {
		_, err := git.PlainInit(dir, false)
		switch {
		case errors.Is(err, git.ErrTargetDirNotEmpty):
		case err != nil:
			msg.Fatal("git init %s: %v", dir, err)
		default:
			fmt.Printf("%s git repository: %s\n", color.HiGreenString("Initialized"), filepath.ToSlash(dir))
		}
	}

	programName := getProgramName()
	fmt.Printf("You can now do %s to generate a Makefile, then %s to build.\n", color.HiCyanString(programName+" "+dir), color.HiCyanString("make -C "+dir))
}

var (
	library bool
	noGit   bool
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library, !noGit)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library, !noGit)
	},
}

func init() {
	// mike init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&library, "lib", false, "Create a library target")
	initCmd.Flags().BoolVar(&noGit, "no-git", false, "Do not initialize a git repository")

	// mike new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVar(&library, "lib", false, "Create a library target")
	newCmd.Flags().BoolVar(&noGit, "no-git", false, "Do not initialize a git repository")
}
