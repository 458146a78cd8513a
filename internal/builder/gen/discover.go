package gen

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/mike/internal/project"
)

var (
	sourceExts = []string{".c", ".cc", ".cpp"}
	headerExts = []string{".h", ".hpp"}
)

// FS is the view of a project directory that source discovery needs
type FS interface {
	// IsDir reports whether name (relative to the project root, or absolute) is an existing directory
	IsDir(name string) (bool, error)
	// List returns the files directly inside dir whose extension is one of exts, sorted
	List(dir string, exts []string) ([]string, error)
}

type dirFS struct {
	root string
}

// DirFS returns an FS backed by the operating system, rooted at root
func DirFS(root string) FS { return dirFS{root: root} }

func (d dirFS) abs(name string) string {
	name = filepath.FromSlash(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.root, name)
}

func (d dirFS) IsDir(name string) (bool, error) {
	stat, err := os.Stat(d.abs(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return false, nil
		}
		return false, err
	}
	return stat.IsDir(), nil
}

func (d dirFS) List(dir string, exts []string) ([]string, error) {
	pattern := "*{" + strings.Join(exts, ",") + "}"
	matches, err := doublestar.Glob(os.DirFS(d.abs(dir)), pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = path.Join(dir, m)
	}
	slices.Sort(matches)
	return slices.Compact(matches), nil
}

func isCurrentDir(spec string) bool {
	return spec == "" || spec == "." || spec == "./"
}

func hasExt(name string, exts []string) bool {
	return slices.Contains(exts, path.Ext(name))
}

// discover expands source or header entries into file paths relative to the project root.
// For each entry the first match wins: the current directory marker, an existing directory,
// then a literal file with one of exts. Anything else is dropped. Results keep entry order
// and contain no duplicates.
func discover(fsys FS, root string, specs []string, exts []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				files = append(files, n)
			}
		}
	}

	for _, spec := range specs {
		spec = filepath.ToSlash(spec)
		if isCurrentDir(spec) {
			found, err := fsys.List(".", exts)
			if err != nil {
				return nil, project.FSError(root, err)
			}
			add(found...)
			continue
		}

		dir := strings.TrimRight(spec, "/")
		if dir == "" {
			dir = "/"
		}
		isDir, err := fsys.IsDir(dir)
		if err != nil {
			return nil, project.FSError(path.Join(filepath.ToSlash(root), dir), err)
		}
		switch {
		case isDir:
			found, err := fsys.List(dir, exts)
			if err != nil {
				return nil, project.FSError(path.Join(filepath.ToSlash(root), dir), err)
			}
			add(found...)
		case hasExt(spec, exts):
			add(path.Clean(spec))
		}
	}
	return files, nil
}

// parentToken replaces ".." segments and a leading "/" in object paths
const parentToken = "__"

// objectName maps a source path to the path of its object relative to a build directory.
// Segments that would climb out of the build directory are replaced with parentToken.
func objectName(src string) string {
	segments := strings.Split(src, "/")
	for i, seg := range segments {
		if seg == ".." || (i == 0 && seg == "") {
			segments[i] = parentToken
		}
	}
	return strings.Join(segments, "/") + ".o"
}

// objectPath maps a source, as written in the Makefile, to its object under buildDir
func objectPath(buildDir, src string) string {
	return buildDir + "/" + objectName(src)
}

// hasPatternObject reports whether src is built by the %.o: % pattern rule
func hasPatternObject(src string) bool {
	return objectName(src) == src+".o"
}
