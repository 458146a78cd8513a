package builder

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/qobs-build/mike/internal/builder/gen"
	"github.com/qobs-build/mike/internal/msg"
	"github.com/qobs-build/mike/internal/project"
)

type Builder struct {
	basedir string
	tree    *project.Tree
}

// NewBuilderInDirectory loads the project tree rooted at path
func NewBuilderInDirectory(path string) (*Builder, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	tree, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	return &Builder{basedir: path, tree: tree}, nil
}

func (b *Builder) Basedir() string { return b.basedir }

func (b *Builder) Tree() *project.Tree { return b.tree }

// Generate renders the Makefiles of the tree without touching the disk
func (b *Builder) Generate(layout gen.Layout) ([]gen.File, error) {
	return gen.New(layout).Generate(b.tree)
}

// Write renders and writes the Makefiles, returning what was written
func (b *Builder) Write(layout gen.Layout) ([]gen.File, error) {
	files, err := b.Generate(layout)
	if err != nil {
		return nil, err
	}
	if err := gen.WriteFiles(files); err != nil {
		return nil, err
	}
	return files, nil
}

// Print writes the rendered Makefiles to w, each one indented under its path
func (b *Builder) Print(w io.Writer, layout gen.Layout) error {
	files, err := b.Generate(layout)
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, err := fmt.Fprintf(w, "%s:\n", b.Rel(f.Path)); err != nil {
			return err
		}
		iw := &msg.IndentWriter{Indent: "    ", W: w}
		if _, err := io.WriteString(iw, f.Content); err != nil {
			return err
		}
	}
	return nil
}

// Rel returns path relative to the builder's directory when possible
func (b *Builder) Rel(path string) string {
	rel, err := filepath.Rel(b.basedir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
