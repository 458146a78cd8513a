package builder

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/mike/internal/builder/gen"
	"github.com/qobs-build/mike/internal/project"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stale is a Makefile whose content on disk differs from what would be generated
type Stale struct {
	Path string
	Diff string
}

// Check compares every Makefile on disk with a fresh rendering. Nothing is written.
func (b *Builder) Check(layout gen.Layout) ([]Stale, error) {
	files, err := b.Generate(layout)
	if err != nil {
		return nil, err
	}

	var stale []Stale
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, project.FSError(f.Path, err)
		}
		if string(data) == f.Content {
			continue
		}
		stale = append(stale, Stale{Path: f.Path, Diff: lineDiff(string(data), f.Content)})
	}
	return stale, nil
}

var (
	removedLine = color.New(color.FgRed).SprintFunc()
	addedLine   = color.New(color.FgGreen).SprintFunc()
)

// lineDiff renders the lines changed between before and after, prefixed with - and +
func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		var paint func(...any) string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix, paint = "-", removedLine
		case diffmatchpatch.DiffInsert:
			prefix, paint = "+", addedLine
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(paint(prefix + strings.TrimSuffix(line, "\n")))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
