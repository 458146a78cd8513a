package gen

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/qobs-build/mike/internal/project"
	"golang.org/x/sync/errgroup"
)

// WriteFiles writes every file in parallel. An existing file at a target path is removed
// first, and no partially written file is left behind on failure.
func WriteFiles(files []File) error {
	if len(files) == 0 {
		return nil
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(runtime.NumCPU())

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		eg.Go(func() error {
			return writeFile(f)
		})
	}

	return eg.Wait()
}

func writeFile(f File) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return project.FSError(f.Path, err)
	}

	tmp := filepath.Join(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, []byte(f.Content), 0o644); err != nil {
		os.Remove(tmp)
		return project.FSError(f.Path, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		os.Remove(tmp)
		return project.FSError(f.Path, err)
	}
	return nil
}
