package builder

import (
	"os"
	"os/exec"
	"path/filepath"
)

var commonCxxCompilers = []string{"g++", "clang++", "c++", "icpx", "icpc"}

// FindCompiler returns the C++ compiler named by $CXX, or the first common one found on PATH.
// The result is a command name rather than a path so that generated Makefiles stay portable.
// It returns "" when nothing is found.
func FindCompiler() string {
	if cxx := os.Getenv("CXX"); cxx != "" {
		return cxx
	}

	for _, compiler := range commonCxxCompilers {
		if path, err := exec.LookPath(compiler); err == nil {
			return filepath.Base(path)
		}
	}
	return ""
}
