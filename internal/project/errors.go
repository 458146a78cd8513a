package project

import (
	"errors"
	"strings"
)

var (
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigParse    = errors.New("config parse error")
	ErrConfigCycle    = errors.New("config cycle")
	ErrFileSystem     = errors.New("file system error")
)

// Error carries one of the Err* kinds together with the path it concerns.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Path != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Path)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FSError wraps err as an ErrFileSystem for path
func FSError(path string, err error) error {
	return &Error{Kind: ErrFileSystem, Path: path, Err: err}
}

func cycleError(path []string) error {
	return &Error{Kind: ErrConfigCycle, Err: errors.New(strings.Join(path, " -> "))}
}
