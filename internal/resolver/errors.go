package resolver

import (
	"fmt"
	"strings"
)

// FileError represents a file access failure during include resolution.
type FileError struct {
	Operation  string
	Path       string
	Underlying error
}

// NewFileError creates a new file error with context.
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Operation:  op,
		Path:       path,
		Underlying: err,
	}
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("include %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// NotFoundError reports an include name that matched no file in any search
// directory.
type NotFoundError struct {
	Filename string
	Searched []string
}

// NewNotFoundError creates a new not-found error listing the directories
// that were tried.
func NewNotFoundError(filename string, searched []string) *NotFoundError {
	return &NotFoundError{Filename: filename, Searched: searched}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("include file %q not found", e.Filename)
	}
	return fmt.Sprintf("include file %q not found (searched: %s)",
		e.Filename, strings.Join(e.Searched, ", "))
}
