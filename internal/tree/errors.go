package tree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotADirectory = errors.New("not a directory")
)

// PathError records a failed tree operation and the path it was given.
type PathError struct {
	Op   string
	Path []string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("tree: %s /%s: %v", e.Op, strings.Join(e.Path, "/"), e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
