package variantfile

import (
	"errors"
	"fmt"
)

// ErrIO marks failures to open, read or decode a source file.
var ErrIO = errors.New("variant file unreadable")

// IOError reports that a source file could not be opened, read or decoded.
// It is distinct from row-level validation errors.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrIO and the underlying cause.
func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}
