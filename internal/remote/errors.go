package remote

import (
	"errors"
	"fmt"
)

// ErrUnavailable means the store could not be reached or has been closed.
var ErrUnavailable = errors.New("remote store unavailable")

// WriteError is returned when a store rejects or fails a write.
type WriteError struct {
	Op  string // create, replace, delete, put
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WrapWrite wraps err as a WriteError for op. A nil err stays nil.
func WrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	return &WriteError{Op: op, Err: err}
}

// IsWriteError reports whether err came from a failed remote write.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
