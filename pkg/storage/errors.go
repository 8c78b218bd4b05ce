package storage

import (
	"errors"
	"fmt"
)

var (
	ErrLowMemory      = errors.New("not enough free memory")
	ErrNotFound       = errors.New("not found")
	ErrExecutorClosed = errors.New("executor closed")
	ErrSameCollection = errors.New("entry already in collection")
)

// ImportError wraps any failure of an import. Nothing is stored when
// the failure happens before the copy.
type ImportError struct {
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// StorageError is a filesystem failure during a store operation.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}
