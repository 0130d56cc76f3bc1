package postcache

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateShortTitle = errors.New("duplicate short title")
	ErrInvalidPost         = errors.New("invalid post")
	ErrInvalidFrontmatter  = errors.New("invalid frontmatter")
	ErrMissingPostContent  = errors.New("missing post content")
)

// StorageError reports a failure of the durable store behind the cache.
type StorageError struct {
	Op  string // Op is the data access operation that failed, e.g. "load posts"
	Err error
}

// NewStorageError wraps err as a StorageError for op. A nil err returns nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
