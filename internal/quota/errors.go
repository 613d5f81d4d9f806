package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentity is returned when a user id sanitizes to nothing.
	ErrInvalidIdentity = errors.New("invalid user id")

	// ErrUnsupportedCategory is returned for a category outside the three
	// tracked exercise types.
	ErrUnsupportedCategory = errors.New("unsupported usage category")
)

// ExceededError reports an increment that would push a category over its
// cap. Used is the counter value before the rejected increment; the record
// is left untouched.
type ExceededError struct {
	Category Category `json:"type"`
	Limit    Limit    `json:"limit"`
	Used     int      `json:"used"`
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d used", e.Category, e.Used, int64(e.Limit))
}

// StorageError wraps a durable-backend failure that is not recoverable by
// failing over (network errors, throttling, server-side 5xx).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
