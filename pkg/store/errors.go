package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist in the
	// addressed partition. Surfaced to callers without retry.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when adding a document whose id already
	// exists in the partition.
	ErrConflict = errors.New("document already exists")
)

// TransportError wraps transient backend failures. Operations that hit a
// TransportError are retried with exponential backoff before surfacing.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
