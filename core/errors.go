package core

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an unknown memory or association id. Hot paths
// return it (or an empty result) rather than failing the operation.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BackingStoreError wraps a durable read or write failure. Cache
// writes degrade to fast-tier-only on this error; durable reads on the
// critical path propagate it.
type BackingStoreError struct {
	Op  string
	Err error
}

func (e *BackingStoreError) Error() string {
	return fmt.Sprintf("backing store %s: %v", e.Op, e.Err)
}

func (e *BackingStoreError) Unwrap() error { return e.Err }

// ExternalServiceError wraps an embedder or summarizer failure after
// retries are exhausted.
type ExternalServiceError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
