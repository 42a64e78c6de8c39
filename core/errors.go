package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrDuplicate         = errors.New("duplicate name")
	ErrConflictExhausted = errors.New("update conflict retries exhausted")
	ErrReadFailure       = errors.New("store read failed")
	ErrWriteFailure      = errors.New("store write failed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmbeddingFailure  = errors.New("embedding failed")
)

// OpError attaches the failing operation and an optional key (category id,
// blob path) to an underlying error.
type OpError struct {
	Op      string
	Key     string
	Err     error
	Context map[string]any
}

func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s [key=%s]: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewOpError(op, key string, err error) *OpError {
	return &OpError{Op: op, Key: key, Err: err}
}

func WithContext(err *OpError, key string, val any) *OpError {
	if err.Context == nil {
		err.Context = make(map[string]any)
	}
	err.Context[key] = val
	return err
}

// Validationf returns an error matching ErrValidation with a caller message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
