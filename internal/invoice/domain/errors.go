package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
	ErrDeleteDisabled = errors.New("delete_disabled")
)

// FieldErrors maps a form field to its human-readable messages.
type FieldErrors map[string][]string

// StoreError wraps a persistence failure. Callers only ever see the
// generic message; the driver error is kept for logs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("invoice store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
