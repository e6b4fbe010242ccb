package chat

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller mistakes: empty or over-long messages,
// references to sessions that must already exist. Match with errors.Is.
var ErrValidation = errors.New("validation failed")

// GenerationError means the generation collaborator failed. No turn was
// persisted, so the caller may retry safely.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StoreError means a storage adapter failed mid-request. Fatal to the
// current request; surfaced as an internal error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
