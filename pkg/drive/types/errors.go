package types

import (
	"errors"
	"fmt"
)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// Error taxonomy shared by the store, the guard and every backend.
// Callers classify failures with errors.Is.
var (
	// ErrNotFound means the target is absent from the cache or the server.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the credential is missing or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation groups requests rejected before reaching a backend.
	ErrValidation = errors.New("validation rejected")
)

// Validation failures. Each one wraps ErrValidation.
var (
	ErrEmptyName      = fmt.Errorf("%w: name must not be empty", ErrValidation)
	ErrSelfMove       = fmt.Errorf("%w: cannot move a folder into itself", ErrValidation)
	ErrDescendantMove = fmt.Errorf("%w: cannot move a folder into its own subfolder", ErrValidation)
	ErrNotAFolder     = fmt.Errorf("%w: destination is not a folder", ErrValidation)
	ErrKindChanged    = fmt.Errorf("%w: node kind cannot change", ErrValidation)
)
