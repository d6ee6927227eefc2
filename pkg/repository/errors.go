package repository

import (
	"errors"
	"fmt"

	"github.com/jlrickert/repodex/pkg/dex"
)

var (
	// ErrConflict is returned when an add would duplicate an identifier or
	// path that already holds the requested version.
	ErrConflict = errors.New("resource conflict")

	ErrNotExist     = dex.ErrNotExist
	ErrInvalid      = dex.ErrInvalid
	ErrInvalidState = dex.ErrInvalidState

	// ErrCorruptJournal is returned by Open when a pending intent fails its
	// checksum.
	ErrCorruptJournal = fmt.Errorf("corrupt journal: %w", dex.ErrInvalidState)
)

// ConflictError names the key that already exists.
type ConflictError struct {
	Field string // "id" or "path"
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %s %q already exists", e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a uri that resolves to no indexed resource.
type NotFoundError struct {
	URI URI
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.URI)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotExist }

func (e *NotFoundError) Unwrap() error { return ErrNotExist }

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err is (or wraps) ErrNotExist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsInvalid reports whether err is (or wraps) an invalid-argument error.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsInvalidState reports whether err is (or wraps) ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
