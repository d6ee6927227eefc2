package dex

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors used for simple equality-style checks.
var (
	ErrInvalid     = os.ErrInvalid         // invalid argument
	ErrNotExist    = os.ErrNotExist        // no data at the requested address
	ErrUnsupported = errors.ErrUnsupported // write attempted on a read-only index

	// ErrInvalidState signals that the index cannot serve the request in its
	// current state: a corrupted slot, a shrink while entries exist, or an
	// empty file opened read-only.
	ErrInvalidState = errors.New("invalid index state")

	// ErrClosed is returned by every operation on an index after Close.
	ErrClosed = fmt.Errorf("index closed: %w", ErrInvalidState)
)

// CorruptSlotError reports a slot whose bytes do not follow the record
// layout, for example a path without its trailing delimiter.
type CorruptSlotError struct {
	Index  string
	Entry  int64
	Reason string
}

func (e *CorruptSlotError) Error() string {
	return fmt.Sprintf("%s: corrupt slot %d: %s", e.Index, e.Entry, e.Reason)
}

func (e *CorruptSlotError) Is(target error) bool { return target == ErrInvalidState }

func (e *CorruptSlotError) Unwrap() error { return ErrInvalidState }

// ShrinkError is returned when a resize would reduce a width or count
// parameter of an index that still holds entries.
type ShrinkError struct {
	Index string
	Field string
	From  int64
	To    int64
}

func (e *ShrinkError) Error() string {
	return fmt.Sprintf("%s: cannot change %s from %d to %d while the index holds entries",
		e.Index, e.Field, e.From, e.To)
}

func (e *ShrinkError) Is(target error) bool { return target == ErrInvalidState }

func (e *ShrinkError) Unwrap() error { return ErrInvalidState }

// IdentifierLengthError is returned when an identifier does not match the
// fixed identifier width of an index.
type IdentifierLengthError struct {
	Want int
	Got  int
}

func (e *IdentifierLengthError) Error() string {
	return fmt.Sprintf("%d byte identifier required, got %d bytes", e.Want, e.Got)
}

func (e *IdentifierLengthError) Is(target error) bool { return target == ErrInvalid }

func (e *IdentifierLengthError) Unwrap() error { return ErrInvalid }

// NoDataError is returned when an address holds no record.
type NoDataError struct {
	Index string
	Entry int64
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("%s: no data at address %d", e.Index, e.Entry)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNotExist }

func (e *NoDataError) Unwrap() error { return ErrNotExist }

func readOnlyError(index string) error {
	return fmt.Errorf("%s is read only: %w (%w)", index, ErrUnsupported, ErrInvalidState)
}

// IsNotFound reports whether err is (or wraps) a missing-data condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsInvalid reports whether err is (or wraps) an invalid-argument condition.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsInvalidState reports whether err is (or wraps) an invalid-state
// condition, including corruption and refused shrinks.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUnsupported reports whether err signals a write against a read-only index.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsCorrupt reports whether err carries a CorruptSlotError.
func IsCorrupt(err error) bool {
	var ce *CorruptSlotError
	return errors.As(err, &ce)
}
