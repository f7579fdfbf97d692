package shm

import (
	"errors"
	"fmt"
)

var (
	ErrSegmentCreate = errors.New("segment create failed")
	ErrSegmentSize   = errors.New("segment sizing failed")
	ErrSegmentMap    = errors.New("segment map failed")
	ErrAttach        = errors.New("segment attach failed")
	ErrInvalidMagic  = errors.New("invalid segment magic")
	ErrNotAttached   = errors.New("segment not attached")
	ErrReadOnly      = errors.New("segment attached read-only")

	// ErrSegmentNotFound is the attach failure seen when the owner has not
	// created the segment yet. It matches ErrAttach as well.
	ErrSegmentNotFound = fmt.Errorf("%w: segment does not exist, owner not yet started", ErrAttach)
)

// Error describes a failed lifecycle operation on a named segment.
type Error struct {
	Op   string // "create", "size", "map", "attach", "validate", "write"
	Name string
	Kind error // one of the sentinel errors above
	Err  error // underlying OS error, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("shm %s %s: %v", e.Op, e.Name, e.Kind)
	}
	return fmt.Sprintf("shm %s %s: %v: %v", e.Op, e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, name string, kind, err error) *Error {
	return &Error{Op: op, Name: name, Kind: kind, Err: err}
}
