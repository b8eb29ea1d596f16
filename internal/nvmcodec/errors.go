package nvmcodec

import (
	"errors"
	"fmt"

	"github.com/dsoprea/go-logging"
)

// Geometry and overflow failures are fatal at entry: the codec never
// attempts to operate on them. Everything else a malformed flash image can
// throw at the reader is downgraded to a dropped sector or record instead
// (spec §7).

// ErrInvalidGeometry indicates a device/partition geometry that violates
// the codec's sector-alignment or containment invariants.
var ErrInvalidGeometry = errors.New("nvmcodec: invalid geometry")

// ErrSectorOverflow indicates the writer could not fit the next record
// without violating the ate_offset >= data_offset invariant.
var ErrSectorOverflow = errors.New("nvmcodec: sector overflow")

// stackError pairs a sentinel-wrapping cause (so errors.Is still reaches
// ErrInvalidGeometry/ErrSectorOverflow) with go-logging's call-stack
// annotation of the same error, matching the teacher's log.Wrap idiom
// without losing standard-library error-chain comparability.
type stackError struct {
	cause   error
	wrapped error
}

func (e *stackError) Error() string { return e.wrapped.Error() }
func (e *stackError) Unwrap() error { return e.cause }

func newStackError(sentinel error, format string, args ...interface{}) error {
	cause := fmt.Errorf("%w: "+format, append([]interface{}{sentinel}, args...)...)
	return &stackError{cause: cause, wrapped: log.Wrap(cause)}
}

// NewGeometryError builds an ErrInvalidGeometry wrapping a call-site detail,
// stack-annotated via log.Wrap so callers across package boundaries (e.g.
// internal/device) raise it the same way the codec itself does.
func NewGeometryError(format string, args ...interface{}) error {
	return newStackError(ErrInvalidGeometry, format, args...)
}

func newOverflowError(format string, args ...interface{}) error {
	return newStackError(ErrSectorOverflow, format, args...)
}
