package resourcefs

import (
	"errors"

	"github.com/godlikepanos/respipe/build"
)

var (
	// ErrNotFound is returned by Open when no mount point supplies the
	// requested filename.
	ErrNotFound = errors.New("resourcefs: file not found in any mount point")
	// ErrPathEscape is returned when a filename canonicalises to a path
	// that would leave its mount root (e.g. via a leading "..").
	ErrPathEscape = errors.New("resourcefs: path escapes its mount root")
	// ErrCorruptArchive is returned when an archive mount's index cannot be
	// parsed.
	ErrCorruptArchive = errors.New("resourcefs: corrupt archive mount")
	// ErrFrozen is returned by Mount once Freeze has been called.
	ErrFrozen = errors.New("resourcefs: cannot mount after Freeze")
	// ErrNotFrozen is returned by Open and Walk before Freeze has been
	// called.
	ErrNotFrozen = errors.New("resourcefs: filesystem has not been frozen yet")
)

// IoError wraps an underlying I/O failure encountered while servicing an
// Open or Walk call.
type IoError struct {
	Cause error
}

func (e *IoError) Error() string {
	return build.ExtendErr("resourcefs: io error", e.Cause).Error()
}

func (e *IoError) Unwrap() error {
	return e.Cause
}
