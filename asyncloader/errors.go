package asyncloader

import "errors"

var (
	// ErrStopped is returned by Submit once Stop has been called.
	ErrStopped = errors.New("asyncloader: loader has been stopped")
	// ErrAlreadyStopped is returned by Stop if it has already been called.
	ErrAlreadyStopped = errors.New("asyncloader: loader was already stopped")
)
