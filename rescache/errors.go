package rescache

import "errors"

// errBodyDecodeFailed is used by this package's own tests to exercise the
// Decoding -> Failed transition without depending on a real decode error
// from a concrete asset kind.
var errBodyDecodeFailed = errors.New("rescache: body decode failed")

// DecodeFailed is the error kind a Decoder returns from DecodeHeader or
// DecodeBody when the payload itself is malformed (bad header, truncated
// body, unsupported version), as opposed to a filesystem or backend
// failure. It is spec.md §7's DecodeFailed{reason}.
type DecodeFailed struct {
	Reason string
}

func (e *DecodeFailed) Error() string {
	return "rescache: decode failed: " + e.Reason
}

// BackendRejected is the error kind a Decoder returns when a well-formed
// payload could not be submitted to its GPU/physics backend (out of VRAM,
// unsupported format on this device). It is spec.md §7's
// BackendRejected{reason}.
type BackendRejected struct {
	Reason string
}

func (e *BackendRejected) Error() string {
	return "rescache: backend rejected asset: " + e.Reason
}
