package resourcemanager

import "errors"

// ErrUnknownKind is returned by Load when the given kind string was never
// passed to RegisterKind.
var ErrUnknownKind = errors.New("resourcemanager: unregistered asset kind")
