// Package persist provides small, dependable building blocks for writing
// configuration, manifests, and logs to disk: atomic file commits, versioned
// JSON documents, and a line-oriented logger. Every subsystem in the resource
// pipeline that needs to remember something across a process restart (the
// resource manager's settings, loader diagnostics) goes through this package instead of touching os.Create directly.
package persist

const (
	// persistDir is the name of the folder that is used for testing the
	// persist package.
	persistDir = "persist"

	// tempSuffix is the suffix applied to the temporary file used during a
	// safe, atomic file write.
	tempSuffix = "_temp"
)
