package persist

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
)

// RandomSuffix returns a random hex string that can be used to construct a
// collision-resistant temporary filename.
func RandomSuffix() string {
	var b [16]byte
	_, err := rand.Read(b[:])
	if err != nil {
		// There is no fallback source: a failing crypto/rand panics.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// SafeFile wraps an *os.File that is written under a temporary name and only
// appears at its final path once Commit succeeds. This gives every persisted
// document (such as the resource manager's settings) crash-safe,
// all-or-nothing semantics: a process killed mid-write leaves the old file
// (or nothing) at finalPath, never a half-written one.
type SafeFile struct {
	*os.File
	finalPath string
}

// NewSafeFile creates a new SafeFile which will be saved to finalPath upon
// calling Commit. finalPath is resolved to an absolute path immediately, so
// that a later os.Chdir between creation and Commit cannot change where the
// file ends up.
func NewSafeFile(finalPath string) (*SafeFile, error) {
	absFinalPath, err := filepath.Abs(finalPath)
	if err != nil {
		return nil, err
	}
	tempPath := absFinalPath + tempSuffix + "_" + RandomSuffix()
	f, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	return &SafeFile{File: f, finalPath: absFinalPath}, nil
}

// Commit syncs and closes the temporary file, then atomically renames it to
// its final path.
func (sf *SafeFile) Commit() error {
	if err := sf.Sync(); err != nil {
		return err
	}
	if err := sf.Close(); err != nil {
		return err
	}
	return os.Rename(sf.Name(), sf.finalPath)
}

// CommitSync is an alias for Commit kept for callers that want to make the
// durability guarantee explicit at the call site.
func (sf *SafeFile) CommitSync() error {
	return sf.Commit()
}
