package resourcefs

import esync "github.com/godlikepanos/respipe/sync"

// ResourceFilesystem resolves filenames to readable byte streams across an
// ordered set of mount points. Mounts are appended before Freeze; after
// Freeze the mount list is immutable and Open/Walk become available,
// matching spec.md §3's "Filesystem mounts created at setup, never mutated
// after startup."
//
// mu needs to be RLocked to safely read the mount list (Open, Walk); mu
// needs to be Locked while the list itself is being appended to or frozen.
type ResourceFilesystem struct {
	mu     esync.TryRWMutex
	mounts []*mount
	frozen bool
}

// New returns an empty, unfrozen ResourceFilesystem.
func New() *ResourceFilesystem {
	return &ResourceFilesystem{}
}

// Mount appends a mount point at path. Whether it is a Directory or an
// Archive mount is inferred from the path's extension: a case-insensitive
// ".ankizip" suffix means Archive, anything else means Directory. Mounts
// are searched in the order they were added; earlier mounts shadow later
// ones. Mount returns ErrFrozen once Freeze has been called.
func (rfs *ResourceFilesystem) Mount(path string) error {
	rfs.mu.Lock()
	defer rfs.mu.Unlock()
	if rfs.frozen {
		return ErrFrozen
	}
	m, err := newMount(path)
	if err != nil {
		return err
	}
	rfs.mounts = append(rfs.mounts, m)
	return nil
}

// mountTest is used by tests to mount an in-memory directory without
// touching the real filesystem.
func (rfs *ResourceFilesystem) mountTest(m *mount) error {
	rfs.mu.Lock()
	defer rfs.mu.Unlock()
	if rfs.frozen {
		return ErrFrozen
	}
	rfs.mounts = append(rfs.mounts, m)
	return nil
}

// Freeze builds each mount's existence filter and makes the mount list
// immutable. Open and Walk return ErrNotFrozen before Freeze is called.
func (rfs *ResourceFilesystem) Freeze() error {
	rfs.mu.Lock()
	defer rfs.mu.Unlock()
	if rfs.frozen {
		return nil
	}
	for _, m := range rfs.mounts {
		if err := m.freeze(); err != nil {
			return err
		}
	}
	rfs.frozen = true
	return nil
}

// Open resolves filename against the mount list in order and returns the
// first hit. It returns ErrNotFound if no mount supplies filename, and
// ErrPathEscape if filename canonicalises outside any possible mount root.
func (rfs *ResourceFilesystem) Open(filename string) (ResourceFile, error) {
	rfs.mu.RLock()
	frozen := rfs.frozen
	mounts := rfs.mounts
	rfs.mu.RUnlock()
	if !frozen {
		return nil, ErrNotFrozen
	}

	clean, err := canonicalize(filename)
	if err != nil {
		return nil, err
	}

	for _, m := range mounts {
		f, err := m.open(clean)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, ErrNotFound
}

// Walk visits every file reachable through a directory mount whose path
// starts with prefix, in mount order. Archive mounts are not walked.
func (rfs *ResourceFilesystem) Walk(prefix string, visit func(path string) error) error {
	rfs.mu.RLock()
	frozen := rfs.frozen
	mounts := rfs.mounts
	rfs.mu.RUnlock()
	if !frozen {
		return ErrNotFrozen
	}
	for _, m := range mounts {
		if err := m.walk(prefix, visit); err != nil {
			return &IoError{Cause: err}
		}
	}
	return nil
}
