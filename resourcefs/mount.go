package resourcefs

import (
	"io"
	"os"
	"strings"

	"github.com/godlikepanos/respipe/archive"
	esync "github.com/godlikepanos/respipe/sync"

	"github.com/karrick/godirwalk"
	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/spf13/afero"
)

// archiveExt is the suffix (case-insensitive) that marks a mount path as an
// archive rather than a directory.
const archiveExt = ".ankizip"

// archiveConcurrentReads bounds how many payload reads an archive mount
// services at once, the same role esync.Limiter plays for the teacher's
// storage folders: a single oversized read is still admitted once nothing
// else is outstanding, so it is never starved by the limit.
const archiveConcurrentReads = 8

// mountKind tags which variant a mount is.
type mountKind int

const (
	mountDirectory mountKind = iota
	mountArchive
)

// mount is the tagged MountPoint variant from spec.md §3: either a
// Directory{root} or an Archive{path, index}. Each mount keeps a cuckoo
// filter over the interior paths it can serve, built at Freeze time, so
// Open can reject a miss against an entire mount point without touching the
// filesystem or the archive's own index.
//
// mu needs to be RLocked to safely serve an Open/Walk call; mu needs to be
// Locked while the mount's filter is being (re)built in freeze, mirroring
// the teacher's own TryRWMutex usage for a storage folder's metadata.
type mount struct {
	kind mountKind
	root string // directory root, or archive path

	fs       afero.Fs         // directory mounts only
	arc      *archive.Archive // archive mounts only
	osBacked bool             // true when fs is a real OS directory, enabling the godirwalk fast path

	readLimiter *esync.Limiter // archive mounts only: bounds concurrent payload reads

	mu     esync.TryRWMutex
	filter *cuckoo.Filter
}

func newMount(path string) (*mount, error) {
	if strings.HasSuffix(strings.ToLower(path), archiveExt) {
		f, err := afero.NewOsFs().Open(path)
		if err != nil {
			return nil, &IoError{Cause: err}
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, &IoError{Cause: err}
		}
		arc, err := archive.Open(readerAtFromFile(f), info.Size())
		if err != nil {
			return nil, ErrCorruptArchive
		}
		return &mount{
			kind:        mountArchive,
			root:        path,
			arc:         arc,
			readLimiter: esync.NewLimiter(archiveConcurrentReads),
		}, nil
	}
	return &mount{
		kind:     mountDirectory,
		root:     path,
		fs:       afero.NewBasePathFs(afero.NewOsFs(), path),
		osBacked: true,
	}, nil
}

// newMountFS is used by tests to mount a directory backed by an in-memory
// afero.Fs instead of the real OS filesystem.
func newMountFS(root string, fs afero.Fs) *mount {
	return &mount{kind: mountDirectory, root: root, fs: fs}
}

// freeze builds the mount's cuckoo filter over every interior path it can
// serve.
func (m *mount) freeze() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.kind {
	case mountArchive:
		paths := m.arc.Paths()
		m.filter = cuckoo.NewFilter(uint(len(paths) + 1))
		for _, p := range paths {
			m.filter.InsertUnique([]byte(p))
		}
		return nil
	case mountDirectory:
		var paths []string
		if err := m.walkLocked("", func(path string) error {
			paths = append(paths, path)
			return nil
		}); err != nil {
			return &IoError{Cause: err}
		}
		m.filter = cuckoo.NewFilter(uint(len(paths) + 1))
		for _, p := range paths {
			m.filter.InsertUnique([]byte(p))
		}
		return nil
	}
	return nil
}

// mayContain performs the cuckoo-filter fast-path check. A false result is
// certain; a true result still requires the real lookup below. Callers must
// hold at least an RLock.
func (m *mount) mayContain(filename string) bool {
	if m.filter == nil {
		return true
	}
	return m.filter.Lookup([]byte(filename))
}

// open attempts to serve filename from this mount. It returns (nil, nil) on
// a clean miss so that ResourceFilesystem can try the next mount.
func (m *mount) open(filename string) (ResourceFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.mayContain(filename) {
		return nil, nil
	}
	switch m.kind {
	case mountDirectory:
		f, err := m.fs.Open(filename)
		if err != nil {
			if isNotExist(err) {
				return nil, nil
			}
			return nil, &IoError{Cause: err}
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, &IoError{Cause: err}
		}
		return &directoryFile{ReadSeeker: f, Closer: f, length: info.Size()}, nil
	case mountArchive:
		m.readLimiter.Request(1, nil)
		defer m.readLimiter.Release(1)
		content, err := m.arc.Open(filename)
		if err == archive.ErrEntryNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, &IoError{Cause: err}
		}
		return newArchiveFile(content), nil
	}
	return nil, nil
}

// walk visits every file this mount can serve. Archive mounts are skipped,
// per spec.md §4.3 ("directory mounts only"). OS-backed mounts use
// godirwalk for allocation-light traversal; in-memory mounts (used by
// tests) fall back to afero.Walk, which godirwalk cannot traverse.
func (m *mount) walk(prefix string, visit func(path string) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.walkLocked(prefix, visit)
}

// walkLocked is walk's body, callable by freeze while it already holds the
// write lock.
func (m *mount) walkLocked(prefix string, visit func(path string) error) error {
	if m.kind != mountDirectory {
		return nil
	}
	if m.osBacked {
		return godirwalk.Walk(m.root, &godirwalk.Options{
			Callback: func(osPath string, de *godirwalk.Dirent) error {
				if de.IsDir() {
					return nil
				}
				rel := strings.TrimPrefix(strings.TrimPrefix(osPath, m.root), "/")
				if !strings.HasPrefix(rel, prefix) {
					return nil
				}
				return visit(rel)
			},
			Unsorted: true,
		})
	}
	return afero.Walk(m.fs, "", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		clean := strings.TrimPrefix(path, "/")
		if !strings.HasPrefix(clean, prefix) {
			return nil
		}
		return visit(clean)
	})
}

// readerAtFromFile adapts an afero.File (which is itself an io.ReaderAt) to
// the io.ReaderAt archive.Open expects, keeping the file open for the
// lifetime of the returned Archive.
func readerAtFromFile(f afero.File) io.ReaderAt {
	return f
}

func isNotExist(err error) bool {
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "file does not exist")
}
