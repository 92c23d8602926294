package resourcefs

import (
	"bytes"
	"io"
)

// ResourceFile is a readable byte stream opened from a mount point. It is
// not shared across threads: each call to ResourceFilesystem.Open returns a
// fresh stream, even if two callers request the same filename at the same
// time.
type ResourceFile interface {
	io.ReadSeeker
	io.Closer

	// Length returns the total size of the file in bytes.
	Length() int64

	// ReadAllText reads the entire file and returns it as a UTF-8 string
	// with no trailing NUL.
	ReadAllText() (string, error)
}

// directoryFile adapts an afero.File to ResourceFile.
type directoryFile struct {
	io.ReadSeeker
	io.Closer
	length int64
}

func (f *directoryFile) Length() int64 {
	return f.length
}

func (f *directoryFile) ReadAllText() (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	b, err := io.ReadAll(f.ReadSeeker)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// archiveFile serves already-decompressed bytes held entirely in memory;
// archive-backed files must behave identically to directory-backed ones
// from the caller's perspective (spec.md §6), so it implements the same
// interface over a bytes.Reader instead of re-reading the archive.
type archiveFile struct {
	*bytes.Reader
}

func newArchiveFile(content []byte) *archiveFile {
	return &archiveFile{Reader: bytes.NewReader(content)}
}

func (f *archiveFile) Close() error {
	return nil
}

func (f *archiveFile) Length() int64 {
	return f.Reader.Size()
}

func (f *archiveFile) ReadAllText() (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	b, err := io.ReadAll(f.Reader)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
