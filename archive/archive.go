// Package archive implements the .ankizip container format: a prelude with
// magic and version, a table of entries recording interior path, sizes,
// codec id and data offset, followed by the compressed payloads
// themselves. The index is fully parseable without touching any payload
// bytes, which is what lets ResourceFilesystem mount an archive cheaply at
// startup and defer decompression to the first Open of each entry.
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/godlikepanos/respipe/build"
	"github.com/godlikepanos/respipe/crypto"
	"github.com/godlikepanos/respipe/encoding"
)

// CodecID identifies how an entry's payload bytes are compressed.
type CodecID uint8

const (
	// CodecStore stores the payload uncompressed (identity codec).
	CodecStore CodecID = 0
	// CodecFlate compresses the payload with DEFLATE.
	CodecFlate CodecID = 1
)

var magic = [4]byte{'A', 'K', 'Z', 'P'}

const formatVersion uint32 = 1

var (
	// ErrCorruptArchive is returned as-is when the prelude magic does not
	// match; a version mismatch or entry table checksum failure returns an
	// error whose message extends this one. An entry table that fails to
	// decode returns the decoder's error instead.
	ErrCorruptArchive = errors.New("archive: corrupt or unrecognised ankizip container")
	// ErrEntryNotFound is returned by Open when the requested interior path
	// is not present in the index.
	ErrEntryNotFound = errors.New("archive: entry not found")
	// ErrUnknownCodec is returned when an entry names a codec id this
	// package does not implement.
	ErrUnknownCodec = errors.New("archive: unknown codec id")
)

// Entry describes one interior file stored in an archive.
type Entry struct {
	Path             string
	UncompressedSize uint64
	CompressedSize   uint64
	Codec            CodecID
	DataOffset       uint64
}

// Archive is a parsed, in-memory index over an .ankizip container. Opening
// an entry does not decompress it; Entry payloads are read and decompressed
// lazily by (*Archive).Open.
type Archive struct {
	entries map[string]Entry
	r       io.ReaderAt
}

// Open parses the prelude and entry table from r and returns an Archive
// ready to serve Open calls. r must support random access; the payload
// bytes themselves are read lazily.
func Open(r io.ReaderAt, size int64) (*Archive, error) {
	header := make([]byte, 12)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, build.ExtendErr("archive: reading prelude", err)
	}
	if [4]byte{header[0], header[1], header[2], header[3]} != magic {
		return nil, ErrCorruptArchive
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != formatVersion {
		return nil, build.ExtendErr(fmt.Sprintf("archive: unsupported version %d", version), ErrCorruptArchive)
	}
	tableLen := binary.LittleEndian.Uint32(header[8:12])

	tableWithChecksum := make([]byte, int(tableLen)+crypto.HashSize)
	if _, err := r.ReadAt(tableWithChecksum, 12); err != nil {
		return nil, build.ExtendErr("archive: reading entry table", err)
	}
	table := tableWithChecksum[:tableLen]
	wantChecksum := tableWithChecksum[tableLen:]
	gotChecksum := crypto.HashBytes(table)
	if !bytes.Equal(wantChecksum, gotChecksum[:]) {
		return nil, build.ExtendErr("archive: entry table checksum mismatch", ErrCorruptArchive)
	}

	entries, err := decodeEntryTable(table)
	if err != nil {
		return nil, build.ExtendErr("archive: decoding entry table", err)
	}

	return &Archive{entries: entries, r: r}, nil
}

// decodeEntryTable turns a table built by (*Writer).WriteTo back into a
// lookup map, keyed by interior path. The table is a plain encoding.Marshal
// of a []Entry, so decoding is one call rather than a hand-rolled field
// walk.
func decodeEntryTable(table []byte) (map[string]Entry, error) {
	var entries []Entry
	if err := encoding.Unmarshal(table, &entries); err != nil {
		return nil, err
	}
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.Path] = e
	}
	return out, nil
}

// Paths returns the interior paths in this archive, in no particular order.
func (a *Archive) Paths() []string {
	paths := make([]string, 0, len(a.entries))
	for p := range a.entries {
		paths = append(paths, p)
	}
	return paths
}

// Stat returns the Entry for path, or ErrEntryNotFound.
func (a *Archive) Stat(path string) (Entry, error) {
	e, ok := a.entries[path]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

// Open decompresses and returns the full contents of path.
func (a *Archive) Open(path string) ([]byte, error) {
	e, ok := a.entries[path]
	if !ok {
		return nil, ErrEntryNotFound
	}
	compressed := make([]byte, e.CompressedSize)
	if _, err := a.r.ReadAt(compressed, int64(e.DataOffset)); err != nil {
		return nil, build.ExtendErr(fmt.Sprintf("archive: reading payload for %q", path), err)
	}
	return decodePayload(e.Codec, compressed, e.UncompressedSize)
}
