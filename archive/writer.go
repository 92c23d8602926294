package archive

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/godlikepanos/respipe/crypto"
	"github.com/godlikepanos/respipe/encoding"
)

// pendingEntry is a file staged for writing before offsets are known.
type pendingEntry struct {
	path    string
	codec   CodecID
	raw     []byte
	encoded []byte
}

// Writer builds an .ankizip container. Add every entry, then call WriteTo
// once to emit the prelude, entry table, and payloads.
type Writer struct {
	pending []pendingEntry
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Add stages path with the given codec and uncompressed content. Add does
// not compress or write anything until WriteTo is called.
func (w *Writer) Add(path string, codec CodecID, content []byte) error {
	encoded, err := encodePayload(codec, content)
	if err != nil {
		return err
	}
	w.pending = append(w.pending, pendingEntry{
		path:    path,
		codec:   codec,
		raw:     content,
		encoded: encoded,
	})
	return nil
}

// WriteTo emits the complete archive to dst and returns the number of bytes
// written.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	entries := make([]Entry, len(w.pending))
	offsets := make([]uint64, len(w.pending))
	runningOffset := uint64(0)
	for i, p := range w.pending {
		entries[i] = Entry{
			Path:             p.path,
			UncompressedSize: uint64(len(p.raw)),
			CompressedSize:   uint64(len(p.encoded)),
			Codec:            p.codec,
		}
		offsets[i] = runningOffset
		runningOffset += uint64(len(p.encoded))
	}

	tableBytes := encoding.Marshal(entries)

	// Patch in the real DataOffset fields now that the table length (and
	// therefore the payload base offset) is known. encoding.Marshal lays a
	// []Entry out as an 8 byte slice-length prefix followed by, per entry,
	// an 8 byte path-length prefix, the path bytes, and three 8 byte
	// fields (UncompressedSize, CompressedSize, Codec) ahead of the
	// DataOffset field being patched here.
	payloadBase := uint64(12 + len(tableBytes) + crypto.HashSize)
	cursor := 8 // past the slice length prefix
	for i, p := range w.pending {
		cursor += 8 + len(p.path) + 8 + 8 + 8
		binary.LittleEndian.PutUint64(tableBytes[cursor:cursor+8], payloadBase+offsets[i])
		cursor += 8
	}

	checksum := crypto.HashBytes(tableBytes)

	var out bytes.Buffer
	out.Write(magic[:])
	binary.Write(&out, binary.LittleEndian, formatVersion)
	binary.Write(&out, binary.LittleEndian, uint32(len(tableBytes)))
	out.Write(tableBytes)
	out.Write(checksum[:])
	for _, p := range w.pending {
		out.Write(p.encoded)
	}

	return out.WriteTo(dst)
}
