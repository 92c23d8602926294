package persist

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// Metadata identifies the kind and version of a persisted JSON document. It
// is written verbatim at the top of every saved file and checked on load, so
// that loading a mount manifest with the wrong struct shape fails loudly
// instead of silently decoding garbage into the wrong fields.
type Metadata struct {
	Header  string
	Version string
}

// ErrBadFilenameSuffix is returned by LoadJSON when asked to open a path that
// carries the temporary-file suffix; such a path was never meant to be read
// directly, it is an artifact of an in-progress or interrupted SaveJSON.
var ErrBadFilenameSuffix = errors.New("persist: cannot load a file with the temporary suffix")

// ErrBadMetadata is returned by LoadJSON when the on-disk Metadata does not
// match what the caller expects.
var ErrBadMetadata = errors.New("persist: metadata header/version does not match expected value")

type jsonDocument struct {
	Metadata
	Data json.RawMessage
}

// SaveJSON writes object to filename as a Metadata-tagged JSON document. The
// write is atomic: either filename ends up holding the new contents in full,
// or it is left untouched.
func SaveJSON(meta Metadata, object interface{}, filename string) error {
	data, err := json.MarshalIndent(object, "", "\t")
	if err != nil {
		return err
	}
	doc := jsonDocument{Metadata: meta, Data: data}
	docBytes, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return err
	}

	sf, err := NewSafeFile(filename)
	if err != nil {
		return err
	}
	defer sf.Close()

	if _, err := sf.Write(docBytes); err != nil {
		return err
	}
	return sf.Commit()
}

// LoadJSON reads a Metadata-tagged JSON document from filename into object,
// failing if the stored Metadata does not match meta.
func LoadJSON(meta Metadata, object interface{}, filename string) error {
	if strings.HasSuffix(filename, tempSuffix) {
		return ErrBadFilenameSuffix
	}
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	var doc jsonDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return err
	}
	if doc.Header != meta.Header || doc.Version != meta.Version {
		return ErrBadMetadata
	}
	return json.Unmarshal(doc.Data, object)
}
