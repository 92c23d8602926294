package archive

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/godlikepanos/respipe/build"
)

func decodePayload(codec CodecID, compressed []byte, uncompressedSize uint64) ([]byte, error) {
	switch codec {
	case CodecStore:
		return compressed, nil
	case CodecFlate:
		r := flate.NewReader(bytes.NewReader(compressed))
		defer r.Close()
		out := make([]byte, 0, uncompressedSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, r); err != nil {
			return nil, build.ExtendErr("archive: flate payload", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnknownCodec
	}
}

func encodePayload(codec CodecID, raw []byte) ([]byte, error) {
	switch codec {
	case CodecStore:
		return raw, nil
	case CodecFlate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnknownCodec
	}
}
