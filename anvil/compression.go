package anvil

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

var ErrUnsupportedCompression = errors.New("anvil: unsupported compression")
var ErrDecompressionFailed = errors.New("anvil: decompression failed")

// Compression is the scheme byte that precedes every chunk payload.
type Compression byte

const (
	CompressionGzip Compression = 1
	CompressionZlib Compression = 2
	CompressionNone Compression = 3

	// compressionExternal is or-ed into the scheme byte when the payload lives in a
	// separate c.<x>.<z>.mcc file.
	compressionExternal Compression = 0x80
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

type codec struct {
	newReader func(r io.Reader) (io.ReadCloser, error)
	newWriter func(w io.Writer) io.WriteCloser
}

var codecs = map[Compression]codec{
	CompressionGzip: {
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			// A second gzip member would be trailing garbage inside the chunk.
			zr.Multistream(false)
			return zr, nil
		},
		newWriter: func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
	},
	CompressionZlib: {
		newReader: func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) },
		newWriter: func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) },
	},
	CompressionNone: {
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
		newWriter: func(w io.Writer) io.WriteCloser { return nopWriteCloser{w} },
	},
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Decompress fully decodes data. The compressed stream must be intact and must end
// exactly at the end of data.
func Decompress(scheme Compression, data []byte) ([]byte, error) {
	c, ok := codecs[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: scheme %d", ErrUnsupportedCompression, byte(scheme))
	}

	src := bytes.NewReader(data)
	r, err := c.newReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompressionFailed, scheme, err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompressionFailed, scheme, err)
	}
	if err = r.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompressionFailed, scheme, err)
	}

	if src.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after end of %s stream", ErrMalformedChunk, src.Len(), scheme)
	}
	return raw, nil
}

// Compress encodes raw with the given scheme.
func Compress(scheme Compression, raw []byte) ([]byte, error) {
	c, ok := codecs[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: scheme %d", ErrUnsupportedCompression, byte(scheme))
	}

	var out bytes.Buffer
	w := c.newWriter(&out)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// ReencodeScheme picks the scheme used when a chunk is written again: zlib, unless the
// chunk was stored uncompressed.
func ReencodeScheme(original Compression) Compression {
	if original == CompressionNone {
		return CompressionNone
	}
	return CompressionZlib
}
