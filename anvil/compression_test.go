package anvil_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/astei/anviltrim/anvil"
)

func TestCompressionRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("minecraft:stone "), 512)

	for _, scheme := range []anvil.Compression{anvil.CompressionGzip, anvil.CompressionZlib, anvil.CompressionNone} {
		t.Run(scheme.String(), func(t *testing.T) {
			compressed, err := anvil.Compress(scheme, raw)
			if err != nil {
				t.Fatal(err)
			}
			if scheme != anvil.CompressionNone && len(compressed) >= len(raw) {
				t.Fatalf("%s did not compress: %d >= %d", scheme, len(compressed), len(raw))
			}

			decompressed, err := anvil.Decompress(scheme, compressed)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(raw, decompressed) {
				t.Fatal("decompressed data differs")
			}
		})
	}
}

func TestDecompressErrors(t *testing.T) {
	raw := bytes.Repeat([]byte{1, 2, 3, 4}, 1000)
	zlibData, err := anvil.Compress(anvil.CompressionZlib, raw)
	if err != nil {
		t.Fatal(err)
	}
	gzipData, err := anvil.Compress(anvil.CompressionGzip, raw)
	if err != nil {
		t.Fatal(err)
	}

	flipped := append([]byte(nil), zlibData...)
	flipped[len(flipped)-1] ^= 0xff

	tests := []struct {
		name   string
		scheme anvil.Compression
		data   []byte
		want   error
	}{
		{name: "unknown scheme", scheme: 4, data: zlibData, want: anvil.ErrUnsupportedCompression},
		{name: "zero scheme", scheme: 0, data: zlibData, want: anvil.ErrUnsupportedCompression},
		{name: "truncated zlib", scheme: anvil.CompressionZlib, data: zlibData[:len(zlibData)/2], want: anvil.ErrDecompressionFailed},
		{name: "bad zlib checksum", scheme: anvil.CompressionZlib, data: flipped, want: anvil.ErrDecompressionFailed},
		{name: "truncated gzip", scheme: anvil.CompressionGzip, data: gzipData[:len(gzipData)-3], want: anvil.ErrDecompressionFailed},
		{name: "gzip as zlib", scheme: anvil.CompressionZlib, data: gzipData, want: anvil.ErrDecompressionFailed},
		{name: "trailing zlib garbage", scheme: anvil.CompressionZlib, data: append(append([]byte(nil), zlibData...), 0, 0, 0), want: anvil.ErrMalformedChunk},
		{name: "trailing gzip garbage", scheme: anvil.CompressionGzip, data: append(append([]byte(nil), gzipData...), gzipData...), want: anvil.ErrMalformedChunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := anvil.Decompress(tt.scheme, tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decompress() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReencodeScheme(t *testing.T) {
	tests := map[anvil.Compression]anvil.Compression{
		anvil.CompressionGzip: anvil.CompressionZlib,
		anvil.CompressionZlib: anvil.CompressionZlib,
		anvil.CompressionNone: anvil.CompressionNone,
	}
	for original, want := range tests {
		if got := anvil.ReencodeScheme(original); got != want {
			t.Errorf("ReencodeScheme(%s) = %s, want %s", original, got, want)
		}
	}
}
