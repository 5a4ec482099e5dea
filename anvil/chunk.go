package anvil

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/astei/anviltrim/nbt"
)

var ErrMalformedChunk = errors.New("anvil: malformed chunk")
var ErrExternalChunk = errors.New("anvil: chunk stored in external file")

const chunkHeaderSize = 5

// Chunk is a framed chunk payload: a big-endian length covering the scheme byte and the
// compressed bytes, then the scheme byte, then the data.
type Chunk struct {
	Compression Compression
	External    bool
	Data        []byte
	// Framed is the payload without sector padding.
	Framed []byte
}

// ReadChunk parses the framing at the start of a slot's payload.
func ReadChunk(payload []byte) (chunk Chunk, err error) {
	if len(payload) < chunkHeaderSize {
		err = fmt.Errorf("%w: payload of %d bytes is shorter than the chunk header", ErrMalformedChunk, len(payload))
		return
	}

	length := binary.BigEndian.Uint32(payload)
	if length == 0 {
		err = fmt.Errorf("%w: zero length", ErrMalformedChunk)
		return
	}
	if uint64(length) > uint64(len(payload)-4) {
		err = fmt.Errorf("%w: length %d exceeds the %d byte sector span", ErrMalformedChunk, length, len(payload))
		return
	}

	scheme := Compression(payload[4])
	chunk = Chunk{
		Compression: scheme &^ compressionExternal,
		External:    scheme&compressionExternal != 0,
		Data:        payload[chunkHeaderSize : 4+length],
		Framed:      payload[:4+length],
	}
	return
}

// Decode decompresses the chunk and decodes its tag tree.
func (c Chunk) Decode() (*nbt.Tree, error) {
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return nbt.Decode(raw)
}

// Raw returns the decompressed tag tree bytes.
func (c Chunk) Raw() ([]byte, error) {
	if c.External {
		return nil, ErrExternalChunk
	}
	return Decompress(c.Compression, c.Data)
}

// DecodeChunk reads, decompresses and decodes the chunk stored in a slot payload.
func DecodeChunk(payload []byte) (*nbt.Tree, error) {
	chunk, err := ReadChunk(payload)
	if err != nil {
		return nil, err
	}
	return chunk.Decode()
}

// FrameChunk prefixes compressed data with its length and scheme byte.
func FrameChunk(scheme Compression, data []byte) []byte {
	framed := make([]byte, chunkHeaderSize+len(data))
	binary.BigEndian.PutUint32(framed, uint32(len(data)+1))
	framed[4] = byte(scheme)
	copy(framed[chunkHeaderSize:], data)
	return framed
}

// EncodeChunk encodes, compresses and frames a tag tree.
func EncodeChunk(scheme Compression, tree *nbt.Tree) ([]byte, error) {
	raw, err := tree.MarshalBinary()
	if err != nil {
		return nil, err
	}
	data, err := Compress(scheme, raw)
	if err != nil {
		return nil, err
	}
	return FrameChunk(scheme, data), nil
}
