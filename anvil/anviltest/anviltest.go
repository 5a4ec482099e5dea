// Package anviltest builds region file images for tests.
package anviltest

import (
	"encoding/binary"
	"sort"
	"testing"

	"github.com/astei/anviltrim/anvil"
	"github.com/astei/anviltrim/nbt"
)

// BaseTimestamp is the timestamp Build assigns to slot 0; slot i gets BaseTimestamp+i.
const BaseTimestamp = 1600000000

// ChunkTree returns a chunk tree in the 1.18+ layout with InhabitedTime at the root.
func ChunkTree(x, z int32, inhabited int64) *nbt.Tree {
	return &nbt.Tree{Root: &nbt.Compound{Entries: []nbt.Entry{
		{Name: "DataVersion", Value: nbt.Int(3465)},
		{Name: "xPos", Value: nbt.Int(x)},
		{Name: "zPos", Value: nbt.Int(z)},
		{Name: "Status", Value: nbt.String("minecraft:full")},
		{Name: "InhabitedTime", Value: nbt.Long(inhabited)},
		{Name: "Heightmaps", Value: &nbt.Compound{Entries: []nbt.Entry{
			{Name: "MOTION_BLOCKING", Value: make(nbt.LongArray, 37)},
		}}},
		{Name: "sections", Value: &nbt.List{ElemType: nbt.TagCompound, Elems: []nbt.Tag{
			&nbt.Compound{Entries: []nbt.Entry{
				{Name: "Y", Value: nbt.Byte(-4)},
				{Name: "BlockLight", Value: make(nbt.ByteArray, 2048)},
			}},
		}}},
	}}}
}

// LegacyChunkTree returns a pre-1.18 chunk tree with InhabitedTime inside Level.
func LegacyChunkTree(x, z int32, inhabited int64) *nbt.Tree {
	return &nbt.Tree{Root: &nbt.Compound{Entries: []nbt.Entry{
		{Name: "DataVersion", Value: nbt.Int(1343)},
		{Name: "Level", Value: &nbt.Compound{Entries: []nbt.Entry{
			{Name: "xPos", Value: nbt.Int(x)},
			{Name: "zPos", Value: nbt.Int(z)},
			{Name: "InhabitedTime", Value: nbt.Long(inhabited)},
			{Name: "Biomes", Value: make(nbt.IntArray, 256)},
		}}},
	}}}
}

// UntouchedChunkTree returns a chunk tree without an InhabitedTime field.
func UntouchedChunkTree(x, z int32) *nbt.Tree {
	return &nbt.Tree{Root: &nbt.Compound{Entries: []nbt.Entry{
		{Name: "xPos", Value: nbt.Int(x)},
		{Name: "zPos", Value: nbt.Int(z)},
		{Name: "Status", Value: nbt.String("minecraft:empty")},
	}}}
}

// Payload encodes tree as a framed chunk payload.
func Payload(tb testing.TB, scheme anvil.Compression, tree *nbt.Tree) []byte {
	tb.Helper()
	payload, err := anvil.EncodeChunk(scheme, tree)
	if err != nil {
		tb.Fatal(err)
	}
	return payload
}

// Build lays the framed payloads out in slot order, each padded to whole sectors and
// separated by gap free sectors.
func Build(payloads map[int][]byte, gap int) []byte {
	indices := make([]int, 0, len(payloads))
	for i := range payloads {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	image := make([]byte, anvil.HeaderSize)
	sector := uint32(anvil.HeaderSize / anvil.SectorSize)
	for _, i := range indices {
		sector += uint32(gap)
		image = append(image, make([]byte, gap*anvil.SectorSize)...)

		payload := payloads[i]
		count := uint32((len(payload) + anvil.SectorSize - 1) / anvil.SectorSize)
		binary.BigEndian.PutUint32(image[4*i:], sector<<8|count)
		binary.BigEndian.PutUint32(image[anvil.SectorSize+4*i:], uint32(BaseTimestamp+i))

		image = append(image, payload...)
		image = append(image, make([]byte, int(count)*anvil.SectorSize-len(payload))...)
		sector += count
	}
	return image
}

// SetLocation overwrites a location table entry of an image.
func SetLocation(image []byte, slot int, offset, count uint32) {
	binary.BigEndian.PutUint32(image[4*slot:], offset<<8|count)
}

// SetTimestamp overwrites a timestamp table entry of an image.
func SetTimestamp(image []byte, slot int, timestamp uint32) {
	binary.BigEndian.PutUint32(image[anvil.SectorSize+4*slot:], timestamp)
}
