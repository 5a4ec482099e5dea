// Package anvil reads, validates and rewrites Anvil region files (*.mca).
//
// A region file holds up to 1024 chunks in 4096-byte sectors. The first sector is the
// location table, the second the timestamp table; chunk payloads follow.
package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/willf/bitset"
)

const (
	SlotCount    = 1024
	SectorSize   = 4096
	HeaderSize   = 2 * SectorSize
	MaxSectors   = 0xff
	RegionExt    = ".mca"
	regionPrefix = "r."
)

var ErrCorruptRegion = errors.New("anvil: corrupt region file")

// CorruptRegionError rejects a whole region file. A damaged location table cannot be
// trusted for any slot.
type CorruptRegionError struct {
	Reason string
}

func (e *CorruptRegionError) Error() string {
	return "anvil: corrupt region file: " + e.Reason
}

func (e *CorruptRegionError) Is(target error) bool {
	return target == ErrCorruptRegion
}

func corrupt(format string, args ...interface{}) error {
	return &CorruptRegionError{Reason: fmt.Sprintf(format, args...)}
}

// Slot is one entry of the location table. Offset and Count are in sectors; Payload is
// the slot's whole sector span, padding included.
type Slot struct {
	Offset  uint32
	Count   uint32
	Payload []byte
}

func (s Slot) Empty() bool {
	return s.Offset == 0 && s.Count == 0
}

// Region is a fully parsed region file. Payloads alias the buffer handed to Parse.
type Region struct {
	Slots      [SlotCount]Slot
	Timestamps [SlotCount]uint32
	Size       int64
}

// Occupied returns the number of non-empty slots.
func (r *Region) Occupied() (n int) {
	for _, slot := range r.Slots {
		if !slot.Empty() {
			n++
		}
	}
	return
}

// Parse validates and splits a region file image. Every occupied slot must start after
// the header, lie within the file and not share a sector with any other slot.
func Parse(data []byte) (*Region, error) {
	if len(data) < HeaderSize {
		return nil, corrupt("file is %d bytes, shorter than the %d byte header", len(data), HeaderSize)
	}
	if len(data)%SectorSize != 0 {
		return nil, corrupt("file size %d is not a multiple of %d", len(data), SectorSize)
	}

	var header struct {
		Locations  [SlotCount]uint32
		Timestamps [SlotCount]uint32
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.BigEndian, &header); err != nil {
		return nil, err
	}

	region := &Region{
		Timestamps: header.Timestamps,
		Size:       int64(len(data)),
	}
	totalSectors := uint32(len(data) / SectorSize)
	used := bitset.New(uint(totalSectors))

	for i, location := range header.Locations {
		if location == 0 {
			continue
		}

		offset := location >> 8
		count := location & 0xff
		x, z := SlotCoords(i)
		switch {
		case count == 0:
			return nil, corrupt("slot %d (%d,%d) has offset %d but no sectors", i, x, z, offset)
		case offset < HeaderSize/SectorSize:
			return nil, corrupt("slot %d (%d,%d) starts at sector %d inside the header", i, x, z, offset)
		case offset+count > totalSectors:
			return nil, corrupt("slot %d (%d,%d) spans sectors %d-%d beyond the end of the file (%d sectors)",
				i, x, z, offset, offset+count-1, totalSectors)
		}

		for s := offset; s < offset+count; s++ {
			if used.Test(uint(s)) {
				return nil, corrupt("slot %d (%d,%d) overlaps another slot at sector %d", i, x, z, s)
			}
			used.Set(uint(s))
		}

		region.Slots[i] = Slot{
			Offset:  offset,
			Count:   count,
			Payload: data[offset*SectorSize : (offset+count)*SectorSize],
		}
	}
	return region, nil
}

// SlotIndex returns the table index of a chunk. Coordinates may be absolute chunk
// coordinates; only their position within the region is used.
func SlotIndex(x, z int) int {
	return (x & 31) + (z&31)*32
}

// SlotCoords returns the region-relative coordinates of a table index.
func SlotCoords(i int) (x, z int) {
	return i % 32, i / 32
}

// ParseRegionName extracts the region coordinates from a file name such as r.-1.2.mca.
func ParseRegionName(name string) (x, z int, ok bool) {
	if !strings.HasPrefix(name, regionPrefix) || !strings.HasSuffix(name, RegionExt) {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, regionPrefix), RegionExt), ".")
	if len(parts) != 2 {
		return 0, 0, false
	}

	var err error
	if x, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, false
	}
	if z, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, false
	}
	return x, z, true
}

// RegionName is the inverse of ParseRegionName.
func RegionName(x, z int) string {
	return fmt.Sprintf("%s%d.%d%s", regionPrefix, x, z, RegionExt)
}
