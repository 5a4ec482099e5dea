package anvil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

// Placement tells Compact what to do with one slot. Kept slots without Payload reuse the
// original framed bytes unchanged.
type Placement struct {
	Keep    bool
	Payload []byte
}

// Plan holds one placement per slot, indexed like the location table.
type Plan [SlotCount]Placement

// KeepAll returns a plan that keeps every occupied slot of r.
func KeepAll(r *Region) *Plan {
	var plan Plan
	for i, slot := range r.Slots {
		plan[i].Keep = !slot.Empty()
	}
	return &plan
}

// Removed counts the occupied slots of r that plan drops.
func (p *Plan) Removed(r *Region) (n int) {
	for i, slot := range r.Slots {
		if !slot.Empty() && !p[i].Keep {
			n++
		}
	}
	return
}

// Compact builds a new region image holding only the kept slots. Slots are laid out in
// table order, each padded to a whole sector. Kept slots carry their timestamp over;
// removed slots get zero location and timestamp entries.
func Compact(r *Region, plan *Plan) ([]byte, error) {
	c := &compactor{region: r, plan: plan, nextSector: HeaderSize / SectorSize}
	return c.compact()
}

type compactor struct {
	region     *Region
	plan       *Plan
	locations  [SlotCount]uint32
	timestamps [SlotCount]uint32
	payloads   bytes.Buffer
	nextSector uint32
}

func (c *compactor) compact() (image []byte, err error) {
	for i := 0; i < SlotCount; i++ {
		if err = c.placeSlot(i); err != nil {
			return
		}
	}

	out := bytes.NewBuffer(make([]byte, 0, HeaderSize+c.payloads.Len()))
	if err = c.writeHeader(out); err != nil {
		return
	}
	if _, err = c.payloads.WriteTo(out); err != nil {
		return
	}
	return out.Bytes(), nil
}

func (c *compactor) placeSlot(i int) error {
	slot := c.region.Slots[i]
	placement := c.plan[i]
	if slot.Empty() {
		// Slots that were already empty keep whatever timestamp they had.
		c.timestamps[i] = c.region.Timestamps[i]
		return nil
	}
	if !placement.Keep {
		return nil
	}

	payload := placement.Payload
	if payload == nil {
		payload = framedOrSpan(slot.Payload)
	}

	sectors := (uint32(len(payload)) + SectorSize - 1) / SectorSize
	if sectors == 0 || sectors > MaxSectors {
		x, z := SlotCoords(i)
		return fmt.Errorf("anvil: slot %d (%d,%d) needs %d sectors, allowed 1-%d", i, x, z, sectors, MaxSectors)
	}

	c.locations[i] = c.nextSector<<8 | sectors
	c.timestamps[i] = c.region.Timestamps[i]
	c.nextSector += sectors

	c.payloads.Write(payload)
	if pad := int(sectors)*SectorSize - len(payload); pad > 0 {
		c.payloads.Write(make([]byte, pad))
	}
	return nil
}

func (c *compactor) writeHeader(out *bytes.Buffer) (err error) {
	if err = binary.Write(out, binary.BigEndian, c.locations); err != nil {
		return
	}
	return binary.Write(out, binary.BigEndian, c.timestamps)
}

// framedOrSpan trims the sector padding off a payload. A payload whose framing cannot be
// read is kept whole so undecodable chunks survive byte for byte.
func framedOrSpan(payload []byte) []byte {
	chunk, err := ReadChunk(payload)
	if err != nil {
		return payload
	}
	return chunk.Framed
}

// ReplaceFile atomically replaces path with image: the image goes to a temporary file in
// the same directory which is then renamed over the original, and the directory is synced
// so the rename survives a crash. On any error before the rename the temporary file is
// removed and the original is untouched.
func ReplaceFile(fs afero.Fs, path string, image []byte) (err error) {
	info, err := fs.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(image); err != nil {
		return
	}
	if err = tmp.Sync(); err != nil {
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	if err = fs.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return
	}
	if err = fs.Rename(tmpName, path); err != nil {
		return
	}
	if err = syncDir(fs, filepath.Dir(path)); err != nil {
		return fmt.Errorf("anvil: sync %s after rename: %w", filepath.Dir(path), err)
	}
	return nil
}

// syncDir flushes a directory entry change to disk. Windows cannot fsync directories.
func syncDir(fs afero.Fs, dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := fs.Open(dir)
	if err != nil {
		return err
	}
	if err = d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}
