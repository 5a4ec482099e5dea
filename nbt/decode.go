package nbt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxDepth bounds compound and list nesting, matching the limit enforced by the game.
const MaxDepth = 512

var ErrMalformedTag = errors.New("nbt: malformed tag")

// MalformedTagError reports where decoding stopped. Byte is the offending byte, or zero
// when the data ended early.
type MalformedTagError struct {
	Offset int
	Byte   byte
	EOF    bool
	Reason string
}

func (e *MalformedTagError) Error() string {
	if e.EOF {
		return fmt.Sprintf("nbt: malformed tag at offset %d: %s: unexpected end of data", e.Offset, e.Reason)
	}
	return fmt.Sprintf("nbt: malformed tag at offset %d (byte 0x%02x): %s", e.Offset, e.Byte, e.Reason)
}

func (e *MalformedTagError) Is(target error) bool {
	return target == ErrMalformedTag
}

// Decode parses a complete uncompressed document. The root must be a compound and the
// document must end exactly where the root compound ends.
func Decode(data []byte) (*Tree, error) {
	d := &decoder{data: data}

	tagType, err := d.readByte("root tag type")
	if err != nil {
		return nil, err
	}
	if tagType != TagCompound {
		return nil, d.errorAt(0, "root tag is "+TypeName(tagType)+", expected TAG_Compound")
	}

	name, err := d.readString("root name")
	if err != nil {
		return nil, err
	}

	root, err := d.readCompound(1)
	if err != nil {
		return nil, err
	}

	if d.pos != len(d.data) {
		return nil, d.errorAt(d.pos, fmt.Sprintf("%d trailing bytes after root compound", len(d.data)-d.pos))
	}
	return &Tree{Name: name, Root: root}, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) errorAt(offset int, reason string) error {
	if offset >= len(d.data) {
		return &MalformedTagError{Offset: offset, EOF: true, Reason: reason}
	}
	return &MalformedTagError{Offset: offset, Byte: d.data[offset], Reason: reason}
}

func (d *decoder) take(n int, what string) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, &MalformedTagError{Offset: len(d.data), EOF: true, Reason: "reading " + what}
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readByte(what string) (byte, error) {
	b, err := d.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) readUint16(what string) (uint16, error) {
	b, err := d.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) readUint32(what string) (uint32, error) {
	b, err := d.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) readUint64(what string) (uint64, error) {
	b, err := d.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) readString(what string) (string, error) {
	n, err := d.readUint16(what + " length")
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n), what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readLength reads a signed 32-bit element count and checks that at least
// count*elemSize bytes remain.
func (d *decoder) readLength(what string, elemSize int) (int, error) {
	start := d.pos
	v, err := d.readUint32(what + " length")
	if err != nil {
		return 0, err
	}
	n := int32(v)
	if n < 0 {
		return 0, d.errorAt(start, fmt.Sprintf("negative %s length %d", what, n))
	}
	if elemSize > 0 && int64(n)*int64(elemSize) > int64(len(d.data)-d.pos) {
		return 0, &MalformedTagError{Offset: len(d.data), EOF: true, Reason: fmt.Sprintf("%s of %d elements", what, n)}
	}
	return int(n), nil
}

func (d *decoder) readCompound(depth int) (*Compound, error) {
	if depth > MaxDepth {
		return nil, d.errorAt(d.pos, "nesting deeper than "+fmt.Sprint(MaxDepth))
	}

	c := &Compound{}
	for {
		typePos := d.pos
		tagType, err := d.readByte("compound entry type")
		if err != nil {
			return nil, err
		}
		if tagType == TagEnd {
			return c, nil
		}
		if tagType > TagLongArray {
			return nil, d.errorAt(typePos, "unknown tag type in compound")
		}

		name, err := d.readString("compound entry name")
		if err != nil {
			return nil, err
		}
		if _, exists := c.Get(name); exists {
			return nil, d.errorAt(typePos, fmt.Sprintf("duplicate compound entry %q", name))
		}

		value, err := d.readPayload(tagType, depth)
		if err != nil {
			return nil, err
		}
		c.Entries = append(c.Entries, Entry{Name: name, Value: value})
	}
}

func (d *decoder) readList(depth int) (*List, error) {
	if depth > MaxDepth {
		return nil, d.errorAt(d.pos, "nesting deeper than "+fmt.Sprint(MaxDepth))
	}

	typePos := d.pos
	elemType, err := d.readByte("list element type")
	if err != nil {
		return nil, err
	}
	if elemType > TagLongArray {
		return nil, d.errorAt(typePos, "unknown list element type")
	}

	n, err := d.readLength("list", 0)
	if err != nil {
		return nil, err
	}
	if elemType == TagEnd && n > 0 {
		return nil, d.errorAt(typePos, "non-empty list of TAG_End")
	}

	list := &List{ElemType: elemType}
	if n > 0 {
		list.Elems = make([]Tag, 0, min(n, len(d.data)-d.pos))
	}
	for i := 0; i < n; i++ {
		elem, err := d.readPayload(elemType, depth)
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, elem)
	}
	return list, nil
}

func (d *decoder) readPayload(tagType byte, depth int) (Tag, error) {
	switch tagType {
	case TagByte:
		b, err := d.readByte("TAG_Byte")
		return Byte(int8(b)), err

	case TagShort:
		v, err := d.readUint16("TAG_Short")
		return Short(int16(v)), err

	case TagInt:
		v, err := d.readUint32("TAG_Int")
		return Int(int32(v)), err

	case TagLong:
		v, err := d.readUint64("TAG_Long")
		return Long(int64(v)), err

	case TagFloat:
		v, err := d.readUint32("TAG_Float")
		return Float(math.Float32frombits(v)), err

	case TagDouble:
		v, err := d.readUint64("TAG_Double")
		return Double(math.Float64frombits(v)), err

	case TagByteArray:
		n, err := d.readLength("TAG_Byte_Array", 1)
		if err != nil {
			return nil, err
		}
		b, err := d.take(n, "TAG_Byte_Array")
		if err != nil {
			return nil, err
		}
		return ByteArray(append([]byte(nil), b...)), nil

	case TagString:
		s, err := d.readString("TAG_String")
		return String(s), err

	case TagList:
		return d.readList(depth + 1)

	case TagCompound:
		return d.readCompound(depth + 1)

	case TagIntArray:
		n, err := d.readLength("TAG_Int_Array", 4)
		if err != nil {
			return nil, err
		}
		arr := make(IntArray, n)
		for i := range arr {
			v, _ := d.readUint32("TAG_Int_Array")
			arr[i] = int32(v)
		}
		return arr, nil

	case TagLongArray:
		n, err := d.readLength("TAG_Long_Array", 8)
		if err != nil {
			return nil, err
		}
		arr := make(LongArray, n)
		for i := range arr {
			v, _ := d.readUint64("TAG_Long_Array")
			arr[i] = int64(v)
		}
		return arr, nil

	default:
		return nil, d.errorAt(d.pos-1, "unexpected "+TypeName(tagType))
	}
}
