package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Encode writes t to w. The output is deterministic: entries keep their order, integers
// are fixed-width big-endian and strings are written as stored.
func Encode(w io.Writer, t *Tree) error {
	return NewEncoder(w).Encode(t)
}

// MarshalBinary encodes the tree into a new byte slice.
func (t *Tree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(t *Tree) error {
	if t == nil || t.Root == nil {
		return errors.New("nbt: cannot encode a tree without a root compound")
	}
	if err := e.writeTag(TagCompound, t.Name); err != nil {
		return err
	}
	return e.writeCompound(t.Root)
}

func (e *Encoder) writePayload(tag Tag) error {
	switch v := tag.(type) {
	case Byte:
		_, err := e.w.Write([]byte{byte(v)})
		return err

	case Short:
		return e.writeInt16(int16(v))

	case Int:
		return e.writeInt32(int32(v))

	case Long:
		return e.writeInt64(int64(v))

	case Float:
		return e.writeInt32(int32(math.Float32bits(float32(v))))

	case Double:
		return e.writeInt64(int64(math.Float64bits(float64(v))))

	case ByteArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		_, err := e.w.Write(v)
		return err

	case String:
		return e.writeString(string(v))

	case *List:
		return e.writeList(v)

	case *Compound:
		return e.writeCompound(v)

	case IntArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		for _, n := range v {
			if err := e.writeInt32(n); err != nil {
				return err
			}
		}
		return nil

	case LongArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		for _, n := range v {
			if err := e.writeInt64(n); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("nbt: cannot encode %T", tag)
	}
}

func (e *Encoder) writeList(l *List) error {
	if _, err := e.w.Write([]byte{l.ElemType}); err != nil {
		return err
	}
	if err := e.writeLength(len(l.Elems)); err != nil {
		return err
	}
	for i, elem := range l.Elems {
		if elem == nil || elem.Type() != l.ElemType {
			return fmt.Errorf("nbt: list element %d is not a %s", i, TypeName(l.ElemType))
		}
		if err := e.writePayload(elem); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeCompound(c *Compound) error {
	for _, entry := range c.Entries {
		if entry.Value == nil {
			return fmt.Errorf("nbt: compound entry %q has no value", entry.Name)
		}
		if err := e.writeTag(entry.Value.Type(), entry.Name); err != nil {
			return err
		}
		if err := e.writePayload(entry.Value); err != nil {
			return err
		}
	}
	_, err := e.w.Write([]byte{TagEnd})
	return err
}

func (e *Encoder) writeTag(tagType byte, tagName string) error {
	if _, err := e.w.Write([]byte{tagType}); err != nil {
		return err
	}
	return e.writeString(tagName)
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("nbt: string length %d exceeds maximum %d", len(s), math.MaxUint16)
	}
	if err := e.writeInt16(int16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) writeLength(n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("nbt: length %d exceeds maximum %d", n, math.MaxInt32)
	}
	return e.writeInt32(int32(n))
}

func (e *Encoder) writeInt16(n int16) error {
	_, err := e.w.Write([]byte{byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt32(n int32) error {
	_, err := e.w.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt64(n int64) error {
	_, err := e.w.Write([]byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}
