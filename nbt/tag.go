// Package nbt reads and writes the named binary tag format used by Minecraft chunk data.
//
// Decoding produces a Tree that owns every value by value; encoding a Tree that was
// decoded and left untouched reproduces the original bytes exactly.
package nbt

import "fmt"

// Tag type identifiers as they appear on the wire.
const (
	TagEnd byte = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// Tag is one value of a tag tree.
type Tag interface {
	// Type returns the wire type identifier of the tag.
	Type() byte
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	// String keeps the raw modified UTF-8 bytes so that it re-encodes unchanged.
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() byte      { return TagByte }
func (Short) Type() byte     { return TagShort }
func (Int) Type() byte       { return TagInt }
func (Long) Type() byte      { return TagLong }
func (Float) Type() byte     { return TagFloat }
func (Double) Type() byte    { return TagDouble }
func (ByteArray) Type() byte { return TagByteArray }
func (String) Type() byte    { return TagString }
func (IntArray) Type() byte  { return TagIntArray }
func (LongArray) Type() byte { return TagLongArray }

// List is a homogeneous sequence. ElemType is kept even when the list is empty, since
// writers disagree on which type an empty list declares.
type List struct {
	ElemType byte
	Elems    []Tag
}

func (*List) Type() byte { return TagList }

// Entry is a named member of a compound.
type Entry struct {
	Name  string
	Value Tag
}

// Compound is an ordered set of uniquely named tags. Order is the order read from the
// wire.
type Compound struct {
	Entries []Entry
}

func (*Compound) Type() byte { return TagCompound }

// Get returns the tag stored under name.
func (c *Compound) Get(name string) (Tag, bool) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Compound returns the nested compound stored under name.
func (c *Compound) Compound(name string) (*Compound, bool) {
	tag, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	nested, ok := tag.(*Compound)
	return nested, ok
}

// Put replaces the value stored under name or appends a new entry.
func (c *Compound) Put(name string, value Tag) {
	for i := range c.Entries {
		if c.Entries[i].Name == name {
			c.Entries[i].Value = value
			return
		}
	}
	c.Entries = append(c.Entries, Entry{Name: name, Value: value})
}

// Tree is a decoded document: a named root compound.
type Tree struct {
	Name string
	Root *Compound
}

// AsInt64 widens any integer tag for comparisons. The second result is false for
// non-integer tags.
func AsInt64(tag Tag) (int64, bool) {
	switch v := tag.(type) {
	case Byte:
		return int64(v), true
	case Short:
		return int64(v), true
	case Int:
		return int64(v), true
	case Long:
		return int64(v), true
	default:
		return 0, false
	}
}

// TypeName returns a readable name for a tag type identifier.
func TypeName(t byte) string {
	switch t {
	case TagEnd:
		return "TAG_End"
	case TagByte:
		return "TAG_Byte"
	case TagShort:
		return "TAG_Short"
	case TagInt:
		return "TAG_Int"
	case TagLong:
		return "TAG_Long"
	case TagFloat:
		return "TAG_Float"
	case TagDouble:
		return "TAG_Double"
	case TagByteArray:
		return "TAG_Byte_Array"
	case TagString:
		return "TAG_String"
	case TagList:
		return "TAG_List"
	case TagCompound:
		return "TAG_Compound"
	case TagIntArray:
		return "TAG_Int_Array"
	case TagLongArray:
		return "TAG_Long_Array"
	default:
		return fmt.Sprintf("TAG_Unknown(%d)", t)
	}
}
