// Package nbtfile reads and writes binary NBT files, optionally gzipped.
//
// Compounds are kept as ordered slices and every string remembers its
// original encoding, so an unmodified tree encodes back to the exact input
// bytes.
package nbtfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"

	"github.com/valpere/packtran/internal/span"
)

// Tag type ids.
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

const maxDepth = 512

// MaxStringBytes is the largest encoded string NBT can hold.
const MaxStringBytes = math.MaxUint16

var ErrStringTooLong = errors.New("nbt string longer than 65535 bytes")

// String is a TAG_String payload.
type String struct {
	Text string
	orig string
	raw  []byte
}

// List is a TAG_List payload.
type List struct {
	Elem  byte
	Items []any
}

// Tag is a named tag inside a compound, or the root.
type Tag struct {
	Type  byte
	Name  string
	Value any

	nameRaw []byte
}

func (t Tag) name() *String {
	return &String{Text: t.Name, orig: t.Name, raw: t.nameRaw}
}

// File is a decoded NBT file.
type File struct {
	Root    Tag
	Gzipped bool
	src     []byte
}

// Decode parses an NBT file, transparently un-gzipping it.
func Decode(data []byte) (*File, error) {
	f := &File{src: data}
	payload := data
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("nbt: gzip: %w", err)
		}
		payload, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("nbt: gzip: %w", err)
		}
		f.Gzipped = true
	}

	r := &reader{buf: payload}
	typ, err := r.u8()
	if err != nil {
		return nil, err
	}
	if typ == TagEnd {
		return nil, errors.New("nbt: root tag is TAG_End")
	}
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	v, err := r.payload(typ, 0)
	if err != nil {
		return nil, err
	}
	if r.pos != len(r.buf) {
		return nil, fmt.Errorf("nbt: %d trailing bytes", len(r.buf)-r.pos)
	}
	f.Root = Tag{Type: typ, Name: name.Text, Value: v, nameRaw: name.raw}
	return f, nil
}

// Encode serializes the tree. A gzipped file whose strings are unchanged is
// returned as the original bytes; gzip output is not reproducible otherwise.
func (f *File) Encode() ([]byte, error) {
	w := &writer{}
	w.u8(f.Root.Type)
	if err := w.str(f.Root.name()); err != nil {
		return nil, err
	}
	if err := w.payload(f.Root.Type, f.Root.Value); err != nil {
		return nil, err
	}
	if !f.Gzipped {
		return w.buf.Bytes(), nil
	}
	if !f.modified() && f.src != nil {
		return bytes.Clone(f.src), nil
	}
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(w.buf.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (f *File) modified() bool {
	changed := false
	f.Walk(func(_ span.Path, s *String) {
		if s.raw == nil || s.Text != s.orig {
			changed = true
		}
	})
	return changed
}

// Walk calls fn for every string in the tree, in document order.
func (f *File) Walk(fn func(path span.Path, s *String)) {
	walk(nil, f.Root.Type, f.Root.Value, fn)
}

func walk(path span.Path, typ byte, v any, fn func(span.Path, *String)) {
	switch typ {
	case TagString:
		fn(path, v.(*String))
	case TagList:
		l := v.(*List)
		for i, item := range l.Items {
			walk(path.Elem(i), l.Elem, item, fn)
		}
	case TagCompound:
		for _, t := range v.([]Tag) {
			walk(path.Child(t.Name), t.Type, t.Value, fn)
		}
	}
}

type reader struct {
	buf []byte
	pos int
}

var errTruncated = errors.New("nbt: unexpected end of data")

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, errTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) length() (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if int32(n) < 0 {
		return 0, fmt.Errorf("nbt: negative length %d", int32(n))
	}
	return int(n), nil
}

func (r *reader) str() (*String, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	raw, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	text, err := decodeMUTF8(raw)
	if err != nil {
		return nil, err
	}
	return &String{Text: text, orig: text, raw: raw}, nil
}

func (r *reader) payload(typ byte, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nbt: nesting deeper than %d", maxDepth)
	}
	switch typ {
	case TagByte:
		b, err := r.u8()
		return int8(b), err
	case TagShort:
		v, err := r.u16()
		return int16(v), err
	case TagInt:
		v, err := r.u32()
		return int32(v), err
	case TagLong:
		v, err := r.u64()
		return int64(v), err
	case TagFloat:
		// raw bits keep NaN payloads intact
		return r.u32()
	case TagDouble:
		return r.u64()
	case TagByteArray:
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		b, err := r.take(n)
		return bytes.Clone(b), err
	case TagString:
		return r.str()
	case TagList:
		elem, err := r.u8()
		if err != nil {
			return nil, err
		}
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		l := &List{Elem: elem}
		for i := 0; i < n; i++ {
			v, err := r.payload(elem, depth+1)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, v)
		}
		return l, nil
	case TagCompound:
		var tags []Tag
		for {
			t, err := r.u8()
			if err != nil {
				return nil, err
			}
			if t == TagEnd {
				return tags, nil
			}
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			v, err := r.payload(t, depth+1)
			if err != nil {
				return nil, err
			}
			tags = append(tags, Tag{Type: t, Name: name.Text, Value: v, nameRaw: name.raw})
		}
	case TagIntArray:
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		if n > (len(r.buf)-r.pos)/4 {
			return nil, errTruncated
		}
		out := make([]int32, n)
		for i := range out {
			v, err := r.u32()
			if err != nil {
				return nil, err
			}
			out[i] = int32(v)
		}
		return out, nil
	case TagLongArray:
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		if n > (len(r.buf)-r.pos)/8 {
			return nil, errTruncated
		}
		out := make([]int64, n)
		for i := range out {
			v, err := r.u64()
			if err != nil {
				return nil, err
			}
			out[i] = int64(v)
		}
		return out, nil
	case TagEnd:
		// only valid as the element type of an empty list
		return nil, nil
	default:
		return nil, fmt.Errorf("nbt: unknown tag type %d at byte %d", typ, r.pos)
	}
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v byte) { w.buf.WriteByte(v) }

func (w *writer) u16(v uint16) {
	w.buf.Write(binary.BigEndian.AppendUint16(nil, v))
}

func (w *writer) u32(v uint32) {
	w.buf.Write(binary.BigEndian.AppendUint32(nil, v))
}

func (w *writer) u64(v uint64) {
	w.buf.Write(binary.BigEndian.AppendUint64(nil, v))
}

func (w *writer) str(s *String) error {
	raw := s.raw
	if raw == nil || s.Text != s.orig {
		raw = encodeMUTF8(s.Text)
	}
	if len(raw) > MaxStringBytes {
		return ErrStringTooLong
	}
	w.u16(uint16(len(raw)))
	w.buf.Write(raw)
	return nil
}

func (w *writer) payload(typ byte, v any) error {
	switch typ {
	case TagByte:
		w.u8(byte(v.(int8)))
	case TagShort:
		w.u16(uint16(v.(int16)))
	case TagInt:
		w.u32(uint32(v.(int32)))
	case TagLong:
		w.u64(uint64(v.(int64)))
	case TagFloat:
		w.u32(v.(uint32))
	case TagDouble:
		w.u64(v.(uint64))
	case TagByteArray:
		b := v.([]byte)
		w.u32(uint32(len(b)))
		w.buf.Write(b)
	case TagString:
		return w.str(v.(*String))
	case TagList:
		l := v.(*List)
		w.u8(l.Elem)
		w.u32(uint32(len(l.Items)))
		for _, item := range l.Items {
			if err := w.payload(l.Elem, item); err != nil {
				return err
			}
		}
	case TagCompound:
		for _, t := range v.([]Tag) {
			w.u8(t.Type)
			if err := w.str(t.name()); err != nil {
				return err
			}
			if err := w.payload(t.Type, t.Value); err != nil {
				return err
			}
		}
		w.u8(TagEnd)
	case TagIntArray:
		a := v.([]int32)
		w.u32(uint32(len(a)))
		for _, x := range a {
			w.u32(uint32(x))
		}
	case TagLongArray:
		a := v.([]int64)
		w.u32(uint32(len(a)))
		for _, x := range a {
			w.u64(uint64(x))
		}
	case TagEnd:
	default:
		return fmt.Errorf("nbt: unknown tag type %d", typ)
	}
	return nil
}

// EncodedLen returns the encoded byte length of s.
func EncodedLen(s string) int {
	return len(encodeMUTF8(s))
}
