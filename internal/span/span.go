// Package span patches string literal bodies inside a source buffer.
//
// Text grammars (JSON, SNBT, .lang, scripts) are never re-serialized from a
// tree. Their scanners only locate the byte range of every string literal
// body; a Document keeps the original bytes and rewrites just the bodies of
// units whose text changed. Everything between literals (whitespace,
// comments, key order, number formatting) is copied through untouched.
package span

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/valpere/packtran/internal"
)

// Segment is one step of a key path: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path locates a value inside a nested document.
type Path []Segment

// Child returns a copy of p extended with an object key.
func (p Path) Child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: key})
}

// Elem returns a copy of p extended with an array index.
func (p Path) Elem(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: i, IsIndex: true})
}

// String renders the path as chapters[0].quests[3].title.
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		if s.IsIndex {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(s.Index))
			sb.WriteByte(']')
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Key)
	}
	return sb.String()
}

// Key returns the nearest enclosing object key, skipping array indices.
func (p Path) Key() string {
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].IsIndex {
			return p[i].Key
		}
	}
	return ""
}

// Parent returns the path of the object that holds the value at p: trailing
// array indices and the last key are dropped.
func (p Path) Parent() Path {
	i := len(p) - 1
	for i >= 0 && p[i].IsIndex {
		i--
	}
	if i < 0 {
		return nil
	}
	return p[:i]
}

// Contains reports whether any key segment equals key.
func (p Path) Contains(key string) bool {
	for _, s := range p {
		if !s.IsIndex && s.Key == key {
			return true
		}
	}
	return false
}

// Literal is the body of a string literal in a source buffer.
// Start and End are byte offsets of the body, quotes excluded.
type Literal struct {
	Path  Path
	Start int
	End   int
	Quote byte
}

// Raw returns the literal body as it appears in src.
func (l Literal) Raw(src []byte) string {
	return string(src[l.Start:l.End])
}

// BodyCheck reports whether body may replace a literal delimited by quote.
type BodyCheck func(body string, quote byte) error

// Common body check failures.
var (
	ErrUnescapedQuote    = errors.New("unescaped quote")
	ErrTrailingBackslash = errors.New("trailing backslash")
	ErrBadEscape         = errors.New("invalid escape sequence")
	ErrLineBreak         = errors.New("raw line break")
	ErrControlChar       = errors.New("raw control character")
)

// CheckQuoted is the BodyCheck for quoted literals whose escapes are any
// backslash pair: the quote must be escaped and no backslash may dangle.
func CheckQuoted(body string, quote byte) error {
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			if i+1 >= len(body) {
				return ErrTrailingBackslash
			}
			i++
		case quote:
			return fmt.Errorf("%w %q at byte %d", ErrUnescapedQuote, quote, i)
		}
	}
	return nil
}

// Patch replaces src[Start:End] with Text.
type Patch struct {
	Start int
	End   int
	Text  string
}

// Apply returns a copy of src with patches applied. Patches must not overlap.
func Apply(src []byte, patches []Patch) []byte {
	if len(patches) == 0 {
		return bytes.Clone(src)
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].Start < patches[j].Start })

	var buf bytes.Buffer
	buf.Grow(len(src))
	last := 0
	for _, p := range patches {
		buf.Write(src[last:p.Start])
		buf.WriteString(p.Text)
		last = p.End
	}
	buf.Write(src[last:])
	return buf.Bytes()
}

type entry struct {
	unit *internal.Unit
	lit  Literal
}

// Document binds units to literal spans of one source buffer.
type Document struct {
	src     []byte
	check   BodyCheck
	entries []entry
}

// NewDocument returns an empty document over src.
func NewDocument(src []byte, check BodyCheck) *Document {
	return &Document{src: src, check: check}
}

// Add binds u to lit.
func (d *Document) Add(u *internal.Unit, lit Literal) {
	d.entries = append(d.entries, entry{unit: u, lit: lit})
}

// Source returns the original bytes.
func (d *Document) Source() []byte { return d.src }

// Units returns the bound units in document order.
func (d *Document) Units() []*internal.Unit {
	units := make([]*internal.Unit, len(d.entries))
	for i, e := range d.entries {
		units[i] = e.unit
	}
	return units
}

// Render rewrites every literal whose text differs from the original body.
// The first body that fails the grammar check is returned as a
// *internal.SerializationError naming its unit.
func (d *Document) Render(text func(*internal.Unit) string) ([]byte, error) {
	var patches []Patch
	for _, e := range d.entries {
		body := text(e.unit)
		if body == e.lit.Raw(d.src) {
			continue
		}
		if d.check != nil {
			if err := d.check(body, e.lit.Quote); err != nil {
				return nil, &internal.SerializationError{Unit: e.unit.ID, Err: err}
			}
		}
		patches = append(patches, Patch{Start: e.lit.Start, End: e.lit.End, Text: body})
	}
	return Apply(d.src, patches), nil
}
