// Package chunker groups translation units into size-bounded batches.
// Units are packed greedily in the order given, so units of one file keep
// their document order inside and across batches. A unit that cannot fit
// in any batch on its own is reported separately instead of being packed.
package chunker

import (
	"unicode/utf8"

	"github.com/valpere/packtran/internal"
)

const (
	// DefaultMaxUnits is the default number of units per batch.
	DefaultMaxUnits = 30
	// DefaultMaxChars is the default character budget per batch.
	DefaultMaxChars = 8000
)

// Limits bounds one batch. A batch never exceeds either bound.
type Limits struct {
	MaxUnits int
	MaxChars int
}

func (l Limits) normalized() Limits {
	if l.MaxUnits <= 0 {
		l.MaxUnits = DefaultMaxUnits
	}
	if l.MaxChars <= 0 {
		l.MaxChars = DefaultMaxChars
	}
	return l
}

// Batch is an ordered group of units submitted together.
type Batch struct {
	Units   []*internal.Unit
	Attempt int
}

// Chars returns the character count of the batch's masked texts.
func (b *Batch) Chars() int {
	n := 0
	for _, u := range b.Units {
		n += Size(u)
	}
	return n
}

// Size is the character count a unit contributes to a batch.
func Size(u *internal.Unit) int {
	return utf8.RuneCountInString(u.MaskedText)
}

// Plan packs units into batches. Units larger than MaxChars are returned
// as oversized and appear in no batch.
func Plan(units []*internal.Unit, limits Limits) (batches []*Batch, oversized []*internal.Unit) {
	limits = limits.normalized()

	cur := &Batch{}
	chars := 0
	for _, u := range units {
		size := Size(u)
		if size > limits.MaxChars {
			oversized = append(oversized, u)
			continue
		}
		if len(cur.Units) > 0 && (len(cur.Units)+1 > limits.MaxUnits || chars+size > limits.MaxChars) {
			batches = append(batches, cur)
			cur = &Batch{}
			chars = 0
		}
		cur.Units = append(cur.Units, u)
		chars += size
	}
	if len(cur.Units) > 0 {
		batches = append(batches, cur)
	}
	return batches, oversized
}

// Split halves b, preserving order. The halves inherit b's attempt count
// plus one. A single-unit batch cannot be split and yields (nil, nil).
func Split(b *Batch) (*Batch, *Batch) {
	if len(b.Units) < 2 {
		return nil, nil
	}
	mid := len(b.Units) / 2
	left := &Batch{Units: append([]*internal.Unit(nil), b.Units[:mid]...), Attempt: b.Attempt + 1}
	right := &Batch{Units: append([]*internal.Unit(nil), b.Units[mid:]...), Attempt: b.Attempt + 1}
	return left, right
}

// Subset returns a batch of the given units carrying b's next attempt.
func (b *Batch) Subset(units []*internal.Unit) *Batch {
	return &Batch{Units: units, Attempt: b.Attempt + 1}
}
