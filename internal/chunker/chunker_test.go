package chunker_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/chunker"
)

func unit(file string, i int, text string) *internal.Unit {
	u := internal.NewUnit(internal.UnitID{File: file, Path: fmt.Sprintf("k%d", i)}, text, internal.UnitContext{})
	u.MaskedText = text
	return u
}

func TestPlan_Empty(t *testing.T) {
	batches, oversized := chunker.Plan(nil, chunker.Limits{})
	assert.Empty(t, batches)
	assert.Empty(t, oversized)
}

func TestPlan_MaxUnits(t *testing.T) {
	var units []*internal.Unit
	for i := 0; i < 7; i++ {
		units = append(units, unit("a.json", i, "x"))
	}
	batches, _ := chunker.Plan(units, chunker.Limits{MaxUnits: 3, MaxChars: 100})
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Units, 3)
	assert.Len(t, batches[2].Units, 1)
}

func TestPlan_MaxChars(t *testing.T) {
	units := []*internal.Unit{
		unit("a.json", 0, strings.Repeat("a", 6)),
		unit("a.json", 1, strings.Repeat("b", 5)),
		unit("a.json", 2, strings.Repeat("c", 4)),
		unit("a.json", 3, "다섯글자요"),
	}
	batches, oversized := chunker.Plan(units, chunker.Limits{MaxUnits: 10, MaxChars: 10})
	assert.Empty(t, oversized)
	require.Len(t, batches, 3)
	assert.Equal(t, 6, batches[0].Chars())
	assert.Equal(t, 9, batches[1].Chars())
	assert.Equal(t, 5, batches[2].Chars())
}

func TestPlan_Oversized(t *testing.T) {
	units := []*internal.Unit{
		unit("a.json", 0, "short"),
		unit("a.json", 1, strings.Repeat("z", 50)),
		unit("a.json", 2, "tail"),
	}
	batches, oversized := chunker.Plan(units, chunker.Limits{MaxUnits: 5, MaxChars: 20})
	require.Len(t, oversized, 1)
	assert.Equal(t, "k1", oversized[0].ID.Path)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Units, 2)
}

func TestPlan_BoundsAndOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		limits := chunker.Limits{MaxUnits: 1 + rng.Intn(10), MaxChars: 5 + rng.Intn(200)}
		var units []*internal.Unit
		for i := 0; i < rng.Intn(80); i++ {
			units = append(units, unit(fmt.Sprintf("f%d", i%3), i, strings.Repeat("w", rng.Intn(60))))
		}

		batches, oversized := chunker.Plan(units, limits)
		var seen []*internal.Unit
		for _, b := range batches {
			require.NotEmpty(t, b.Units)
			require.LessOrEqual(t, len(b.Units), limits.MaxUnits)
			require.LessOrEqual(t, b.Chars(), limits.MaxChars)
			seen = append(seen, b.Units...)
		}
		require.Equal(t, len(units), len(seen)+len(oversized))

		// packing keeps input order
		j := 0
		for _, u := range units {
			if j < len(seen) && seen[j] == u {
				j++
			}
		}
		require.Equal(t, len(seen), j)
	}
}

func TestSplit(t *testing.T) {
	b := &chunker.Batch{Attempt: 1}
	for i := 0; i < 5; i++ {
		b.Units = append(b.Units, unit("a.json", i, "x"))
	}
	left, right := chunker.Split(b)
	require.NotNil(t, left)
	assert.Len(t, left.Units, 2)
	assert.Len(t, right.Units, 3)
	assert.Equal(t, 2, left.Attempt)
	assert.Equal(t, "k2", right.Units[0].ID.Path)

	l, r := chunker.Split(&chunker.Batch{Units: b.Units[:1]})
	assert.Nil(t, l)
	assert.Nil(t, r)

	sub := b.Subset(b.Units[3:])
	assert.Len(t, sub.Units, 2)
	assert.Equal(t, 2, sub.Attempt)
}
