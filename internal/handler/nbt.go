package handler

import (
	"fmt"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/nbtfile"
	"github.com/valpere/packtran/internal/span"
)

type nbtEntry struct {
	unit *internal.Unit
	str  *nbtfile.String
}

// nbtDocument renders by mutating the decoded tree and re-encoding it.
type nbtDocument struct {
	file    *nbtfile.File
	entries []nbtEntry
}

func (v *variant) extractNBT(rel string, data []byte) (Document, error) {
	f, err := nbtfile.Decode(data)
	if err != nil {
		return nil, &internal.ParseError{Path: rel, Err: err}
	}

	titles := map[string]string{}
	f.Walk(func(p span.Path, s *nbtfile.String) {
		if p.Key() == "title" {
			titles[p.Parent().String()] = s.Text
		}
	})

	doc := &nbtDocument{file: f}
	occ := occurrences{}
	f.Walk(func(p span.Path, s *nbtfile.String) {
		if !v.accept(p, s.Text) {
			return
		}
		u := v.newUnit(rel, p, s.Text, titles, occ)
		doc.entries = append(doc.entries, nbtEntry{unit: u, str: s})
	})
	return doc, nil
}

func (d *nbtDocument) Units() []*internal.Unit {
	units := make([]*internal.Unit, len(d.entries))
	for i, e := range d.entries {
		units[i] = e.unit
	}
	return units
}

func (d *nbtDocument) Render(text func(*internal.Unit) string) ([]byte, error) {
	for _, e := range d.entries {
		s := text(e.unit)
		if n := nbtfile.EncodedLen(s); n > nbtfile.MaxStringBytes {
			return nil, &internal.SerializationError{
				Unit: e.unit.ID,
				Err:  fmt.Errorf("%w: %d bytes", nbtfile.ErrStringTooLong, n),
			}
		}
		e.str.Text = s
	}
	return d.file.Encode()
}
