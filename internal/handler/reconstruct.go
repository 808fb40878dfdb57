package handler

import (
	"errors"
	"fmt"

	"github.com/valpere/packtran/internal"
)

// Apply renders doc with each unit's output text. A unit whose translation
// breaks the grammar is failed back to its source text and rendering is
// retried; the returned slice lists the units reverted that way.
func Apply(doc Document) ([]byte, []*internal.Unit, error) {
	units := doc.Units()
	byID := make(map[internal.UnitID]*internal.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	var reverted []*internal.Unit
	for attempt := 0; attempt <= len(units); attempt++ {
		out, err := doc.Render(func(u *internal.Unit) string { return u.Output() })
		if err == nil {
			return out, reverted, nil
		}

		var serr *internal.SerializationError
		if !errors.As(err, &serr) {
			return nil, reverted, err
		}
		u, ok := byID[serr.Unit]
		if !ok || u.Output() == u.SourceText {
			return nil, reverted, err
		}
		u.Fail(serr.Error())
		reverted = append(reverted, u)
	}
	return nil, reverted, fmt.Errorf("render did not converge after %d reverts", len(reverted))
}

// Identity renders doc with every unit's source text. The result equals the
// input bytes for every well-formed file.
func Identity(doc Document) ([]byte, error) {
	return doc.Render(func(u *internal.Unit) string { return u.SourceText })
}
