// Package handler adapts file grammars to translation units.
//
// A Handler claims files by path and extracts a Document: the ordered units
// of one file plus everything needed to render it again. Documents never
// re-serialize untouched content; see package span.
package handler

import (
	"encoding/json"
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/jsonfile"
	"github.com/valpere/packtran/internal/langfile"
	"github.com/valpere/packtran/internal/scriptfile"
	"github.com/valpere/packtran/internal/snbtfile"
	"github.com/valpere/packtran/internal/span"
)

// Document is the extracted form of one file.
type Document interface {
	// Units returns the file's units in document order.
	Units() []*internal.Unit
	// Render produces the file bytes with text(u) in place of each unit.
	// A unit whose text breaks the grammar is reported as
	// *internal.SerializationError.
	Render(text func(*internal.Unit) string) ([]byte, error)
}

// Handler extracts and renders one family of files.
type Handler interface {
	Name() internal.FileType
	Priority() int
	// Match reports whether the handler claims a pack-relative path.
	Match(rel string) bool
	// Extract parses data. Malformed input yields *internal.ParseError.
	Extract(rel string, data []byte) (Document, error)
}

// grammar locates string literal bodies in a text format.
type grammar struct {
	scan   func([]byte) ([]span.Literal, error)
	check  span.BodyCheck
	decode func(string) string
}

// variant is a table-driven Handler over one grammar.
type variant struct {
	name     internal.FileType
	priority int
	match    func(rel string) bool

	// grammarFor picks the grammar by file name; nil means binary NBT.
	grammarFor func(rel string) *grammar

	// translatable decides per literal path. Empty values are always skipped.
	translatable func(p span.Path) bool

	// skipStructured drops values that hold a JSON object or array.
	skipStructured bool
}

func (v *variant) Name() internal.FileType { return v.name }
func (v *variant) Priority() int           { return v.priority }
func (v *variant) Match(rel string) bool   { return v.match(normalize(rel)) }

func (v *variant) Extract(rel string, data []byte) (Document, error) {
	g := v.grammarFor(normalize(rel))
	if g == nil {
		return v.extractNBT(rel, data)
	}

	lits, err := g.scan(data)
	if err != nil {
		return nil, &internal.ParseError{Path: rel, Offset: offsetOf(err), Err: err}
	}

	doc := span.NewDocument(data, g.check)
	titles := map[string]string{}
	for _, lit := range lits {
		if lit.Path.Key() == "title" {
			titles[lit.Path.Parent().String()] = g.decode(lit.Raw(data))
		}
	}

	occ := occurrences{}
	for _, lit := range lits {
		raw := lit.Raw(data)
		if !v.accept(lit.Path, g.decode(raw)) {
			continue
		}
		doc.Add(v.newUnit(rel, lit.Path, raw, titles, occ), lit)
	}
	return doc, nil
}

func (v *variant) accept(p span.Path, decoded string) bool {
	if strings.TrimSpace(decoded) == "" || !v.translatable(p) {
		return false
	}
	if strings.HasPrefix(p.Key(), "_comment") {
		return false
	}
	return !(v.skipStructured && isStructured(decoded))
}

func (v *variant) newUnit(rel string, p span.Path, source string, titles map[string]string, occ occurrences) *internal.Unit {
	key := p.String()
	ctx := internal.UnitContext{FileType: v.name, Key: p.Key()}
	if p.Key() != "title" {
		ctx.Sibling = titles[p.Parent().String()]
	}
	id := internal.UnitID{File: rel, Path: key, Occurrence: occ.next(key)}
	return internal.NewUnit(id, source, ctx)
}

type occurrences map[string]int

func (o occurrences) next(key string) int {
	n := o[key]
	o[key] = n + 1
	return n
}

func isStructured(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return json.Valid([]byte(s))
}

func offsetOf(err error) int {
	var (
		je *jsonfile.SyntaxError
		se *snbtfile.SyntaxError
		le *langfile.SyntaxError
		ke *scriptfile.SyntaxError
	)
	switch {
	case errors.As(err, &je):
		return je.Offset
	case errors.As(err, &se):
		return se.Offset
	case errors.As(err, &le):
		return le.Offset
	case errors.As(err, &ke):
		return ke.Offset
	}
	return 0
}

// normalize lower-cases a path and uses forward slashes. Jar entries
// (mods/x.jar!/assets/...) are treated as nested directories.
func normalize(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	rel = strings.ReplaceAll(rel, "!/", "/")
	return "/" + strings.TrimPrefix(strings.ToLower(rel), "/")
}

func hasDir(rel, dir string) bool {
	return strings.Contains(rel, "/"+dir+"/")
}

func hasExt(rel string, exts ...string) bool {
	ext := path.Ext(rel)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

var localeDir = regexp.MustCompile(`^[a-z]{2,3}_[a-z]{2}$`)

// IsLocale reports whether a path segment looks like a Minecraft locale code.
func IsLocale(seg string) bool {
	return localeDir.MatchString(strings.ToLower(seg))
}

func keySet(keys ...string) func(span.Path) bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return func(p span.Path) bool { return set[p.Key()] }
}

func anyKey(span.Path) bool { return true }
