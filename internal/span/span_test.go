package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal"
)

func TestPath(t *testing.T) {
	p := Path{}.Child("chapters").Elem(0).Child("quests").Elem(3).Child("title")
	assert.Equal(t, "chapters[0].quests[3].title", p.String())
	assert.Equal(t, "title", p.Key())
	assert.Equal(t, "chapters[0].quests[3]", p.Parent().String())
	assert.True(t, p.Contains("quests"))
	assert.False(t, p.Contains("title2"))

	desc := Path{}.Child("description").Elem(1)
	assert.Equal(t, "description", desc.Key())
	assert.Empty(t, desc.Parent())
	assert.Empty(t, Path{}.Elem(0).Key())

	// Child and Elem never share backing storage with the receiver.
	base := make(Path, 1, 4)
	base[0] = Segment{Key: "root"}
	a, b := base.Child("a"), base.Child("b")
	assert.Equal(t, "root.a", a.String())
	assert.Equal(t, "root.b", b.String())
}

func TestCheckQuoted(t *testing.T) {
	tests := []struct {
		body  string
		quote byte
		want  error
	}{
		{`plain text`, '"', nil},
		{`say \"hi\"`, '"', nil},
		{`it's`, '"', nil},
		{`it's`, '\'', ErrUnescapedQuote},
		{`say "hi"`, '"', ErrUnescapedQuote},
		{`ends with \`, '"', ErrTrailingBackslash},
		{`\\`, '"', nil},
		{``, '"', nil},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			err := CheckQuoted(tt.body, tt.quote)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApply(t *testing.T) {
	src := []byte(`{"a": "one", "b": "two"}`)
	tests := []struct {
		name    string
		patches []Patch
		want    string
	}{
		{"none", nil, `{"a": "one", "b": "two"}`},
		{"single", []Patch{{Start: 7, End: 10, Text: "하나"}}, `{"a": "하나", "b": "two"}`},
		{"unordered", []Patch{{Start: 19, End: 22, Text: "둘"}, {Start: 7, End: 10, Text: "1"}}, `{"a": "1", "b": "둘"}`},
		{"empty body", []Patch{{Start: 7, End: 10, Text: ""}}, `{"a": "", "b": "two"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Apply(src, tt.patches)))
		})
	}

	out := Apply(src, nil)
	out[0] = '['
	assert.Equal(t, byte('{'), src[0])
}

func TestDocument_Render(t *testing.T) {
	src := []byte(`["Saw", "Axe"]`)
	saw := internal.NewUnit(internal.UnitID{File: "f.json", Path: "[0]"}, "Saw", internal.UnitContext{})
	axe := internal.NewUnit(internal.UnitID{File: "f.json", Path: "[1]"}, "Axe", internal.UnitContext{})

	doc := NewDocument(src, CheckQuoted)
	doc.Add(saw, Literal{Path: Path{}.Elem(0), Start: 2, End: 5, Quote: '"'})
	doc.Add(axe, Literal{Path: Path{}.Elem(1), Start: 9, End: 12, Quote: '"'})
	assert.Equal(t, []*internal.Unit{saw, axe}, doc.Units())

	out, err := doc.Render(func(u *internal.Unit) string { return u.SourceText })
	require.NoError(t, err)
	assert.Equal(t, string(src), string(out))

	out, err = doc.Render(func(u *internal.Unit) string {
		if u == saw {
			return "톱"
		}
		return u.SourceText
	})
	require.NoError(t, err)
	assert.Equal(t, `["톱", "Axe"]`, string(out))

	_, err = doc.Render(func(u *internal.Unit) string { return `a "b"` })
	var serr *internal.SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, saw.ID, serr.Unit)
	assert.ErrorIs(t, err, ErrUnescapedQuote)
}
