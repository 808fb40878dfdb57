package nbtfile

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal/span"
)

func sampleFile() *File {
	return &File{Root: Tag{Type: TagCompound, Name: "", Value: []Tag{
		{Type: TagString, Name: "title", Value: &String{Text: "Getting Wood"}},
		{Type: TagInt, Name: "order", Value: int32(3)},
		{Type: TagDouble, Name: "x", Value: uint64(0x3FF8000000000000)},
		{Type: TagList, Name: "description", Value: &List{Elem: TagString, Items: []any{
			&String{Text: "Punch a tree"},
			&String{Text: "Nul\x00and 🌲"},
		}}},
		{Type: TagList, Name: "empty", Value: &List{Elem: TagEnd}},
		{Type: TagCompound, Name: "reward", Value: []Tag{
			{Type: TagByte, Name: "hidden", Value: int8(1)},
			{Type: TagIntArray, Name: "pos", Value: []int32{1, -2, 3}},
			{Type: TagLongArray, Name: "ids", Value: []int64{42}},
			{Type: TagByteArray, Name: "blob", Value: []byte{9, 8}},
			{Type: TagShort, Name: "count", Value: int16(-7)},
			{Type: TagLong, Name: "when", Value: int64(1 << 40)},
			{Type: TagFloat, Name: "chance", Value: uint32(0x3F000000)},
		}},
	}}}
}

func TestRoundTrip_Identity(t *testing.T) {
	encoded, err := sampleFile().Encode()
	require.NoError(t, err)

	f, err := Decode(encoded)
	require.NoError(t, err)
	assert.False(t, f.Gzipped)

	again, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, encoded, again)
}

func TestWalk_Paths(t *testing.T) {
	encoded, err := sampleFile().Encode()
	require.NoError(t, err)
	f, err := Decode(encoded)
	require.NoError(t, err)

	got := map[string]string{}
	f.Walk(func(p span.Path, s *String) { got[p.String()] = s.Text })
	assert.Equal(t, map[string]string{
		"title":          "Getting Wood",
		"description[0]": "Punch a tree",
		"description[1]": "Nul\x00and 🌲",
	}, got)
}

func TestEncode_ModifiedString(t *testing.T) {
	encoded, err := sampleFile().Encode()
	require.NoError(t, err)
	f, err := Decode(encoded)
	require.NoError(t, err)

	f.Walk(func(p span.Path, s *String) {
		if p.String() == "title" {
			s.Text = "나무 얻기"
		}
	})
	out, err := f.Encode()
	require.NoError(t, err)

	g, err := Decode(out)
	require.NoError(t, err)
	g.Walk(func(p span.Path, s *String) {
		if p.String() == "title" {
			assert.Equal(t, "나무 얻기", s.Text)
		}
	})
}

func TestEncode_StringTooLong(t *testing.T) {
	f := &File{Root: Tag{Type: TagCompound, Value: []Tag{
		{Type: TagString, Name: "text", Value: &String{Text: strings.Repeat("a", MaxStringBytes+1)}},
	}}}
	_, err := f.Encode()
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestGzip(t *testing.T) {
	plain, err := sampleFile().Encode()
	require.NoError(t, err)

	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	_, err = zw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	f, err := Decode(zipped.Bytes())
	require.NoError(t, err)
	assert.True(t, f.Gzipped)

	same, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, zipped.Bytes(), same)

	f.Walk(func(p span.Path, s *String) {
		if p.String() == "description[0]" {
			s.Text = "나무를 때리세요"
		}
	})
	changed, err := f.Encode()
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(changed))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "나무를 때리세요")
}

func TestDecode_Errors(t *testing.T) {
	plain, err := sampleFile().Encode()
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":     {},
		"end root":  {TagEnd},
		"truncated": plain[:len(plain)-3],
		"trailing":  append(bytes.Clone(plain), 0),
		"bad type":  {TagCompound, 0, 0, 99, 0, 0},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}

func TestMUTF8(t *testing.T) {
	for _, s := range []string{"", "plain", "é", "한국어", "\x00", "🌲 tree"} {
		enc := encodeMUTF8(s)
		assert.NotContains(t, string(enc), "\x00")
		dec, err := decodeMUTF8(enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec)
	}
	assert.Equal(t, []byte{0xC0, 0x80}, encodeMUTF8("\x00"))
	assert.Len(t, encodeMUTF8("🌲"), 6)

	// four-byte UTF-8 from non-Java writers still decodes
	dec, err := decodeMUTF8([]byte("🌲"))
	require.NoError(t, err)
	assert.Equal(t, "🌲", dec)

	_, err = decodeMUTF8([]byte{0xC3})
	assert.Error(t, err)
}
