package jsonfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Paths(t *testing.T) {
	src := []byte(`{
  "name": "Fire Walker",
  "badges": [{"text": "Immune"}, "plain"],
  "hidden": false,
  "order": -1.5e3,
  "nested": {"deep": {"title": "Deep"}}
}`)
	lits, err := Scan(src)
	require.NoError(t, err)

	var got []string
	for _, l := range lits {
		got = append(got, l.Path.String()+"="+l.Raw(src))
	}
	assert.Equal(t, []string{
		"name=Fire Walker",
		"badges[0].text=Immune",
		"badges[1]=plain",
		"nested.deep.title=Deep",
	}, got)
	assert.Equal(t, "badges", lits[2].Path.Key())
}

func TestScan_Lenient(t *testing.T) {
	src := []byte("\xEF\xBB\xBF" + `{
  // line comment
  "a": "one", /* block */
  b: "two",
  "list": ["x", "y",],
}`)
	lits, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, lits, 4)
	assert.Equal(t, "b", lits[1].Path.String())
	assert.Equal(t, "list[1]", lits[3].Path.String())
}

func TestScan_EscapedQuotesStayRaw(t *testing.T) {
	src := []byte(`{"k": "say \"hi\"\n"}`)
	lits, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, lits, 1)
	assert.Equal(t, `say \"hi\"\n`, lits[0].Raw(src))
	assert.Equal(t, "say \"hi\"\n", Decode(lits[0].Raw(src)))
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "   "},
		{"unterminated string", `{"a": "b`},
		{"missing colon", `{"a" "b"}`},
		{"unterminated object", `{"a": "b"`},
		{"garbage after value", `{} {}`},
		{"unterminated comment", `{"a": 1 /* }`},
		{"bad character", `{"a": @}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan([]byte(tt.src))
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestCheckBody(t *testing.T) {
	tests := []struct {
		body string
		ok   bool
	}{
		{`plain text`, true},
		{`escaped \"quote\" and \n newline`, true},
		{`unicode \u00e9`, true},
		{`bare " quote`, false},
		{`dangling \`, false},
		{`bad \q escape`, false},
		{`short \u00`, false},
		{"raw\nnewline", false},
	}
	for _, tt := range tests {
		err := CheckBody(tt.body, '"')
		if tt.ok {
			assert.NoError(t, err, tt.body)
		} else {
			assert.Error(t, err, tt.body)
		}
	}
}
