package langfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	src := []byte("# Blocks\r\ntile.stone.name=Stone\r\n\r\nitem.sword.name = Sword of %s\r\nnot an entry\r\ngui.empty=\r\nlast=No newline")
	lits, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, lits, 4)

	assert.Equal(t, "tile.stone.name", lits[0].Path.String())
	assert.Equal(t, "Stone", lits[0].Raw(src))
	assert.Equal(t, " Sword of %s", lits[1].Raw(src))
	assert.Equal(t, "", lits[2].Raw(src))
	assert.Equal(t, "No newline", lits[3].Raw(src))
}

func TestScan_InvalidUTF8(t *testing.T) {
	_, err := Scan([]byte("key=\xff\xfe"))
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 4, se.Offset)
}

func TestCheckBody(t *testing.T) {
	assert.NoError(t, CheckBody(`Line\nescaped`, 0))
	assert.Error(t, CheckBody("Line\nbroken", 0))
}
