package snbtfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chapter = `{
	default_hide_dependency_lines: false
	filename: "getting_started"
	group: ""
	icon: "minecraft:oak_sapling"
	id: "5B1CD4AB3E0C9E91"
	order_index: 0
	quests: [
		{
			description: [
				"Punch a tree to collect &aLogs&r."
				""
				"Then craft \"planks\"."
			]
			id: "2C5F3A1B8D7E6F40"
			tasks: [{
				count: 16L
				id: "6A9B8C7D6E5F4A3B"
				item: "minecraft:oak_log"
				type: "item"
			}]
			title: "Getting Wood"
			x: -1.5d
			y: 0.0d
		}
	]
	title: 'Chapter One'
	bytes: [B; 1b, 2b]
}
`

func TestScan_Chapter(t *testing.T) {
	lits, err := Scan([]byte(chapter))
	require.NoError(t, err)

	got := map[string]string{}
	for _, l := range lits {
		got[l.Path.String()] = l.Raw([]byte(chapter))
	}
	assert.Equal(t, "getting_started", got["filename"])
	assert.Equal(t, "Punch a tree to collect &aLogs&r.", got["quests[0].description[0]"])
	assert.Equal(t, "", got["quests[0].description[1]"])
	assert.Equal(t, `Then craft \"planks\".`, got["quests[0].description[2]"])
	assert.Equal(t, "Getting Wood", got["quests[0].title"])
	assert.Equal(t, "minecraft:oak_log", got["quests[0].tasks[0].item"])
	assert.Equal(t, "Chapter One", got["title"])
}

func TestScan_QuoteStyles(t *testing.T) {
	src := []byte(`{title: 'It''s', "quoted key": "v", list: ["a", 'b']}`)
	_, err := Scan(src)
	// 'It' followed by 's' is not a separator: the document is malformed.
	assert.Error(t, err)

	src = []byte(`{title: 'It\'s', "quoted key": "v", list: ["a", 'b']}`)
	lits, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, lits, 4)
	assert.Equal(t, byte('\''), lits[0].Quote)
	assert.Equal(t, "quoted key", lits[1].Path.String())
	assert.Equal(t, "list[1]", lits[3].Path.String())
}

func TestScan_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		`{title: "open`,
		`{title "x"}`,
		`{a: [1, 2}`,
		`{a: 1} trailing`,
		`{a: @}`,
	} {
		_, err := Scan([]byte(src))
		var se *SyntaxError
		assert.ErrorAs(t, err, &se, src)
	}
}

func TestCheckBody(t *testing.T) {
	assert.NoError(t, CheckBody(`He said \"go\"`, '"'))
	assert.NoError(t, CheckBody(`It's fine`, '"'))
	assert.Error(t, CheckBody(`He said "go"`, '"'))
	assert.Error(t, CheckBody(`It's broken`, '\''))
	assert.Error(t, CheckBody(`ends with \`, '"'))
}

func TestUnescape(t *testing.T) {
	assert.Equal(t, "a \"b\"\nc", Unescape(`a \"b\"\nc`))
}
