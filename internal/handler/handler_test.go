package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/nbtfile"
)

const questChapter = `{
	filename: "getting_started"
	icon: "minecraft:oak_sapling"
	quests: [
		{
			description: [
				"Punch a tree to collect &aLogs&r."
				""
				"{\"text\":\"raw component\"}"
			]
			id: "2C5F3A1B8D7E6F40"
			title: "Getting Wood"
			x: -1.5d
		}
	]
	title: 'Chapter One'
}
`

var fixtures = []struct {
	rel  string
	src  string
	want []string
}{
	{
		rel: "config/ftbquests/quests/chapters/getting_started.snbt",
		src: questChapter,
		want: []string{
			"quests[0].description[0]",
			"quests[0].title",
			"title",
		},
	},
	{
		rel: "config/ftbquests/quests/lang/en_us.snbt",
		src: `{
	chapter.5B1CD4AB3E0C9E91.title: "Getting Started"
	"quest.2C5F3A1B8D7E6F40.quest_desc": [
		"Punch a tree."
		""
	]
	file.0000000000000001.icon: "minecraft:book"
}
`,
		want: []string{
			"chapter.5B1CD4AB3E0C9E91.title",
			"quest.2C5F3A1B8D7E6F40.quest_desc[0]",
		},
	},
	{
		rel: "kubejs/startup_scripts/items.js",
		src: "event.create('saw').displayName('Saw')\nevent.create('axe').displayName(\"Axe\")\n",
		want: []string{"displayName", "displayName~1"},
	},
	{
		rel: "data/guide/patchouli_books/guide/en_us/entries/basics.json",
		src: `{
  // entry
  "name": "Basics",
  "icon": "minecraft:book",
  "pages": [
    {"type": "patchouli:text", "text": "$(l)Hello$() world"},
    "A plain page",
  ]
}`,
		want: []string{"name", "pages[0].text", "pages[1]"},
	},
	{
		rel: "data/origins/powers/fly.json",
		src: `{"type": "origins:multiple", "name": "Flight", "description": "You can fly.\nFor a while."}`,
		want: []string{"name", "description"},
	},
	{
		rel:  "data/extra/origins/merling.json",
		src:  `{"power.extra.gills.name": "Gills", "icon": "minecraft:cod", "impact": 2}`,
		want: []string{"power.extra.gills.name"},
	},
	{
		rel:  "mods/origins.jar!/assets/origins/lang/en_us.json",
		src:  "{\n  \"power.origins.water_breathing.name\": \"Water Breathing\",\n  \"power.origins.water_breathing.description\": \"You can breathe underwater.\"\n}\n",
		want: []string{"power.origins.water_breathing.name", "power.origins.water_breathing.description"},
	},
	{
		rel: "config/puffish_skills/categories/combat/category.json",
		src: `{"title": "Combat", "icon": {"type": "item", "data": {"item": "minecraft:iron_sword"}}}`,
		want: []string{"title"},
	},
	{
		rel: "data/tconstruct/book/materials/iron.json",
		src: `{"title": "Iron", "text": [{"text": "Hard metal"}]}`,
		want: []string{"title", "text[0].text"},
	},
	{
		rel: "config/the_vault/quest/quests.json",
		src: `{"quests": [{"id": "q1", "name": "First Steps", "descriptionData": {"description": [{"text": "Enter the vault", "color": "gold"}]}}]}`,
		want: []string{"quests[0].name", "quests[0].descriptionData.description[0].text"},
	},
	{
		rel:  "assets/mod/lang/en_us.json",
		src:  "{\n  \"_comment\": \"Generated\",\n  \"item.mod.saw\": \"Saw\",\n  \"item.mod.empty\": \"\"\n}\n",
		want: []string{"item.mod.saw"},
	},
	{
		rel:  "resources/lang/en_US.lang",
		src:  "# comment\r\ntile.saw.name=Saw\r\n\r\nitem.axe.name=Axe of %s\r\n",
		want: []string{"tile.saw.name", "item.axe.name"},
	},
}

func TestExtract_RoundTripIdentity(t *testing.T) {
	reg := Default("en_us")
	for _, fx := range fixtures {
		t.Run(fx.rel, func(t *testing.T) {
			h, ok := reg.Lookup(fx.rel)
			require.True(t, ok)

			doc, err := h.Extract(fx.rel, []byte(fx.src))
			require.NoError(t, err)

			var ids []string
			for _, u := range doc.Units() {
				assert.Equal(t, h.Name(), u.Context.FileType)
				assert.Equal(t, fx.rel, u.ID.File)
				ids = append(ids, internal.UnitID{Path: u.ID.Path, Occurrence: u.ID.Occurrence}.String()[1:])
			}
			assert.ElementsMatch(t, fx.want, ids)

			out, err := Identity(doc)
			require.NoError(t, err)
			assert.Equal(t, fx.src, string(out))

			for _, u := range doc.Units() {
				u.Resolve(u.SourceText)
			}
			out, reverted, err := Apply(doc)
			require.NoError(t, err)
			assert.Empty(t, reverted)
			assert.Equal(t, fx.src, string(out))
		})
	}
}

func TestExtract_Context(t *testing.T) {
	doc, err := FTBQuests("en_us").Extract("ftbquests/c.snbt", []byte(questChapter))
	require.NoError(t, err)

	byPath := map[string]*internal.Unit{}
	for _, u := range doc.Units() {
		byPath[u.ID.Path] = u
	}
	desc := byPath["quests[0].description[0]"]
	require.NotNil(t, desc)
	assert.Equal(t, "description", desc.Context.Key)
	assert.Equal(t, "Getting Wood", desc.Context.Sibling)
	assert.Empty(t, byPath["quests[0].title"].Context.Sibling)
}

func TestApply_Translated(t *testing.T) {
	src := `{"item.mod.saw": "Saw", "item.mod.axe": "Axe"}`
	doc, err := LangJSON("en_us").Extract("assets/mod/lang/en_us.json", []byte(src))
	require.NoError(t, err)

	units := doc.Units()
	require.Len(t, units, 2)
	units[0].Resolve("톱")
	units[1].Resolve(`Say \"axe\"`)

	out, reverted, err := Apply(doc)
	require.NoError(t, err)
	assert.Empty(t, reverted)
	assert.Equal(t, `{"item.mod.saw": "톱", "item.mod.axe": "Say \"axe\""}`, string(out))
}

func TestApply_RevertsBrokenUnit(t *testing.T) {
	src := "{\n  \"a\": \"Alpha\",\n  \"b\": \"Beta\"\n}"
	doc, err := LangJSON("en_us").Extract("lang/en_us.json", []byte(src))
	require.NoError(t, err)

	units := doc.Units()
	units[0].Resolve(`Say "hi"`)
	units[1].Resolve("베타")

	out, reverted, err := Apply(doc)
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	assert.Equal(t, "a", reverted[0].ID.Path)
	assert.Equal(t, internal.StatusFailed, units[0].Status)
	assert.Equal(t, "Alpha", units[0].Output())
	assert.Equal(t, "{\n  \"a\": \"Alpha\",\n  \"b\": \"베타\"\n}", string(out))
}

func TestApply_ScriptLineBreak(t *testing.T) {
	src := "item.displayName('Saw')"
	doc, err := KubeJS().Extract("kubejs/a.js", []byte(src))
	require.NoError(t, err)
	doc.Units()[0].Resolve("line\nbreak")

	out, reverted, err := Apply(doc)
	require.NoError(t, err)
	assert.Len(t, reverted, 1)
	assert.Equal(t, src, string(out))
}

func TestExtract_ParseError(t *testing.T) {
	_, err := Origins().Extract("origins/bad.json", []byte(`{"name": "x",, }`))
	var perr *internal.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "origins/bad.json", perr.Path)

	_, err = FTBQuests("en_us").Extract("ftbquests/bad.nbt", []byte{10, 0})
	require.ErrorAs(t, err, &perr)
}

func TestExtract_NBT(t *testing.T) {
	f := &nbtfile.File{Root: nbtfile.Tag{Type: nbtfile.TagCompound, Value: []nbtfile.Tag{
		{Type: nbtfile.TagString, Name: "title", Value: &nbtfile.String{Text: "Chapter"}},
		{Type: nbtfile.TagString, Name: "icon", Value: &nbtfile.String{Text: "minecraft:stone"}},
		{Type: nbtfile.TagList, Name: "quests", Value: &nbtfile.List{Elem: nbtfile.TagCompound, Items: []any{
			[]nbtfile.Tag{
				{Type: nbtfile.TagString, Name: "title", Value: &nbtfile.String{Text: "Quest"}},
				{Type: nbtfile.TagString, Name: "subtitle", Value: &nbtfile.String{Text: "Do it"}},
				{Type: nbtfile.TagInt, Name: "x", Value: int32(4)},
			},
		}}},
	}}}
	data, err := f.Encode()
	require.NoError(t, err)

	doc, err := FTBQuests("en_us").Extract("config/ftbquests/quests/chapters/c.nbt", data)
	require.NoError(t, err)
	units := doc.Units()
	require.Len(t, units, 3)
	assert.Equal(t, "quests[0].subtitle", units[2].ID.Path)
	assert.Equal(t, "Quest", units[2].Context.Sibling)

	same, err := Identity(doc)
	require.NoError(t, err)
	assert.Equal(t, data, same)

	units[0].Resolve("챕터")
	out, _, err := Apply(doc)
	require.NoError(t, err)

	again, err := FTBQuests("en_us").Extract("c.nbt", out)
	require.NoError(t, err)
	assert.Equal(t, "챕터", again.Units()[0].SourceText)
}

func TestRegistry_Lookup(t *testing.T) {
	reg := Default("en_us")
	tests := []struct {
		rel  string
		want internal.FileType
	}{
		{"kubejs/startup_scripts/items.js", internal.FileTypeKubeJS},
		{"kubejs/server_scripts/recipes.ts", internal.FileTypeKubeJS},
		{"kubejs/assets/mod/lang/en_us.json", internal.FileTypeLangJSON},
		{"config/ftbquests/quests/chapters/intro.snbt", internal.FileTypeFTBQuests},
		{"config/ftbquests/quests/data.nbt", internal.FileTypeFTBQuests},
		{"config/ftbquests/quests/lang/en_us.snbt", internal.FileTypeFTBQuests},
		{"data/mod/patchouli_books/guide/en_us/entries/a.json", internal.FileTypePatchouli},
		{"data/mod/patchouli_books/guide/book.json", internal.FileTypePatchouli},
		{"data/origins/powers/fly.json", internal.FileTypeOrigins},
		{"mods/origins.jar!/data/origins/origins/human.json", internal.FileTypeOrigins},
		{"mods/origins.jar!/assets/origins/lang/en_us.json", internal.FileTypeLangJSON},
		{"config/puffish_skills/categories/combat/definitions.json", internal.FileTypePuffishSkills},
		{"data/tconstruct/book/intro.json", internal.FileTypeTConstruct},
		{"config/the_vault/quest/quests.json", internal.FileTypeVaultQuest},
		{"mods/foo.jar!/assets/foo/lang/en_us.json", internal.FileTypeLangJSON},
		{`resources\lang\en_US.lang`, internal.FileTypeLang},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			h, ok := reg.Lookup(tt.rel)
			require.True(t, ok)
			assert.Equal(t, tt.want, h.Name())
		})
	}

	for _, rel := range []string{
		"data/mod/patchouli_books/guide/ko_kr/entries/a.json",
		"assets/foo/lang/ko_kr.json",
		"assets/origins/lang/ko_kr.json",
		"config/ftbquests/settings.json",
		"config/ftbquests/quests/lang/ko_kr.snbt",
		"data/mod/patchouli_books/my_guide/ko_kr/entries/a.json",
		"kubejs/README.md",
		"config/puffish_skills/categories/combat/skills.json",
	} {
		_, ok := reg.Lookup(rel)
		assert.False(t, ok, rel)
	}
}

func TestRegistry_Priority(t *testing.T) {
	names := Default("en_us").Names()
	require.Len(t, names, 9)
	assert.Equal(t, internal.FileTypeKubeJS, names[0])
	assert.Equal(t, internal.FileTypeFTBQuests, names[1])
	assert.Equal(t, internal.FileTypeLang, names[len(names)-1])
}
