package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valpere/packtran/internal"
)

func sample() *internal.RunStatistics {
	return &internal.RunStatistics{
		RunID:           "3f1c",
		Modpack:         "/packs/atm9",
		SourceLocale:    "en_us",
		TargetLocale:    "ko_kr",
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		State:           "aborted",
		Incomplete:      true,
		DurationMS:      61500,
		UnitsTotal:      10,
		UnitsCompleted:  6,
		UnitsTranslated: 5,
		UnitsCached:     1,
		InputTokens:     12345,
		OutputTokens:    678,
		HandlerUnits:    map[internal.FileType]int{internal.FileTypeLangJSON: 7, internal.FileTypeFTBQuests: 3},
		Files: []internal.FileResult{
			{Path: "config/ftbquests/quests/chapters/ch1.snbt", Handler: internal.FileTypeFTBQuests, Status: internal.FilePartial, Units: 3, Translated: 1},
			{Path: "kubejs/broken.js", Handler: internal.FileTypeKubeJS, Status: internal.FileSkipped, Error: "parse kubejs/broken.js: unterminated | string"},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(sample()))

	assert.True(t, strings.HasPrefix(md, "# Translation report\n"))
	assert.Contains(t, md, "**Incomplete run** (aborted)")
	assert.Contains(t, md, "| Languages | en_us → ko_kr |")
	assert.Contains(t, md, "| Provider | openai gpt-4o-mini |")
	assert.Contains(t, md, "| Duration | 1m2s |")
	assert.Contains(t, md, "| Tokens | 12,345 in / 678 out |")
	assert.Contains(t, md, "| 10 | 6 | 5 | 1 | 0 | 0 |")
	assert.Contains(t, md, `unterminated \| string`)
	assert.Less(t, strings.Index(md, "| ftbquests | 3 |"), strings.Index(md, "| lang_json | 7 |"))
}

func TestHTML(t *testing.T) {
	out := string(HTML(Markdown(sample()), "Report <atm9>"))

	assert.Contains(t, out, "<title>Report &lt;atm9&gt;</title>")
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<strong>Incomplete run</strong>")
}
