// Package report renders run statistics as a Markdown document and as HTML.
package report

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/valpere/packtran/internal"
)

// Markdown renders stats as a Markdown report.
func Markdown(stats *internal.RunStatistics) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Translation report\n\n")
	if stats.Incomplete {
		fmt.Fprintf(&b, "> **Incomplete run** (%s). Untranslated text was kept in the source language.\n\n", stats.State)
	}

	b.WriteString("| | |\n|---|---|\n")
	row(&b, "Run", "`"+stats.RunID+"`")
	row(&b, "Modpack", "`"+stats.Modpack+"`")
	row(&b, "Languages", stats.SourceLocale+" → "+stats.TargetLocale)
	if stats.Provider != "" {
		row(&b, "Provider", strings.TrimSpace(stats.Provider+" "+stats.Model))
	}
	row(&b, "State", stats.State)
	row(&b, "Duration", stats.Duration().Round(time.Second).String())
	row(&b, "Tokens", fmt.Sprintf("%s in / %s out", humanize.Comma(int64(stats.InputTokens)), humanize.Comma(int64(stats.OutputTokens))))
	row(&b, "Glossary terms", humanize.Comma(int64(stats.GlossaryTerms)))
	if stats.Error != "" {
		row(&b, "Error", escape(stats.Error))
	}

	b.WriteString("\n## Units\n\n| Total | Completed | Translated | Cached | Skipped | Failed |\n|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n",
		stats.UnitsTotal, stats.UnitsCompleted, stats.UnitsTranslated, stats.UnitsCached, stats.UnitsSkipped, stats.UnitsFailed)
	if stats.UnitsReviewed > 0 {
		fmt.Fprintf(&b, "\nReview pass: %d reviewed, %d corrected.\n", stats.UnitsReviewed, stats.UnitsCorrected)
	}

	if len(stats.HandlerUnits) > 0 {
		b.WriteString("\n## Handlers\n\n| Handler | Units |\n|---|---:|\n")
		names := make([]string, 0, len(stats.HandlerUnits))
		for name := range stats.HandlerUnits {
			names = append(names, string(name))
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "| %s | %d |\n", name, stats.HandlerUnits[internal.FileType(name)])
		}
	}

	fmt.Fprintf(&b, "\n## Files\n\n%d discovered, %d processed, %d skipped, %d failed.\n\n",
		stats.FilesTotal, stats.FilesProcessed, stats.FilesSkipped, stats.FilesFailed)
	if len(stats.Files) > 0 {
		b.WriteString("| File | Handler | Status | Units | Translated | Failed | Note |\n|---|---|---|---:|---:|---:|---|\n")
		for _, f := range stats.Files {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %d | %d | %d | %s |\n",
				f.Path, f.Handler, f.Status, f.Units, f.Translated, f.Failed, escape(f.Error))
		}
	}
	return b.Bytes()
}

func row(b *bytes.Buffer, key, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", key, value)
}

// escape keeps free text from breaking a table row.
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// HTML converts Markdown to a standalone HTML page.
func HTML(md []byte, title string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", stdhtml.EscapeString(title))
	b.WriteString(ToHTML(md))
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

func ToHTML(md []byte) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}
