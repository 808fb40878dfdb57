// Package scriptfile locates display strings in KubeJS scripts.
//
// Scripts are not parsed. A small set of call shapes known to carry player
// facing text is located with regular expressions and the string literal
// arguments of each call are read with a quote-aware reader:
//
//	.displayName('Copper Saw')
//	.formattedDisplayName(`Shiny Thing`)
//	.tooltip('Hold shift')
//	Text.gold("Legendary") / Component.red('Danger')
//	addTooltip('mod:item', 'One line') / addTooltip('mod:item', ['A', 'B'])
//
// Template literals with ${...} interpolation are left alone.
package scriptfile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/valpere/packtran/internal/span"
)

var (
	reDisplay = regexp.MustCompile(`\.(displayName|formattedDisplayName|tooltip)\s*\(\s*`)
	reText    = regexp.MustCompile(`\b(Text|Component)\.(black|darkBlue|darkGreen|darkAqua|darkRed|darkPurple|gold|gray|darkGray|blue|green|aqua|red|lightPurple|yellow|white|of)\s*\(\s*`)
	reTooltip = regexp.MustCompile(`\b(addTooltip)\s*\(\s*`)
)

// SyntaxError reports input that is not a text file.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("script: %s at byte %d", e.Msg, e.Offset)
}

// Scan returns the translatable literals of src in document order. The
// path of each literal names its call: displayName, Text.gold, addTooltip[1].
func Scan(src []byte) ([]span.Literal, error) {
	if !utf8.Valid(src) {
		return nil, &SyntaxError{Msg: "invalid UTF-8"}
	}

	var lits []span.Literal
	for _, m := range reDisplay.FindAllSubmatchIndex(src, -1) {
		if lit, ok := firstArg(src, m[1], string(src[m[2]:m[3]])); ok {
			lits = append(lits, lit)
		}
	}
	for _, m := range reText.FindAllSubmatchIndex(src, -1) {
		name := string(src[m[2]:m[3]]) + "." + string(src[m[4]:m[5]])
		if lit, ok := firstArg(src, m[1], name); ok {
			lits = append(lits, lit)
		}
	}
	for _, m := range reTooltip.FindAllSubmatchIndex(src, -1) {
		lits = append(lits, secondArg(src, m[1], string(src[m[2]:m[3]]))...)
	}

	sort.Slice(lits, func(i, j int) bool { return lits[i].Start < lits[j].Start })
	return lits, nil
}

// firstArg reads a literal that is the whole argument list: ('text').
func firstArg(src []byte, pos int, name string) (span.Literal, bool) {
	start, end, q, next, ok := readLiteral(src, pos)
	if !ok || !closes(src, next, ')') {
		return span.Literal{}, false
	}
	if !translatable(string(src[start:end]), q) {
		return span.Literal{}, false
	}
	return span.Literal{Path: span.Path{{Key: name}}, Start: start, End: end, Quote: q}, true
}

// secondArg skips the first argument and reads the second, which is either
// a literal or an array of literals.
func secondArg(src []byte, pos int, name string) []span.Literal {
	pos = skipArg(src, pos)
	if pos >= len(src) || src[pos] != ',' {
		return nil
	}
	pos = skipSpace(src, pos+1)
	if pos >= len(src) {
		return nil
	}

	path := span.Path{{Key: name}}
	if src[pos] != '[' {
		start, end, q, _, ok := readLiteral(src, pos)
		if !ok || !translatable(string(src[start:end]), q) {
			return nil
		}
		return []span.Literal{{Path: path, Start: start, End: end, Quote: q}}
	}

	var lits []span.Literal
	pos++
	for i := 0; ; i++ {
		pos = skipSpace(src, pos)
		if pos >= len(src) || src[pos] == ']' {
			return lits
		}
		start, end, q, next, ok := readLiteral(src, pos)
		if !ok {
			return lits
		}
		if translatable(string(src[start:end]), q) {
			lits = append(lits, span.Literal{Path: path.Elem(i), Start: start, End: end, Quote: q})
		}
		pos = skipSpace(src, next)
		if pos < len(src) && src[pos] == ',' {
			pos++
		}
	}
}

// readLiteral reads a quoted literal starting at pos and returns its body
// span, quote byte, and the position after the closing quote.
func readLiteral(src []byte, pos int) (start, end int, quote byte, next int, ok bool) {
	if pos >= len(src) {
		return
	}
	quote = src[pos]
	if quote != '"' && quote != '\'' && quote != '`' {
		return
	}
	for i := pos + 1; i < len(src); i++ {
		switch c := src[i]; {
		case c == '\\':
			i++
		case c == '\n' && quote != '`':
			return
		case c == quote:
			return pos + 1, i, quote, i + 1, true
		}
	}
	return
}

// skipArg advances past one argument: a literal, or anything up to the
// next top-level comma or closing parenthesis.
func skipArg(src []byte, pos int) int {
	if _, _, _, next, ok := readLiteral(src, pos); ok {
		return skipSpace(src, next)
	}
	depth := 0
	for ; pos < len(src); pos++ {
		switch src[pos] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return pos
			}
			depth--
		case ',':
			if depth == 0 {
				return pos
			}
		case '\n':
			return pos
		}
	}
	return pos
}

func closes(src []byte, pos int, c byte) bool {
	pos = skipSpace(src, pos)
	return pos < len(src) && src[pos] == c
}

func skipSpace(src []byte, pos int) int {
	for pos < len(src) && (src[pos] == ' ' || src[pos] == '\t' || src[pos] == '\n' || src[pos] == '\r') {
		pos++
	}
	return pos
}

func translatable(body string, quote byte) bool {
	if strings.TrimSpace(body) == "" {
		return false
	}
	return !(quote == '`' && strings.Contains(body, "${"))
}

// CheckBody is the span.BodyCheck for script literals.
func CheckBody(body string, quote byte) error {
	if err := span.CheckQuoted(body, quote); err != nil {
		return err
	}
	if quote != '`' && strings.ContainsAny(body, "\r\n") {
		return span.ErrLineBreak
	}
	if quote == '`' && strings.Contains(body, "${") {
		return fmt.Errorf("template interpolation in translated text")
	}
	return nil
}
