// Package langfile scans legacy Minecraft .lang files.
//
// Format: key=value pairs, one per line. Lines starting with '#' are
// comments; blank lines and lines without '=' are carried through as-is.
// Values run to the end of the line and keep their escapes raw. Scan only
// locates value spans, so comments, ordering and line endings survive a
// round trip untouched.
package langfile

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/valpere/packtran/internal/span"
)

// SyntaxError reports input that is not a text file.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("lang: %s at byte %d", e.Msg, e.Offset)
}

// Scan returns the value span of every entry in document order. The path of
// each literal is its key.
func Scan(src []byte) ([]span.Literal, error) {
	if !utf8.Valid(src) {
		return nil, &SyntaxError{Offset: invalidAt(src), Msg: "invalid UTF-8"}
	}

	var lits []span.Literal
	pos := 0
	if bytes.HasPrefix(src, []byte("\xEF\xBB\xBF")) {
		pos = 3
	}
	for pos < len(src) {
		end := bytes.IndexByte(src[pos:], '\n')
		if end < 0 {
			end = len(src)
		} else {
			end += pos
		}
		lineEnd := end
		if lineEnd > pos && src[lineEnd-1] == '\r' {
			lineEnd--
		}

		line := src[pos:lineEnd]
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && trimmed[0] != '#' && !bytes.HasPrefix(trimmed, []byte("//")) {
			if eq := bytes.IndexByte(line, '='); eq > 0 {
				key := string(bytes.TrimSpace(line[:eq]))
				if key != "" {
					lits = append(lits, span.Literal{
						Path:  span.Path{{Key: key}},
						Start: pos + eq + 1,
						End:   lineEnd,
					})
				}
			}
		}
		pos = end + 1
	}
	return lits, nil
}

func invalidAt(src []byte) int {
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(src)
}

// CheckBody is the span.BodyCheck for .lang values: a value must stay on
// its line.
func CheckBody(body string, _ byte) error {
	if i := bytes.IndexAny([]byte(body), "\r\n"); i >= 0 {
		return fmt.Errorf("%w at byte %d", span.ErrLineBreak, i)
	}
	return nil
}
