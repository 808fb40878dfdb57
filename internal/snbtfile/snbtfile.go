// Package snbtfile scans stringified NBT (SNBT) as written by FTB Quests.
//
// Supported: compounds with quoted or bare keys, lists, typed arrays
// ([B; ...], [I; ...], [L; ...]), quoted strings in either quote style,
// bare words and suffixed numbers (1b, 2.5d, 10L). Entries may be separated
// by commas, newlines, or both, as FTB Quests does. Only quoted string
// values are reported; bare words are identifiers, never prose.
package snbtfile

import (
	"fmt"

	"github.com/valpere/packtran/internal/span"
)

const maxDepth = 512

// SyntaxError describes where scanning stopped.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("snbt: %s at byte %d", e.Msg, e.Offset)
}

type scanner struct {
	src  []byte
	pos  int
	lits []span.Literal
}

// Scan returns every quoted string value in src in document order.
func Scan(src []byte) ([]span.Literal, error) {
	s := &scanner{src: src}
	if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
		s.pos = 3
	}
	s.skipSpace()
	if s.pos >= len(s.src) {
		return nil, s.errorf("empty document")
	}
	if err := s.value(nil, 0); err != nil {
		return nil, err
	}
	s.skipSpace()
	if s.pos < len(s.src) {
		return nil, s.errorf("unexpected %q after top-level value", s.src[s.pos])
	}
	return s.lits, nil
}

func (s *scanner) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: s.pos, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

// skipSeparator consumes whitespace and at most one comma.
func (s *scanner) skipSeparator() {
	s.skipSpace()
	if s.pos < len(s.src) && s.src[s.pos] == ',' {
		s.pos++
		s.skipSpace()
	}
}

func (s *scanner) value(path span.Path, depth int) error {
	if depth > maxDepth {
		return s.errorf("nesting deeper than %d", maxDepth)
	}
	if s.pos >= len(s.src) {
		return s.errorf("unexpected end of input")
	}
	switch c := s.src[s.pos]; {
	case c == '{':
		return s.compound(path, depth)
	case c == '[':
		return s.list(path, depth)
	case c == '"' || c == '\'':
		start, end, err := s.quoted(c)
		if err != nil {
			return err
		}
		s.lits = append(s.lits, span.Literal{Path: path, Start: start, End: end, Quote: c})
		return nil
	case isBare(c):
		for s.pos < len(s.src) && isBare(s.src[s.pos]) {
			s.pos++
		}
		return nil
	default:
		return s.errorf("unexpected %q", c)
	}
}

func (s *scanner) compound(path span.Path, depth int) error {
	s.pos++ // {
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return s.errorf("unterminated compound")
		}
		if s.src[s.pos] == '}' {
			s.pos++
			return nil
		}

		key, err := s.key()
		if err != nil {
			return err
		}
		s.skipSpace()
		if s.pos >= len(s.src) || s.src[s.pos] != ':' {
			return s.errorf("expected ':' after key %q", key)
		}
		s.pos++
		s.skipSpace()
		if err := s.value(path.Child(key), depth+1); err != nil {
			return err
		}
		s.skipSeparator()
	}
}

func (s *scanner) list(path span.Path, depth int) error {
	s.pos++ // [
	s.skipSpace()
	if s.pos+1 < len(s.src) && (s.src[s.pos] == 'B' || s.src[s.pos] == 'I' || s.src[s.pos] == 'L') {
		// typed array header: [I; 1, 2, 3]
		p := s.pos + 1
		for p < len(s.src) && (s.src[p] == ' ' || s.src[p] == '\t') {
			p++
		}
		if p < len(s.src) && s.src[p] == ';' {
			s.pos = p + 1
		}
	}
	for i := 0; ; i++ {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return s.errorf("unterminated list")
		}
		if s.src[s.pos] == ']' {
			s.pos++
			return nil
		}
		if err := s.value(path.Elem(i), depth+1); err != nil {
			return err
		}
		s.skipSeparator()
	}
}

func (s *scanner) key() (string, error) {
	c := s.src[s.pos]
	if c == '"' || c == '\'' {
		start, end, err := s.quoted(c)
		if err != nil {
			return "", err
		}
		return Unescape(string(s.src[start:end])), nil
	}
	start := s.pos
	for s.pos < len(s.src) && isBare(s.src[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return "", s.errorf("expected key, got %q", c)
	}
	return string(s.src[start:s.pos]), nil
}

func (s *scanner) quoted(q byte) (int, int, error) {
	open := s.pos
	s.pos++
	start := s.pos
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
		case q:
			end := s.pos
			s.pos++
			return start, end, nil
		default:
			s.pos++
		}
	}
	s.pos = open
	return 0, 0, s.errorf("unterminated string")
}

func isBare(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c == '_' || c == '-' || c == '+' || c == '.'
}

// CheckBody is the span.BodyCheck for SNBT strings.
func CheckBody(body string, quote byte) error {
	return span.CheckQuoted(body, quote)
}

// Unescape resolves backslash escapes in a string body.
func Unescape(body string) string {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, body[i])
			}
			continue
		}
		out = append(out, body[i])
	}
	return string(out)
}
