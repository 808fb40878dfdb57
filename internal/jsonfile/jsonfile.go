// Package jsonfile scans JSON documents for string values without
// re-serializing them.
//
// The scanner is lenient the same way Minecraft's resource loaders are:
// line and block comments, trailing commas, unquoted object keys and a
// leading byte order mark are accepted. Scan reports the byte span of
// every string value together with its key path; the caller patches the
// spans it wants to change and copies the rest of the file verbatim.
package jsonfile

import (
	"encoding/json"
	"fmt"

	"github.com/valpere/packtran/internal/span"
)

// maxDepth bounds nesting to keep malformed input from exhausting the stack.
const maxDepth = 512

// SyntaxError describes where scanning stopped.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("json: %s at byte %d", e.Msg, e.Offset)
}

type scanner struct {
	src  []byte
	pos  int
	lits []span.Literal
}

// Scan returns every string value in src in document order. Object keys are
// not reported.
func Scan(src []byte) ([]span.Literal, error) {
	s := &scanner{src: src}
	if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
		s.pos = 3
	}
	if err := s.skipSpace(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.src) {
		return nil, s.errorf("empty document")
	}
	if err := s.value(nil, 0); err != nil {
		return nil, err
	}
	if err := s.skipSpace(); err != nil {
		return nil, err
	}
	if s.pos < len(s.src) {
		return nil, s.errorf("unexpected %q after top-level value", s.src[s.pos])
	}
	return s.lits, nil
}

func (s *scanner) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: s.pos, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) skipSpace() error {
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			start := s.pos
			s.pos += 2
			for {
				if s.pos+1 >= len(s.src) {
					s.pos = start
					return s.errorf("unterminated comment")
				}
				if s.src[s.pos] == '*' && s.src[s.pos+1] == '/' {
					s.pos += 2
					break
				}
				s.pos++
			}
		default:
			return nil
		}
	}
	return nil
}

func (s *scanner) value(path span.Path, depth int) error {
	if depth > maxDepth {
		return s.errorf("nesting deeper than %d", maxDepth)
	}
	if s.pos >= len(s.src) {
		return s.errorf("unexpected end of input")
	}
	switch c := s.src[s.pos]; c {
	case '{':
		return s.object(path, depth)
	case '[':
		return s.array(path, depth)
	case '"':
		start, end, err := s.str()
		if err != nil {
			return err
		}
		s.lits = append(s.lits, span.Literal{Path: path, Start: start, End: end, Quote: '"'})
		return nil
	default:
		if !isBare(c) {
			return s.errorf("unexpected %q", c)
		}
		for s.pos < len(s.src) && isBare(s.src[s.pos]) {
			s.pos++
		}
		return nil
	}
}

func (s *scanner) object(path span.Path, depth int) error {
	s.pos++ // {
	for {
		if err := s.skipSpace(); err != nil {
			return err
		}
		if s.pos >= len(s.src) {
			return s.errorf("unterminated object")
		}
		if s.src[s.pos] == '}' {
			s.pos++
			return nil
		}

		key, err := s.key()
		if err != nil {
			return err
		}
		if err := s.skipSpace(); err != nil {
			return err
		}
		if s.pos >= len(s.src) || s.src[s.pos] != ':' {
			return s.errorf("expected ':' after key %q", key)
		}
		s.pos++
		if err := s.skipSpace(); err != nil {
			return err
		}
		if err := s.value(path.Child(key), depth+1); err != nil {
			return err
		}
		if err := s.skipSpace(); err != nil {
			return err
		}
		if s.pos >= len(s.src) {
			return s.errorf("unterminated object")
		}
		switch s.src[s.pos] {
		case ',':
			s.pos++
		case '}':
			s.pos++
			return nil
		default:
			return s.errorf("expected ',' or '}' in object, got %q", s.src[s.pos])
		}
	}
}

func (s *scanner) array(path span.Path, depth int) error {
	s.pos++ // [
	for i := 0; ; i++ {
		if err := s.skipSpace(); err != nil {
			return err
		}
		if s.pos >= len(s.src) {
			return s.errorf("unterminated array")
		}
		if s.src[s.pos] == ']' {
			s.pos++
			return nil
		}
		if err := s.value(path.Elem(i), depth+1); err != nil {
			return err
		}
		if err := s.skipSpace(); err != nil {
			return err
		}
		if s.pos >= len(s.src) {
			return s.errorf("unterminated array")
		}
		switch s.src[s.pos] {
		case ',':
			s.pos++
		case ']':
			s.pos++
			return nil
		default:
			return s.errorf("expected ',' or ']' in array, got %q", s.src[s.pos])
		}
	}
}

func (s *scanner) key() (string, error) {
	if s.src[s.pos] == '"' {
		start, end, err := s.str()
		if err != nil {
			return "", err
		}
		var key string
		if err := json.Unmarshal(s.src[start-1:end+1], &key); err != nil {
			return string(s.src[start:end]), nil
		}
		return key, nil
	}
	start := s.pos
	for s.pos < len(s.src) && isIdent(s.src[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return "", s.errorf("expected object key, got %q", s.src[s.pos])
	}
	return string(s.src[start:s.pos]), nil
}

// str consumes a double-quoted string and returns its body span.
func (s *scanner) str() (int, int, error) {
	open := s.pos
	s.pos++
	start := s.pos
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
		case '"':
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
		c == '-' || c == '+' || c == '.'
}

func isIdent(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c == '_' || c == '$'
}

// CheckBody is the span.BodyCheck for JSON strings: every escape must be a
// valid JSON escape and raw control characters are not allowed.
func CheckBody(body string, _ byte) error {
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '"':
			return fmt.Errorf("%w at byte %d", span.ErrUnescapedQuote, i)
		case c < 0x20:
			return fmt.Errorf("%w %#x at byte %d", span.ErrControlChar, c, i)
		case c == '\\':
			if i+1 >= len(body) {
				return span.ErrTrailingBackslash
			}
			i++
			switch body[i] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
			case 'u':
				if i+4 >= len(body) {
					return fmt.Errorf("%w at byte %d", span.ErrBadEscape, i-1)
				}
				for _, h := range []byte(body[i+1 : i+5]) {
					if !isHex(h) {
						return fmt.Errorf("%w at byte %d", span.ErrBadEscape, i-1)
					}
				}
				i += 4
			default:
				return fmt.Errorf("%w at byte %d", span.ErrBadEscape, i-1)
			}
		}
	}
	return nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// Decode returns the value of a JSON string body, or the body itself when it
// does not decode.
func Decode(body string) string {
	var v string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &v); err != nil {
		return body
	}
	return v
}
