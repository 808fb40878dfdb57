package nbtfile

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"
)

var errBadMUTF8 = errors.New("nbt: malformed modified UTF-8")

// decodeMUTF8 decodes Java's modified UTF-8: NUL is encoded as C0 80 and
// supplementary characters as two three-byte surrogates. Plain four-byte
// UTF-8 sequences written by non-Java tools are accepted too.
func decodeMUTF8(b []byte) (string, error) {
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			out = append(out, rune(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadMUTF8
			}
			out = append(out, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadMUTF8
			}
			r := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			i += 3
			if utf16.IsSurrogate(r) && r < 0xDC00 && i+2 < len(b) && b[i] == 0xED {
				lo := rune(b[i]&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
				if lo >= 0xDC00 && lo <= 0xDFFF {
					out = append(out, utf16.DecodeRune(r, lo))
					i += 3
					continue
				}
			}
			out = append(out, r)
		case c&0xF8 == 0xF0:
			r, size := utf8.DecodeRune(b[i:])
			if r == utf8.RuneError {
				return "", errBadMUTF8
			}
			out = append(out, r)
			i += size
		default:
			return "", errBadMUTF8
		}
	}
	return string(out), nil
}

func encodeMUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = append(out, 0xE0|byte(r>>12), 0x80|byte(r>>6&0x3F), 0x80|byte(r&0x3F))
		default:
			hi, lo := utf16.EncodeRune(r)
			for _, u := range []rune{hi, lo} {
				out = append(out, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
			}
		}
	}
	return out
}
