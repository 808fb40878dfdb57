// Package validator decodes LLM responses and rejects translations that
// cannot be used.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valpere/packtran/internal/detector"
	"github.com/valpere/packtran/internal/placeholder"
)

// minValidationLength is the minimum rune count required to attempt language
// detection. Shorter texts are accepted without it.
const minValidationLength = 20

var (
	ErrNotStructured  = errors.New("response is not valid JSON")
	ErrLengthMismatch = errors.New("response length does not match request")
	ErrEmpty          = errors.New("empty translation for non-empty input")
	ErrMissing        = errors.New("missing from response")
	ErrWrongLanguage  = errors.New("translation is still in the source language")
)

type entry struct {
	ID   json.RawMessage `json:"id"`
	Key  string          `json:"key"`
	Text *string         `json:"text"`
	// Some models answer with "translation" instead of "text".
	Translation *string `json:"translation"`
}

func (e entry) id() string {
	if e.Key != "" {
		return e.Key
	}
	var s string
	if json.Unmarshal(e.ID, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(e.ID))
}

func (e entry) text() (string, bool) {
	switch {
	case e.Text != nil:
		return *e.Text, true
	case e.Translation != nil:
		return *e.Translation, true
	}
	return "", false
}

// Decode parses a cleaned response for the request ids. It accepts
// {"translations": [{"id", "text"}]}, {"translations": {id: text}}, a bare
// id map, an array of {"id", "text"}, or a positional array of strings.
// Ids absent from a keyed response are simply missing from the result; a
// positional array of the wrong length is rejected.
func Decode(raw string, ids []string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if start := strings.IndexAny(raw, "{["); start > 0 {
		raw = raw[start:]
	}
	if end := strings.LastIndexAny(raw, "}]"); end >= 0 {
		raw = raw[:end+1]
	}

	var wrapped struct {
		Translations json.RawMessage `json:"translations"`
	}
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotStructured, err)
		}
		if len(wrapped.Translations) > 0 {
			return decodeBody(wrapped.Translations, ids)
		}
	}
	return decodeBody([]byte(raw), ids)
}

func decodeBody(data []byte, ids []string) (map[string]string, error) {
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err == nil {
		return asMap, nil
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err == nil {
		out := make(map[string]string, len(entries))
		if hasIDs(entries) {
			for _, e := range entries {
				if text, ok := e.text(); ok {
					out[e.id()] = text
				}
			}
			return out, nil
		}
		if len(entries) != len(ids) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(entries), len(ids))
		}
		for i, e := range entries {
			if text, ok := e.text(); ok {
				out[ids[i]] = text
			}
		}
		return out, nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) != len(ids) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(list), len(ids))
		}
		out := make(map[string]string, len(list))
		for i, text := range list {
			out[ids[i]] = text
		}
		return out, nil
	}
	return nil, ErrNotStructured
}

func hasIDs(entries []entry) bool {
	for _, e := range entries {
		if _, ok := e.text(); ok && e.id() != "" {
			return true
		}
	}
	return false
}

// Validator checks single translations. The zero value checks emptiness and
// tokens only.
type Validator struct {
	det       *detector.Detector
	sourceISO string
	targetISO string
}

// New returns a Validator without language verification.
func New() *Validator {
	return &Validator{}
}

// NewWithLanguage also rejects translations of at least 20 runes that are
// detected as the source language. Codes are ISO 639-1.
func NewWithLanguage(sourceISO, targetISO string) *Validator {
	if sourceISO == "" || strings.EqualFold(sourceISO, targetISO) {
		return New()
	}
	return &Validator{
		det:       detector.New(sourceISO, targetISO),
		sourceISO: sourceISO,
		targetISO: targetISO,
	}
}

// Check validates translated against the masked source and its tokens and
// returns the unmasked translation.
func (v *Validator) Check(masked, translated string, tm placeholder.TokenMap) (string, error) {
	if strings.TrimSpace(translated) == "" {
		if strings.TrimSpace(masked) != "" {
			return "", ErrEmpty
		}
		return translated, nil
	}
	out, err := placeholder.Unmask(translated, tm)
	if err != nil {
		return "", err
	}
	if err := v.checkLanguage(placeholder.Strip(translated, tm)); err != nil {
		return "", err
	}
	return out, nil
}

func (v *Validator) checkLanguage(text string) error {
	if v.det == nil {
		return nil
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minValidationLength {
		return nil
	}
	detected, ok := v.det.DetectISO(text)
	if !ok {
		return nil
	}
	if strings.EqualFold(detected, v.sourceISO) {
		return fmt.Errorf("%w: detected %s, want %s", ErrWrongLanguage, detected, v.targetISO)
	}
	return nil
}
