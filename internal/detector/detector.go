// Package detector identifies the language of translated text.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// Detector wraps a lingua language detector. Building one is expensive;
// share the instance.
type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector restricted to the given ISO 639-1 codes. With fewer
// than two known codes it considers every language lingua supports.
func New(codes ...string) *Detector {
	langs := Languages(codes...)
	builder := lingua.NewLanguageDetectorBuilder()
	if len(langs) >= 2 {
		return &Detector{detector: builder.FromLanguages(langs...).Build()}
	}
	return &Detector{detector: builder.FromAllLanguages().Build()}
}

// Languages maps ISO 639-1 codes to lingua languages, dropping unknown and
// duplicate codes.
func Languages(codes ...string) []lingua.Language {
	var out []lingua.Language
	seen := map[lingua.Language]bool{}
	for _, code := range codes {
		for _, lang := range lingua.AllLanguages() {
			if strings.EqualFold(lang.IsoCode639_1().String(), code) && !seen[lang] {
				seen[lang] = true
				out = append(out, lang)
			}
		}
	}
	return out
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the upper-case ISO 639-1 code of text's language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}
