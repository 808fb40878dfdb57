package glossary

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
)

// CandidateSource proposes source-language terms worth fixing for a pack.
type CandidateSource interface {
	Candidates(texts []string) []string
}

// TermTranslator renders candidate terms in the target language. The
// result is parallel to terms.
type TermTranslator interface {
	TranslateTerms(ctx context.Context, terms []string) ([]string, error)
}

// CandidateFunc adapts a function to CandidateSource.
type CandidateFunc func(texts []string) []string

func (f CandidateFunc) Candidates(texts []string) []string { return f(texts) }

var capitalized = regexp.MustCompile(`\b[A-Z][A-Za-z'-]*[a-z][A-Za-z'-]*(?:[ ]+(?:of |the )?[A-Z][A-Za-z'-]*[a-z][A-Za-z'-]*){0,3}\b`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "bring": true, "but": true, "by": true, "can": true, "click": true,
	"collect": true, "complete": true, "craft": true, "defeat": true, "do": true, "find": true,
	"each": true, "for": true, "from": true, "get": true, "has": true, "have": true,
	"here": true, "how": true, "if": true, "in": true, "is": true, "it": true,
	"its": true, "just": true, "make": true, "may": true, "more": true, "no": true,
	"not": true, "note": true, "now": true, "of": true, "on": true, "once": true,
	"or": true, "place": true, "press": true, "right": true, "left": true, "so": true,
	"some": true, "that": true, "the": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "to": true, "use": true, "using": true, "we": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "you": true, "your": true,
}

// FrequencySource ranks recurring capitalized phrases of one to four words.
type FrequencySource struct {
	// MinUnits is how many texts a phrase must occur in.
	MinUnits int
	// Limit caps the number of candidates returned.
	Limit int
}

// Candidates implements CandidateSource.
func (s FrequencySource) Candidates(texts []string) []string {
	minUnits := s.MinUnits
	if minUnits <= 0 {
		minUnits = 2
	}

	counts := map[string]int{}
	for _, text := range texts {
		seen := map[string]bool{}
		for _, phrase := range capitalized.FindAllString(text, -1) {
			phrase = trimStopwords(phrase)
			if phrase == "" || seen[phrase] {
				continue
			}
			seen[phrase] = true
			counts[phrase]++
		}
	}

	var out []string
	for p, n := range counts {
		if n >= minUnits {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if s.Limit > 0 && len(out) > s.Limit {
		out = out[:s.Limit]
	}
	return out
}

func trimStopwords(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 && stopwords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	for len(words) > 0 && stopwords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// Generator derives the pack glossary from the unit corpus.
type Generator struct {
	Source     CandidateSource
	Translator TermTranslator
	ChunkSize  int
	Logger     *zap.Logger
}

// Generate proposes candidates from texts, drops those already covered by
// known, and translates the rest in chunks. A failed chunk is logged and
// skipped; only a canceled context or a fatal translator error is returned.
func (g *Generator) Generate(ctx context.Context, texts []string, known *Glossary, sourceLocale, targetLocale string) (*Glossary, error) {
	log := g.Logger
	if log == nil {
		log = zap.NewNop()
	}
	source := g.Source
	if source == nil {
		source = FrequencySource{MinUnits: 2, Limit: 300}
	}
	chunk := g.ChunkSize
	if chunk <= 0 {
		chunk = 100
	}

	covered := map[string]bool{}
	for _, r := range known.Terms() {
		for _, a := range r.Aliases {
			covered[termKey(a)] = true
		}
	}
	var candidates []string
	for _, c := range source.Candidates(texts) {
		if !covered[termKey(c)] {
			candidates = append(candidates, c)
		}
	}

	out := New(sourceLocale, targetLocale)
	if len(candidates) == 0 || g.Translator == nil {
		return out, nil
	}
	log.Info("generating pack glossary", zap.Int("candidates", len(candidates)))

	// Candidates that translate to the same term share one rule.
	byTerm := map[string]int{}

	for start := 0; start < len(candidates); start += chunk {
		end := min(start+chunk, len(candidates))
		terms := candidates[start:end]
		translated, err := g.Translator.TranslateTerms(ctx, terms)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if internal.IsFatal(err) {
				return out, fmt.Errorf("failed to generate glossary: %w", err)
			}
			log.Warn("glossary chunk failed", zap.Int("start", start), zap.Error(err))
			continue
		}
		for i, term := range terms {
			if i >= len(translated) || strings.TrimSpace(translated[i]) == "" {
				continue
			}
			target := strings.TrimSpace(translated[i])
			if j, ok := byTerm[termKey(target)]; ok {
				r := &out.TermRules[j]
				if !slices.ContainsFunc(r.Aliases, func(a string) bool { return termKey(a) == termKey(term) }) {
					r.Aliases = append(r.Aliases, term)
				}
				continue
			}
			byTerm[termKey(target)] = len(out.TermRules)
			out.TermRules = append(out.TermRules, TermRule{
				Term:     target,
				Aliases:  []string{term},
				Category: CategoryOther,
				Notes:    "generated",
			})
		}
	}
	return out, nil
}
