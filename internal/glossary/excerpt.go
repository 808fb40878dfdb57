package glossary

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Budget caps the excerpt attached to one batch.
type Budget struct {
	MaxTerms int
	MaxChars int
}

// DefaultBudget is the excerpt cap used when none is configured.
var DefaultBudget = Budget{MaxTerms: 40, MaxChars: 2000}

type indexed struct {
	rule    TermRule
	aliases []string // lower-cased, non-empty
}

// Index matches glossary aliases against masked text. It is immutable after
// construction and safe for concurrent use.
type Index struct {
	entries []indexed
}

// NewIndex indexes every term and proper noun rule of g.
func NewIndex(g *Glossary) *Index {
	idx := &Index{}
	for _, r := range g.Terms() {
		if strings.TrimSpace(r.Term) == "" {
			continue
		}
		var aliases []string
		for _, a := range r.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if utf8.RuneCountInString(a) >= 2 {
				aliases = append(aliases, a)
			}
		}
		if len(aliases) > 0 {
			idx.entries = append(idx.entries, indexed{rule: r, aliases: aliases})
		}
	}
	return idx
}

// Len returns the number of indexed rules.
func (idx *Index) Len() int { return len(idx.entries) }

// RelevantTerms returns every rule with an alias occurring in text,
// case-insensitively.
func (idx *Index) RelevantTerms(text string) []TermRule {
	return idx.Excerpt([]string{text}, Budget{})
}

type match struct {
	rule     TermRule
	units    int
	aliasLen int
}

// Excerpt returns the rules whose aliases occur in any of texts, ranked by
// the number of texts they occur in, then by shorter matching alias, then
// by term. A zero field in b means no limit on that axis.
func (idx *Index) Excerpt(texts []string, b Budget) []TermRule {
	if idx == nil || len(idx.entries) == 0 || len(texts) == 0 {
		return nil
	}
	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}

	var matches []match
	for _, e := range idx.entries {
		m := match{rule: e.rule}
		for _, text := range lowered {
			hit := false
			for _, a := range e.aliases {
				if strings.Contains(text, a) {
					hit = true
					if n := utf8.RuneCountInString(a); m.aliasLen == 0 || n < m.aliasLen {
						m.aliasLen = n
					}
				}
			}
			if hit {
				m.units++
			}
		}
		if m.units > 0 {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.units != b.units {
			return a.units > b.units
		}
		if a.aliasLen != b.aliasLen {
			return a.aliasLen < b.aliasLen
		}
		return a.rule.Term < b.rule.Term
	})

	var out []TermRule
	chars := 0
	for _, m := range matches {
		if b.MaxTerms > 0 && len(out) >= b.MaxTerms {
			break
		}
		size := ruleChars(m.rule)
		if b.MaxChars > 0 && chars+size > b.MaxChars {
			continue
		}
		chars += size
		out = append(out, m.rule)
	}
	return out
}

// ruleChars approximates the prompt footprint of a rule.
func ruleChars(r TermRule) int {
	n := utf8.RuneCountInString(r.Term) + utf8.RuneCountInString(r.Notes)
	for _, a := range r.Aliases {
		n += utf8.RuneCountInString(a) + 2
	}
	return n + 8
}
