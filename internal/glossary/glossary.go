// Package glossary holds translation terminology: the vanilla layer built
// from the game's own language files, the pack layer generated for one
// modpack, and the per-batch excerpts sent along with translation requests.
package glossary

import (
	"encoding/json"
	"strings"
	"time"
)

// Category groups term rules. Vanilla terms derive it from the key prefix.
type Category string

const (
	CategoryItem       Category = "item"
	CategoryBlock      Category = "block"
	CategoryUI         Category = "ui"
	CategoryEntity     Category = "entity"
	CategoryEffect     Category = "effect"
	CategoryBiome      Category = "biome"
	CategoryProperNoun Category = "proper_noun"
	CategoryOther      Category = "other"
)

// TermRule maps source aliases to one canonical target term.
type TermRule struct {
	Term           string   `json:"term" yaml:"term"`
	Aliases        []string `json:"aliases" yaml:"aliases"`
	Category       Category `json:"category" yaml:"category"`
	Notes          string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	PreferredStyle string   `json:"preferred_style,omitempty" yaml:"preferred_style,omitempty"`
}

// UnmarshalJSON also accepts glossaries that name the target term term_ko.
func (r *TermRule) UnmarshalJSON(data []byte) error {
	type plain TermRule
	var aux struct {
		plain
		TermKO string `json:"term_ko"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = TermRule(aux.plain)
	if r.Term == "" {
		r.Term = aux.TermKO
	}
	if r.Category == "" {
		r.Category = CategoryOther
	}
	return nil
}

// ProperNounRule fixes the rendering of a name.
type ProperNounRule struct {
	Source    string `json:"source_like" yaml:"source_like"`
	Preferred string `json:"preferred" yaml:"preferred"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func (r *ProperNounRule) UnmarshalJSON(data []byte) error {
	type plain ProperNounRule
	var aux struct {
		plain
		PreferredKO string `json:"preferred_ko"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ProperNounRule(aux.plain)
	if r.Preferred == "" {
		r.Preferred = aux.PreferredKO
	}
	return nil
}

// FormattingRule is a free-form style instruction.
type FormattingRule struct {
	Name        string   `json:"rule_name" yaml:"rule_name"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Glossary is one terminology layer.
type Glossary struct {
	Version         string           `json:"version" yaml:"version"`
	SourceLocale    string           `json:"locale_source" yaml:"locale_source"`
	TargetLocale    string           `json:"locale_target" yaml:"locale_target"`
	CreatedAt       time.Time        `json:"created_at" yaml:"created_at"`
	TermRules       []TermRule       `json:"term_rules" yaml:"term_rules"`
	ProperNounRules []ProperNounRule `json:"proper_noun_rules" yaml:"proper_noun_rules"`
	FormattingRules []FormattingRule `json:"formatting_rules" yaml:"formatting_rules"`
}

// New returns an empty glossary for a locale pair.
func New(source, target string) *Glossary {
	return &Glossary{
		Version:      "1.0",
		SourceLocale: source,
		TargetLocale: target,
		CreatedAt:    time.Now().UTC(),
	}
}

// Len returns the number of term and proper noun rules.
func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.TermRules) + len(g.ProperNounRules)
}

// Terms returns the term rules followed by the proper nouns expressed as
// term rules.
func (g *Glossary) Terms() []TermRule {
	if g == nil {
		return nil
	}
	out := make([]TermRule, 0, g.Len())
	out = append(out, g.TermRules...)
	for _, n := range g.ProperNounRules {
		out = append(out, TermRule{
			Term:     n.Preferred,
			Aliases:  []string{n.Source},
			Category: CategoryProperNoun,
			Notes:    n.Notes,
		})
	}
	return out
}

func termKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Merge layers over on top of base. On a key collision the entry of over
// replaces the entry of base entirely; no fields are combined. Term rules
// are keyed by target term, proper nouns by source form, formatting rules
// by name. Either argument may be nil.
func Merge(base, over *Glossary) *Glossary {
	if base == nil {
		base = &Glossary{}
	}
	if over == nil {
		over = &Glossary{}
	}
	out := &Glossary{
		Version:      pick(over.Version, base.Version),
		SourceLocale: pick(over.SourceLocale, base.SourceLocale),
		TargetLocale: pick(over.TargetLocale, base.TargetLocale),
		CreatedAt:    time.Now().UTC(),
	}

	out.TermRules = mergeBy(base.TermRules, over.TermRules, func(r TermRule) string { return termKey(r.Term) })
	out.ProperNounRules = mergeBy(base.ProperNounRules, over.ProperNounRules, func(r ProperNounRule) string { return termKey(r.Source) })
	out.FormattingRules = mergeBy(base.FormattingRules, over.FormattingRules, func(r FormattingRule) string { return termKey(r.Name) })
	return out
}

func mergeBy[T any](base, over []T, key func(T) string) []T {
	overridden := make(map[string]bool, len(over))
	for _, r := range over {
		overridden[key(r)] = true
	}
	out := make([]T, 0, len(base)+len(over))
	for _, r := range base {
		if !overridden[key(r)] {
			out = append(out, r)
		}
	}
	seen := make(map[string]bool, len(over))
	for _, r := range over {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
