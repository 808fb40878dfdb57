// Package placeholder protects non-translatable spans (format specifiers,
// color codes, escape sequences, embedded keys) inside extracted strings by
// replacing them with numbered tokens (⟦T0⟧, ⟦T1⟧, …) that LLMs are
// instructed to copy verbatim. After translation, Unmask substitutes the
// tokens back.
package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Rule is one protected-span pattern. Rules are tried in the order given;
// at any position the first rule that matches wins.
type Rule struct {
	Name    string
	Pattern string
}

var (
	// JSON-escaped section sign followed by its code: \u00a7c
	RuleEscapedColor = Rule{"escaped_color", `\\u00[aA]7(?:[0-9a-fk-orA-FK-OR]|x)`}

	// legacy section codes, including the §x§r§r§g§g§b§b hex form
	RuleColor = Rule{"color", `§x(?:§[0-9a-fA-F]){6}|§[0-9a-fk-orA-FK-OR]`}

	// ampersand codes used by FTB Quests and many config formats
	RuleAmpersand = Rule{"ampersand", `&[0-9a-fk-orA-FK-OR]`}

	// Patchouli formatting macros: $(l), $(item), $(/l), $()
	RulePatchouli = Rule{"patchouli", `\$\([^()]*\)`}

	// Java format specifiers: %s, %1$s, %d, %.2f, %%
	RulePrintf = Rule{"printf", `%(?:\d+\$)?[-#+0,(]*\d*(?:\.\d+)?[sdifxXobeEgGaAcChHn%]`}

	// brace placeholders and embedded translation keys: {0}, {player}, {item.minecraft.stone}
	RuleBrace = Rule{"brace", `\{[A-Za-z0-9_.:$#@-]*\}`}

	// markup tags: <br>, </b>, <color=red>
	RuleMarkup = Rule{"markup", `</?[A-Za-z][^<>\n]*>`}

	// namespaced resource locations: minecraft:diamond_sword
	RuleResourceID = Rule{"resource_id", `\b[a-z0-9_.-]+:[a-z0-9_./-]*[a-z0-9_]\b`}

	// escape sequences kept raw inside string literals: \n, \", \u00e9
	RuleEscape = Rule{"escape", `\\(?:u[0-9a-fA-F]{4}|[nrtbf"'\\/&])`}
)

// DefaultRules returns the rule set used for every file type.
func DefaultRules() []Rule {
	return []Rule{
		RuleEscapedColor,
		RuleColor,
		RuleAmpersand,
		RulePrintf,
		RuleBrace,
		RuleMarkup,
		RuleResourceID,
		RuleEscape,
	}
}

// RulesFor returns the rule set for a file type. Patchouli books add their
// formatting macros ahead of the defaults.
func RulesFor(fileType string) []Rule {
	if fileType == "patchouli" {
		return append([]Rule{RulePatchouli}, DefaultRules()...)
	}
	return DefaultRules()
}

// Alphabet is a pair of delimiters framing a token.
type Alphabet struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Alphabets are tried in order; the first one whose delimiters do not occur
// in the input is used for that string.
var Alphabets = []Alphabet{
	{"⟦", "⟧"},
	{"⟪", "⟫"},
	{"⦃", "⦄"},
	{"〘", "〙"},
}

// ErrCollision is returned when every alphabet occurs in the input.
var ErrCollision = errors.New("token alphabet collision")

// ErrTokenMismatch is returned by Unmask when the token set of a translated
// string differs from the masked source.
var ErrTokenMismatch = errors.New("token mismatch")

// TokenMap maps token indices back to the protected substrings.
type TokenMap struct {
	Alphabet  Alphabet `json:"alphabet"`
	Originals []string `json:"originals,omitempty"`
}

// Token renders the i-th token.
func (tm TokenMap) Token(i int) string {
	return tm.Alphabet.Open + "T" + strconv.Itoa(i) + tm.Alphabet.Close
}

// Masker masks strings with a compiled rule set. It is safe for concurrent use.
type Masker struct {
	rules []Rule
	re    *regexp.Regexp
}

// New compiles rules into a Masker.
func New(rules ...Rule) (*Masker, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	parts := make([]string, len(rules))
	for i, r := range rules {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		parts[i] = "(?:" + r.Pattern + ")"
	}
	re, err := regexp.Compile(strings.Join(parts, "|"))
	if err != nil {
		return nil, err
	}
	return &Masker{rules: rules, re: re}, nil
}

// MustNew is like New but panics on an invalid rule.
func MustNew(rules ...Rule) *Masker {
	m, err := New(rules...)
	if err != nil {
		panic(err)
	}
	return m
}

var (
	maskersMu sync.Mutex
	maskers   = map[string]*Masker{}
)

// For returns the shared Masker for a file type.
func For(fileType string) *Masker {
	maskersMu.Lock()
	defer maskersMu.Unlock()
	if m, ok := maskers[fileType]; ok {
		return m
	}
	m := MustNew(RulesFor(fileType)...)
	maskers[fileType] = m
	return m
}

// Rules returns the rule names in precedence order.
func (m *Masker) Rules() []string {
	names := make([]string, len(m.rules))
	for i, r := range m.rules {
		names[i] = r.Name
	}
	return names
}

// Mask replaces every protected span in text with a token, numbering tokens
// from T0 in order of appearance.
func (m *Masker) Mask(text string) (string, TokenMap, error) {
	alpha, ok := pickAlphabet(text)
	if !ok {
		return "", TokenMap{}, ErrCollision
	}
	tm := TokenMap{Alphabet: alpha}

	locs := m.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, tm, nil
	}

	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		sb.WriteString(text[last:loc[0]])
		sb.WriteString(tm.Token(len(tm.Originals)))
		tm.Originals = append(tm.Originals, text[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(text[last:])
	return sb.String(), tm, nil
}

func pickAlphabet(text string) (Alphabet, bool) {
	for _, a := range Alphabets {
		if !strings.Contains(text, a.Open) && !strings.Contains(text, a.Close) {
			return a, true
		}
	}
	return Alphabet{}, false
}

var (
	tokenReMu sync.Mutex
	tokenRes  = map[Alphabet]*regexp.Regexp{}
)

// tokenRe matches tokens of an alphabet, tolerating whitespace a model may
// insert inside the delimiters.
func tokenRe(a Alphabet) *regexp.Regexp {
	tokenReMu.Lock()
	defer tokenReMu.Unlock()
	if re, ok := tokenRes[a]; ok {
		return re
	}
	re := regexp.MustCompile(regexp.QuoteMeta(a.Open) + `\s*T\s*(\d+)\s*` + regexp.QuoteMeta(a.Close))
	tokenRes[a] = re
	return re
}

// Unmask substitutes tokens in text with the originals from tm. Every token
// must appear exactly once; anything else is ErrTokenMismatch.
func Unmask(text string, tm TokenMap) (string, error) {
	if tm.Alphabet.Open == "" {
		return text, nil
	}
	re := tokenRe(tm.Alphabet)
	seen := make([]int, len(tm.Originals))
	var bad []string

	out := re.ReplaceAllStringFunc(text, func(match string) string {
		sub := re.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(tm.Originals) {
			bad = append(bad, match)
			return match
		}
		seen[idx]++
		return tm.Originals[idx]
	})

	if len(bad) > 0 {
		return "", fmt.Errorf("%w: unknown tokens %v", ErrTokenMismatch, bad)
	}
	if missing := countMismatch(seen); len(missing) > 0 {
		return "", fmt.Errorf("%w: tokens %v missing or repeated", ErrTokenMismatch, missing)
	}
	if strings.Contains(out, tm.Alphabet.Open) || strings.Contains(out, tm.Alphabet.Close) {
		return "", fmt.Errorf("%w: stray token delimiter", ErrTokenMismatch)
	}
	return out, nil
}

func countMismatch(seen []int) []int {
	var idx []int
	for i, n := range seen {
		if n != 1 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Validate returns the indices of tokens missing from a translated string.
func Validate(text string, tm TokenMap) []int {
	var missing []int
	for i := range tm.Originals {
		if !strings.Contains(text, tm.Token(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Strip removes all tokens of tm's alphabet from text.
func Strip(text string, tm TokenMap) string {
	if tm.Alphabet.Open == "" {
		return text
	}
	return tokenRe(tm.Alphabet).ReplaceAllString(text, " ")
}

// OnlyTokens reports whether nothing translatable is left once tokens are
// removed: no letters in any script.
func OnlyTokens(masked string, tm TokenMap) bool {
	for _, r := range Strip(masked, tm) {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// InstructionHint returns a short sentence to append to an LLM prompt so the
// model knows to leave tokens intact.
func InstructionHint() string {
	return "Copy every token such as ⟦T0⟧ exactly as it appears, keep it in a natural position, and never translate, renumber, or remove it."
}
