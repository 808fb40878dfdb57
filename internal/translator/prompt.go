package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName returns the English name of a Minecraft locale such as
// "ko_kr". Unknown locales are returned unchanged.
func LanguageName(locale string) string {
	tag, err := ParseLocale(locale)
	if err != nil {
		return locale
	}
	base, _ := tag.Base()
	name := display.English.Languages().Name(base)
	if name == "" {
		return locale
	}
	return name
}

// ParseLocale parses a Minecraft locale ("en_us") as a BCP 47 tag.
func ParseLocale(locale string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(locale, "_", "-"))
}

// Prompt kinds.
const (
	PromptTranslate = "translate"
	PromptReview    = "review"
	PromptTerms     = "terms"
)

// SystemPrompt builds the instructions for a request kind. extra is appended
// verbatim when non-empty.
func SystemPrompt(kind, sourceLocale, targetLocale, extra string) string {
	src, tgt := LanguageName(sourceLocale), LanguageName(targetLocale)
	var sb strings.Builder

	switch kind {
	case PromptReview:
		fmt.Fprintf(&sb, "You are a Minecraft mod translation reviewer. Each item has a %s source and a draft %s translation in \"text\".\n", src, tgt)
		sb.WriteString("Fix mistranslations, typos, unnatural phrasing, and terminology that contradicts the glossary. Return the draft unchanged when it is already correct.\n")
	case PromptTerms:
		fmt.Fprintf(&sb, "You are a Minecraft mod localization expert. Each item is a %s game term or proper noun.\n", src)
		fmt.Fprintf(&sb, "Give the %s form a player would expect in a translated modpack: official Minecraft terms where they exist, otherwise a natural translation or transliteration.\n", tgt)
	default:
		fmt.Fprintf(&sb, "You are a Minecraft mod translation expert. Translate each item from %s into natural %s game text.\n", src, tgt)
		sb.WriteString("Preserve meaning and game mechanics, translate every item, and apply the glossary terms exactly.\n")
		sb.WriteString("Do not add the original text in parentheses and do not wrap terms in brackets.\n")
	}
	if strings.HasPrefix(strings.ToLower(targetLocale), "ko") && kind != PromptTerms {
		sb.WriteString("Choose Korean particles (이/가, 을/를) that agree with the preceding word or token.\n")
	}
	if extra != "" {
		sb.WriteString(extra)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond with JSON only, in the form {\"translations\": [{\"id\": \"0\", \"text\": \"...\"}]}, one entry per input item with the same ids.")
	return sb.String()
}

// Messages renders a request as a system and a user message for chat
// providers.
func Messages(req Request) (system, user string) {
	var sb strings.Builder
	sb.WriteString(req.SystemPrompt)
	if len(req.Glossary) > 0 {
		sb.WriteString("\n\nGLOSSARY (use these exact translations):\n")
		for _, r := range req.Glossary {
			fmt.Fprintf(&sb, "- %s → %s", strings.Join(r.Aliases, " / "), r.Term)
			if r.Notes != "" {
				fmt.Fprintf(&sb, " (%s)", r.Notes)
			}
			sb.WriteString("\n")
		}
	}

	var items strings.Builder
	enc := json.NewEncoder(&items)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	enc.Encode(struct {
		Items []Item `json:"items"`
	}{req.Items})
	return sb.String(), strings.TrimSpace(items.String())
}

// EstimateTokens approximates the token count of s at four characters per
// token.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}

// EstimateRequest approximates the input tokens of req.
func EstimateRequest(req Request) int {
	system, user := Messages(req)
	return EstimateTokens(system) + EstimateTokens(user)
}
