// Package postprocess removes common LLM artifacts from provider output.
//
// Clean is applied to a whole chat response before it is decoded. Item is
// applied to each decoded translation against its source string.
package postprocess

import (
	"regexp"
	"strings"
	"unicode"
)

// Clean strips reasoning blocks, markdown code fences, and introductory
// phrases from a raw response and returns the trimmed result.
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeCodeFence(text)
	text = removeInstructionEchoes(text)
	return strings.TrimSpace(text)
}

// Item fixes one translated string: outer quotes the source did not have
// are dropped, and the source's leading and trailing whitespace is restored.
func Item(source, translated string) string {
	core := strings.TrimSpace(translated)
	if !isQuoteWrapped(strings.TrimSpace(source)) {
		core = removeQuoteWrapping(core)
	}
	if core == "" || strings.TrimSpace(source) == "" {
		return core
	}
	lead := source[:len(source)-len(strings.TrimLeftFunc(source, unicode.IsSpace))]
	trail := source[len(strings.TrimRightFunc(source, unicode.IsSpace)):]
	return lead + core + trail
}

// Each tag variant is listed explicitly because RE2 has no backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```")

func removeCodeFence(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed not to. Each is anchored to the start and requires a colon.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is| are)(?: the)? (?:refined |reviewed |corrected |translated )?(?:translations?|text|json)\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:refined |reviewed )?(?:translations?|translated text)\s*:`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is| are)(?: the)? (?:refined |reviewed |corrected |translated )?(?:translations?|text|json)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
	{'「', '」'},
}

func isQuoteWrapped(text string) bool {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return false
	}
	for _, p := range quotePairs {
		if runes[0] == p[0] && runes[n-1] == p[1] {
			return true
		}
	}
	return false
}

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them.
func removeQuoteWrapping(text string) string {
	if !isQuoteWrapped(text) {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[1 : len(runes)-1]))
}
