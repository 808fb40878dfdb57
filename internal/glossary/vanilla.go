package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// maxTermRunes separates names from sentences in vanilla language files.
const maxTermRunes = 40

var categoryPrefixes = []struct {
	prefix   string
	category Category
}{
	{"block", CategoryBlock},
	{"item", CategoryItem},
	{"entity", CategoryEntity},
	{"effect", CategoryEffect},
	{"enchantment", CategoryEffect},
	{"biome", CategoryBiome},
	{"gui", CategoryUI},
	{"menu", CategoryUI},
	{"advancements", CategoryUI},
}

var formatSpec = regexp.MustCompile(`%(?:\d+\$)?[sd]|\{\d+\}|§`)

// CategoryOf derives a category from a language key prefix.
func CategoryOf(key string) Category {
	for _, p := range categoryPrefixes {
		if strings.HasPrefix(key, p.prefix) {
			return p.category
		}
	}
	return CategoryOther
}

// Build derives the vanilla glossary from a pair of language tables keyed
// alike. Keys missing from target, empty or untranslated values, and
// sentence-like values are skipped; each target term is kept once.
func Build(source, target map[string]string, sourceLocale, targetLocale string) *Glossary {
	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := New(sourceLocale, targetLocale)
	seen := map[string]bool{}
	for _, key := range keys {
		src := strings.TrimSpace(source[key])
		tgt := strings.TrimSpace(target[key])
		if src == "" || tgt == "" || src == tgt {
			continue
		}
		if utf8.RuneCountInString(src) > maxTermRunes || formatSpec.MatchString(src) {
			continue
		}
		lower := strings.ToLower(tgt)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		g.TermRules = append(g.TermRules, TermRule{
			Term:           tgt,
			Aliases:        []string{src},
			Category:       CategoryOf(key),
			Notes:          "vanilla: " + key,
			PreferredStyle: "Official Minecraft translation",
		})
	}

	sort.SliceStable(g.TermRules, func(i, j int) bool {
		a, b := g.TermRules[i], g.TermRules[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Term < b.Term
	})
	return g
}

// BuildFromFiles reads two vanilla JSON language files and builds the
// glossary for their locale pair.
func BuildFromFiles(sourcePath, targetPath, sourceLocale, targetLocale string) (*Glossary, error) {
	source, err := readLangJSON(sourcePath)
	if err != nil {
		return nil, err
	}
	target, err := readLangJSON(targetPath)
	if err != nil {
		return nil, err
	}
	return Build(source, target, sourceLocale, targetLocale), nil
}

func readLangJSON(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language file: %w", err)
	}
	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse language file %s: %w", path, err)
	}
	return table, nil
}

// VanillaFileName is the cache file name for a locale pair.
func VanillaFileName(sourceLocale, targetLocale string) string {
	return fmt.Sprintf("vanilla_glossary_%s_%s.json", strings.ToLower(sourceLocale), strings.ToLower(targetLocale))
}

// LoadVanilla loads the cached vanilla glossary for a locale pair from dir.
// A missing file is not an error: it returns nil, false.
func LoadVanilla(dir, sourceLocale, targetLocale string) (*Glossary, bool, error) {
	path := filepath.Join(dir, VanillaFileName(sourceLocale, targetLocale))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, false, nil
	}
	g, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return g, true, nil
}
