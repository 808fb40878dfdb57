package handler

import (
	"path"
	"strings"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/jsonfile"
	"github.com/valpere/packtran/internal/langfile"
	"github.com/valpere/packtran/internal/scriptfile"
	"github.com/valpere/packtran/internal/snbtfile"
	"github.com/valpere/packtran/internal/span"
)

var (
	jsonGrammar   = &grammar{scan: jsonfile.Scan, check: jsonfile.CheckBody, decode: jsonfile.Decode}
	snbtGrammar   = &grammar{scan: snbtfile.Scan, check: snbtfile.CheckBody, decode: snbtfile.Unescape}
	langGrammar   = &grammar{scan: langfile.Scan, check: langfile.CheckBody, decode: identity}
	scriptGrammar = &grammar{scan: scriptfile.Scan, check: scriptfile.CheckBody, decode: identity}
)

func identity(s string) string { return s }

func always(g *grammar) func(string) *grammar {
	return func(string) *grammar { return g }
}

// lastSegment extends fields to dotted keys whose last segment is a field
// name, such as power.origins.fly.name.
func lastSegment(fields func(span.Path) bool) func(span.Path) bool {
	return func(p span.Path) bool {
		if fields(p) {
			return true
		}
		key := p.Key()
		if i := strings.LastIndexByte(key, '.'); i >= 0 {
			return fields(span.Path{{Key: key[i+1:]}})
		}
		return false
	}
}

// KubeJS returns the handler for KubeJS scripts.
func KubeJS() Handler {
	return &variant{
		name:     internal.FileTypeKubeJS,
		priority: 20,
		match: func(rel string) bool {
			return hasDir(rel, "kubejs") && hasExt(rel, ".js", ".ts")
		},
		grammarFor:   always(scriptGrammar),
		translatable: anyKey,
	}
}

// FTBQuests returns the handler for FTB Quests chapter files in SNBT or
// binary NBT form, and for the quest lang files of newer releases whose
// keys end in the field name (chapter.<id>.title).
func FTBQuests(source string) Handler {
	source = strings.ToLower(source)
	fields := keySet("title", "subtitle", "description", "text", "name",
		"quest_desc", "quest_subtitle", "Lore", "Name")
	return &variant{
		name:     internal.FileTypeFTBQuests,
		priority: 15,
		match: func(rel string) bool {
			if !hasDir(rel, "ftbquests") || !hasExt(rel, ".snbt", ".nbt") {
				return false
			}
			if path.Base(path.Dir(rel)) == "lang" {
				return strings.TrimSuffix(path.Base(rel), path.Ext(rel)) == source
			}
			return true
		},
		grammarFor: func(rel string) *grammar {
			if hasExt(rel, ".nbt") {
				return nil
			}
			return snbtGrammar
		},
		translatable:   lastSegment(fields),
		skipStructured: true,
	}
}

// Patchouli returns the handler for Patchouli books. Only books in the
// source locale folder, or with no locale folder at all, are claimed.
func Patchouli(source string) Handler {
	source = strings.ToLower(source)
	return &variant{
		name:     internal.FileTypePatchouli,
		priority: 13,
		match: func(rel string) bool {
			if !hasDir(rel, "patchouli_books") || !hasExt(rel, ".json") {
				return false
			}
			_, after, _ := strings.Cut(rel, "/patchouli_books/")
			for _, seg := range strings.Split(path.Dir(after), "/") {
				if IsLocale(seg) {
					return seg == source
				}
			}
			return true
		},
		grammarFor:   always(jsonGrammar),
		translatable: keySet("pages", "text", "title", "subtitle", "description", "name", "landing_text"),
	}
}

// Origins returns the handler for Origins origin and power definitions.
func Origins() Handler {
	return &variant{
		name:     internal.FileTypeOrigins,
		priority: 12,
		match: func(rel string) bool {
			if path.Base(path.Dir(rel)) == "lang" {
				return false
			}
			return (hasDir(rel, "origins") || hasDir(rel, "powers")) && hasExt(rel, ".json")
		},
		grammarFor:   always(jsonGrammar),
		translatable: lastSegment(keySet("text", "title", "subtitle", "description", "name")),
	}
}

// PuffishSkills returns the handler for Puffish Skills category files.
func PuffishSkills() Handler {
	return &variant{
		name:     internal.FileTypePuffishSkills,
		priority: 11,
		match: func(rel string) bool {
			base := path.Base(rel)
			return strings.Contains(rel, "/puffish_skills/categories/") &&
				(base == "definitions.json" || base == "category.json")
		},
		grammarFor:   always(jsonGrammar),
		translatable: keySet("pages", "text", "title", "subtitle", "description"),
	}
}

// TConstruct returns the handler for Tinkers' Construct book pages.
func TConstruct() Handler {
	return &variant{
		name:     internal.FileTypeTConstruct,
		priority: 11,
		match: func(rel string) bool {
			return strings.Contains(rel, "/tconstruct/book/") && hasExt(rel, ".json")
		},
		grammarFor:   always(jsonGrammar),
		translatable: keySet("text", "title"),
	}
}

// VaultQuest returns the handler for The Vault quest definitions: quest
// names and the text of description parts.
func VaultQuest() Handler {
	return &variant{
		name:     internal.FileTypeVaultQuest,
		priority: 10,
		match: func(rel string) bool {
			return strings.Contains(rel, "/config/the_vault/quest/") && hasExt(rel, ".json")
		},
		grammarFor: always(jsonGrammar),
		translatable: func(p span.Path) bool {
			if len(p) < 3 || p[0].Key != "quests" || !p[1].IsIndex {
				return false
			}
			if len(p) == 3 {
				return p[2].Key == "name"
			}
			return p[2].Key == "descriptionData" && p.Key() == "text"
		},
	}
}

// LangJSON returns the handler for modern language files named after the
// source locale inside a lang folder.
func LangJSON(source string) Handler {
	name := strings.ToLower(source) + ".json"
	return &variant{
		name:     internal.FileTypeLangJSON,
		priority: 9,
		match: func(rel string) bool {
			return path.Base(rel) == name && path.Base(path.Dir(rel)) == "lang"
		},
		grammarFor:   always(jsonGrammar),
		translatable: anyKey,
	}
}

// Lang returns the handler for legacy key=value language files.
func Lang(source string) Handler {
	name := strings.ToLower(source) + ".lang"
	return &variant{
		name:     internal.FileTypeLang,
		priority: 9,
		match: func(rel string) bool {
			return path.Base(rel) == name
		},
		grammarFor:   always(langGrammar),
		translatable: anyKey,
	}
}
