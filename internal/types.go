package internal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valpere/packtran/internal/placeholder"
)

// FileType names the grammar variant a unit was extracted from.
type FileType string

const (
	FileTypeKubeJS        FileType = "kubejs"
	FileTypeFTBQuests     FileType = "ftbquests"
	FileTypePatchouli     FileType = "patchouli"
	FileTypeOrigins       FileType = "origins"
	FileTypePuffishSkills FileType = "puffish_skills"
	FileTypeTConstruct    FileType = "tconstruct"
	FileTypeVaultQuest    FileType = "the_vault_quest"
	FileTypeLangJSON      FileType = "lang_json"
	FileTypeLang          FileType = "lang"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusTranslated Status = "translated"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// UnitID identifies a unit across runs: file path, key path inside the
// file, and the occurrence index among units sharing that key path.
type UnitID struct {
	File       string `json:"file"`
	Path       string `json:"path"`
	Occurrence int    `json:"occurrence"`
}

func (id UnitID) String() string {
	s := id.File + "#" + id.Path
	if id.Occurrence > 0 {
		s += "~" + strconv.Itoa(id.Occurrence)
	}
	return s
}

// ParseUnitID is the inverse of UnitID.String.
func ParseUnitID(s string) (UnitID, error) {
	file, rest, ok := strings.Cut(s, "#")
	if !ok {
		return UnitID{}, fmt.Errorf("invalid unit id %q", s)
	}
	id := UnitID{File: file, Path: rest}
	if i := strings.LastIndex(rest, "~"); i >= 0 {
		if n, err := strconv.Atoi(rest[i+1:]); err == nil && n > 0 {
			id.Path = rest[:i]
			id.Occurrence = n
		}
	}
	return id, nil
}

// UnitContext is the disambiguation data sent along with a unit.
type UnitContext struct {
	FileType FileType `json:"file_type"`
	Key      string   `json:"key"`
	Sibling  string   `json:"sibling,omitempty"`
}

// Unit is one translatable span.
type Unit struct {
	ID         UnitID               `json:"id"`
	SourceText string               `json:"source_text"`
	MaskedText string               `json:"masked_text"`
	Tokens     placeholder.TokenMap `json:"tokens"`
	Context    UnitContext          `json:"context"`

	TranslatedText   string `json:"translated_text,omitempty"`
	// TranslatedMasked is the translation before unmasking, in terms of
	// Tokens. It is empty when the translation was produced some other way.
	TranslatedMasked string `json:"translated_masked,omitempty"`
	Status           Status `json:"status"`
	Attempts         int    `json:"attempts,omitempty"`
	LastError        string `json:"last_error,omitempty"`
}

// NewUnit returns a pending unit with the given source text.
func NewUnit(id UnitID, source string, ctx UnitContext) *Unit {
	return &Unit{ID: id, SourceText: source, Context: ctx, Status: StatusPending}
}

// Output is the text written back into the file: the translation when the
// unit was translated, the source text otherwise.
func (u *Unit) Output() string {
	if u.Status == StatusTranslated {
		return u.TranslatedText
	}
	return u.SourceText
}

// Resolve records a successful translation.
func (u *Unit) Resolve(text string) {
	u.ResolveMasked("", text)
}

// ResolveMasked records a successful translation together with its masked
// form.
func (u *Unit) ResolveMasked(masked, text string) {
	u.TranslatedText = text
	u.TranslatedMasked = masked
	u.Status = StatusTranslated
	u.LastError = ""
}

// Fail marks the unit failed and falls back to the source text.
func (u *Unit) Fail(reason string) {
	u.TranslatedText = u.SourceText
	u.TranslatedMasked = ""
	u.Status = StatusFailed
	u.LastError = reason
}

// Skip marks the unit as not needing translation.
func (u *Unit) Skip(reason string) {
	u.TranslatedText = u.SourceText
	u.TranslatedMasked = ""
	u.Status = StatusSkipped
	u.LastError = reason
}

// Done reports whether the unit reached a terminal status.
func (u *Unit) Done() bool {
	return u.Status != StatusPending
}
