package batch

import (
	"context"
	"strconv"
	"strings"

	"github.com/valpere/packtran/internal/postprocess"
	"github.com/valpere/packtran/internal/translator"
	"github.com/valpere/packtran/internal/validator"
)

// TranslateTerms renders glossary candidates in the target language with a
// single call. Terms the response leaves out come back empty. It lets a
// Translator serve as the glossary generator's term translator.
func (t *Translator) TranslateTerms(ctx context.Context, terms []string) ([]string, error) {
	items := make([]translator.Item, len(terms))
	ids := make([]string, len(terms))
	for i, term := range terms {
		ids[i] = strconv.Itoa(i)
		items[i] = translator.Item{ID: ids[i], Text: term}
	}
	req := translator.Request{
		SourceLocale: t.SourceLocale,
		TargetLocale: t.TargetLocale,
		SystemPrompt: translator.SystemPrompt(translator.PromptTerms, t.SourceLocale, t.TargetLocale, ""),
		Items:        items,
	}

	resp, err := t.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	t.report(Result{State: StateSucceeded, Usage: resp.Usage})

	translations := resp.Translations
	if translations == nil {
		translations, err = validator.Decode(resp.Raw, ids)
		if err != nil {
			return nil, err
		}
	}
	out := make([]string, len(terms))
	for i, id := range ids {
		out[i] = strings.TrimSpace(postprocess.Item(terms[i], translations[id]))
	}
	return out, nil
}
