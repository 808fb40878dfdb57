package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/chunker"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/placeholder"
	"github.com/valpere/packtran/internal/translator"
)

func newUnit(t *testing.T, id, source string) *internal.Unit {
	t.Helper()
	uid, err := internal.ParseUnitID(id)
	require.NoError(t, err)
	u := internal.NewUnit(uid, source, internal.UnitContext{FileType: internal.FileTypeFTBQuests})
	u.MaskedText, u.Tokens, err = placeholder.For(string(internal.FileTypeFTBQuests)).Mask(source)
	require.NoError(t, err)
	return u
}

// stub answers every item with fn; an item fn reports as not ok is left out
// of the response.
func stub(fn func(translator.Item) (string, bool)) translator.CapabilityFunc {
	return func(_ context.Context, req translator.Request) (*translator.Response, error) {
		type entry struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		}
		var out struct {
			Translations []entry `json:"translations"`
		}
		for _, it := range req.Items {
			if text, ok := fn(it); ok {
				out.Translations = append(out.Translations, entry{it.ID, text})
			}
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return &translator.Response{Raw: string(raw), Usage: translator.Usage{InputTokens: 10, OutputTokens: 5}}, nil
	}
}

func TestRun_PlaceholderScenario(t *testing.T) {
	u := newUnit(t, "quests.json#ch1.title", "Defeat the %s boss!")
	require.Equal(t, "Defeat the ⟦T0⟧ boss!", u.MaskedText)

	var seen []string
	tr := &Translator{
		Capability: stub(func(it translator.Item) (string, bool) {
			seen = append(seen, it.Text)
			return "⟦T0⟧ 보스를 물리쳐라!", true
		}),
		SourceLocale: "en_us",
		TargetLocale: "ko_kr",
	}
	require.NoError(t, tr.Run(context.Background(), []*internal.Unit{u}))

	assert.Equal(t, []string{"Defeat the ⟦T0⟧ boss!"}, seen)
	assert.Equal(t, internal.StatusTranslated, u.Status)
	assert.Equal(t, "%s 보스를 물리쳐라!", u.TranslatedText)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	var units []*internal.Unit
	for i := 0; i < 5; i++ {
		units = append(units, newUnit(t, fmt.Sprintf("quests.json#q%d.title", i), fmt.Sprintf("Quest number %d", i)))
	}

	var mu sync.Mutex
	var results []Result
	tr := &Translator{
		Capability: stub(func(it translator.Item) (string, bool) {
			if strings.HasSuffix(it.Text, "2") {
				return "", true
			}
			return "퀘스트 " + it.Text[len(it.Text)-1:], true
		}),
		Limits: chunker.Limits{MaxUnits: 5},
		OnResult: func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		},
	}
	require.NoError(t, tr.Run(context.Background(), units))

	for i, u := range units {
		if i == 2 {
			assert.Equal(t, internal.StatusFailed, u.Status)
			assert.Equal(t, u.SourceText, u.TranslatedText)
			assert.Contains(t, u.LastError, "empty translation")
			assert.Equal(t, DefaultMaxRetries+1, u.Attempts)
			continue
		}
		assert.Equal(t, internal.StatusTranslated, u.Status, u.ID.String())
		assert.Equal(t, fmt.Sprintf("퀘스트 %d", i), u.TranslatedText)
		assert.Equal(t, 1, u.Attempts)
	}

	require.NotEmpty(t, results)
	assert.Equal(t, StatePartiallySucceeded, results[0].State)
	assert.Len(t, results[0].Resolved, 4)
	last := results[len(results)-1]
	assert.Equal(t, StateFailed, last.State)
	assert.Len(t, last.Exhausted, 1)
}

func TestRun_GlossaryConsistency(t *testing.T) {
	g := &glossary.Glossary{TermRules: []glossary.TermRule{
		{Term: "다이아몬드 검", Aliases: []string{"Diamond Sword"}, Category: glossary.CategoryItem},
		{Term: "네더", Aliases: []string{"Nether"}},
	}}
	units := []*internal.Unit{
		newUnit(t, "a.snbt#title", "Craft a Diamond Sword"),
		newUnit(t, "b.snbt#description", "The diamond sword is the best blade."),
	}

	var excerpts [][]glossary.TermRule
	var mu sync.Mutex
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			mu.Lock()
			excerpts = append(excerpts, req.Glossary)
			mu.Unlock()
			return stub(func(it translator.Item) (string, bool) {
				text := it.Text
				for _, r := range req.Glossary {
					for _, a := range r.Aliases {
						text = strings.ReplaceAll(strings.ToLower(text), strings.ToLower(a), r.Term)
					}
				}
				return text, true
			})(ctx, req)
		}),
		Glossary: glossary.NewIndex(g),
		Budget:   glossary.DefaultBudget,
		Limits:   chunker.Limits{MaxUnits: 1},
	}
	require.NoError(t, tr.Run(context.Background(), units))

	require.Len(t, excerpts, 2)
	for _, ex := range excerpts {
		require.Len(t, ex, 1)
		assert.Equal(t, "다이아몬드 검", ex[0].Term)
	}
	for _, u := range units {
		assert.Equal(t, internal.StatusTranslated, u.Status)
		assert.Contains(t, u.TranslatedText, "다이아몬드 검")
	}
}

func TestRun_SplitsAndNeverOverlaps(t *testing.T) {
	var units []*internal.Unit
	for i := 0; i < 12; i++ {
		units = append(units, newUnit(t, fmt.Sprintf("f.json#k%d", i), fmt.Sprintf("Line %d", i)))
	}

	var mu sync.Mutex
	inflight := map[string]bool{}
	var overlap atomic.Bool
	var calls atomic.Int32
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			calls.Add(1)
			mu.Lock()
			for _, it := range req.Items {
				if inflight[it.Text] {
					overlap.Store(true)
				}
				inflight[it.Text] = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			defer func() {
				mu.Lock()
				for _, it := range req.Items {
					delete(inflight, it.Text)
				}
				mu.Unlock()
			}()
			for _, it := range req.Items {
				if it.Text == "Line 7" {
					return &translator.Response{Raw: "I refuse"}, nil
				}
			}
			return stub(func(it translator.Item) (string, bool) { return "줄 " + it.Text[5:], true })(ctx, req)
		}),
		Limits:      chunker.Limits{MaxUnits: 4},
		Concurrency: 3,
		MaxRetries:  3,
	}
	require.NoError(t, tr.Run(context.Background(), units))

	assert.False(t, overlap.Load())
	for i, u := range units {
		if i == 7 {
			assert.Equal(t, internal.StatusFailed, u.Status)
			assert.Contains(t, u.LastError, "not valid JSON")
			continue
		}
		assert.Equal(t, internal.StatusTranslated, u.Status, u.ID.String())
	}
	// 3 initial batches, then 4 -> 2+2 -> 1+1 -> 1 for the poisoned one
	assert.Equal(t, int32(3+2+2+1), calls.Load())
}

func TestRun_UnavailableIsFatal(t *testing.T) {
	units := []*internal.Unit{newUnit(t, "f.json#a", "Hello"), newUnit(t, "f.json#b", "World")}
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(context.Context, translator.Request) (*translator.Response, error) {
			return nil, fmt.Errorf("%w: bad key", translator.ErrUnavailable)
		}),
		Limits:      chunker.Limits{MaxUnits: 1},
		Concurrency: 1,
	}
	err := tr.Run(context.Background(), units)
	require.Error(t, err)
	assert.True(t, internal.IsFatal(err))
	var capErr *internal.FatalCapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "func", capErr.Provider)
	assert.Equal(t, internal.StatusPending, units[1].Status)
}

func TestRun_RepeatedCallErrorsAreFatal(t *testing.T) {
	var units []*internal.Unit
	for i := 0; i < 10; i++ {
		units = append(units, newUnit(t, fmt.Sprintf("f.json#k%d", i), "Hello"))
	}
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(context.Context, translator.Request) (*translator.Response, error) {
			return nil, errors.New("connection refused")
		}),
		Limits:        chunker.Limits{MaxUnits: 1},
		Concurrency:   1,
		MaxCallErrors: 3,
	}
	err := tr.Run(context.Background(), units)
	assert.True(t, internal.IsFatal(err))
	assert.ErrorContains(t, err, "3 consecutive calls failed")
}

func TestRun_TimeoutIsValidationFailure(t *testing.T) {
	u := newUnit(t, "f.json#slow", "Slow text")
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(ctx context.Context, _ translator.Request) (*translator.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		Timeout:    20 * time.Millisecond,
		MaxRetries: -1,
	}
	require.NoError(t, tr.Run(context.Background(), []*internal.Unit{u}))
	assert.Equal(t, internal.StatusFailed, u.Status)
	assert.Contains(t, u.LastError, "timed out")
	assert.Equal(t, "Slow text", u.Output())
}

func TestRun_TimeoutsAreNotFatal(t *testing.T) {
	var units []*internal.Unit
	for i := 0; i < 4; i++ {
		units = append(units, newUnit(t, fmt.Sprintf("f.json#k%d", i), "Slow text"))
	}
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(ctx context.Context, _ translator.Request) (*translator.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		Limits:        chunker.Limits{MaxUnits: 1},
		Concurrency:   1,
		Timeout:       10 * time.Millisecond,
		MaxRetries:    -1,
		MaxCallErrors: 2,
	}
	require.NoError(t, tr.Run(context.Background(), units))
	for _, u := range units {
		assert.Equal(t, internal.StatusFailed, u.Status)
	}
}

func TestRun_Cancellation(t *testing.T) {
	var units []*internal.Unit
	for i := 0; i < 10; i++ {
		units = append(units, newUnit(t, fmt.Sprintf("f.json#k%d", i), fmt.Sprintf("Text %d", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	tr := &Translator{
		Capability: translator.CapabilityFunc(func(c context.Context, req translator.Request) (*translator.Response, error) {
			if calls.Add(1) == 5 {
				cancel()
			}
			return stub(func(it translator.Item) (string, bool) { return "번역 " + it.Text, true })(c, req)
		}),
		Limits:      chunker.Limits{MaxUnits: 1},
		Concurrency: 1,
	}
	err := tr.Run(ctx, units)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, int32(5), calls.Load())
	translated := 0
	for _, u := range units {
		switch u.Status {
		case internal.StatusTranslated:
			translated++
		case internal.StatusPending:
			assert.Equal(t, u.SourceText, u.Output())
		default:
			t.Fatalf("unexpected status %s", u.Status)
		}
	}
	assert.Equal(t, 5, translated)
}

func TestRun_OversizedAndDone(t *testing.T) {
	big := newUnit(t, "f.json#big", strings.Repeat("word ", 50))
	done := newUnit(t, "f.json#done", "Cached")
	done.Resolve("캐시")

	calls := 0
	tr := &Translator{
		Capability: stub(func(translator.Item) (string, bool) { calls++; return "x", true }),
		Limits:     chunker.Limits{MaxChars: 100},
	}
	require.NoError(t, tr.Run(context.Background(), []*internal.Unit{big, done}))
	assert.Zero(t, calls)
	assert.Equal(t, internal.StatusFailed, big.Status)
	assert.Equal(t, "캐시", done.TranslatedText)
}

func TestRun_PreviousErrorIsSent(t *testing.T) {
	u := newUnit(t, "f.json#a", "Use %s here")
	var prev []string
	tr := &Translator{
		Capability: stub(func(it translator.Item) (string, bool) {
			prev = append(prev, it.PrevError)
			if len(prev) == 1 {
				return "여기 사용", true
			}
			return "여기서 ⟦T0⟧ 사용", true
		}),
	}
	require.NoError(t, tr.Run(context.Background(), []*internal.Unit{u}))
	require.Len(t, prev, 2)
	assert.Empty(t, prev[0])
	assert.Contains(t, prev[1], "token mismatch")
	assert.Equal(t, "여기서 %s 사용", u.TranslatedText)
}

func TestTranslateTerms(t *testing.T) {
	tr := &Translator{
		Capability: stub(func(it translator.Item) (string, bool) {
			if it.Text == "Void Gate" {
				return "", false
			}
			return "\"" + strings.ToUpper(it.Text) + "\"", true
		}),
		SourceLocale: "en_us",
		TargetLocale: "ko_kr",
	}
	got, err := tr.TranslateTerms(context.Background(), []string{"Crystal Heart", "Void Gate"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CRYSTAL HEART", ""}, got)

	var _ glossary.TermTranslator = tr
}

func TestInstructions(t *testing.T) {
	got := Instructions([]glossary.FormattingRule{{Name: "honorifics", Description: "Use polite speech", Examples: []string{"하세요"}}})
	assert.True(t, strings.HasPrefix(got, placeholder.InstructionHint()))
	assert.Contains(t, got, "- honorifics: Use polite speech (e.g. 하세요)")
}
