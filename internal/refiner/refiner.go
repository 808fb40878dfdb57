// Package refiner implements the optional review pass: translated units are
// resubmitted together with their source so the model can correct them.
package refiner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/placeholder"
	"github.com/valpere/packtran/internal/postprocess"
	"github.com/valpere/packtran/internal/translator"
	"github.com/valpere/packtran/internal/validator"
)

// DefaultChunkSize is the number of units reviewed per request.
const DefaultChunkSize = 50

// Summary counts the outcome of a review pass.
type Summary struct {
	Reviewed  int
	Corrected int
	Usage     translator.Usage
}

// Reviewer reviews translated units through a capability. A correction is
// applied only if it passes the same validation as a first translation.
type Reviewer struct {
	Capability   translator.Capability
	Validator    *validator.Validator
	Glossary     *glossary.Index
	Budget       glossary.Budget
	SourceLocale string
	TargetLocale string
	ChunkSize    int
	Concurrency  int
	Timeout      time.Duration
	Logger       *zap.Logger
}

type pending struct {
	unit   *internal.Unit
	masked string
	tokens placeholder.TokenMap
}

// Review corrects translated units in place. Failed requests are logged and
// leave their units untouched; only a fatal capability error or
// cancellation is returned.
func (r *Reviewer) Review(ctx context.Context, units []*internal.Unit) (Summary, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	v := r.Validator
	if v == nil {
		v = validator.New()
	}
	size := r.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	// The draft is masked with its own token map so that tokens the model
	// reordered during translation still round-trip.
	var work []pending
	for _, u := range units {
		if u.Status != internal.StatusTranslated {
			continue
		}
		masked, tm, err := placeholder.For(string(u.Context.FileType)).Mask(u.TranslatedText)
		if err != nil {
			continue
		}
		work = append(work, pending{unit: u, masked: masked, tokens: tm})
	}

	var (
		mu  sync.Mutex
		sum = Summary{Reviewed: len(work)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))
	for start := 0; start < len(work); start += size {
		chunk := work[start:min(start+size, len(work))]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			corrected, usage, err := r.reviewChunk(gctx, chunk, v)
			if err != nil {
				if internal.IsFatal(err) {
					return err
				}
				log.Warn("review request failed", zap.Int("units", len(chunk)), zap.Error(err))
				return nil
			}
			mu.Lock()
			sum.Corrected += corrected
			sum.Usage.InputTokens += usage.InputTokens
			sum.Usage.OutputTokens += usage.OutputTokens
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	log.Info("review finished", zap.Int("reviewed", sum.Reviewed), zap.Int("corrected", sum.Corrected))
	return sum, err
}

func (r *Reviewer) reviewChunk(ctx context.Context, chunk []pending, v *validator.Validator) (int, translator.Usage, error) {
	items := make([]translator.Item, len(chunk))
	ids := make([]string, len(chunk))
	texts := make([]string, len(chunk))
	for i, p := range chunk {
		ids[i] = strconv.Itoa(i)
		items[i] = translator.Item{ID: ids[i], Text: p.masked, Source: p.unit.MaskedText}
		texts[i] = p.unit.MaskedText
	}
	req := translator.Request{
		SourceLocale: r.SourceLocale,
		TargetLocale: r.TargetLocale,
		SystemPrompt: translator.SystemPrompt(translator.PromptReview, r.SourceLocale, r.TargetLocale, placeholder.InstructionHint()),
		Items:        items,
	}
	if r.Glossary != nil {
		req.Glossary = r.Glossary.Excerpt(texts, r.Budget)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := r.Capability.Submit(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && isUnavailable(err) {
			return 0, translator.Usage{}, &internal.FatalCapabilityError{Provider: r.Capability.Name(), Err: err}
		}
		return 0, translator.Usage{}, err
	}

	translations := resp.Translations
	if translations == nil {
		if translations, err = validator.Decode(resp.Raw, ids); err != nil {
			return 0, resp.Usage, err
		}
	}

	corrected := 0
	for i, p := range chunk {
		text, ok := translations[ids[i]]
		if !ok || text == p.masked {
			continue
		}
		out, err := v.Check(p.masked, postprocess.Item(p.masked, text), p.tokens)
		if err != nil || out == p.unit.TranslatedText {
			continue
		}
		p.unit.Resolve(out)
		corrected++
	}
	return corrected, resp.Usage, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, translator.ErrUnavailable)
}
