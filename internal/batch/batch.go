// Package batch drives the LLM capability over planned batches: it bounds
// concurrency, validates every response, and re-queues unresolved units in
// smaller batches until they resolve or run out of attempts.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/chunker"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/placeholder"
	"github.com/valpere/packtran/internal/postprocess"
	"github.com/valpere/packtran/internal/translator"
	"github.com/valpere/packtran/internal/validator"
)

const (
	DefaultConcurrency   = 15
	DefaultMaxRetries    = 3
	DefaultTimeout       = 120 * time.Second
	DefaultMaxCallErrors = 10
)

// State is the lifecycle of one batch attempt.
type State int

const (
	StateQueued State = iota
	StateInflight
	StateSucceeded
	StatePartiallySucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateInflight:
		return "inflight"
	case StateSucceeded:
		return "succeeded"
	case StatePartiallySucceeded:
		return "partially-succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result reports one finished batch attempt. Resolved units are translated;
// Exhausted units were marked failed on this attempt. Units of a requeued
// remainder appear in neither.
type Result struct {
	State     State
	Attempt   int
	Resolved  []*internal.Unit
	Exhausted []*internal.Unit
	Usage     translator.Usage
}

// Translator translates units through a capability. Its fields are
// configuration and must not change once Run has started.
type Translator struct {
	Capability translator.Capability
	Validator  *validator.Validator
	// Glossary may be nil.
	Glossary *glossary.Index
	Budget   glossary.Budget

	SourceLocale string
	TargetLocale string
	// Instructions are appended to the system prompt.
	Instructions string

	Limits      chunker.Limits
	Concurrency int
	// MaxRetries bounds the attempts derived from a batch; negative
	// disables retries.
	MaxRetries int
	Timeout    time.Duration
	// MaxCallErrors is how many consecutive failed calls make the
	// capability count as unreachable; negative disables the check.
	MaxCallErrors int

	// OnResult is called from worker goroutines after every attempt.
	OnResult func(Result)
	Logger   *zap.Logger

	callErrors int
	mu         sync.Mutex
}

func (t *Translator) log() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *Translator) concurrency() int {
	if t.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return t.Concurrency
}

func (t *Translator) maxRetries() int {
	switch {
	case t.MaxRetries < 0:
		return 0
	case t.MaxRetries == 0:
		return DefaultMaxRetries
	}
	return t.MaxRetries
}

func (t *Translator) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

func (t *Translator) validator() *validator.Validator {
	if t.Validator == nil {
		return validator.New()
	}
	return t.Validator
}

// Instructions composes the token hint and the glossary's formatting rules
// into prompt instructions.
func Instructions(rules []glossary.FormattingRule) string {
	var sb strings.Builder
	sb.WriteString(placeholder.InstructionHint())
	for _, r := range rules {
		fmt.Fprintf(&sb, "\n- %s: %s", r.Name, r.Description)
		if len(r.Examples) > 0 {
			fmt.Fprintf(&sb, " (e.g. %s)", strings.Join(r.Examples, "; "))
		}
	}
	return sb.String()
}

// Run translates the pending units. Units too large for any batch are
// failed without a call. After ctx is canceled no new batch is dispatched;
// calls already in flight finish or time out and their units keep what they
// reached. Run returns a fatal error when the capability is unreachable, or
// ctx's error when canceled.
func (t *Translator) Run(ctx context.Context, units []*internal.Unit) error {
	var pending []*internal.Unit
	for _, u := range units {
		if !u.Done() {
			pending = append(pending, u)
		}
	}

	batches, oversized := chunker.Plan(pending, t.Limits)
	for _, u := range oversized {
		u.Fail("unit exceeds the batch character limit")
	}
	if len(oversized) > 0 {
		t.report(Result{State: StateFailed, Exhausted: oversized})
	}
	t.log().Info("translating",
		zap.Int("units", len(pending)),
		zap.Int("batches", len(batches)),
		zap.Int("oversized", len(oversized)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency())
	for _, b := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return t.process(gctx, b)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// process runs b and the batches derived from it one after another, so a
// unit is never in two outstanding requests.
func (t *Translator) process(ctx context.Context, b *chunker.Batch) error {
	queue := []*chunker.Batch{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		res, failed, err := t.attempt(ctx, cur)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			switch {
			case ctx.Err() != nil:
				// left pending
			case cur.Attempt >= t.maxRetries():
				for _, u := range failed {
					u.Fail(u.LastError)
				}
				res.Exhausted = failed
			case len(failed) == len(cur.Units) && len(failed) > 1:
				left, right := chunker.Split(cur)
				queue = append(queue, left, right)
			default:
				queue = append(queue, cur.Subset(failed))
			}
		}
		t.log().Debug("batch attempt",
			zap.Stringer("state", res.State),
			zap.Int("attempt", cur.Attempt),
			zap.Int("units", len(cur.Units)),
			zap.Int("resolved", len(res.Resolved)),
			zap.Int("failed", len(failed)))
		t.report(res)
	}
	return nil
}

func (t *Translator) report(res Result) {
	if t.OnResult != nil {
		t.OnResult(res)
	}
}

// attempt submits b once and resolves what validates. It returns the units
// still unresolved.
func (t *Translator) attempt(ctx context.Context, b *chunker.Batch) (Result, []*internal.Unit, error) {
	res := Result{State: StateInflight, Attempt: b.Attempt}
	req := t.request(b)
	for _, u := range b.Units {
		u.Attempts++
	}

	resp, err := t.submit(ctx, req)
	if err != nil {
		if internal.IsFatal(err) {
			return res, nil, err
		}
		for _, u := range b.Units {
			u.LastError = err.Error()
		}
		res.State = StateFailed
		return res, b.Units, nil
	}
	res.Usage = resp.Usage

	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ID
	}
	translations := resp.Translations
	if translations == nil {
		translations, err = validator.Decode(resp.Raw, ids)
		if err != nil {
			verr := &internal.TranslationValidationError{Reason: err.Error()}
			for _, u := range b.Units {
				u.LastError = verr.Error()
			}
			res.State = StateFailed
			return res, b.Units, nil
		}
	}

	var failed []*internal.Unit
	for i, u := range b.Units {
		id := u.ID
		text, ok := translations[ids[i]]
		if !ok {
			u.LastError = (&internal.TranslationValidationError{Unit: &id, Reason: validator.ErrMissing.Error()}).Error()
			failed = append(failed, u)
			continue
		}
		text = postprocess.Item(u.MaskedText, text)
		out, err := t.validator().Check(u.MaskedText, text, u.Tokens)
		if err != nil {
			u.LastError = (&internal.TranslationValidationError{Unit: &id, Reason: err.Error()}).Error()
			failed = append(failed, u)
			continue
		}
		u.ResolveMasked(text, out)
		res.Resolved = append(res.Resolved, u)
	}

	switch {
	case len(failed) == 0:
		res.State = StateSucceeded
	case len(res.Resolved) == 0:
		res.State = StateFailed
	default:
		res.State = StatePartiallySucceeded
	}
	return res, failed, nil
}

func (t *Translator) request(b *chunker.Batch) translator.Request {
	items := make([]translator.Item, len(b.Units))
	texts := make([]string, len(b.Units))
	for i, u := range b.Units {
		items[i] = translator.Item{ID: strconv.Itoa(i), Text: u.MaskedText, PrevError: u.LastError}
		texts[i] = u.MaskedText
	}
	req := translator.Request{
		SourceLocale: t.SourceLocale,
		TargetLocale: t.TargetLocale,
		SystemPrompt: translator.SystemPrompt(translator.PromptTranslate, t.SourceLocale, t.TargetLocale, t.Instructions),
		Items:        items,
	}
	if t.Glossary != nil {
		req.Glossary = t.Glossary.Excerpt(texts, t.Budget)
	}
	return req
}

// submit calls the capability detached from ctx's cancellation and bounded
// by the call timeout. A timeout is an ordinary failed call.
func (t *Translator) submit(ctx context.Context, req translator.Request) (*translator.Response, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout())
	defer cancel()

	resp, err := t.Capability.Submit(callCtx, req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	return resp, t.track(err)
}

// track converts unavailability and long runs of failed calls into a fatal
// capability error. Timeouts fail the batch like a rejected response and do
// not count toward the run of failed calls.
func (t *Translator) track(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		t.callErrors = 0
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("translation call timed out after %s: %w", t.timeout(), err)
		t.log().Warn("translation call failed", zap.Error(err))
		return err
	}
	if errors.Is(err, translator.ErrUnavailable) {
		return &internal.FatalCapabilityError{Provider: t.Capability.Name(), Err: err}
	}
	t.callErrors++
	limit := t.MaxCallErrors
	if limit == 0 {
		limit = DefaultMaxCallErrors
	}
	if limit > 0 && t.callErrors >= limit {
		return &internal.FatalCapabilityError{
			Provider: t.Capability.Name(),
			Err:      fmt.Errorf("%d consecutive calls failed, last: %w", t.callErrors, err),
		}
	}
	t.log().Warn("translation call failed", zap.Error(err))
	return err
}
