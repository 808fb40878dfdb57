// Package orchestrator runs the translation pipeline over a modpack:
// discovery, extraction, glossary preparation, batch translation,
// reconstruction and output writing.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/batch"
	"github.com/valpere/packtran/internal/chunker"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/handler"
	"github.com/valpere/packtran/internal/output"
	"github.com/valpere/packtran/internal/refiner"
	"github.com/valpere/packtran/internal/report"
	"github.com/valpere/packtran/internal/store"
	"github.com/valpere/packtran/internal/translator"
	"github.com/valpere/packtran/internal/validator"
)

// State is the run state.
type State string

const (
	StateIdle           State = "idle"
	StateDiscovering    State = "discovering"
	StateExtracting     State = "extracting"
	StateTranslating    State = "translating"
	StateReconstructing State = "reconstructing"
	StateWriting        State = "writing"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// Artifact names written next to the pack trees.
const (
	GlossaryFile   = "glossary.json"
	StatsFile      = "stats.json"
	ReportFile     = "report.md"
	ReportHTMLFile = "report.html"
)

type Options struct {
	Modpack      string
	SourceLocale string
	TargetLocale string
	// Provider and Model are recorded in the statistics.
	Provider string
	Model    string

	Output output.Config
	// Jars also reads language files packed in mods/*.jar.
	Jars bool

	Limits      chunker.Limits
	Concurrency int
	MaxRetries  int
	Timeout     time.Duration
	Budget      glossary.Budget

	// VanillaDir holds cached vanilla glossaries.
	VanillaDir string
	// GlossaryFiles are user glossaries merged into the pack layer.
	GlossaryFiles    []string
	GenerateGlossary bool

	Review         bool
	VerifyLanguage bool
}

// Pipeline runs once. Its exported methods are safe for concurrent use
// while Run is in progress.
type Pipeline struct {
	opts     Options
	cap      translator.Capability
	store    *store.Store
	registry *handler.Registry
	log      *zap.Logger

	mu          sync.Mutex
	state       State
	stats       internal.RunStatistics
	currentFile string
	onEvent     func(Event)
	out         *output.Writer

	// cached marks units resolved from the translation memory. It is only
	// touched by the goroutine running Run.
	cached map[*internal.Unit]bool
}

// New returns a pipeline. st may be nil to run without translation memory,
// run history and user glossary terms.
func New(opts Options, c translator.Capability, st *store.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Budget == (glossary.Budget{}) {
		opts.Budget = glossary.DefaultBudget
	}
	opts.Output.Modpack = opts.Modpack
	opts.Output.SourceLocale = opts.SourceLocale
	opts.Output.TargetLocale = opts.TargetLocale
	return &Pipeline{
		opts:     opts,
		cap:      c,
		store:    st,
		registry: handler.Default(opts.SourceLocale),
		log:      logger.Named("orchestrator"),
		state:    StateIdle,
		cached:   map[*internal.Unit]bool{},
	}
}

// Registry returns the handler registry used for discovery.
func (p *Pipeline) Registry() *handler.Registry { return p.registry }

// Run executes the pipeline. A canceled ctx stops dispatching translation
// work; the run then writes a partial pack, ends aborted and returns an
// error wrapping internal.ErrCanceled. Fatal conditions end the run
// aborted and are returned as *internal.FatalIOError or
// *internal.FatalCapabilityError. Per-file problems only show up in the
// statistics.
func (p *Pipeline) Run(ctx context.Context) (*internal.RunStatistics, error) {
	start := time.Now()
	p.mu.Lock()
	p.stats = internal.RunStatistics{
		RunID:        uuid.NewString(),
		Modpack:      p.opts.Modpack,
		SourceLocale: p.opts.SourceLocale,
		TargetLocale: p.opts.TargetLocale,
		Provider:     p.opts.Provider,
		Model:        p.opts.Model,
		StartedAt:    start.UTC(),
		HandlerUnits: map[internal.FileType]int{},
	}
	runID := p.stats.RunID
	p.mu.Unlock()
	log := p.log.With(zap.String("run", runID))
	bg := context.WithoutCancel(ctx)

	if p.store != nil {
		err := p.store.StartRun(bg, &store.Run{
			ID:           runID,
			Modpack:      p.opts.Modpack,
			SourceLocale: p.opts.SourceLocale,
			TargetLocale: p.opts.TargetLocale,
			Provider:     p.opts.Provider,
			Model:        p.opts.Model,
		})
		if err != nil {
			log.Warn("failed to record run", zap.Error(err))
		}
	}

	w, err := output.New(p.opts.Output, log.Named("output"))
	if err != nil {
		return p.finish(bg, log, start, err)
	}
	p.mu.Lock()
	p.out = w
	p.mu.Unlock()
	if err := translator.Check(ctx, p.cap); err != nil {
		var fatal *internal.FatalCapabilityError
		if !errors.As(err, &fatal) && ctx.Err() == nil {
			err = &internal.FatalCapabilityError{Provider: p.cap.Name(), Err: err}
		}
		return p.finish(bg, log, start, err)
	}

	p.setState(StateDiscovering)
	files, err := p.discover(ctx)
	if err != nil {
		return p.finish(bg, log, start, err)
	}

	p.setState(StateExtracting)
	docs := p.extract(ctx, files)
	units := allUnits(docs)
	p.mu.Lock()
	p.stats.UnitsTotal = len(units)
	p.stats.UnitsCompleted = countDone(units)
	p.mu.Unlock()
	p.emit("")

	var (
		runErr error
		layers *glossaryLayers
	)
	if ctx.Err() == nil {
		p.setState(StateTranslating)
		layers, runErr = p.translate(ctx, log, units)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	var ioErr *internal.FatalIOError
	if errors.As(runErr, &ioErr) {
		p.tallyUnits(units)
		return p.finish(bg, log, start, runErr)
	}

	p.tallyUnits(units)

	p.setState(StateReconstructing)
	rendered := p.reconstruct(docs)
	p.tallyUnits(units)

	p.setState(StateWriting)
	if err := p.write(w, rendered, layers); err != nil {
		return p.finish(bg, log, start, err)
	}
	p.remember(bg, log, units)
	return p.finish(bg, log, start, runErr)
}

// translate prepares the glossary, resolves cached units, runs the batch
// translator and the optional review pass.
func (p *Pipeline) translate(ctx context.Context, log *zap.Logger, units []*internal.Unit) (*glossaryLayers, error) {
	v := validator.New()
	if p.opts.VerifyLanguage {
		v = validator.NewWithLanguage(isoCode(p.opts.SourceLocale), isoCode(p.opts.TargetLocale))
	}

	tr := &batch.Translator{
		Capability:   p.cap,
		Validator:    v,
		Budget:       p.opts.Budget,
		SourceLocale: p.opts.SourceLocale,
		TargetLocale: p.opts.TargetLocale,
		Limits:       p.opts.Limits,
		Concurrency:  p.opts.Concurrency,
		MaxRetries:   p.opts.MaxRetries,
		Timeout:      p.opts.Timeout,
		OnResult:     p.onBatch,
		Logger:       log.Named("batch"),
	}

	p.lookupMemory(ctx, log, units, v)

	layers, err := p.buildGlossary(ctx, log, units, tr)
	if err != nil {
		return layers, err
	}
	tr.Glossary = layers.index
	tr.Instructions = batch.Instructions(layers.merged.FormattingRules)

	if err := tr.Run(ctx, units); err != nil {
		return layers, err
	}

	if p.opts.Review && ctx.Err() == nil {
		rv := &refiner.Reviewer{
			Capability:   p.cap,
			Validator:    v,
			Glossary:     layers.index,
			Budget:       p.opts.Budget,
			SourceLocale: p.opts.SourceLocale,
			TargetLocale: p.opts.TargetLocale,
			Concurrency:  p.opts.Concurrency,
			Timeout:      p.opts.Timeout,
			Logger:       log.Named("review"),
		}
		sum, err := rv.Review(ctx, units)
		p.mu.Lock()
		p.stats.UnitsReviewed = sum.Reviewed
		p.stats.UnitsCorrected = sum.Corrected
		p.stats.InputTokens += sum.Usage.InputTokens
		p.stats.OutputTokens += sum.Usage.OutputTokens
		p.mu.Unlock()
		if err != nil {
			return layers, err
		}
	}
	return layers, nil
}

func (p *Pipeline) write(w *output.Writer, rendered []rendered, layers *glossaryLayers) error {
	files := make([]output.File, 0, len(rendered))
	for _, r := range rendered {
		files = append(files, output.File{Rel: r.path, Data: r.data})
	}
	written, err := w.Write(files)
	for _, e := range multierr.Errors(err) {
		p.log.Warn("failed to write file", zap.Error(e))
	}
	paths := make(map[string]string, len(written))
	for _, wr := range written {
		rel, err := filepath.Rel(w.Dir(), wr.Path)
		if err != nil {
			rel = wr.Path
		}
		paths[wr.Rel] = filepath.ToSlash(rel)
	}

	p.mu.Lock()
	for _, r := range rendered {
		f := &p.stats.Files[r.index]
		if out, ok := paths[r.path]; ok {
			f.Output = out
			continue
		}
		f.Status = internal.FileFailed
		f.Error = "write failed"
		p.stats.FilesProcessed--
		p.stats.FilesFailed++
	}
	p.mu.Unlock()

	if layers != nil && layers.pack != nil {
		if err := w.WriteJSON(GlossaryFile, layers.pack); err != nil {
			return &internal.FatalIOError{Path: filepath.Join(w.Dir(), GlossaryFile), Err: err}
		}
	}
	if _, err := w.Finish(); err != nil {
		var fatal *internal.FatalIOError
		if errors.As(err, &fatal) {
			return err
		}
		p.log.Warn("failed to write archives", zap.Error(err))
	}
	return nil
}

// remember stores fresh translations in the translation memory.
func (p *Pipeline) remember(ctx context.Context, log *zap.Logger, units []*internal.Unit) {
	if p.store == nil {
		return
	}
	var pairs []store.Pair
	for _, u := range units {
		if u.Status == internal.StatusTranslated && u.TranslatedMasked != "" && !p.cached[u] {
			pairs = append(pairs, store.Pair{Source: u.MaskedText, Target: u.TranslatedMasked})
		}
	}
	if err := p.store.Remember(ctx, p.opts.SourceLocale, p.opts.TargetLocale, p.opts.Provider, pairs); err != nil {
		log.Warn("failed to update translation memory", zap.Error(err))
	}
}

// finish settles the final state and statistics, writes the statistics
// artifacts when the output directory is usable, and records the run.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, start time.Time, runErr error) (*internal.RunStatistics, error) {
	state := StateDone
	if runErr != nil {
		state = StateAborted
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			runErr = fmt.Errorf("%w: %w", internal.ErrCanceled, runErr)
		}
	}

	p.mu.Lock()
	p.state = state
	p.stats.State = string(state)
	p.stats.Incomplete = state == StateAborted || p.stats.UnitsCompleted < p.stats.UnitsTotal
	if runErr != nil {
		p.stats.Error = runErr.Error()
	}
	finished := time.Now()
	p.stats.FinishedAt = finished.UTC()
	p.stats.DurationMS = finished.Sub(start).Milliseconds()
	stats := p.stats.Clone()
	w := p.out
	p.mu.Unlock()

	if w != nil {
		writeArtifacts(w, stats, log)
	}
	if p.store != nil {
		data, err := json.Marshal(stats)
		if err == nil {
			err = p.store.FinishRun(ctx, stats.RunID, stats.State, string(data))
		}
		if err != nil {
			log.Warn("failed to record run result", zap.Error(err))
		}
	}

	p.emit("")
	log.Info("run finished",
		zap.String("state", stats.State),
		zap.Int("units", stats.UnitsTotal),
		zap.Int("completed", stats.UnitsCompleted),
		zap.Int("translated", stats.UnitsTranslated),
		zap.Int("failed", stats.UnitsFailed),
		zap.Duration("elapsed", stats.Duration()))
	return stats, runErr
}

func writeArtifacts(w *output.Writer, stats *internal.RunStatistics, log *zap.Logger) {
	md := report.Markdown(stats)
	title := "Translation report " + stats.RunID
	errs := []error{
		w.WriteJSON(StatsFile, stats),
		w.WriteArtifact(ReportFile, md),
		w.WriteArtifact(ReportHTMLFile, report.HTML(md, title)),
	}
	for _, err := range errs {
		if err != nil {
			log.Warn("failed to write run artifact", zap.Error(err))
		}
	}
}

// isoCode returns the ISO 639-1 code of a Minecraft locale such as ko_kr.
func isoCode(locale string) string {
	tag, err := translator.ParseLocale(locale)
	if err != nil {
		code, _, _ := strings.Cut(locale, "_")
		return code
	}
	base, _ := tag.Base()
	return base.String()
}
