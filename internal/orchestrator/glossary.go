package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/batch"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/validator"
)

// glossaryLayers holds the glossaries of one run. pack is what gets written
// out; merged and index are what the prompts see.
type glossaryLayers struct {
	vanilla *glossary.Glossary
	pack    *glossary.Glossary
	merged  *glossary.Glossary
	index   *glossary.Index
}

// buildGlossary layers the pack glossary over the vanilla one. The pack layer
// is the generated glossary with user terms on top. The returned layers are
// never nil.
func (p *Pipeline) buildGlossary(ctx context.Context, log *zap.Logger, units []*internal.Unit, tr *batch.Translator) (*glossaryLayers, error) {
	src, tgt := p.opts.SourceLocale, p.opts.TargetLocale
	l := &glossaryLayers{vanilla: glossary.New(src, tgt)}

	if p.opts.VanillaDir != "" {
		g, ok, err := glossary.LoadVanilla(p.opts.VanillaDir, src, tgt)
		switch {
		case err != nil:
			log.Warn("failed to load vanilla glossary", zap.Error(err))
		case ok:
			l.vanilla = g
		default:
			log.Info("no vanilla glossary cached", zap.String("dir", p.opts.VanillaDir))
		}
	}

	user := glossary.New(src, tgt)
	for _, path := range p.opts.GlossaryFiles {
		g, err := glossary.Load(path)
		if err != nil {
			log.Warn("failed to load glossary", zap.String("path", path), zap.Error(err))
			continue
		}
		user = glossary.Merge(user, g)
	}
	if p.store != nil {
		rules, err := p.store.GlossaryRules(ctx, src, tgt)
		if err != nil {
			log.Warn("failed to read stored glossary terms", zap.Error(err))
		}
		user = glossary.Merge(user, &glossary.Glossary{TermRules: rules})
	}

	pack := glossary.New(src, tgt)
	var genErr error
	if p.opts.GenerateGlossary {
		var texts []string
		for _, u := range units {
			if !u.Done() {
				texts = append(texts, u.MaskedText)
			}
		}
		gen := &glossary.Generator{Translator: tr, Logger: log.Named("glossary")}
		generated, err := gen.Generate(ctx, texts, glossary.Merge(l.vanilla, user), src, tgt)
		if generated != nil {
			pack = generated
		}
		genErr = err
	}

	l.pack = glossary.Merge(pack, user)
	l.pack.SourceLocale, l.pack.TargetLocale = src, tgt
	l.merged = glossary.Merge(l.vanilla, l.pack)
	l.index = glossary.NewIndex(l.merged)

	p.mu.Lock()
	p.stats.GlossaryTerms = l.merged.Len()
	p.mu.Unlock()
	log.Info("glossary ready",
		zap.Int("vanilla", l.vanilla.Len()),
		zap.Int("pack", l.pack.Len()),
		zap.Int("terms", l.merged.Len()))
	return l, genErr
}

// lookupMemory resolves pending units from the translation memory. A stored
// translation is only used when it validates against the unit's tokens.
func (p *Pipeline) lookupMemory(ctx context.Context, log *zap.Logger, units []*internal.Unit, v *validator.Validator) {
	if p.store == nil {
		return
	}
	hits := 0
	for _, u := range units {
		if u.Done() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		masked, ok, err := p.store.Lookup(ctx, u.MaskedText, p.opts.SourceLocale, p.opts.TargetLocale)
		if err != nil {
			log.Warn("translation memory lookup failed", zap.Error(err))
			return
		}
		if !ok {
			continue
		}
		out, err := v.Check(u.MaskedText, masked, u.Tokens)
		if err != nil {
			log.Debug("stale memory entry", zap.Stringer("unit", u.ID), zap.Error(err))
			continue
		}
		u.ResolveMasked(masked, out)
		p.cached[u] = true
		hits++
	}

	p.mu.Lock()
	p.stats.UnitsCompleted += hits
	p.stats.UnitsCached = hits
	p.mu.Unlock()
	if hits > 0 {
		log.Info("translation memory hits", zap.Int("units", hits))
		p.emit("")
	}
}
