package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/handler"
	"github.com/valpere/packtran/internal/modpack"
	"github.com/valpere/packtran/internal/placeholder"
)

// document is an extracted file. index points into stats.Files.
type document struct {
	index int
	file  modpack.File
	doc   handler.Document
}

// rendered is a reconstructed file ready to be written.
type rendered struct {
	index int
	path  string
	data  []byte
}

func (p *Pipeline) discover(ctx context.Context) ([]modpack.File, error) {
	sc := &modpack.Scanner{
		Registry: p.registry,
		Jars:     p.opts.Jars,
		Exclude:  p.excludes(),
		Logger:   p.log.Named("modpack"),
	}
	files, err := sc.Scan(ctx, p.opts.Modpack)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.stats.FilesTotal = len(files)
	p.mu.Unlock()
	p.log.Info("discovered files", zap.Int("files", len(files)))
	return files, nil
}

// excludes returns the output directory relative to the modpack when it lies
// inside it.
func (p *Pipeline) excludes() []string {
	if p.opts.Output.Dir == "" {
		return nil
	}
	root, err := filepath.Abs(p.opts.Modpack)
	if err != nil {
		return nil
	}
	dir, err := filepath.Abs(p.opts.Output.Dir)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{filepath.ToSlash(rel)}
}

// Scan discovers and extracts the modpack without translating anything. The
// returned statistics cover discovery and extraction only.
func (p *Pipeline) Scan(ctx context.Context) (*internal.RunStatistics, []*internal.Unit, error) {
	p.mu.Lock()
	p.stats = internal.RunStatistics{
		Modpack:      p.opts.Modpack,
		SourceLocale: p.opts.SourceLocale,
		TargetLocale: p.opts.TargetLocale,
		HandlerUnits: map[internal.FileType]int{},
	}
	p.mu.Unlock()

	files, err := p.discover(ctx)
	if err != nil {
		return nil, nil, err
	}
	docs := p.extract(ctx, files)
	units := allUnits(docs)
	p.tallyUnits(units)

	p.mu.Lock()
	p.stats.UnitsTotal = len(units)
	stats := p.stats.Clone()
	p.mu.Unlock()
	return stats, units, ctx.Err()
}

// extract parses every file and masks its units. A file that cannot be read
// fails, a file its handler cannot parse is skipped; neither stops the run.
func (p *Pipeline) extract(ctx context.Context, files []modpack.File) []document {
	var docs []document
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		res := internal.FileResult{Path: f.Rel, Handler: f.Handler.Name()}

		doc, err := p.parse(f)
		if err != nil {
			var perr *internal.ParseError
			if errors.As(err, &perr) {
				res.Status = internal.FileSkipped
			} else {
				res.Status = internal.FileFailed
			}
			res.Error = err.Error()
			p.log.Warn("skipping file", zap.String("file", f.Rel), zap.Error(err))
			p.addFile(res, 0)
			continue
		}

		units := doc.Units()
		if len(units) == 0 {
			res.Status = internal.FileSkipped
			res.Error = "no translatable text"
			p.addFile(res, 0)
			continue
		}
		for _, u := range units {
			mask(u)
		}
		res.Units = len(units)
		docs = append(docs, document{index: p.addFile(res, len(units)), file: f, doc: doc})
	}
	p.log.Info("extracted units", zap.Int("files", len(docs)))
	return docs
}

func (p *Pipeline) parse(f modpack.File) (handler.Document, error) {
	data, err := modpack.Read(p.opts.Modpack, f)
	if err != nil {
		return nil, err
	}
	doc, err := f.Handler.Extract(f.Rel, data)
	if err != nil {
		var perr *internal.ParseError
		if !errors.As(err, &perr) {
			err = &internal.ParseError{Path: f.Rel, Err: err}
		}
		return nil, err
	}
	return doc, nil
}

// addFile records a file result and returns its index.
func (p *Pipeline) addFile(res internal.FileResult, units int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch res.Status {
	case internal.FileSkipped:
		p.stats.FilesSkipped++
	case internal.FileFailed:
		p.stats.FilesFailed++
	default:
		p.stats.FilesProcessed++
		p.stats.HandlerUnits[res.Handler] += units
	}
	p.stats.Files = append(p.stats.Files, res)
	return len(p.stats.Files) - 1
}

// mask protects the markup of u. Units left with nothing to translate are
// skipped up front.
func mask(u *internal.Unit) {
	masked, tm, err := placeholder.For(string(u.Context.FileType)).Mask(u.SourceText)
	if err != nil {
		u.MaskedText = u.SourceText
		u.Fail((&internal.MaskCollisionError{Unit: u.ID, Text: u.SourceText}).Error())
		return
	}
	u.MaskedText, u.Tokens = masked, tm
	if placeholder.OnlyTokens(masked, tm) {
		u.Skip("nothing to translate")
	}
}

func allUnits(docs []document) []*internal.Unit {
	var units []*internal.Unit
	for _, d := range docs {
		units = append(units, d.doc.Units()...)
	}
	return units
}

func countDone(units []*internal.Unit) int {
	n := 0
	for _, u := range units {
		if u.Done() {
			n++
		}
	}
	return n
}

// reconstruct renders every document with its translations. A document that
// cannot be rendered is not written.
func (p *Pipeline) reconstruct(docs []document) []rendered {
	out := make([]rendered, 0, len(docs))
	for _, d := range docs {
		data, reverted, err := handler.Apply(d.doc)
		for _, u := range reverted {
			p.log.Warn("translation reverted", zap.Stringer("unit", u.ID), zap.String("reason", u.LastError))
		}

		p.mu.Lock()
		f := &p.stats.Files[d.index]
		f.Reverted = len(reverted)
		p.tallyFile(f, d.doc.Units())
		if err != nil {
			f.Status = internal.FileFailed
			f.Error = fmt.Sprintf("render: %v", err)
			p.stats.FilesProcessed--
			p.stats.FilesFailed++
		}
		p.mu.Unlock()

		if err != nil {
			p.log.Warn("failed to render file", zap.String("file", d.file.Rel), zap.Error(err))
			continue
		}
		out = append(out, rendered{index: d.index, path: d.file.Rel, data: data})
	}
	return out
}

// tallyFile sets the per-file counters and status. p.mu must be held.
func (p *Pipeline) tallyFile(f *internal.FileResult, units []*internal.Unit) {
	f.Translated, f.Cached, f.Failed, f.Skipped = 0, 0, 0, 0
	pending := 0
	for _, u := range units {
		switch u.Status {
		case internal.StatusTranslated:
			if p.cached[u] {
				f.Cached++
			} else {
				f.Translated++
			}
		case internal.StatusFailed:
			f.Failed++
		case internal.StatusSkipped:
			f.Skipped++
		default:
			pending++
		}
	}
	switch {
	case f.Failed+pending == 0:
		f.Status = internal.FileComplete
	case f.Translated+f.Cached > 0:
		f.Status = internal.FilePartial
	default:
		f.Status = internal.FileFailed
	}
}
