package orchestrator

import (
	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/batch"
)

// Event is a progress snapshot.
type Event struct {
	State          State
	UnitsCompleted int
	UnitsTotal     int
	CurrentFile    string
	TokensIn       int
	TokensOut      int
}

// OnEvent registers fn to receive progress events. fn is called from the
// translation workers and must be safe for concurrent use.
func (p *Pipeline) OnEvent(fn func(Event)) {
	p.mu.Lock()
	p.onEvent = fn
	p.mu.Unlock()
}

// State returns the current run state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns a snapshot of the run statistics.
func (p *Pipeline) Stats() *internal.RunStatistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.Clone()
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.stats.State = string(s)
	p.mu.Unlock()
	p.log.Debug("state changed", zap.String("state", string(s)))
	p.emit("")
}

func (p *Pipeline) emit(file string) {
	p.mu.Lock()
	if file != "" {
		p.currentFile = file
	}
	ev := Event{
		State:          p.state,
		UnitsCompleted: p.stats.UnitsCompleted,
		UnitsTotal:     p.stats.UnitsTotal,
		CurrentFile:    p.currentFile,
		TokensIn:       p.stats.InputTokens,
		TokensOut:      p.stats.OutputTokens,
	}
	fn := p.onEvent
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (p *Pipeline) onBatch(res batch.Result) {
	p.mu.Lock()
	p.stats.UnitsCompleted += len(res.Resolved) + len(res.Exhausted)
	p.stats.InputTokens += res.Usage.InputTokens
	p.stats.OutputTokens += res.Usage.OutputTokens
	p.mu.Unlock()

	var file string
	switch {
	case len(res.Resolved) > 0:
		file = res.Resolved[0].ID.File
	case len(res.Exhausted) > 0:
		file = res.Exhausted[0].ID.File
	}
	p.emit(file)
}

// tallyUnits recomputes the unit counters from unit statuses.
func (p *Pipeline) tallyUnits(units []*internal.Unit) {
	var translated, cached, failed, skipped int
	for _, u := range units {
		switch u.Status {
		case internal.StatusTranslated:
			if p.cached[u] {
				cached++
			} else {
				translated++
			}
		case internal.StatusFailed:
			failed++
		case internal.StatusSkipped:
			skipped++
		}
	}
	p.mu.Lock()
	p.stats.UnitsTranslated = translated
	p.stats.UnitsCached = cached
	p.stats.UnitsFailed = failed
	p.stats.UnitsSkipped = skipped
	p.stats.UnitsCompleted = translated + cached + failed + skipped
	p.mu.Unlock()
}
