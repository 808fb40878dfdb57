package handler

import (
	"sort"

	"github.com/valpere/packtran/internal"
)

// Registry selects a handler for a path. Handlers are tried in descending
// priority; ties keep registration order.
type Registry struct {
	handlers []Handler
}

// NewRegistry returns a registry over the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Default returns the registry with every built-in handler for a source locale.
func Default(source string) *Registry {
	return NewRegistry(
		KubeJS(),
		FTBQuests(source),
		Patchouli(source),
		Origins(),
		PuffishSkills(),
		TConstruct(),
		VaultQuest(),
		LangJSON(source),
		Lang(source),
	)
}

// Register adds h.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
	sort.SliceStable(r.handlers, func(i, j int) bool {
		return r.handlers[i].Priority() > r.handlers[j].Priority()
	})
}

// Lookup returns the highest-priority handler claiming rel.
func (r *Registry) Lookup(rel string) (Handler, bool) {
	for _, h := range r.handlers {
		if h.Match(rel) {
			return h, true
		}
	}
	return nil, false
}

// Handlers returns the registered handlers in priority order.
func (r *Registry) Handlers() []Handler {
	return append([]Handler(nil), r.handlers...)
}

// Names returns the file types of the registered handlers.
func (r *Registry) Names() []internal.FileType {
	names := make([]internal.FileType, len(r.handlers))
	for i, h := range r.handlers {
		names[i] = h.Name()
	}
	return names
}
