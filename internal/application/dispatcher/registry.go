package dispatcher

import (
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// Registry maps event types to their synchronous and asynchronous handlers.
// It is built once at startup; NewDispatcher takes a private copy, so later
// changes to the registry do not affect a running dispatcher.
type Registry struct {
	sync  map[event.Type][]Handler
	async map[event.Type][]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sync:  make(map[event.Type][]Handler),
		async: make(map[event.Type][]Handler),
	}
}

// Sync appends handlers that run in order before the caller gets a result
func (r *Registry) Sync(eventType event.Type, handlers ...Handler) *Registry {
	r.sync[eventType] = append(r.sync[eventType], handlers...)
	return r
}

// Async appends handlers that run concurrently and are awaited collectively
func (r *Registry) Async(eventType event.Type, handlers ...Handler) *Registry {
	r.async[eventType] = append(r.async[eventType], handlers...)
	return r
}

// SyncHandlers returns the synchronous handlers for a type in registration order
func (r *Registry) SyncHandlers(eventType event.Type) []Handler {
	return append([]Handler(nil), r.sync[eventType]...)
}

// AsyncHandlers returns the asynchronous handlers for a type in registration order
func (r *Registry) AsyncHandlers(eventType event.Type) []Handler {
	return append([]Handler(nil), r.async[eventType]...)
}

// ListHandlers describes every handler registered for a type, sync first
func (r *Registry) ListHandlers(eventType event.Type) []HandlerInfo {
	result := make([]HandlerInfo, 0, len(r.sync[eventType])+len(r.async[eventType]))
	for _, h := range r.sync[eventType] {
		result = append(result, HandlerInfo{Name: h.Name(), EventType: eventType, Mode: ModeSync})
	}
	for _, h := range r.async[eventType] {
		result = append(result, HandlerInfo{Name: h.Name(), EventType: eventType, Mode: ModeAsync})
	}
	return result
}

func (r *Registry) clone() *Registry {
	c := NewRegistry()
	if r == nil {
		return c
	}
	for t, hs := range r.sync {
		c.sync[t] = append([]Handler(nil), hs...)
	}
	for t, hs := range r.async {
		c.async[t] = append([]Handler(nil), hs...)
	}
	return c
}
