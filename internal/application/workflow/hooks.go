package workflow

import (
	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
)

// TransitionKey identifies one edge
type TransitionKey struct {
	From domainwf.State
	To   domainwf.State
}

// Hooks lists the events processed around a transition
type Hooks struct {
	Pre  []event.Type
	Post []event.Type
}

// TransitionHooks maps edges to their hook events. Missing edges have no hooks.
type TransitionHooks map[TransitionKey]Hooks

// For returns the hooks configured for an edge
func (h TransitionHooks) For(from, to domainwf.State) Hooks {
	if h == nil {
		return Hooks{}
	}
	return h[TransitionKey{From: from, To: to}]
}

// HooksFromEntryEvents fires each state's entry events after every edge into it
func HooksFromEntryEvents(table domainwf.Table) TransitionHooks {
	hooks := make(TransitionHooks)
	for _, from := range domainwf.AllStates {
		for _, to := range table.NextStates(from) {
			entry := table.EntryEvents(to)
			if len(entry) == 0 {
				continue
			}
			hooks[TransitionKey{From: from, To: to}] = Hooks{Post: entry}
		}
	}
	return hooks
}
