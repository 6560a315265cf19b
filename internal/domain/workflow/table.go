package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// TransitionRequest describes a requested move for one aggregate
type TransitionRequest struct {
	AggregateID int64  `json:"aggregate_id"`
	From        State  `json:"from"`
	To          State  `json:"to"`
	Reason      string `json:"reason"`
	ActorID     string `json:"actor_id"`

	// Payload is merged into the payload of every hook event
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Table is an immutable map of allowed state-to-state moves
type Table interface {
	// CanTransition reports whether an edge from -> to exists. Guards are not evaluated.
	CanTransition(from, to State) bool

	// NextStates returns the legal successors of from in declaration order
	NextStates(from State) []State

	// EntryEvents returns the event types associated with entering state
	EntryEvents(state State) []event.Type

	// Evaluate checks the edge and runs its guards
	Evaluate(ctx context.Context, req TransitionRequest) error
}

// table implements Table
type table struct {
	configurations map[State]*stateConfig
}

// CanTransition reports whether an edge from -> to exists
func (t *table) CanTransition(from, to State) bool {
	return t.findEdge(from, to) != nil
}

// NextStates returns the legal successors of from
func (t *table) NextStates(from State) []State {
	config, exists := t.configurations[from]
	if !exists {
		return []State{}
	}

	states := make([]State, 0, len(config.edges))
	for _, e := range config.edges {
		states = append(states, e.toState)
	}
	return states
}

// EntryEvents returns the event types associated with entering state
func (t *table) EntryEvents(state State) []event.Type {
	config, exists := t.configurations[state]
	if !exists {
		return []event.Type{}
	}
	return append([]event.Type{}, config.entryEvents...)
}

// Evaluate checks that the edge exists and that every guard on it passes
func (t *table) Evaluate(ctx context.Context, req TransitionRequest) error {
	if !req.From.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, req.From)
	}
	if !req.To.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, req.To)
	}

	e := t.findEdge(req.From, req.To)
	if e == nil {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, req.From, req.To)
	}

	for i, guard := range e.guards {
		if !guard(ctx, req) {
			return fmt.Errorf("%w: %s to %s (guard %d)", ErrGuardFailed, req.From, req.To, i)
		}
	}

	return nil
}

func (t *table) findEdge(from, to State) *edge {
	config, exists := t.configurations[from]
	if !exists {
		return nil
	}
	for _, e := range config.edges {
		if e.toState == to {
			return e
		}
	}
	return nil
}
