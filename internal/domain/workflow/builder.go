package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context, req TransitionRequest) bool

// TableBuilder builds an immutable transition table
type TableBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates an immutable table from the current configuration
	Build() Table
}

// StateConfiguration configures transitions out of a specific state
type StateConfiguration interface {
	// Permit allows a transition to the target state
	Permit(toState State) StateConfiguration

	// PermitIf allows a transition to the target state if the guard passes.
	// Guards added to the same edge must all pass.
	PermitIf(toState State, guard GuardFunc) StateConfiguration

	// OnEnter records the event types conventionally fired when entering this state
	OnEnter(types ...event.Type) StateConfiguration
}

// edge represents an allowed move with its guards
type edge struct {
	toState State
	guards  []GuardFunc
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	fromState   State
	edges       []*edge
	entryEvents []event.Type
}

// tableBuilder implements TableBuilder
type tableBuilder struct {
	configurations map[State]*stateConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *tableBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{fromState: state}
		b.configurations[state] = config
	}

	return config
}

// Build creates an immutable table; later builder changes do not affect it
func (b *tableBuilder) Build() Table {
	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		edgesCopy := make([]*edge, len(config.edges))
		for i, e := range config.edges {
			edgesCopy[i] = &edge{
				toState: e.toState,
				guards:  append([]GuardFunc{}, e.guards...),
			}
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			edges:       edgesCopy,
			entryEvents: append([]event.Type{}, config.entryEvents...),
		}
	}

	return &table{configurations: configsCopy}
}

// Permit allows a transition to the target state
func (c *stateConfig) Permit(toState State) StateConfiguration {
	c.edgeTo(toState)
	return c
}

// PermitIf allows a transition to the target state if the guard condition passes
func (c *stateConfig) PermitIf(toState State, guard GuardFunc) StateConfiguration {
	e := c.edgeTo(toState)
	if guard != nil {
		e.guards = append(e.guards, guard)
	}
	return c
}

// OnEnter records entry-event metadata for the configured state
func (c *stateConfig) OnEnter(types ...event.Type) StateConfiguration {
	for _, t := range types {
		if !t.IsValid() {
			panic(fmt.Sprintf("invalid entry event type: %s", t))
		}
		c.entryEvents = append(c.entryEvents, t)
	}
	return c
}

func (c *stateConfig) edgeTo(toState State) *edge {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	for _, e := range c.edges {
		if e.toState == toState {
			return e
		}
	}
	e := &edge{toState: toState}
	c.edges = append(c.edges, e)
	return e
}
