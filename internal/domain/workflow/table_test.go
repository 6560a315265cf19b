package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/reception-workflow/internal/domain/event"
)

func TestState_IsTerminal(t *testing.T) {
	for _, state := range AllStates {
		t.Run(string(state), func(t *testing.T) {
			want := state == StateArchived
			if got := state.IsTerminal(); got != want {
				t.Errorf("State.IsTerminal() = %v, want %v", got, want)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateInitialized, true},
		{"valid state", StateArchived, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	if got, ok := ParseState(" payment_processing "); !ok || got != StatePaymentProcessing {
		t.Errorf("ParseState() = %v, %v", got, ok)
	}
	if _, ok := ParseState("paid"); ok {
		t.Error("ParseState() should reject unknown states")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestStateConfiguration_PermitPanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	builder.Configure(StateInitialized).Permit(State("INVALID"))
}

func TestBuilder_BuildIsImmutable(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateInitialized).Permit(StatePatientVerification)

	tbl := builder.Build()
	builder.Configure(StateInitialized).Permit(StateCancelled)

	if tbl.CanTransition(StateInitialized, StateCancelled) {
		t.Error("table built earlier must not see later builder changes")
	}

	next := tbl.NextStates(StateInitialized)
	next[0] = StateArchived
	if tbl.NextStates(StateInitialized)[0] != StatePatientVerification {
		t.Error("NextStates() must return a copy")
	}
}

func TestReceptionTable_CanTransition(t *testing.T) {
	tbl := ReceptionTable()

	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"initialized to patient verification", StateInitialized, StatePatientVerification, true},
		{"initialized to completed", StateInitialized, StateCompleted, false},
		{"completed to archived", StateCompleted, StateArchived, true},
		{"cancelled to archived", StateCancelled, StateArchived, true},
		{"completed to cancelled", StateCompleted, StateCancelled, false},
		{"payment back to service selection", StatePaymentProcessing, StateServiceSelection, true},
		{"unknown from", State("BOGUS"), StateArchived, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tbl.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}

	for _, to := range AllStates {
		if tbl.CanTransition(StateArchived, to) {
			t.Errorf("ARCHIVED must have no outgoing edges, found -> %s", to)
		}
	}
}

func TestReceptionTable_NextStates(t *testing.T) {
	tbl := ReceptionTable()

	next := tbl.NextStates(StateInitialized)
	if len(next) != 2 || next[0] != StatePatientVerification || next[1] != StateCancelled {
		t.Errorf("NextStates(INITIALIZED) = %v", next)
	}

	if got := tbl.NextStates(StateArchived); len(got) != 0 {
		t.Errorf("NextStates(ARCHIVED) = %v, want empty", got)
	}

	if got := tbl.NextStates(State("BOGUS")); got == nil || len(got) != 0 {
		t.Errorf("NextStates(BOGUS) = %v, want empty non-nil", got)
	}

	// Every non-terminal state has at least one successor
	for _, s := range AllStates {
		if !s.IsTerminal() && len(tbl.NextStates(s)) == 0 {
			t.Errorf("state %s has no successors", s)
		}
	}
}

func TestReceptionTable_EntryEvents(t *testing.T) {
	tbl := ReceptionTable()

	got := tbl.EntryEvents(StateCompleted)
	if len(got) != 2 || got[0] != event.TypeNotificationSending || got[1] != event.TypeAuditLogging {
		t.Errorf("EntryEvents(COMPLETED) = %v", got)
	}

	if got := tbl.EntryEvents(StateInitialized); len(got) != 0 {
		t.Errorf("EntryEvents(INITIALIZED) = %v, want empty", got)
	}
}

func TestTable_Evaluate(t *testing.T) {
	denyCancel := GuardBinding{
		From: StateServiceSelection,
		To:   StateCancelled,
		Guard: func(ctx context.Context, req TransitionRequest) bool {
			return req.Reason != ""
		},
	}
	tbl := ReceptionTable(denyCancel)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     TransitionRequest
		wantErr error
	}{
		{
			name: "legal move",
			req:  TransitionRequest{AggregateID: 1, From: StateInitialized, To: StatePatientVerification},
		},
		{
			name:    "illegal move",
			req:     TransitionRequest{AggregateID: 1, From: StateInitialized, To: StateCompleted},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "invalid from",
			req:     TransitionRequest{AggregateID: 1, From: "BOGUS", To: StateCompleted},
			wantErr: ErrInvalidState,
		},
		{
			name:    "guard denies",
			req:     TransitionRequest{AggregateID: 1, From: StateServiceSelection, To: StateCancelled},
			wantErr: ErrGuardFailed,
		},
		{
			name: "guard allows",
			req:  TransitionRequest{AggregateID: 1, From: StateServiceSelection, To: StateCancelled, Reason: "patient left"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tbl.Evaluate(ctx, tt.req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Evaluate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Evaluate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReceptionTable_IgnoresBindingsForMissingEdges(t *testing.T) {
	tbl := ReceptionTable(GuardBinding{
		From:  StateInitialized,
		To:    StateCompleted,
		Guard: func(context.Context, TransitionRequest) bool { return true },
	})

	if tbl.CanTransition(StateInitialized, StateCompleted) {
		t.Error("guard bindings must not add edges")
	}
}

func TestReceptionTable_FullPath(t *testing.T) {
	tbl := ReceptionTable()
	path := []State{
		StateInitialized,
		StatePatientVerification,
		StateInsuranceValidation,
		StateServiceSelection,
		StatePaymentProcessing,
		StateCompleted,
		StateArchived,
	}

	for i := 0; i < len(path)-1; i++ {
		if !tbl.CanTransition(path[i], path[i+1]) {
			t.Errorf("step %d: %s -> %s should be allowed", i, path[i], path[i+1])
		}
	}
}
