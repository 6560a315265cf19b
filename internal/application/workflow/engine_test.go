package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/domain/entity"
	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
	"github.com/garyjia/reception-workflow/internal/infrastructure/persistence/memory"
)

// Mock implementations

type mockRecorder struct {
	mu        sync.Mutex
	records   []*entity.TransitionRecord
	recordErr error
	panics    bool
}

func (m *mockRecorder) Record(ctx context.Context, record *entity.TransitionRecord) error {
	if m.panics {
		panic("recorder exploded")
	}
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockRecorder) GetByAggregateID(ctx context.Context, aggregateID int64) ([]*entity.TransitionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.TransitionRecord
	for _, r := range m.records {
		if r.AggregateID == aggregateID {
			result = append(result, r)
		}
	}
	return result, nil
}

// countingHandler records every event it sees
type countingHandler struct {
	name string
	fail bool

	mu   sync.Mutex
	seen []*event.Event
}

func (h *countingHandler) Name() string { return h.name }

func (h *countingHandler) Handle(ctx context.Context, evt *event.Event) dispatcher.HandlerResult {
	h.mu.Lock()
	h.seen = append(h.seen, evt)
	h.mu.Unlock()
	if h.fail {
		return dispatcher.Failed(h.name, errors.New("handler failed"))
	}
	return dispatcher.Succeeded(h.name, nil)
}

func (h *countingHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

type fixture struct {
	log      *memory.EventLog
	recorder *mockRecorder
	engine   Coordinator
}

func newFixture(reg *dispatcher.Registry, opts ...Option) *fixture {
	log := memory.NewEventLog(zap.NewNop())
	recorder := &mockRecorder{}
	all := append([]Option{WithRecorder(recorder)}, opts...)
	return &fixture{
		log:      log,
		recorder: recorder,
		engine:   NewCoordinator(domainwf.ReceptionTable(), log, dispatcher.NewDispatcher(reg), all...),
	}
}

func TestExecuteTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("legal transition succeeds and is recorded", func(t *testing.T) {
		fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
		f := newFixture(dispatcher.NewRegistry(), WithClock(func() time.Time { return fixed }))

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{
			AggregateID: 7,
			From:        domainwf.StateInitialized,
			To:          domainwf.StatePatientVerification,
			Reason:      "arrived",
			ActorID:     "clerk-1",
		})

		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if result.PreviousState != domainwf.StateInitialized || result.NewState != domainwf.StatePatientVerification {
			t.Errorf("states = %s -> %s", result.PreviousState, result.NewState)
		}
		if !result.Timestamp.Equal(fixed) {
			t.Errorf("Timestamp = %v, want %v", result.Timestamp, fixed)
		}
		if len(f.recorder.records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(f.recorder.records))
		}
		rec := f.recorder.records[0]
		if rec.AggregateID != 7 || rec.Reason != "arrived" || rec.ActorID != "clerk-1" {
			t.Errorf("unexpected record %+v", rec)
		}
		if !rec.Timestamp.Equal(fixed) {
			t.Errorf("record Timestamp = %v, want %v", rec.Timestamp, fixed)
		}
		if len(result.HookResults) != 0 {
			t.Errorf("expected no hooks by default, got %d", len(result.HookResults))
		}
	})

	t.Run("illegal transition is rejected without side effects", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{
			AggregateID: 7,
			From:        domainwf.StateInitialized,
			To:          domainwf.StateCompleted,
		})

		if result.Success {
			t.Fatal("expected rejection")
		}
		if result.NewState != domainwf.StateInitialized {
			t.Errorf("NewState = %s, want unchanged", result.NewState)
		}
		if !strings.Contains(result.Message, "INITIALIZED") || !strings.Contains(result.Message, "COMPLETED") {
			t.Errorf("message should name the pair, got %q", result.Message)
		}
		if len(f.recorder.records) != 0 {
			t.Error("expected no record for rejected transition")
		}
	})

	t.Run("archived has no way out", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		for _, to := range domainwf.AllStates {
			result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{AggregateID: 1, From: domainwf.StateArchived, To: to})
			if result.Success {
				t.Errorf("ARCHIVED -> %s should be rejected", to)
			}
		}
	})

	t.Run("rejects non-positive aggregate", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{
			From: domainwf.StateInitialized,
			To:   domainwf.StatePatientVerification,
		})
		if result.Success {
			t.Fatal("expected rejection")
		}
	})

	t.Run("guard denial is rejected", func(t *testing.T) {
		guard, err := domainwf.CompileCELGuard(`reason != ""`)
		if err != nil {
			t.Fatalf("CompileCELGuard() error = %v", err)
		}
		table := domainwf.ReceptionTable(domainwf.GuardBinding{
			From:  domainwf.StatePatientVerification,
			To:    domainwf.StateCancelled,
			Guard: guard,
		})
		recorder := &mockRecorder{}
		engine := NewCoordinator(table, memory.NewEventLog(nil), dispatcher.NewDispatcher(nil), WithRecorder(recorder))

		req := domainwf.TransitionRequest{AggregateID: 3, From: domainwf.StatePatientVerification, To: domainwf.StateCancelled}
		if result := engine.ExecuteTransition(ctx, req); result.Success {
			t.Error("expected guard to deny transition without reason")
		}

		req.Reason = "patient left"
		if result := engine.ExecuteTransition(ctx, req); !result.Success {
			t.Errorf("expected success, got %q", result.Message)
		}
		if len(recorder.records) != 1 {
			t.Errorf("expected 1 record, got %d", len(recorder.records))
		}
	})

	t.Run("recorder failure does not fail transition", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		f.recorder.recordErr = errors.New("disk full")

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{
			AggregateID: 7,
			From:        domainwf.StateCompleted,
			To:          domainwf.StateArchived,
		})
		if !result.Success {
			t.Errorf("expected success, got %q", result.Message)
		}
	})

	t.Run("internal panic becomes generic failure", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		f.recorder.panics = true

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{
			AggregateID: 7,
			From:        domainwf.StateCompleted,
			To:          domainwf.StateArchived,
		})
		if result.Success {
			t.Fatal("expected failure")
		}
		if result.Message != internalErrorMessage {
			t.Errorf("Message = %q, want generic message", result.Message)
		}
		if strings.Contains(result.Message, "exploded") {
			t.Error("internal detail leaked")
		}
	})
}

func TestExecuteTransition_Hooks(t *testing.T) {
	ctx := context.Background()

	t.Run("entry events fire as post hooks", func(t *testing.T) {
		notify := &countingHandler{name: "notify"}
		audit := &countingHandler{name: "audit", fail: true}
		reg := dispatcher.NewRegistry().
			Sync(event.TypeNotificationSending, notify).
			Sync(event.TypeAuditLogging, audit)

		f := newFixture(reg, WithHooks(HooksFromEntryEvents(domainwf.ReceptionTable())))

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{
			AggregateID: 11,
			From:        domainwf.StatePaymentProcessing,
			To:          domainwf.StateCompleted,
			Reason:      "paid",
			ActorID:     "cashier",
		})

		if !result.Success {
			t.Fatalf("hook failure must not fail transition: %q", result.Message)
		}
		if len(result.HookResults) != 2 {
			t.Fatalf("expected 2 hook results, got %d", len(result.HookResults))
		}
		if !result.HookResults[0].Success || result.HookResults[1].Success {
			t.Error("expected notification hook to succeed and audit hook to fail")
		}
		if notify.Calls() != 1 || audit.Calls() != 1 {
			t.Errorf("calls = %d/%d, want 1/1", notify.Calls(), audit.Calls())
		}

		seen := notify.seen[0]
		if seen.GetPayloadString("from") != "PAYMENT_PROCESSING" || seen.GetPayloadString("hook") != "post" {
			t.Errorf("unexpected hook payload %v", seen.Payload)
		}
		if seen.ActorID != "cashier" {
			t.Errorf("ActorID = %s, want cashier", seen.ActorID)
		}
		if got := f.log.Count(ctx, 11, event.TypeAuditLogging); got != 1 {
			t.Errorf("stored audit events = %d, want 1", got)
		}
	})

	t.Run("pre hooks run before the record is handed off", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		var recordsAtPre atomic.Int32
		probe := dispatcher.NewHandlerFunc("probe", func(ctx context.Context, evt *event.Event) error {
			recordsAtPre.Store(int32(len(f.recorder.records)))
			return nil
		})
		reg := dispatcher.NewRegistry().Sync(event.TypeAuditLogging, probe)
		hooks := TransitionHooks{
			{From: domainwf.StateInitialized, To: domainwf.StateCancelled}: {Pre: []event.Type{event.TypeAuditLogging}},
		}
		f.engine = NewCoordinator(domainwf.ReceptionTable(), f.log, dispatcher.NewDispatcher(reg), WithRecorder(f.recorder), WithHooks(hooks))

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{AggregateID: 2, From: domainwf.StateInitialized, To: domainwf.StateCancelled})

		if !result.Success {
			t.Fatalf("unexpected failure %q", result.Message)
		}
		if recordsAtPre.Load() != 0 {
			t.Error("pre hook ran after record")
		}
		if len(f.recorder.records) != 1 {
			t.Error("expected record after pre hook")
		}
	})

	t.Run("rejected transition runs no hooks", func(t *testing.T) {
		h := &countingHandler{name: "h"}
		reg := dispatcher.NewRegistry().Sync(event.TypePatientValidation, h)
		f := newFixture(reg, WithHooks(HooksFromEntryEvents(domainwf.ReceptionTable())))

		result := f.engine.ExecuteTransition(ctx, domainwf.TransitionRequest{AggregateID: 2, From: domainwf.StateCompleted, To: domainwf.StatePatientVerification})

		if result.Success {
			t.Fatal("expected rejection")
		}
		if h.Calls() != 0 {
			t.Error("hooks must not run for rejected transitions")
		}
	})
}

func TestHooksFromEntryEvents(t *testing.T) {
	hooks := HooksFromEntryEvents(domainwf.ReceptionTable())

	got := hooks.For(domainwf.StateInitialized, domainwf.StatePatientVerification)
	if len(got.Post) != 1 || got.Post[0] != event.TypePatientValidation {
		t.Errorf("Post = %v, want [PatientValidation]", got.Post)
	}
	if len(got.Pre) != 0 {
		t.Errorf("Pre = %v, want none", got.Pre)
	}

	if got := hooks.For(domainwf.StateCancelled, domainwf.StateArchived); len(got.Post) != 0 {
		t.Errorf("ARCHIVED has no entry events, got %v", got.Post)
	}
	if got := hooks.For(domainwf.StateInitialized, domainwf.StateCompleted); len(got.Post) != 0 {
		t.Error("no hooks expected for a missing edge")
	}
	if got := hooks.For(domainwf.StateInsuranceValidation, domainwf.StateCancelled); len(got.Post) != 2 {
		t.Errorf("expected 2 post hooks into CANCELLED, got %v", got.Post)
	}
}

func TestProcessEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("scenario: stored once and retrievable", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())

		result := f.engine.ProcessEvent(ctx, 42, event.TypePatientValidation, map[string]interface{}{"patient_id": "p-1"}, "u1")

		if !result.Success || !result.Stored {
			t.Fatalf("expected stored success, got %+v", result)
		}
		if got := f.log.Count(ctx, 42, event.TypePatientValidation); got != 1 {
			t.Errorf("Count() = %d, want 1", got)
		}
		last, ok := f.log.GetLast(ctx, 42, event.TypePatientValidation)
		if !ok {
			t.Fatal("expected last event")
		}
		if last.ID != result.EventID || last.ActorID != "u1" {
			t.Errorf("GetLast() = %+v, want event %s", last, result.EventID)
		}
	})

	t.Run("handler isolation", func(t *testing.T) {
		first := &countingHandler{name: "first"}
		bad := &countingHandler{name: "bad", fail: true}
		third := &countingHandler{name: "third"}
		reg := dispatcher.NewRegistry().Sync(event.TypeInsuranceValidation, first, bad, third)
		f := newFixture(reg)

		result := f.engine.ProcessEvent(ctx, 1, event.TypeInsuranceValidation, nil, "u1")

		if result.Success {
			t.Error("expected overall failure")
		}
		if len(result.HandlerResults) != 3 {
			t.Fatalf("expected 3 handler results, got %d", len(result.HandlerResults))
		}
		if third.Calls() != 1 {
			t.Error("handler after failure must still run")
		}
		if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "bad:") {
			t.Errorf("Errors = %v", result.Errors)
		}
		if result.FailedHandlers() != 1 {
			t.Errorf("FailedHandlers() = %d, want 1", result.FailedHandlers())
		}
	})

	t.Run("waits for three async handlers", func(t *testing.T) {
		var done atomic.Int32
		slow := func(name string, fail bool) dispatcher.Handler {
			return dispatcher.NewHandlerFunc(name, func(ctx context.Context, evt *event.Event) error {
				time.Sleep(20 * time.Millisecond)
				done.Add(1)
				if fail {
					return errors.New("nope")
				}
				return nil
			})
		}
		reg := dispatcher.NewRegistry().Async(event.TypePaymentProcessing, slow("a", false), slow("b", true), slow("c", false))
		f := newFixture(reg)

		result := f.engine.ProcessEvent(ctx, 5, event.TypePaymentProcessing, nil, "u1")

		if done.Load() != 3 {
			t.Errorf("returned before all async handlers completed: %d", done.Load())
		}
		if len(result.HandlerResults) != 3 {
			t.Errorf("expected 3 results, got %d", len(result.HandlerResults))
		}
		if result.Success {
			t.Error("expected failure from handler b")
		}
	})

	t.Run("sync results precede async results", func(t *testing.T) {
		reg := dispatcher.NewRegistry().
			Async(event.TypeAuditLogging, &countingHandler{name: "async"}).
			Sync(event.TypeAuditLogging, &countingHandler{name: "sync"})
		f := newFixture(reg)

		result := f.engine.ProcessEvent(ctx, 5, event.TypeAuditLogging, nil, "u1")

		if len(result.HandlerResults) != 2 || result.HandlerResults[0].HandlerName != "sync" {
			t.Errorf("unexpected results %+v", result.HandlerResults)
		}
	})

	t.Run("invalid input has no side effects", func(t *testing.T) {
		h := &countingHandler{name: "h"}
		reg := dispatcher.NewRegistry().Sync(event.TypePatientValidation, h)
		f := newFixture(reg)

		tests := []struct {
			name        string
			aggregateID int64
			eventType   event.Type
		}{
			{"zero aggregate", 0, event.TypePatientValidation},
			{"negative aggregate", -1, event.TypePatientValidation},
			{"unknown type", 1, event.Type("bogus")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := f.engine.ProcessEvent(ctx, tt.aggregateID, tt.eventType, nil, "u1")
				if result.Success || result.Stored {
					t.Errorf("expected failure without storage, got %+v", result)
				}
			})
		}
		if h.Calls() != 0 {
			t.Error("handlers must not run for invalid events")
		}
		if n := len(f.engine.FilterEvents(ctx, event.Criteria{})); n != 0 {
			t.Errorf("expected empty log, got %d events", n)
		}
	})

	t.Run("no handlers is success", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		result := f.engine.ProcessEvent(ctx, 1, event.TypeNotificationSending, nil, "u1")
		if !result.Success || len(result.HandlerResults) != 0 {
			t.Errorf("unexpected result %+v", result)
		}
	})
}

func TestReplayEvents(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture) []string {
		t.Helper()
		var ids []string
		for _, typ := range []event.Type{event.TypePatientValidation, event.TypeInsuranceValidation, event.TypePaymentProcessing} {
			r := f.engine.ProcessEvent(ctx, 9, typ, map[string]interface{}{"k": string(typ)}, "u1")
			if !r.Stored {
				t.Fatalf("seed event not stored: %+v", r)
			}
			ids = append(ids, r.EventID)
		}
		return ids
	}

	t.Run("default replay re-dispatches without re-appending", func(t *testing.T) {
		h := &countingHandler{name: "h"}
		reg := dispatcher.NewRegistry()
		for _, typ := range event.AllTypes {
			reg.Sync(typ, h)
		}
		f := newFixture(reg)
		ids := seed(t, f)

		result := f.engine.ReplayEvents(ctx, 9, nil)

		if !result.Success || result.TotalEvents != 3 || result.Succeeded != 3 {
			t.Fatalf("unexpected replay result %+v", result)
		}
		if n := len(f.log.GetByAggregate(ctx, 9, nil)); n != 3 {
			t.Errorf("log grew to %d events", n)
		}
		if h.Calls() != 6 {
			t.Errorf("handler calls = %d, want 6", h.Calls())
		}
		for i, evt := range h.seen[3:] {
			if evt.ID != ids[i] {
				t.Errorf("replayed event %d has ID %s, want original %s", i, evt.ID, ids[i])
			}
		}
	})

	t.Run("repersist appends correlated copies", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		ids := seed(t, f)

		result := f.engine.ReplayEventsWith(ctx, 9, ReplayOptions{Repersist: true})

		if !result.Success {
			t.Fatalf("unexpected replay result %+v", result)
		}
		events := f.log.GetByAggregate(ctx, 9, nil)
		if len(events) != 6 {
			t.Fatalf("expected 6 events after repersist, got %d", len(events))
		}
		correlated := map[string]bool{}
		for _, evt := range events {
			if evt.CorrelationID != "" {
				correlated[evt.CorrelationID] = true
			}
		}
		for _, id := range ids {
			if !correlated[id] {
				t.Errorf("no replayed copy correlated to %s", id)
			}
		}
	})

	t.Run("failure does not stop later events", func(t *testing.T) {
		bad := &countingHandler{name: "bad", fail: true}
		good := &countingHandler{name: "good"}
		reg := dispatcher.NewRegistry().
			Sync(event.TypeInsuranceValidation, bad).
			Sync(event.TypePaymentProcessing, good)
		f := newFixture(reg)
		seed(t, f)

		result := f.engine.ReplayEvents(ctx, 9, nil)

		if result.Success {
			t.Error("expected replay failure")
		}
		if result.Failed != 1 || result.Succeeded != 2 || len(result.Outcomes) != 3 {
			t.Errorf("unexpected counts %+v", result)
		}
		if result.Outcomes[1].Success || result.Outcomes[1].Error == "" {
			t.Errorf("outcome[1] = %+v", result.Outcomes[1])
		}
		if good.Calls() != 2 {
			t.Errorf("good handler calls = %d, want 2", good.Calls())
		}
	})

	t.Run("from date limits replay", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		seed(t, f)
		events := f.log.GetByAggregate(ctx, 9, nil)
		from := events[len(events)-1].Timestamp

		result := f.engine.ReplayEvents(ctx, 9, &from)

		if result.TotalEvents < 1 || result.TotalEvents > 3 {
			t.Errorf("TotalEvents = %d", result.TotalEvents)
		}
		if result.Outcomes[len(result.Outcomes)-1].EventID != events[len(events)-1].ID {
			t.Error("expected last event to be replayed")
		}
	})

	t.Run("empty history", func(t *testing.T) {
		f := newFixture(dispatcher.NewRegistry())
		result := f.engine.ReplayEvents(ctx, 100, nil)
		if !result.Success || result.TotalEvents != 0 {
			t.Errorf("unexpected result %+v", result)
		}
		if result := f.engine.ReplayEvents(ctx, 0, nil); result.Success {
			t.Error("expected failure for invalid aggregate")
		}
	})
}

func TestFilterEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(dispatcher.NewRegistry())

	f.engine.ProcessEvent(ctx, 1, event.TypePaymentProcessing, nil, "u1")
	f.engine.ProcessEvent(ctx, 1, event.TypeAuditLogging, nil, "u2")
	f.engine.ProcessEvent(ctx, 2, event.TypePaymentProcessing, nil, "u1")

	tests := []struct {
		name     string
		criteria event.Criteria
		want     int
	}{
		{"all", event.Criteria{}, 3},
		{"aggregate", event.Criteria{AggregateID: 1}, 2},
		{"type", event.Criteria{EventTypes: []event.Type{event.TypePaymentProcessing}}, 2},
		{"type and user", event.Criteria{EventTypes: []event.Type{event.TypePaymentProcessing}, UserID: "u2"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(f.engine.FilterEvents(ctx, tt.criteria)); got != tt.want {
				t.Errorf("FilterEvents() returned %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCoordinatorTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	f := newFixture(dispatcher.NewRegistry(),
		WithTracer(tp.Tracer("test")),
		WithHooks(HooksFromEntryEvents(domainwf.ReceptionTable())),
	)

	f.engine.ExecuteTransition(context.Background(), domainwf.TransitionRequest{
		AggregateID: 1,
		From:        domainwf.StateInitialized,
		To:          domainwf.StatePatientVerification,
	})

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	names := map[string]bool{}
	for _, s := range spans {
		names[s.Name()] = true
	}
	if !names["workflow.ExecuteTransition"] || !names["workflow.ProcessEvent"] {
		t.Errorf("unexpected spans %v", names)
	}

	// The hook span is a child of the transition span
	var parent, child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "workflow.ExecuteTransition" {
			parent = s
		} else {
			child = s
		}
	}
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("expected hook span to be a child of the transition span")
	}
}
