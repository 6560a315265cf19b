package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

type stubDirectory struct {
	known map[string]bool
	err   error
}

func (s *stubDirectory) PatientExists(ctx context.Context, patientID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.known[patientID], nil
}

type stubCatalog struct {
	plans map[string]*port.InsurancePlan
	err   error
}

func (s *stubCatalog) GetPlan(ctx context.Context, planID string) (*port.InsurancePlan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plans[planID], nil
}

type recordingNotifier struct {
	sent []port.Notification
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, n port.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func TestPatientValidationHandler(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	ctx := context.Background()
	h := NewPatientValidationHandler(&stubDirectory{known: map[string]bool{"p-1": true}}, logger)

	tests := []struct {
		name    string
		payload map[string]interface{}
		success bool
	}{
		{"known patient", map[string]interface{}{"patient_id": "p-1"}, true},
		{"unknown patient", map[string]interface{}{"patient_id": "p-2"}, false},
		{"missing patient id", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := event.NewEvent(event.TypePatientValidation, 1, "u1", tt.payload)
			result := h.Handle(ctx, evt)
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, "patient-validation", result.HandlerName)
		})
	}

	t.Run("lookup error", func(t *testing.T) {
		failing := NewPatientValidationHandler(&stubDirectory{err: errors.New("db down")}, logger)
		result := failing.Handle(ctx, event.NewEvent(event.TypePatientValidation, 1, "u1", map[string]interface{}{"patient_id": "p-1"}))
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "db down")
	})
}

func TestInsuranceValidationHandler(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	ctx := context.Background()
	catalog := &stubCatalog{plans: map[string]*port.InsurancePlan{
		"gold":   {PlanID: "gold", ProviderID: "acme", Active: true},
		"legacy": {PlanID: "legacy", ProviderID: "acme", Active: false},
	}}
	h := NewInsuranceValidationHandler(catalog, logger)

	tests := []struct {
		name    string
		payload map[string]interface{}
		success bool
		errText string
	}{
		{"active plan", map[string]interface{}{"plan_id": "gold"}, true, ""},
		{"matching provider", map[string]interface{}{"plan_id": "gold", "provider_id": "acme"}, true, ""},
		{"other provider", map[string]interface{}{"plan_id": "gold", "provider_id": "globex"}, false, "does not belong"},
		{"inactive plan", map[string]interface{}{"plan_id": "legacy"}, false, "inactive"},
		{"unknown plan", map[string]interface{}{"plan_id": "none"}, false, "not found"},
		{"missing plan", nil, false, "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.Handle(ctx, event.NewEvent(event.TypeInsuranceValidation, 1, "u1", tt.payload))
			assert.Equal(t, tt.success, result.Success)
			if tt.errText != "" {
				assert.Contains(t, result.Error, tt.errText)
			}
		})
	}

	result := h.Handle(ctx, event.NewEvent(event.TypeInsuranceValidation, 1, "u1", map[string]interface{}{"plan_id": "gold"}))
	assert.Equal(t, "acme", result.Data["provider_id"])
}

func TestNotificationHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("sends to payload recipient", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := NewNotificationHandler("sms", notifier)

		result := h.Handle(ctx, event.NewEvent(event.TypePaymentProcessing, 12, "cashier", map[string]interface{}{
			"recipient": "+15550100",
			"message":   "Payment received",
		}))

		require.True(t, result.Success)
		assert.Equal(t, "notification-sms", result.HandlerName)
		require.Len(t, notifier.sent, 1)
		assert.Equal(t, "sms", notifier.sent[0].Channel)
		assert.Equal(t, "+15550100", notifier.sent[0].Recipient)
		assert.Equal(t, "Payment received", notifier.sent[0].Body)
		assert.Equal(t, int64(12), notifier.sent[0].AggregateID)
	})

	t.Run("falls back to actor and state message", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := NewNotificationHandler("email", notifier)

		result := h.Handle(ctx, event.NewEvent(event.TypeNotificationSending, 3, "clerk", map[string]interface{}{"to": "COMPLETED"}))

		require.True(t, result.Success)
		require.Len(t, notifier.sent, 1)
		assert.Equal(t, "clerk", notifier.sent[0].Recipient)
		assert.Equal(t, "Reception 3 moved to COMPLETED", notifier.sent[0].Body)
	})

	t.Run("no recipient fails", func(t *testing.T) {
		h := NewNotificationHandler("email", &recordingNotifier{})
		result := h.Handle(ctx, event.NewEvent(event.TypeNotificationSending, 3, "", nil))
		assert.False(t, result.Success)
	})

	t.Run("send error fails", func(t *testing.T) {
		h := NewNotificationHandler("email", &recordingNotifier{err: errors.New("smtp down")})
		result := h.Handle(ctx, event.NewEvent(event.TypeNotificationSending, 3, "clerk", nil))
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "smtp down")
	})

	t.Run("log notifier", func(t *testing.T) {
		logger, _ := zap.NewDevelopment()
		assert.NoError(t, NewLogNotifier(logger).Send(ctx, port.Notification{Channel: "email", Recipient: "a"}))
	})
}

func TestAuditAndAnalyticsHandlers(t *testing.T) {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	evt := event.NewEventWithCorrelation(event.TypeAuditLogging, 4, "u1", nil, "origin")
	assert.True(t, NewAuditHandler(logger).Handle(ctx, evt).Success)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	analytics, err := NewAnalyticsHandler(mp.Meter("test"))
	require.NoError(t, err)

	assert.True(t, analytics.Handle(ctx, evt).Success)
	assert.True(t, analytics.Handle(ctx, evt).Success)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestDefaultRegistry(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	deps := Deps{
		Patients:             &stubDirectory{},
		Insurance:            &stubCatalog{},
		Notifier:             &recordingNotifier{},
		Meter:                mp.Meter("test"),
		NotificationChannels: []string{"email", "sms"},
	}

	reg, err := DefaultRegistry(deps)
	require.NoError(t, err)

	names := func(hs []dispatcher.Handler) []string {
		out := make([]string, len(hs))
		for i, h := range hs {
			out[i] = h.Name()
		}
		return out
	}

	assert.Equal(t, []string{"patient-validation", "audit-logging"}, names(reg.SyncHandlers(event.TypePatientValidation)))
	assert.Equal(t, []string{"insurance-validation", "audit-logging"}, names(reg.SyncHandlers(event.TypeInsuranceValidation)))
	assert.Equal(t, []string{"audit-logging"}, names(reg.SyncHandlers(event.TypeAuditLogging)))
	assert.Equal(t, []string{"analytics"}, names(reg.AsyncHandlers(event.TypePatientValidation)))
	assert.Equal(t, []string{"notification-email", "notification-sms", "analytics"}, names(reg.AsyncHandlers(event.TypePaymentProcessing)))
	assert.Equal(t, []string{"notification-email", "notification-sms"}, names(reg.AsyncHandlers(event.TypeNotificationSending)))
	assert.Empty(t, reg.AsyncHandlers(event.TypeAuditLogging))

	_, err = DefaultRegistry(Deps{Meter: mp.Meter("test")})
	assert.Error(t, err)
}
