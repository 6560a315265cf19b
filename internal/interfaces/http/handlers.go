package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reception-workflow/internal/application/workflow"
	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
	"github.com/garyjia/reception-workflow/internal/infrastructure/export"
)

const (
	internalErrorMessage = "internal error, see server logs"
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	version              = "1.0.0"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StateResponse describes one state of the transition table
type StateResponse struct {
	State       domainwf.State   `json:"state"`
	Terminal    bool             `json:"terminal"`
	NextStates  []domainwf.State `json:"next_states"`
	EntryEvents []event.Type     `json:"entry_events"`
}

// TransitionCheckResponse answers whether an edge exists
type TransitionCheckResponse struct {
	From    domainwf.State `json:"from"`
	To      domainwf.State `json:"to"`
	Allowed bool           `json:"allowed"`
}

// TransitionRequest is the body of POST /receptions/:id/transitions
type TransitionRequest struct {
	From    string                 `json:"from" binding:"required"`
	To      string                 `json:"to" binding:"required"`
	Reason  string                 `json:"reason"`
	ActorID string                 `json:"actor_id"`
	Payload map[string]interface{} `json:"payload"`
}

// ProcessEventRequest is the body of POST /receptions/:id/events
type ProcessEventRequest struct {
	Type    string                 `json:"type" binding:"required"`
	ActorID string                 `json:"actor_id"`
	Payload map[string]interface{} `json:"payload"`
}

// SnapshotRequest is the optional body of POST /receptions/:id/snapshots
type SnapshotRequest struct {
	At *time.Time `json:"at"`
}

// SnapshotResponse summarises a snapshot without its events
type SnapshotResponse struct {
	ID          string     `json:"id"`
	AggregateID int64      `json:"aggregate_id"`
	CreatedAt   time.Time  `json:"created_at"`
	AtTime      *time.Time `json:"at_time,omitempty"`
	EventCount  int        `json:"event_count"`
}

// ReplayRequest is the optional body of POST /receptions/:id/replay
type ReplayRequest struct {
	From      *time.Time `json:"from"`
	Repersist bool       `json:"repersist"`
}

// CountResponse carries an event count
type CountResponse struct {
	AggregateID int64      `json:"aggregate_id"`
	Type        event.Type `json:"type"`
	Count       int        `json:"count"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version,
	}

	if h.services.HealthCheck != nil {
		if err := h.services.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed", "error", err)
			response.Status = "degraded"
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// NextStates handles GET /api/v1/states/:state/next
func (h *Handlers) NextStates(c *gin.Context) {
	state, ok := domainwf.ParseState(c.Param("state"))
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown state %q", c.Param("state")))
		return
	}

	table := h.services.Table
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: StateResponse{
			State:       state,
			Terminal:    state.IsTerminal(),
			NextStates:  nonNil(table.NextStates(state)),
			EntryEvents: nonNil(table.EntryEvents(state)),
		},
	})
}

// CheckTransition handles GET /api/v1/transitions/check?from=&to=
func (h *Handlers) CheckTransition(c *gin.Context) {
	from, ok := domainwf.ParseState(c.Query("from"))
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown state %q", c.Query("from")))
		return
	}
	to, ok := domainwf.ParseState(c.Query("to"))
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown state %q", c.Query("to")))
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: TransitionCheckResponse{
			From:    from,
			To:      to,
			Allowed: h.services.Table.CanTransition(from, to),
		},
	})
}

// ExecuteTransition handles POST /api/v1/receptions/:id/transitions
func (h *Handlers) ExecuteTransition(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	from, ok := domainwf.ParseState(req.From)
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown state %q", req.From))
		return
	}
	to, ok := domainwf.ParseState(req.To)
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown state %q", req.To))
		return
	}

	result := h.services.Coordinator.ExecuteTransition(c.Request.Context(), domainwf.TransitionRequest{
		AggregateID: id,
		From:        from,
		To:          to,
		Reason:      req.Reason,
		ActorID:     req.ActorID,
		Payload:     req.Payload,
	})

	h.outcome(c, result.Success, result, result.Message)
}

// TransitionHistory handles GET /api/v1/receptions/:id/transitions
func (h *Handlers) TransitionHistory(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}
	if h.services.Transitions == nil {
		h.unavailable(c, "transition history")
		return
	}

	records, err := h.services.Transitions.GetByAggregateID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "Failed to load transition history", err, "aggregate_id", id)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    nonNil(records),
	})
}

// ProcessEvent handles POST /api/v1/receptions/:id/events
func (h *Handlers) ProcessEvent(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}

	var req ProcessEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	eventType, ok := event.ParseType(req.Type)
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", req.Type))
		return
	}

	result := h.services.Coordinator.ProcessEvent(c.Request.Context(), id, eventType, req.Payload, req.ActorID)
	h.outcome(c, result.Success, result, result.Message)
}

// AggregateEvents handles GET /api/v1/receptions/:id/events[?from=]
func (h *Handlers) AggregateEvents(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}
	from, ok := h.timeQuery(c, "from")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    nonNil(h.services.Events.GetByAggregate(c.Request.Context(), id, from)),
	})
}

// LastEvent handles GET /api/v1/receptions/:id/events/last?type=
func (h *Handlers) LastEvent(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}
	eventType, ok := h.typeQuery(c)
	if !ok {
		return
	}

	evt, found := h.services.Events.GetLast(c.Request.Context(), id, eventType)
	if !found {
		h.fail(c, http.StatusNotFound, fmt.Sprintf("no %s event for reception %d", eventType, id))
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    evt,
	})
}

// CountEvents handles GET /api/v1/receptions/:id/events/count?type=
func (h *Handlers) CountEvents(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}
	eventType, ok := h.typeQuery(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: CountResponse{
			AggregateID: id,
			Type:        eventType,
			Count:       h.services.Events.Count(c.Request.Context(), id, eventType),
		},
	})
}

// Statistics handles GET /api/v1/receptions/:id/statistics
func (h *Handlers) Statistics(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.services.Events.Statistics(c.Request.Context(), id),
	})
}

// ExportHistory handles GET /api/v1/receptions/:id/events/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}
	if h.services.Exporter == nil {
		h.unavailable(c, "export")
		return
	}

	ctx := c.Request.Context()
	history := export.History{
		AggregateID: id,
		Events:      h.services.Events.GetByAggregate(ctx, id, nil),
		Statistics:  h.services.Events.Statistics(ctx, id),
	}
	if h.services.Transitions != nil {
		records, err := h.services.Transitions.GetByAggregateID(ctx, id)
		if err != nil {
			h.internalError(c, "Failed to load transition history", err, "aggregate_id", id)
			return
		}
		history.Transitions = records
	}

	var buf bytes.Buffer
	if err := h.services.Exporter.Write(&buf, history); err != nil {
		h.internalError(c, "Failed to export history", err, "aggregate_id", id)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=reception-%d-history.xlsx", id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateSnapshot handles POST /api/v1/receptions/:id/snapshots
func (h *Handlers) CreateSnapshot(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}

	var req SnapshotRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	snapshot, err := h.services.Events.CreateSnapshot(c.Request.Context(), id, req.At)
	if err != nil {
		if errors.Is(err, event.ErrNoEvents) {
			h.fail(c, http.StatusNotFound, err.Error())
			return
		}
		h.internalError(c, "Failed to create snapshot", err, "aggregate_id", id)
		return
	}

	h.logger.Info("Snapshot created",
		"snapshot_id", snapshot.ID,
		"aggregate_id", id,
		"event_count", snapshot.EventCount(),
	)

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toSnapshotResponse(snapshot),
	})
}

// RestoreSnapshot handles POST /api/v1/snapshots/:snapshotId/restore
func (h *Handlers) RestoreSnapshot(c *gin.Context) {
	snapshotID := c.Param("snapshotId")
	ctx := c.Request.Context()

	snapshot, found := h.services.Events.GetSnapshot(ctx, snapshotID)
	if !found {
		h.fail(c, http.StatusNotFound, fmt.Sprintf("snapshot %s not found", snapshotID))
		return
	}

	if err := h.services.Events.RestoreSnapshot(ctx, snapshot); err != nil {
		switch {
		case errors.Is(err, event.ErrDuplicateEvent):
			h.fail(c, http.StatusConflict, err.Error())
		case errors.Is(err, event.ErrInvalidSnapshot):
			h.fail(c, http.StatusUnprocessableEntity, err.Error())
		default:
			h.internalError(c, "Failed to restore snapshot", err, "snapshot_id", snapshotID)
		}
		return
	}

	h.logger.Info("Snapshot restored",
		"snapshot_id", snapshotID,
		"aggregate_id", snapshot.AggregateID,
	)

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toSnapshotResponse(snapshot),
	})
}

// Replay handles POST /api/v1/receptions/:id/replay
func (h *Handlers) Replay(c *gin.Context) {
	id, ok := h.aggregateID(c)
	if !ok {
		return
	}

	var req ReplayRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	result := h.services.Coordinator.ReplayEventsWith(c.Request.Context(), id, workflow.ReplayOptions{
		From:      req.From,
		Repersist: req.Repersist,
	})
	h.outcome(c, result.Success, result, result.Message)
}

// FilterEvents handles GET /api/v1/events
func (h *Handlers) FilterEvents(c *gin.Context) {
	var criteria event.Criteria

	if raw := c.Query("aggregate_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "invalid aggregate_id")
			return
		}
		criteria.AggregateID = id
	}

	for _, raw := range c.QueryArray("type") {
		t, ok := event.ParseType(raw)
		if !ok {
			h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", raw))
			return
		}
		criteria.EventTypes = append(criteria.EventTypes, t)
	}

	var ok bool
	if criteria.FromDate, ok = h.timeQuery(c, "from"); !ok {
		return
	}
	if criteria.ToDate, ok = h.timeQuery(c, "to"); !ok {
		return
	}
	criteria.UserID = c.Query("user_id")

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    nonNil(h.services.Coordinator.FilterEvents(c.Request.Context(), criteria)),
	})
}

// ListHandlers handles GET /api/v1/event-types/:type/handlers
func (h *Handlers) ListHandlers(c *gin.Context) {
	if h.services.Dispatcher == nil {
		h.unavailable(c, "handler listing")
		return
	}

	eventType, ok := event.ParseType(c.Param("type"))
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", c.Param("type")))
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    nonNil(h.services.Dispatcher.ListHandlers(eventType)),
	})
}

// Metrics handles GET /api/v1/metrics
func (h *Handlers) Metrics(c *gin.Context) {
	if h.services.Metrics == nil {
		h.unavailable(c, "metrics")
		return
	}

	counters, err := h.services.Metrics.Counters(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to collect metrics", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    counters,
	})
}

// outcome writes a coordinator result: 200 when it succeeded, 422 otherwise
func (h *Handlers) outcome(c *gin.Context, success bool, data interface{}, message string) {
	if success {
		c.JSON(http.StatusOK, Response{Success: true, Data: data})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, Response{
		Success: false,
		Data:    data,
		Error:   message,
	})
}

func (h *Handlers) aggregateID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("invalid reception id %q", raw))
		return 0, false
	}
	return id, true
}

func (h *Handlers) typeQuery(c *gin.Context) (event.Type, bool) {
	raw := c.Query("type")
	t, ok := event.ParseType(raw)
	if !ok {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", raw))
		return "", false
	}
	return t, true
}

// timeQuery parses an optional RFC 3339 query parameter
func (h *Handlers) timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("invalid %s: expected RFC 3339 time", key))
		return nil, false
	}
	return &t, true
}

func (h *Handlers) bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	// Chunked requests report an unknown length; an empty one decodes to EOF
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   message,
	})
}

func (h *Handlers) unavailable(c *gin.Context, feature string) {
	h.fail(c, http.StatusServiceUnavailable, feature+" is not configured")
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error, keysAndValues ...interface{}) {
	h.logger.Error(msg, append(keysAndValues, "error", err)...)
	h.fail(c, http.StatusInternalServerError, internalErrorMessage)
}

func toSnapshotResponse(s *event.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:          s.ID,
		AggregateID: s.AggregateID,
		CreatedAt:   s.CreatedAt,
		AtTime:      s.AtTime,
		EventCount:  s.EventCount(),
	}
}

// nonNil keeps empty lists rendering as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
