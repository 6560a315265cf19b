// Package export renders reception history into spreadsheet workbooks.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/domain/entity"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

const (
	SheetEvents      = "Events"
	SheetTransitions = "Transitions"
	SheetSummary     = "Summary"
)

// History is everything exported for one aggregate
type History struct {
	AggregateID int64
	Events      []*event.Event
	Transitions []*entity.TransitionRecord
	Statistics  event.Statistics
}

// HistoryExporter writes an aggregate's history as an XLSX workbook
type HistoryExporter struct {
	logger *zap.Logger
}

// NewHistoryExporter creates a new exporter
func NewHistoryExporter(logger *zap.Logger) *HistoryExporter {
	return &HistoryExporter{logger: logger}
}

// Write renders the workbook to w
func (e *HistoryExporter) Write(w io.Writer, h History) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetEvents); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}
	for _, name := range []string{SheetTransitions, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.writeEvents(f, header, h.Events); err != nil {
		return err
	}
	if err := e.writeTransitions(f, header, h.Transitions); err != nil {
		return err
	}
	if err := e.writeSummary(f, header, h); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("History exported",
		zap.Int64("aggregate_id", h.AggregateID),
		zap.Int("event_count", len(h.Events)),
		zap.Int("transition_count", len(h.Transitions)))
	return nil
}

func (e *HistoryExporter) writeEvents(f *excelize.File, header int, events []*event.Event) error {
	rows := [][]interface{}{{"Event ID", "Type", "Actor", "Timestamp", "Correlation ID", "Payload"}}
	for _, evt := range events {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			e.logger.Warn("Payload not serialisable", zap.String("event_id", evt.ID), zap.Error(err))
			payload = []byte(fmt.Sprintf("%v", evt.Payload))
		}
		rows = append(rows, []interface{}{
			evt.ID,
			evt.Type.String(),
			evt.ActorID,
			evt.Timestamp.UTC().Format(time.RFC3339Nano),
			evt.CorrelationID,
			string(payload),
		})
	}
	return writeRows(f, SheetEvents, header, rows)
}

func (e *HistoryExporter) writeTransitions(f *excelize.File, header int, records []*entity.TransitionRecord) error {
	rows := [][]interface{}{{"ID", "From", "To", "Reason", "Actor", "Timestamp"}}
	for _, r := range records {
		rows = append(rows, []interface{}{
			r.ID,
			r.PreviousState,
			r.NewState,
			r.Reason,
			r.ActorID,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return writeRows(f, SheetTransitions, header, rows)
}

func (e *HistoryExporter) writeSummary(f *excelize.File, header int, h History) error {
	stats := h.Statistics
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Aggregate ID", h.AggregateID},
		{"Total events", stats.TotalCount},
		{"Distinct actors", stats.DistinctActors},
		{"First event", formatOptional(stats.FirstEventAt)},
		{"Last event", formatOptional(stats.LastEventAt)},
	}

	types := make([]string, 0, len(stats.CountsByType))
	for t := range stats.CountsByType {
		types = append(types, t.String())
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, []interface{}{"Count " + t, stats.CountsByType[event.Type(t)]})
	}

	return writeRows(f, SheetSummary, header, rows)
}

func writeRows(f *excelize.File, sheet string, header int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
