package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/domain/event"
)

// NotificationHandler sends one notification per event on a fixed channel
type NotificationHandler struct {
	channel  string
	notifier port.Notifier
}

// NewNotificationHandler creates a handler for the given channel
func NewNotificationHandler(channel string, notifier port.Notifier) *NotificationHandler {
	return &NotificationHandler{
		channel:  channel,
		notifier: notifier,
	}
}

// Name returns the handler name
func (h *NotificationHandler) Name() string {
	return "notification-" + h.channel
}

// Handle builds the notification from the event and sends it
func (h *NotificationHandler) Handle(ctx context.Context, evt *event.Event) dispatcher.HandlerResult {
	recipient := evt.GetPayloadString("recipient")
	if recipient == "" {
		recipient = evt.ActorID
	}
	if recipient == "" {
		return dispatcher.Failed(h.Name(), fmt.Errorf("no recipient for %s notification", h.channel))
	}

	body := evt.GetPayloadString("message")
	if body == "" {
		body = defaultMessage(evt)
	}

	n := port.Notification{
		Channel:     h.channel,
		AggregateID: evt.AggregateID,
		Recipient:   recipient,
		Subject:     fmt.Sprintf("Reception %d: %s", evt.AggregateID, evt.Type),
		Body:        body,
	}
	if err := h.notifier.Send(ctx, n); err != nil {
		return dispatcher.Failed(h.Name(), fmt.Errorf("send %s notification: %w", h.channel, err))
	}

	return dispatcher.Succeeded(h.Name(), map[string]interface{}{
		"channel":   h.channel,
		"recipient": recipient,
	})
}

func defaultMessage(evt *event.Event) string {
	if to := evt.GetPayloadString("to"); to != "" {
		return fmt.Sprintf("Reception %d moved to %s", evt.AggregateID, to)
	}
	return fmt.Sprintf("Reception %d: %s", evt.AggregateID, evt.Type)
}

// LogNotifier is a Notifier that writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the notification
func (n *LogNotifier) Send(ctx context.Context, notification port.Notification) error {
	n.logger.Info("Notification sent",
		zap.String("channel", notification.Channel),
		zap.Int64("aggregate_id", notification.AggregateID),
		zap.String("recipient", notification.Recipient),
		zap.String("subject", notification.Subject))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
