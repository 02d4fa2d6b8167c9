// Package worker consumes budget alert events and dispatches notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Notifier delivers an alert to its owner.
type Notifier interface {
	Notify(ctx context.Context, alert core.BudgetAlert) error
}

// AlertReader loads the stored alert named by an event.
type AlertReader interface {
	GetAlert(ctx context.Context, id string) (core.BudgetAlert, error)
}

// LogNotifier records alerts in the structured log. It is the default when
// no other channel is configured.
type LogNotifier struct {
	logger *log.StructuredLogger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LogNotifier{logger: log.NewStructuredLogger(logger)}
}

func (n *LogNotifier) Notify(ctx context.Context, a core.BudgetAlert) error {
	n.logger.LogAlertCreated(ctx, a.UserID, a.ID, a.BudgetID, string(a.Kind), a.Percentage)
	return nil
}

// AlertWorker handles alert events from AMQP. Each event is checked
// against the store before notifying, so alerts deleted or already read in
// the meantime are skipped. Redelivered events for an alert notified
// recently are dropped.
type AlertWorker struct {
	alerts   AlertReader
	notifier Notifier
	notified cache.Cache[time.Time]
}

// Recently notified alert IDs are remembered up to DefaultNotifiedSize
// entries for DefaultNotifiedTTL.
const (
	DefaultNotifiedSize = 1000
	DefaultNotifiedTTL  = 24 * time.Hour
)

func NewAlertWorker(alerts AlertReader, notifier Notifier) *AlertWorker {
	return &AlertWorker{
		alerts:   alerts,
		notifier: notifier,
		notified: cache.NewLRUCache[time.Time](DefaultNotifiedSize, DefaultNotifiedTTL),
	}
}

// HandleAlertEvent processes a single alert event from AMQP. A returned
// error requeues the event.
func (w *AlertWorker) HandleAlertEvent(ctx context.Context, msg *amqp.AlertEventMessage) error {
	slog.InfoContext(ctx, "Processing alert event",
		log.FieldAlertID, msg.AlertID,
		log.FieldBudgetID, msg.BudgetID,
		log.FieldAlertType, msg.Kind)

	if msg.AlertID == "" {
		slog.WarnContext(ctx, "Dropping alert event without alert id", log.FieldBudgetID, msg.BudgetID)
		return nil
	}
	if at, ok := w.notified.Get(msg.AlertID); ok {
		slog.DebugContext(ctx, "Alert already notified, skipping",
			log.FieldAlertID, msg.AlertID,
			"notified_at", at.Format(time.RFC3339))
		return nil
	}

	alert, err := w.alerts.GetAlert(ctx, msg.AlertID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Alert no longer exists, skipping", log.FieldAlertID, msg.AlertID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get alert from storage: %w", err)
	}
	if alert.IsRead {
		slog.InfoContext(ctx, "Alert already read, skipping", log.FieldAlertID, alert.ID)
		return nil
	}

	if err := w.notifier.Notify(ctx, alert); err != nil {
		return fmt.Errorf("notify alert %s: %w", alert.ID, err)
	}
	w.notified.Set(alert.ID, time.Now())

	slog.InfoContext(ctx, "Alert notification sent",
		log.FieldAlertID, alert.ID,
		log.FieldUserID, alert.UserID,
		log.FieldPercentage, alert.Percentage)
	return nil
}
