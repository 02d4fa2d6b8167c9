package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []core.BudgetAlert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, a core.BudgetAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, a)
	return nil
}

type brokenReader struct{}

func (brokenReader) GetAlert(context.Context, string) (core.BudgetAlert, error) {
	return core.BudgetAlert{}, errors.New("database is locked")
}

func seedAlert(t *testing.T, store *memory.Store, id string, read bool) core.BudgetAlert {
	t.Helper()
	a := core.BudgetAlert{
		ID:         id,
		UserID:     "user-1",
		BudgetID:   "budget-1",
		Kind:       core.AlertWarning,
		Message:    "Budget warning",
		Percentage: 85,
		IsRead:     read,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.InsertAlert(context.Background(), a))
	return a
}

func TestHandleAlertEventNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alert := seedAlert(t, store, "alert-1", false)
	notifier := &recordingNotifier{}
	w := NewAlertWorker(store, notifier)

	msg := amqp.NewAlertEventMessage(alert)
	require.NoError(t, w.HandleAlertEvent(ctx, msg))
	require.NoError(t, w.HandleAlertEvent(ctx, msg))

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "alert-1", notifier.alerts[0].ID)
	assert.Equal(t, core.AlertWarning, notifier.alerts[0].Kind)
}

func TestHandleAlertEventSkips(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	read := seedAlert(t, store, "alert-read", true)
	notifier := &recordingNotifier{}
	w := NewAlertWorker(store, notifier)

	assert.NoError(t, w.HandleAlertEvent(ctx, amqp.NewAlertEventMessage(read)))
	assert.NoError(t, w.HandleAlertEvent(ctx, &amqp.AlertEventMessage{AlertID: "gone"}))
	assert.NoError(t, w.HandleAlertEvent(ctx, &amqp.AlertEventMessage{}))
	assert.Empty(t, notifier.alerts)
}

func TestHandleAlertEventErrorsRequeue(t *testing.T) {
	ctx := context.Background()

	w := NewAlertWorker(brokenReader{}, &recordingNotifier{})
	err := w.HandleAlertEvent(ctx, &amqp.AlertEventMessage{AlertID: "a"})
	assert.ErrorContains(t, err, "database is locked")

	store := memory.New()
	alert := seedAlert(t, store, "alert-1", false)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	w = NewAlertWorker(store, notifier)
	require.Error(t, w.HandleAlertEvent(ctx, amqp.NewAlertEventMessage(alert)))

	// A failed notification is not remembered, so the redelivery goes through.
	notifier.err = nil
	require.NoError(t, w.HandleAlertEvent(ctx, amqp.NewAlertEventMessage(alert)))
	assert.Len(t, notifier.alerts, 1)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	n := NewLogNotifier(logger)

	err := n.Notify(context.Background(), core.BudgetAlert{
		ID: "a1", UserID: "u1", BudgetID: "b1", Kind: core.AlertExceeded, Percentage: 105,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Budget alert created"`)
	assert.Contains(t, out, `"alert_id":"a1"`)
	assert.Contains(t, out, `"alert_type":"exceeded"`)
}
