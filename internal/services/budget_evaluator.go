package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// DefaultDedupWindow suppresses a repeat alert of the same kind for the same
// budget.
const DefaultDedupWindow = 24 * time.Hour

// AlertPublisher announces stored alerts to other processes.
type AlertPublisher interface {
	PublishAlertCreated(ctx context.Context, a core.BudgetAlert) error
}

// Evaluator refreshes budget spending for a user and records alerts.
type Evaluator interface {
	EvaluateUser(ctx context.Context, userID string) ([]core.BudgetAlert, error)
}

type evaluatorStore interface {
	storage.BudgetStore
	storage.TransactionStore
	storage.AlertStore
}

// BudgetEvaluator recomputes current spending of every active budget of a
// user from the stored transactions and records threshold alerts.
//
// Two evaluations of the same user running at once can both pass the dedup
// lookup and insert duplicate alerts. WithSerializedEvaluations runs the
// passes of one user one after another within this process; separate
// processes are not coordinated.
type BudgetEvaluator struct {
	store       evaluatorStore
	publisher   AlertPublisher
	now         func() time.Time
	dedupWindow time.Duration
	serialize   bool
	locks       userLocks
}

// userLocks is a mutex per user, dropped once nobody holds or waits on it.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

type EvaluatorOption func(*BudgetEvaluator)

func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.now = now }
}

func WithDedupWindow(d time.Duration) EvaluatorOption {
	return func(e *BudgetEvaluator) {
		if d > 0 {
			e.dedupWindow = d
		}
	}
}

// WithAlertPublisher publishes every inserted alert. Publish failures are
// logged and never fail the evaluation.
func WithAlertPublisher(p AlertPublisher) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.publisher = p }
}

// WithSerializedEvaluations makes concurrent passes for the same user wait
// for each other. Every caller still gets its own pass, started after it
// acquired the lock, so writes made before the call are always counted.
func WithSerializedEvaluations(enabled bool) EvaluatorOption {
	return func(e *BudgetEvaluator) { e.serialize = enabled }
}

func NewBudgetEvaluator(store evaluatorStore, opts ...EvaluatorOption) *BudgetEvaluator {
	e := &BudgetEvaluator{
		store:       store,
		now:         time.Now,
		dedupWindow: DefaultDedupWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateUser runs one pass over the user's active budgets and returns the
// alerts it inserted. The first persistence error stops the pass; budgets
// already processed keep their refreshed spending.
func (e *BudgetEvaluator) EvaluateUser(ctx context.Context, userID string) ([]core.BudgetAlert, error) {
	if e.serialize {
		unlock := e.locks.lock(userID)
		defer unlock()
	}
	return e.evaluate(ctx, userID)
}

func (e *BudgetEvaluator) evaluate(ctx context.Context, userID string) ([]core.BudgetAlert, error) {
	budgets, err := e.store.ListBudgets(ctx, storage.BudgetFilter{UserID: userID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list active budgets: %w", err)
	}

	created := make([]core.BudgetAlert, 0)
	for _, b := range budgets {
		alert, ok, err := e.evaluateBudget(ctx, b)
		if err != nil {
			return created, fmt.Errorf("evaluate budget %s: %w", b.ID, err)
		}
		if ok {
			created = append(created, alert)
		}
	}

	slog.DebugContext(ctx, "Budget evaluation finished",
		"user_id", userID,
		"budgets", len(budgets),
		"alerts_created", len(created))
	return created, nil
}

func (e *BudgetEvaluator) evaluateBudget(ctx context.Context, b core.Budget) (core.BudgetAlert, bool, error) {
	txs, err := e.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID:   b.UserID,
		Category: b.Category,
		Kind:     core.KindExpense,
		From:     b.StartDate,
		To:       b.EndDate,
	})
	if err != nil {
		return core.BudgetAlert{}, false, fmt.Errorf("list expenses: %w", err)
	}

	var spent core.Money
	for _, tx := range txs {
		spent = spent.Add(tx.Amount)
	}
	percentage := core.Percentage(spent, b.Limit)

	if err := e.store.SetBudgetSpent(ctx, b.ID, spent); err != nil {
		return core.BudgetAlert{}, false, fmt.Errorf("store current spent: %w", err)
	}

	decision, ok := DecideAlert(b.Category, spent, b.Limit, percentage)
	if !ok {
		return core.BudgetAlert{}, false, nil
	}

	now := e.now().UTC()
	_, err = e.store.FindRecentAlert(ctx, b.ID, decision.Kind, now.Add(-e.dedupWindow))
	switch {
	case err == nil:
		slog.DebugContext(ctx, "Suppressed duplicate budget alert",
			"budget_id", b.ID, "alert_type", decision.Kind)
		return core.BudgetAlert{}, false, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.BudgetAlert{}, false, fmt.Errorf("find recent alert: %w", err)
	}

	alert := core.BudgetAlert{
		ID:         uuid.NewString(),
		UserID:     b.UserID,
		BudgetID:   b.ID,
		Kind:       decision.Kind,
		Message:    decision.Message,
		Percentage: percentage,
		CreatedAt:  now,
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		return core.BudgetAlert{}, false, fmt.Errorf("insert alert: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert created",
		"alert_id", alert.ID,
		"budget_id", b.ID,
		"category", b.Category,
		"alert_type", alert.Kind,
		"percentage", percentage)

	e.publish(ctx, alert)
	return alert, true, nil
}

func (e *BudgetEvaluator) publish(ctx context.Context, alert core.BudgetAlert) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishAlertCreated(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "Failed to publish alert event",
			"alert_id", alert.ID, "error", err)
	}
}
