package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

const testUser = "user-1"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	// Friday 14 March 2025
	return &testClock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []core.BudgetAlert
	err    error
}

func (p *recordingPublisher) PublishAlertCreated(_ context.Context, a core.BudgetAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	return p.err
}

type fixture struct {
	store     *memory.Store
	clock     *testClock
	publisher *recordingPublisher
	evaluator *BudgetEvaluator
	budgets   *BudgetService
	txs       *TransactionService
	reports   *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		clock:     newTestClock(),
		publisher: &recordingPublisher{},
	}
	resolver := &analytics.PeriodResolver{Now: f.clock.Now}
	f.evaluator = NewBudgetEvaluator(f.store,
		WithEvaluatorClock(f.clock.Now),
		WithAlertPublisher(f.publisher))
	f.budgets = NewBudgetService(f.store, f.evaluator, resolver)
	f.budgets.now = f.clock.Now
	f.reports = NewReportService(f.store, resolver, nil)
	f.reports.now = f.clock.Now
	f.txs = NewTransactionService(f.store, f.evaluator, f.reports)
	f.txs.now = f.clock.Now
	return f
}

func money(units float64) core.Money {
	return core.Money{Cents: int64(units*100 + 0.5)}
}

func (f *fixture) createBudget(t *testing.T, category string, limit float64, period core.BudgetPeriod) core.Budget {
	t.Helper()
	b, err := f.budgets.Create(context.Background(), testUser, BudgetInput{
		Category: category,
		Limit:    money(limit),
		Period:   period,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) spend(t *testing.T, category string, amount float64) core.Transaction {
	t.Helper()
	tx, err := f.txs.Create(context.Background(), testUser, TransactionInput{
		Title:    category + " purchase",
		Amount:   money(amount),
		Category: category,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) alerts(t *testing.T) []core.BudgetAlert {
	t.Helper()
	alerts, err := f.budgets.ListAlerts(context.Background(), testUser)
	require.NoError(t, err)
	return alerts
}

func (f *fixture) budget(t *testing.T, id string) core.Budget {
	t.Helper()
	b, err := f.store.GetBudget(context.Background(), testUser, id)
	require.NoError(t, err)
	return b
}
