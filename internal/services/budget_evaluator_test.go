package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

func TestEvaluatorFoodAndDiningScenario(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t, "Food & Dining", 100, core.PeriodMonthly)

	f.spend(t, "Food & Dining", 85)

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.AlertWarning, alerts[0].Kind)
	assert.InDelta(t, 85.0, alerts[0].Percentage, 1e-9)
	assert.Equal(t, "Budget warning for Food & Dining! 85.0% spent ($85.00 of $100.00)", alerts[0].Message)
	assert.Equal(t, int64(8500), f.budget(t, b.ID).CurrentSpent.Cents)

	f.clock.Advance(time.Minute)
	f.spend(t, "Food & Dining", 20)

	alerts = f.alerts(t)
	require.Len(t, alerts, 2)
	assert.Equal(t, core.AlertExceeded, alerts[0].Kind, "newest first")
	assert.InDelta(t, 105.0, alerts[0].Percentage, 1e-9)
	assert.Equal(t, "Budget exceeded for Food & Dining! Spent $105.00 of $100.00", alerts[0].Message)
	assert.Equal(t, core.AlertWarning, alerts[1].Kind, "earlier warning is kept")
	assert.Equal(t, int64(10500), f.budget(t, b.ID).CurrentSpent.Cents)

	assert.Len(t, f.publisher.alerts, 2)
}

func TestEvaluatorTravelWithoutBudget(t *testing.T) {
	f := newFixture(t)
	f.spend(t, "Travel", 50)
	f.spend(t, "Travel", 50)

	assert.Empty(t, f.alerts(t))

	summary, err := f.reports.Summary(context.Background(), testUser, PeriodQuery{Period: "month"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), summary.CategoryBreakdown["Travel"].Cents)
}

func TestEvaluatorDeduplicatesWithinWindow(t *testing.T) {
	f := newFixture(t)
	f.createBudget(t, "Shopping", 100, core.PeriodMonthly)
	f.spend(t, "Shopping", 90)

	ctx := context.Background()
	created, err := f.evaluator.EvaluateUser(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, created, "back-to-back evaluation must not add alerts")
	require.Len(t, f.alerts(t), 1)

	f.clock.Advance(23*time.Hour + 59*time.Minute)
	created, err = f.evaluator.EvaluateUser(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, created)

	// The window is inclusive: an alert exactly DefaultDedupWindow old still suppresses.
	f.clock.Advance(time.Minute)
	created, err = f.evaluator.EvaluateUser(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, created)

	f.clock.Advance(time.Minute)
	created, err = f.evaluator.EvaluateUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, core.AlertWarning, created[0].Kind)
	assert.Len(t, f.alerts(t), 2)
}

func TestEvaluatorThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		spent int64
		want  []core.AlertKind
	}{
		{"just below warning", 79999, nil},
		{"exactly warning", 80000, []core.AlertKind{core.AlertWarning}},
		{"exactly limit", 100000, []core.AlertKind{core.AlertExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createBudget(t, "Education", 1000, core.PeriodMonthly)
			_, err := f.txs.Create(context.Background(), testUser, TransactionInput{
				Title: "course", Amount: core.Money{Cents: tt.spent}, Category: "Education",
			})
			require.NoError(t, err)

			var kinds []core.AlertKind
			for _, a := range f.alerts(t) {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestEvaluatorSumsOnlyMatchingExpenses(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t, "Food & Dining", 100, core.PeriodMonthly)
	ctx := context.Background()

	inputs := []TransactionInput{
		{Title: "first day", Amount: money(10), Category: "Food & Dining", Date: core.NewDate(2025, 3, 1)},
		{Title: "last day", Amount: money(10), Category: "Food & Dining", Date: core.NewDate(2025, 3, 31)},
		{Title: "previous month", Amount: money(500), Category: "Food & Dining", Date: core.NewDate(2025, 2, 28)},
		{Title: "next month", Amount: money(500), Category: "Food & Dining", Date: core.NewDate(2025, 4, 1)},
		{Title: "refund", Amount: money(500), Category: "Food & Dining", Kind: core.KindIncome},
		{Title: "case differs", Amount: money(500), Category: "food & dining"},
	}
	for _, in := range inputs {
		_, err := f.txs.Create(ctx, testUser, in)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2000), f.budget(t, b.ID).CurrentSpent.Cents)
	assert.Empty(t, f.alerts(t))
}

func TestEvaluatorSkipsInactiveAndZeroLimitBudgets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := f.createBudget(t, "Healthcare", 10, core.PeriodMonthly)
	off := false
	_, err := f.budgets.Update(ctx, testUser, inactive.ID, BudgetPatch{IsActive: &off})
	require.NoError(t, err)

	zero := core.Budget{
		ID: "zero", UserID: testUser, Category: "Other", Limit: core.Money{}, Period: core.PeriodMonthly,
		StartDate: core.NewDate(2025, 3, 1), EndDate: core.NewDate(2025, 3, 31), IsActive: true,
	}
	require.NoError(t, f.store.InsertBudget(ctx, zero))

	f.spend(t, "Healthcare", 50)
	f.spend(t, "Other", 50)

	assert.Empty(t, f.alerts(t))
	assert.Zero(t, f.budget(t, inactive.ID).CurrentSpent.Cents, "inactive budgets are not refreshed")
	assert.Equal(t, int64(5000), f.budget(t, "zero").CurrentSpent.Cents, "spending is stored even without alerting")
}

func TestEvaluatorPublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.createBudget(t, "Shopping", 10, core.PeriodMonthly)

	f.spend(t, "Shopping", 20)
	require.Len(t, f.alerts(t), 1)
}

// failingStore fails SetBudgetSpent for one budget.
type failingStore struct {
	*memory.Store
	failFor string
}

func (s *failingStore) SetBudgetSpent(ctx context.Context, id string, spent core.Money) error {
	if id == s.failFor {
		return errors.New("disk full")
	}
	return s.Store.SetBudgetSpent(ctx, id, spent)
}

func TestEvaluatorAbortsOnPersistenceError(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	mk := func(id, category string) {
		require.NoError(t, mem.InsertBudget(ctx, core.Budget{
			ID: id, UserID: testUser, Category: category, Limit: money(10), Period: core.PeriodMonthly,
			StartDate: core.NewDate(2025, 3, 1), EndDate: core.NewDate(2025, 3, 31), IsActive: true,
		}))
		require.NoError(t, mem.InsertTransaction(ctx, core.Transaction{
			ID: id + "-tx", UserID: testUser, Title: "t", Amount: money(20), Category: category,
			Kind: core.KindExpense, Date: core.NewDate(2025, 3, 5),
		}))
	}
	mk("b1", "Shopping")
	mk("b2", "Travel")
	mk("b3", "Insurance")

	clock := newTestClock()
	e := NewBudgetEvaluator(&failingStore{Store: mem, failFor: "b2"}, WithEvaluatorClock(clock.Now))

	created, err := e.EvaluateUser(ctx, testUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b2")
	assert.Len(t, created, 1, "alerts of budgets before the failure are kept")

	b1, _ := mem.GetBudget(ctx, testUser, "b1")
	b3, _ := mem.GetBudget(ctx, testUser, "b3")
	assert.Equal(t, int64(2000), b1.CurrentSpent.Cents)
	assert.Zero(t, b3.CurrentSpent.Cents, "budgets after the failure are not processed")
}

// snapshotStore reads the matching transactions on the first
// ListTransactions call, then holds that call until released.
type snapshotStore struct {
	*memory.Store
	calls    atomic.Int32
	active   atomic.Int32
	overlaps atomic.Int32
	entered  chan struct{}
	release  chan struct{}
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *snapshotStore) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	if s.active.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.active.Add(-1)

	txs, err := s.Store.ListTransactions(ctx, f)
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.release
	}
	return txs, err
}

func seedShoppingBudget(t *testing.T, store storage.Store) {
	t.Helper()
	require.NoError(t, store.InsertBudget(context.Background(), core.Budget{
		ID: "b1", UserID: testUser, Category: "Shopping", Limit: money(100), Period: core.PeriodMonthly,
		StartDate: core.NewDate(2025, 3, 1), EndDate: core.NewDate(2025, 3, 31), IsActive: true,
	}))
}

func insertShopping(t *testing.T, store storage.Store, id string, amount float64) {
	t.Helper()
	require.NoError(t, store.InsertTransaction(context.Background(), core.Transaction{
		ID: id, UserID: testUser, Title: id, Amount: money(amount), Category: "Shopping",
		Kind: core.KindExpense, Date: core.NewDate(2025, 3, 5),
	}))
}

func TestEvaluatorSerializedCountsLateWrites(t *testing.T) {
	store := newSnapshotStore()
	ctx := context.Background()
	seedShoppingBudget(t, store)
	insertShopping(t, store, "a", 10)

	clock := newTestClock()
	e := NewBudgetEvaluator(store, WithEvaluatorClock(clock.Now), WithSerializedEvaluations(true))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = e.EvaluateUser(ctx, testUser)
	}()
	<-store.entered

	// Written while the first pass is stuck on its stale snapshot.
	insertShopping(t, store, "b", 90)
	var second []core.BudgetAlert
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, errs[1] = e.EvaluateUser(ctx, testUser)
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(2), store.calls.Load(), "every caller runs its own pass")
	assert.Zero(t, store.overlaps.Load(), "passes of one user do not overlap")

	require.Len(t, second, 1)
	assert.Equal(t, core.AlertExceeded, second[0].Kind)

	b, err := store.GetBudget(ctx, testUser, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.CurrentSpent.Cents)
	alerts, err := store.ListAlerts(ctx, testUser, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluatorSerializedDoesNotDuplicateAlerts(t *testing.T) {
	store := newSnapshotStore()
	ctx := context.Background()
	seedShoppingBudget(t, store)
	insertShopping(t, store, "a", 150)

	clock := newTestClock()
	e := NewBudgetEvaluator(store, WithEvaluatorClock(clock.Now), WithSerializedEvaluations(true))

	var wg sync.WaitGroup
	created := make([][]core.BudgetAlert, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		created[0], _ = e.EvaluateUser(ctx, testUser)
	}()
	<-store.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		created[1], _ = e.EvaluateUser(ctx, testUser)
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Len(t, created[0], 1)
	assert.Empty(t, created[1], "the later pass sees the first alert")
	alerts, err := store.ListAlerts(ctx, testUser, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestEvaluatorSerializedCallerKeepsOwnContext(t *testing.T) {
	store := newSnapshotStore()
	seedShoppingBudget(t, store)
	insertShopping(t, store, "a", 90)

	clock := newTestClock()
	e := NewBudgetEvaluator(store, WithEvaluatorClock(clock.Now), WithSerializedEvaluations(true))

	first, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.EvaluateUser(first, testUser)
	}()
	<-store.entered
	cancel()

	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = e.EvaluateUser(context.Background(), testUser)
	}()
	close(store.release)
	wg.Wait()

	require.NoError(t, err, "a cancelled caller does not fail the next one")
	b, gerr := store.GetBudget(context.Background(), testUser, "b1")
	require.NoError(t, gerr)
	assert.Equal(t, int64(9000), b.CurrentSpent.Cents)
}
