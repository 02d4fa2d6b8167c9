package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestBudgetCreateRanges(t *testing.T) {
	f := newFixture(t)

	monthly := f.createBudget(t, "Food & Dining", 500, core.PeriodMonthly)
	assert.Equal(t, "2025-03-01", monthly.StartDate.String())
	assert.Equal(t, "2025-03-31", monthly.EndDate.String())
	assert.True(t, monthly.IsActive)
	assert.Zero(t, monthly.CurrentSpent.Cents)

	weekly := f.createBudget(t, "Food & Dining", 100, core.PeriodWeekly)
	assert.Equal(t, "2025-03-10", weekly.StartDate.String())
	assert.Equal(t, "2025-03-16", weekly.EndDate.String())
}

func TestBudgetCreateDefaultsToMonthly(t *testing.T) {
	f := newFixture(t)
	b, err := f.budgets.Create(context.Background(), testUser, BudgetInput{Category: "Travel", Limit: money(10)})
	require.NoError(t, err)
	assert.Equal(t, core.PeriodMonthly, b.Period)
}

func TestBudgetCreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createBudget(t, "Travel", 300, core.PeriodMonthly)

	_, err := f.budgets.Create(ctx, testUser, BudgetInput{Category: "Travel", Limit: money(50), Period: core.PeriodMonthly})
	assert.True(t, errors.Is(err, core.ErrConflict), "duplicate active budget: %v", err)

	_, err = f.budgets.Create(ctx, testUser, BudgetInput{Category: "Travel", Limit: money(50), Period: "daily"})
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "unknown period: %v", err)

	_, err = f.budgets.Create(ctx, testUser, BudgetInput{Category: "Travel", Limit: core.Money{Cents: -1}, Period: core.PeriodWeekly})
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "negative limit: %v", err)

	_, err = f.budgets.Create(ctx, "user-2", BudgetInput{Category: "Travel", Limit: money(50)})
	assert.NoError(t, err, "another user's budgets do not conflict")
}

func TestBudgetDeactivateAllowsNewBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBudget(t, "Travel", 300, core.PeriodMonthly)

	inactive := false
	limit := money(400)
	updated, err := f.budgets.Update(ctx, testUser, b.ID, BudgetPatch{IsActive: &inactive, Limit: &limit})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, int64(40000), updated.Limit.Cents)

	f.createBudget(t, "Travel", 200, core.PeriodMonthly)

	budgets, err := f.budgets.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, budgets, 2)
}

func TestBudgetReadsDoNotEvaluate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBudget(t, "Travel", 100, core.PeriodMonthly)

	// Stored directly, bypassing the evaluation trigger.
	require.NoError(t, f.store.InsertTransaction(ctx, core.Transaction{
		ID: "direct", UserID: testUser, Title: "flight", Amount: money(90),
		Category: "Travel", Kind: core.KindExpense, Date: core.NewDate(2025, 3, 2),
	}))

	budgets, err := f.budgets.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Zero(t, budgets[0].CurrentSpent.Cents)
	assert.Empty(t, f.alerts(t))

	created, err := f.budgets.Evaluate(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, core.AlertWarning, created[0].Kind)
	assert.Equal(t, int64(9000), f.budget(t, b.ID).CurrentSpent.Cents)
}

func TestBudgetNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := money(1)

	_, err := f.budgets.Update(ctx, testUser, "missing", BudgetPatch{Limit: &limit})
	assert.True(t, errors.Is(err, core.ErrNotFound), "update: %v", err)
	assert.True(t, errors.Is(f.budgets.Delete(ctx, testUser, "missing"), core.ErrNotFound))
	assert.True(t, errors.Is(f.budgets.MarkAlertRead(ctx, testUser, "missing"), core.ErrNotFound))
}

func TestBudgetAlertsNewestFirstAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createBudget(t, "Shopping", 100, core.PeriodMonthly)

	f.spend(t, "Shopping", 85)
	f.clock.Advance(time.Hour)
	f.spend(t, "Shopping", 20)

	alerts := f.alerts(t)
	require.Len(t, alerts, 2)
	assert.Equal(t, core.AlertExceeded, alerts[0].Kind)
	assert.Equal(t, core.AlertWarning, alerts[1].Kind)
	assert.False(t, alerts[0].IsRead)

	require.NoError(t, f.budgets.MarkAlertRead(ctx, testUser, alerts[0].ID))
	assert.True(t, f.alerts(t)[0].IsRead)

	err := f.budgets.MarkAlertRead(ctx, "user-2", alerts[1].ID)
	assert.True(t, errors.Is(err, core.ErrNotFound), "foreign alert: %v", err)
}

func TestBudgetDeleteKeepsOtherBudgets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createBudget(t, "Travel", 100, core.PeriodMonthly)
	f.createBudget(t, "Shopping", 100, core.PeriodMonthly)

	require.NoError(t, f.budgets.Delete(ctx, testUser, a.ID))
	budgets, err := f.budgets.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "Shopping", budgets[0].Category)
}
