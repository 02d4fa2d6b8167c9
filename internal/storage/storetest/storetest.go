// Package storetest holds behaviour checks shared by every storage.Store
// implementation. Each implementation's tests call Run with a constructor
// returning an empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Factory returns an empty store. Cleanup is the caller's concern.
type Factory func(t *testing.T) storage.Store

// Run executes every check against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("Budgets", func(t *testing.T) { testBudgets(t, newStore(t)) })
	t.Run("Alerts", func(t *testing.T) { testAlerts(t, newStore(t)) })
}

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newUser(t *testing.T, s storage.Store, name string) core.User {
	t.Helper()
	u := core.User{ID: uuid.NewString(), Username: name, PasswordHash: "hash", CreatedAt: base}
	require.NoError(t, s.InsertUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	email := "ana@example.com"
	u := core.User{ID: uuid.NewString(), Username: "ana", Email: &email, PasswordHash: "h", CreatedAt: base}
	require.NoError(t, s.InsertUser(ctx, u))

	got, err := s.GetUserByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)

	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.Equal(t, "h", got.PasswordHash)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	dup := core.User{ID: uuid.NewString(), Username: "ana", PasswordHash: "x", CreatedAt: base}
	err = s.InsertUser(ctx, dup)
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)
}

func testTransactions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "tx-owner")
	other := newUser(t, s, "tx-other")

	note := ""
	mk := func(userID, category string, kind core.TransactionKind, cents int64, date core.Date, offset time.Duration) core.Transaction {
		tx := core.Transaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     category + " item",
			Amount:    core.Money{Cents: cents},
			Category:  category,
			Kind:      kind,
			Date:      date,
			CreatedAt: base.Add(offset),
		}
		require.NoError(t, s.InsertTransaction(ctx, tx))
		return tx
	}

	a := mk(u.ID, "Food & Dining", core.KindExpense, 1200, core.NewDate(2025, 3, 1), 0)
	b := mk(u.ID, "Food & Dining", core.KindExpense, 800, core.NewDate(2025, 3, 10), time.Minute)
	c := mk(u.ID, "Salary", core.KindIncome, 300000, core.NewDate(2025, 3, 10), 2*time.Minute)
	d := mk(u.ID, "Food & Dining", core.KindExpense, 500, core.NewDate(2025, 4, 1), 3*time.Minute)
	mk(other.ID, "Food & Dining", core.KindExpense, 999, core.NewDate(2025, 3, 5), 0)

	all, err := s.ListTransactions(ctx, storage.TransactionFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{d.ID, c.ID, b.ID, a.ID}, ids(all))

	march, err := s.ListTransactions(ctx, storage.TransactionFilter{
		UserID:   u.ID,
		Category: "Food & Dining",
		Kind:     core.KindExpense,
		From:     core.NewDate(2025, 3, 1),
		To:       core.NewDate(2025, 3, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids(march))

	got, err := s.GetTransaction(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Description)
	assert.Equal(t, a.Amount, got.Amount)
	assert.Equal(t, a.Date.String(), got.Date.String())

	_, err = s.GetTransaction(ctx, other.ID, a.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound), "other users must not see the transaction")

	got.Description = &note
	got.Amount = core.Money{Cents: 1500}
	got.Kind = core.KindIncome
	require.NoError(t, s.UpdateTransaction(ctx, got))
	got, err = s.GetTransaction(ctx, u.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, "", *got.Description)
	assert.Equal(t, int64(1500), got.Amount.Cents)
	assert.Equal(t, core.KindIncome, got.Kind)

	n, err := s.DeleteTransaction(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.DeleteTransaction(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "cat-owner")
	goal := core.Money{Cents: 50000}
	c := core.Category{ID: uuid.NewString(), UserID: u.ID, Name: "Pets", Icon: "🐶", Goal: &goal, CreatedAt: base}
	require.NoError(t, s.InsertCategory(ctx, c))

	found, err := s.FindCategoryByName(ctx, u.ID, "Pets")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	require.NotNil(t, found.Goal)
	assert.Equal(t, goal, *found.Goal)

	_, err = s.FindCategoryByName(ctx, u.ID, "Garden")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	found.Name = "Animals"
	found.Goal = nil
	require.NoError(t, s.UpdateCategory(ctx, found))
	list, err := s.ListCategories(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Animals", list[0].Name)
	assert.Nil(t, list[0].Goal)

	missing := core.Category{ID: uuid.NewString(), UserID: u.ID, Name: "x", Icon: "x"}
	assert.True(t, errors.Is(s.UpdateCategory(ctx, missing), core.ErrNotFound))

	n, err := s.DeleteCategory(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testBudgets(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "budget-owner")
	b := core.Budget{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Category:  "Food & Dining",
		Limit:     core.Money{Cents: 10000},
		Period:    core.PeriodMonthly,
		StartDate: core.NewDate(2025, 3, 1),
		EndDate:   core.NewDate(2025, 3, 31),
		IsActive:  true,
		CreatedAt: base,
	}
	require.NoError(t, s.InsertBudget(ctx, b))

	active, err := s.FindActiveBudget(ctx, u.ID, "Food & Dining", core.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, b.ID, active.ID)
	assert.Equal(t, "2025-03-01", active.StartDate.String())
	assert.Equal(t, "2025-03-31", active.EndDate.String())

	_, err = s.FindActiveBudget(ctx, u.ID, "Food & Dining", core.PeriodWeekly)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	require.NoError(t, s.SetBudgetSpent(ctx, b.ID, core.Money{Cents: 8500}))
	got, err := s.GetBudget(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), got.CurrentSpent.Cents)

	got.IsActive = false
	got.Limit = core.Money{Cents: 20000}
	got.Category = "ignored"
	require.NoError(t, s.UpdateBudget(ctx, got))

	got, err = s.GetBudget(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, int64(20000), got.Limit.Cents)
	assert.Equal(t, "Food & Dining", got.Category)

	onlyActive, err := s.ListBudgets(ctx, storage.BudgetFilter{UserID: u.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, onlyActive)
	everything, err := s.ListBudgets(ctx, storage.BudgetFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, everything, 1)

	n, err := s.DeleteBudget(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.GetBudget(ctx, u.ID, b.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func testAlerts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alert-owner")
	budgetID := uuid.NewString()

	mk := func(kind core.AlertKind, at time.Time) core.BudgetAlert {
		a := core.BudgetAlert{
			ID:         uuid.NewString(),
			UserID:     u.ID,
			BudgetID:   budgetID,
			Kind:       kind,
			Message:    string(kind),
			Percentage: 85.5,
			CreatedAt:  at,
		}
		require.NoError(t, s.InsertAlert(ctx, a))
		return a
	}
	old := mk(core.AlertWarning, base.Add(-48*time.Hour))
	recent := mk(core.AlertWarning, base.Add(-time.Hour))
	exceeded := mk(core.AlertExceeded, base)

	found, err := s.FindRecentAlert(ctx, budgetID, core.AlertWarning, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, recent.ID, found.ID)
	assert.InDelta(t, 85.5, found.Percentage, 1e-9)

	_, err = s.FindRecentAlert(ctx, budgetID, core.AlertExceeded, base.Add(time.Second))
	assert.True(t, errors.Is(err, core.ErrNotFound))

	// The window bound is inclusive.
	found, err = s.FindRecentAlert(ctx, budgetID, core.AlertExceeded, base)
	require.NoError(t, err)
	assert.Equal(t, exceeded.ID, found.ID)

	// An alert exactly one dedup window old still counts, down to the microsecond.
	edgeBudget := uuid.NewString()
	edgeAt := base.Add(-24*time.Hour + 123456*time.Microsecond)
	edge := core.BudgetAlert{
		ID: uuid.NewString(), UserID: u.ID, BudgetID: edgeBudget, Kind: core.AlertWarning,
		Message: "edge", Percentage: 80, CreatedAt: edgeAt,
	}
	require.NoError(t, s.InsertAlert(ctx, edge))
	now := edgeAt.Add(24 * time.Hour)
	found, err = s.FindRecentAlert(ctx, edgeBudget, core.AlertWarning, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, edge.ID, found.ID)
	_, err = s.FindRecentAlert(ctx, edgeBudget, core.AlertWarning, edgeAt.Add(time.Microsecond))
	assert.True(t, errors.Is(err, core.ErrNotFound))

	list, err := s.ListAlerts(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{exceeded.ID, recent.ID}, alertIDs(list))

	n, err := s.MarkAlertRead(ctx, u.ID, old.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err := s.GetAlert(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	n, err = s.MarkAlertRead(ctx, "someone-else", old.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func ids(txs []core.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func alertIDs(alerts []core.BudgetAlert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}
