package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type countingListener struct{ calls map[string]int }

func (l *countingListener) TransactionsChanged(userID string) { l.calls[userID]++ }

type stubEvaluator struct {
	calls int
	err   error
}

func (s *stubEvaluator) EvaluateUser(context.Context, string) ([]core.BudgetAlert, error) {
	s.calls++
	return nil, s.err
}

func TestTransactionCreateDefaults(t *testing.T) {
	f := newFixture(t)
	tx, err := f.txs.Create(context.Background(), testUser, TransactionInput{
		Title: "  Groceries ", Amount: money(12.5), Category: "Food & Dining",
	})
	require.NoError(t, err)

	assert.Equal(t, "Groceries", tx.Title)
	assert.Equal(t, core.KindExpense, tx.Kind)
	assert.Equal(t, core.NewDate(2025, 3, 14), tx.Date)
	assert.Nil(t, tx.Description)
	assert.NotEmpty(t, tx.ID)
}

func TestTransactionCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   TransactionInput
	}{
		{"missing title", TransactionInput{Amount: money(1), Category: "Other"}},
		{"missing category", TransactionInput{Title: "x", Amount: money(1)}},
		{"unknown type", TransactionInput{Title: "x", Amount: money(1), Category: "Other", Kind: "transfer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.txs.Create(context.Background(), testUser, tt.in)
			assert.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestTransactionEvaluationTriggers(t *testing.T) {
	eval := &stubEvaluator{}
	listener := &countingListener{calls: map[string]int{}}
	svc := NewTransactionService(memory.New(), eval, listener)
	ctx := context.Background()

	income, err := svc.Create(ctx, testUser, TransactionInput{Title: "salary", Amount: money(1000), Category: "Salary", Kind: core.KindIncome})
	require.NoError(t, err)
	assert.Equal(t, 0, eval.calls, "income does not trigger evaluation")

	expense, err := svc.Create(ctx, testUser, TransactionInput{Title: "rent", Amount: money(500), Category: "Bills & Utilities"})
	require.NoError(t, err)
	assert.Equal(t, 1, eval.calls)

	title := "bonus"
	_, err = svc.Update(ctx, testUser, income.ID, TransactionPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 1, eval.calls, "income stays income")

	kind := core.KindIncome
	_, err = svc.Update(ctx, testUser, expense.ID, TransactionPatch{Kind: &kind})
	require.NoError(t, err)
	assert.Equal(t, 2, eval.calls, "an expense turning into income refreshes budgets")

	require.NoError(t, svc.Delete(ctx, testUser, expense.ID))
	assert.Equal(t, 2, eval.calls, "delete does not evaluate")
	assert.Equal(t, 5, listener.calls[testUser])
}

func TestTransactionCreateReturnsEvaluationError(t *testing.T) {
	eval := &stubEvaluator{err: errors.New("db gone")}
	store := memory.New()
	svc := NewTransactionService(store, eval)

	tx, err := svc.Create(context.Background(), testUser, TransactionInput{Title: "x", Amount: money(1), Category: "Other"})
	require.Error(t, err)
	assert.NotEmpty(t, tx.ID, "the transaction is stored before evaluation")

	_, getErr := store.GetTransaction(context.Background(), testUser, tx.ID)
	assert.NoError(t, getErr)
}

func TestTransactionUpdateRefreshesBudget(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t, "Shopping", 100, core.PeriodMonthly)
	tx := f.spend(t, "Shopping", 60)
	assert.Equal(t, int64(6000), f.budget(t, b.ID).CurrentSpent.Cents)

	amount := money(30)
	desc := ""
	updated, err := f.txs.Update(context.Background(), testUser, tx.ID, TransactionPatch{Amount: &amount, Description: &desc})
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "", *updated.Description)
	assert.Equal(t, int64(3000), f.budget(t, b.ID).CurrentSpent.Cents)
}

func TestTransactionNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	title := "x"

	_, err := f.txs.Update(ctx, testUser, "missing", TransactionPatch{Title: &title})
	assert.True(t, errors.Is(err, core.ErrNotFound), "update: %v", err)

	err = f.txs.Delete(ctx, testUser, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound), "delete: %v", err)

	tx := f.spend(t, "Other", 1)
	err = f.txs.Delete(ctx, "someone-else", tx.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound), "foreign delete: %v", err)
}

func TestTransactionListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, in := range []TransactionInput{
		{Title: "a", Amount: money(1), Category: "Travel", Date: core.NewDate(2025, 3, 1)},
		{Title: "b", Amount: money(1), Category: "Travel", Date: core.NewDate(2025, 3, 20)},
		{Title: "c", Amount: money(1), Category: "Salary", Kind: core.KindIncome, Date: core.NewDate(2025, 3, 10)},
	} {
		_, err := f.txs.Create(ctx, testUser, in)
		require.NoError(t, err)
	}

	all, err := f.txs.List(ctx, storage.TransactionFilter{UserID: testUser})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Title)

	travel, err := f.txs.List(ctx, storage.TransactionFilter{UserID: testUser, Category: "Travel", To: core.NewDate(2025, 3, 15)})
	require.NoError(t, err)
	require.Len(t, travel, 1)
	assert.Equal(t, "a", travel[0].Title)
}
