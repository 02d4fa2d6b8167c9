// Package storage defines the persistence ports used by the services and
// shared helpers for their implementations (memory, sqlite, postgres).
//
// Every lookup of a single record reports absence as core.ErrNotFound.
package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// TransactionFilter selects a user's transactions. Zero-valued fields do not
// constrain the result. From and To are inclusive.
type TransactionFilter struct {
	UserID   string
	Category string
	Kind     core.TransactionKind
	From     core.Date
	To       core.Date
}

// Matches reports whether tx satisfies f.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if tx.UserID != f.UserID {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	return true
}

type BudgetFilter struct {
	UserID     string
	ActiveOnly bool
}

// Ports for outbound adapters.
type (
	UserStore interface {
		InsertUser(ctx context.Context, u core.User) error
		GetUserByID(ctx context.Context, id string) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
	}

	TransactionStore interface {
		InsertTransaction(ctx context.Context, tx core.Transaction) error
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		// ListTransactions returns matches newest first (date, then creation time).
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) (deleted int64, err error)
	}

	CategoryStore interface {
		InsertCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error)
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, userID, id string) (deleted int64, err error)
	}

	BudgetStore interface {
		InsertBudget(ctx context.Context, b core.Budget) error
		GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
		FindActiveBudget(ctx context.Context, userID, category string, period core.BudgetPeriod) (core.Budget, error)
		ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error)
		// UpdateBudget persists Limit and IsActive only.
		UpdateBudget(ctx context.Context, b core.Budget) error
		SetBudgetSpent(ctx context.Context, id string, spent core.Money) error
		DeleteBudget(ctx context.Context, userID, id string) (deleted int64, err error)
	}

	AlertStore interface {
		InsertAlert(ctx context.Context, a core.BudgetAlert) error
		// FindRecentAlert returns the newest alert of kind for the budget
		// created at or after since.
		FindRecentAlert(ctx context.Context, budgetID string, kind core.AlertKind, since time.Time) (core.BudgetAlert, error)
		// ListAlerts returns the newest alerts first, at most limit.
		ListAlerts(ctx context.Context, userID string, limit int) ([]core.BudgetAlert, error)
		GetAlert(ctx context.Context, id string) (core.BudgetAlert, error)
		MarkAlertRead(ctx context.Context, userID, id string) (matched int64, err error)
	}

	// Store aggregates every port behind a single handle.
	Store interface {
		UserStore
		TransactionStore
		CategoryStore
		BudgetStore
		AlertStore
		Ping(ctx context.Context) error
		Close() error
	}
)
