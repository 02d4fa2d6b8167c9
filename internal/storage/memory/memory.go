// Package memory is an in-process storage.Store used for development and
// tests. Data is lost on exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	users        map[string]core.User
	transactions []core.Transaction
	categories   []core.Category
	budgets      []core.Budget
	alerts       []core.BudgetAlert
}

func New() *Store {
	return &Store{users: make(map[string]core.User)}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMoney(p *core.Money) *core.Money {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Users

func (s *Store) InsertUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
	}
	u.Email = cloneString(u.Email)
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, notFound("user", id)
	}
	u.Email = cloneString(u.Email)
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			u.Email = cloneString(u.Email)
			return u, nil
		}
	}
	return core.User{}, notFound("user", username)
}

// Transactions

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.Description = cloneString(tx.Description)
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ID == id && tx.UserID == userID {
			tx.Description = cloneString(tx.Description)
			return tx, nil
		}
	}
	return core.Transaction{}, notFound("transaction", id)
}

func (s *Store) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.transactions {
		if f.Matches(tx) {
			tx.Description = cloneString(tx.Description)
			out = append(out, tx)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.transactions {
		if existing.ID == tx.ID && existing.UserID == tx.UserID {
			tx.Description = cloneString(tx.Description)
			tx.CreatedAt = existing.CreatedAt
			s.transactions[i] = tx
			return nil
		}
	}
	return notFound("transaction", tx.ID)
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.transactions {
		if tx.ID == id && tx.UserID == userID {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// Categories

func (s *Store) InsertCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
		}
	}
	c.Goal = cloneMoney(c.Goal)
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id && c.UserID == userID {
			c.Goal = cloneMoney(c.Goal)
			return c, nil
		}
	}
	return core.Category{}, notFound("category", id)
}

func (s *Store) FindCategoryByName(_ context.Context, userID, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Name == name && c.UserID == userID {
			c.Goal = cloneMoney(c.Goal)
			return c, nil
		}
	}
	return core.Category{}, notFound("category", name)
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			c.Goal = cloneMoney(c.Goal)
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.categories {
		if existing.ID == c.ID && existing.UserID == c.UserID {
			c.Goal = cloneMoney(c.Goal)
			c.CreatedAt = existing.CreatedAt
			s.categories[i] = c
			return nil
		}
	}
	return notFound("category", c.ID)
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.ID == id && c.UserID == userID {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// Budgets

func (s *Store) InsertBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = append(s.budgets, b)
	return nil
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.ID == id && b.UserID == userID {
			return b, nil
		}
	}
	return core.Budget{}, notFound("budget", id)
}

func (s *Store) FindActiveBudget(_ context.Context, userID, category string, period core.BudgetPeriod) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.UserID == userID && b.Category == category && b.Period == period && b.IsActive {
			return b, nil
		}
	}
	return core.Budget{}, notFound("active budget", category)
}

func (s *Store) ListBudgets(_ context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID != f.UserID || (f.ActiveOnly && !b.IsActive) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].ID == b.ID && s.budgets[i].UserID == b.UserID {
			s.budgets[i].Limit = b.Limit
			s.budgets[i].IsActive = b.IsActive
			return nil
		}
	}
	return notFound("budget", b.ID)
}

func (s *Store) SetBudgetSpent(_ context.Context, id string, spent core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].ID == id {
			s.budgets[i].CurrentSpent = spent
			return nil
		}
	}
	return notFound("budget", id)
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.budgets {
		if b.ID == id && b.UserID == userID {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// Alerts

func (s *Store) InsertAlert(_ context.Context, a core.BudgetAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *Store) FindRecentAlert(_ context.Context, budgetID string, kind core.AlertKind, since time.Time) (core.BudgetAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		found  core.BudgetAlert
		exists bool
	)
	for _, a := range s.alerts {
		if a.BudgetID != budgetID || a.Kind != kind || a.CreatedAt.Before(since) {
			continue
		}
		if !exists || a.CreatedAt.After(found.CreatedAt) {
			found, exists = a, true
		}
	}
	if !exists {
		return core.BudgetAlert{}, notFound("recent alert for budget", budgetID)
	}
	return found, nil
}

func (s *Store) ListAlerts(_ context.Context, userID string, limit int) ([]core.BudgetAlert, error) {
	s.mu.Lock()
	out := make([]core.BudgetAlert, 0)
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetAlert(_ context.Context, id string) (core.BudgetAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.BudgetAlert{}, notFound("alert", id)
}

func (s *Store) MarkAlertRead(_ context.Context, userID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id && s.alerts[i].UserID == userID {
			s.alerts[i].IsRead = true
			return 1, nil
		}
	}
	return 0, nil
}
