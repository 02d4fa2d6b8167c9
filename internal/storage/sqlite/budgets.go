package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const budgetColumns = `id, user_id, category, limit_cents, period, start_date, end_date,
	current_spent_cents, is_active, created_at`

func (s *Store) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Category, b.Limit.Cents, string(b.Period), b.StartDate.String(),
		b.EndDate.String(), b.CurrentSpent.Cents, boolToInt(b.IsActive), formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	return scanBudgetRow(row, id)
}

func (s *Store) FindActiveBudget(ctx context.Context, userID, category string, period core.BudgetPeriod) (core.Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		  WHERE user_id = ? AND category = ? AND period = ? AND is_active = 1
		  LIMIT 1`, userID, category, string(period))
	return scanBudgetRow(row, category)
}

func (s *Store) ListBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	if f.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, f.UserID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET limit_cents = ?, is_active = ? WHERE id = ? AND user_id = ?`,
		b.Limit.Cents, boolToInt(b.IsActive), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireAffected(res, "budget", b.ID)
}

func (s *Store) SetBudgetSpent(ctx context.Context, id string, spent core.Money) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET current_spent_cents = ? WHERE id = ?`, spent.Cents, id)
	if err != nil {
		return fmt.Errorf("set budget spent: %w", err)
	}
	return requireAffected(res, "budget", id)
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete budget: %w", err)
	}
	return res.RowsAffected()
}

func scanBudgetRow(row *sql.Row, key string) (core.Budget, error) {
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, notFound("budget", key)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                   core.Budget
		period              string
		start, end, created string
		active              int
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.Limit.Cents, &period, &start, &end,
		&b.CurrentSpent.Cents, &active, &created); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	b.IsActive = active != 0

	var err error
	if b.StartDate, err = parseDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = parseDate(end); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}
