package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const alertColumns = `id, user_id, budget_id, kind, message, percentage, is_read, created_at`

func (s *Store) InsertAlert(ctx context.Context, a core.BudgetAlert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.BudgetID, string(a.Kind), a.Message, a.Percentage,
		boolToInt(a.IsRead), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) FindRecentAlert(ctx context.Context, budgetID string, kind core.AlertKind, since time.Time) (core.BudgetAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM budget_alerts
		  WHERE budget_id = ? AND kind = ? AND created_at >= ?
		  ORDER BY created_at DESC LIMIT 1`,
		budgetID, string(kind), formatTime(since))
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetAlert{}, notFound("recent alert for budget", budgetID)
	}
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("find recent alert: %w", err)
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, userID string, limit int) ([]core.BudgetAlert, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM budget_alerts WHERE user_id = ?
		  ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]core.BudgetAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (core.BudgetAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM budget_alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetAlert{}, notFound("alert", id)
	}
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *Store) MarkAlertRead(ctx context.Context, userID, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE budget_alerts SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("mark alert read: %w", err)
	}
	return res.RowsAffected()
}

func scanAlert(row rowScanner) (core.BudgetAlert, error) {
	var (
		a       core.BudgetAlert
		kind    string
		read    int
		created string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.BudgetID, &kind, &a.Message, &a.Percentage,
		&read, &created); err != nil {
		return core.BudgetAlert{}, err
	}
	a.Kind = core.AlertKind(kind)
	a.IsRead = read != 0
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return core.BudgetAlert{}, err
	}
	return a, nil
}
