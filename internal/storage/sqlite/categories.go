package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

const categoryColumns = `id, user_id, name, icon, goal_cents, created_at`

func (s *Store) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Icon, nullCents(c.Goal), formatTime(c.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	return scanCategoryRow(row, id)
}

func (s *Store) FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? AND user_id = ?`, name, userID)
	return scanCategoryRow(row, name)
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, icon = ?, goal_cents = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Icon, nullCents(c.Goal), c.ID, c.UserID)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(res, "category", c.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	return res.RowsAffected()
}

func scanCategoryRow(row *sql.Row, key string) (core.Category, error) {
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, notFound("category", key)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c       core.Category
		goal    sql.NullInt64
		created string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &goal, &created); err != nil {
		return core.Category{}, err
	}
	c.Goal = moneyPtr(goal)
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.Category{}, err
	}
	return c, nil
}
