// Package postgres implements storage.Store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

// Open migrates the database at databaseURL and returns a pooled store.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
}

func requireAffected(tag pgconn.CommandTag, what, id string) error {
	if tag.RowsAffected() == 0 {
		return notFound(what, id)
	}
	return nil
}

func centsPtr(m *core.Money) *int64 {
	if m == nil {
		return nil
	}
	v := m.Cents
	return &v
}

func moneyPtr(c *int64) *core.Money {
	if c == nil {
		return nil
	}
	return &core.Money{Cents: *c}
}

// Users

const userColumns = `id, username, email, password_hash, created_at`

func (s *Store) InsertUser(ctx context.Context, u core.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *Store) getUser(ctx context.Context, query, key string) (core.User, error) {
	var u core.User
	err := s.pool.QueryRow(ctx, query, key).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, notFound("user", key)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// Transactions

const transactionColumns = `id, user_id, title, amount_cents, category, kind, description, date, created_at`

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.ID, tx.UserID, tx.Title, tx.Amount.Cents, tx.Category, string(tx.Kind),
		tx.Description, tx.Date.Time, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, notFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	args := []any{f.UserID}
	where := []string{"user_id = $1"}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if !f.From.IsZero() {
		add("date >= $%d", f.From.Time)
	}
	if !f.To.IsZero() {
		add("date <= $%d", f.To.Time)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+strings.Join(where, " AND ")+
			` ORDER BY date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions
		    SET title = $1, amount_cents = $2, category = $3, kind = $4, description = $5, date = $6
		  WHERE id = $7 AND user_id = $8`,
		tx.Title, tx.Amount.Cents, tx.Category, string(tx.Kind), tx.Description, tx.Date.Time,
		tx.ID, tx.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(tag, "transaction", tx.ID)
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx   core.Transaction
		kind string
		date time.Time
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Title, &tx.Amount.Cents, &tx.Category, &kind,
		&tx.Description, &date, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.TransactionKind(kind)
	tx.Date = core.DateOf(date)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

// Categories

const categoryColumns = `id, user_id, name, icon, goal_cents, created_at`

func (s *Store) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Name, c.Icon, centsPtr(c.Goal), c.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	return s.getCategory(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *Store) FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	return s.getCategory(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = $1 AND user_id = $2`, name, userID)
}

func (s *Store) getCategory(ctx context.Context, query, key, userID string) (core.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, query, key, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, notFound("category", key)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY created_at, name`, userID)
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
	tag, err := s.pool.Exec(ctx,
		`UPDATE categories SET name = $1, icon = $2, goal_cents = $3 WHERE id = $4 AND user_id = $5`,
		c.Name, c.Icon, centsPtr(c.Goal), c.ID, c.UserID)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(tag, "category", c.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCategory(row pgx.Row) (core.Category, error) {
	var (
		c    core.Category
		goal *int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &goal, &c.CreatedAt); err != nil {
		return core.Category{}, err
	}
	c.Goal = moneyPtr(goal)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// Budgets

const budgetColumns = `id, user_id, category, limit_cents, period, start_date, end_date,
	current_spent_cents, is_active, created_at`

func (s *Store) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.UserID, b.Category, b.Limit.Cents, string(b.Period), b.StartDate.Time, b.EndDate.Time,
		b.CurrentSpent.Cents, b.IsActive, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	return budgetFromRow(row, id)
}

func (s *Store) FindActiveBudget(ctx context.Context, userID, category string, period core.BudgetPeriod) (core.Budget, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		  WHERE user_id = $1 AND category = $2 AND period = $3 AND is_active
		  LIMIT 1`, userID, category, string(period))
	return budgetFromRow(row, category)
}

func (s *Store) ListBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = $1`
	if f.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, f.UserID)
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
	tag, err := s.pool.Exec(ctx,
		`UPDATE budgets SET limit_cents = $1, is_active = $2 WHERE id = $3 AND user_id = $4`,
		b.Limit.Cents, b.IsActive, b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireAffected(tag, "budget", b.ID)
}

func (s *Store) SetBudgetSpent(ctx context.Context, id string, spent core.Money) error {
	tag, err := s.pool.Exec(ctx, `UPDATE budgets SET current_spent_cents = $1 WHERE id = $2`, spent.Cents, id)
	if err != nil {
		return fmt.Errorf("set budget spent: %w", err)
	}
	return requireAffected(tag, "budget", id)
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete budget: %w", err)
	}
	return tag.RowsAffected(), nil
}

func budgetFromRow(row pgx.Row, key string) (core.Budget, error) {
	b, err := scanBudget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, notFound("budget", key)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b          core.Budget
		period     string
		start, end time.Time
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.Limit.Cents, &period, &start, &end,
		&b.CurrentSpent.Cents, &b.IsActive, &b.CreatedAt); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	b.StartDate = core.DateOf(start)
	b.EndDate = core.DateOf(end)
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

// Alerts

const alertColumns = `id, user_id, budget_id, kind, message, percentage, is_read, created_at`

func (s *Store) InsertAlert(ctx context.Context, a core.BudgetAlert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO budget_alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.BudgetID, string(a.Kind), a.Message, a.Percentage, a.IsRead, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) FindRecentAlert(ctx context.Context, budgetID string, kind core.AlertKind, since time.Time) (core.BudgetAlert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM budget_alerts
		  WHERE budget_id = $1 AND kind = $2 AND created_at >= $3
		  ORDER BY created_at DESC LIMIT 1`, budgetID, string(kind), since)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.BudgetAlert{}, notFound("recent alert for budget", budgetID)
	}
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("find recent alert: %w", err)
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, userID string, limit int) ([]core.BudgetAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM budget_alerts WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM budget_alerts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.BudgetAlert{}, notFound("alert", id)
	}
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *Store) MarkAlertRead(ctx context.Context, userID, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE budget_alerts SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("mark alert read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAlert(row pgx.Row) (core.BudgetAlert, error) {
	var (
		a    core.BudgetAlert
		kind string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.BudgetID, &kind, &a.Message, &a.Percentage,
		&a.IsRead, &a.CreatedAt); err != nil {
		return core.BudgetAlert{}, err
	}
	a.Kind = core.AlertKind(kind)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
