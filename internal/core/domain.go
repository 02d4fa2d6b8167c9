package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

type TransactionKind string

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

// IsValid reports whether k is a known transaction kind.
func (k TransactionKind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

type BudgetPeriod string

const (
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodWeekly  BudgetPeriod = "weekly"
)

func (p BudgetPeriod) IsValid() bool {
	return p == PeriodMonthly || p == PeriodWeekly
}

type AlertKind string

const (
	AlertWarning  AlertKind = "warning"
	AlertExceeded AlertKind = "exceeded"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		Email        *string   `json:"email,omitempty"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Title       string          `json:"title"`
		Amount      Money           `json:"amount"`
		Category    string          `json:"category"`
		Kind        TransactionKind `json:"type"`
		Description *string         `json:"description"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Category is a user-defined category. Predefined categories are not
	// stored; see PredefinedCategories.
	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		Goal      *Money    `json:"goal"`
		CreatedAt time.Time `json:"created_at"`
	}

	Budget struct {
		ID           string       `json:"id"`
		UserID       string       `json:"user_id"`
		Category     string       `json:"category"`
		Limit        Money        `json:"limit_amount"`
		Period       BudgetPeriod `json:"period"`
		StartDate    Date         `json:"start_date"`
		EndDate      Date         `json:"end_date"`
		CurrentSpent Money        `json:"current_spent"`
		IsActive     bool         `json:"is_active"`
		CreatedAt    time.Time    `json:"created_at"`
	}

	BudgetAlert struct {
		ID         string    `json:"id"`
		UserID     string    `json:"user_id"`
		BudgetID   string    `json:"budget_id"`
		Kind       AlertKind `json:"alert_type"`
		Message    string    `json:"message"`
		Percentage float64   `json:"percentage"`
		IsRead     bool      `json:"is_read"`
		CreatedAt  time.Time `json:"created_at"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before and After compare calendar days only.
func (d Date) Before(o Date) bool { return d.String() < o.String() }
func (d Date) After(o Date) bool  { return d.String() > o.String() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return fmt.Errorf("%w: title too long (max 200 characters)", ErrInvalidInput)
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, t.Kind)
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategory
	}
	if len(name) > 50 {
		return fmt.Errorf("%w: category name too long (max 50 characters)", ErrInvalidInput)
	}
	if c.Goal != nil && c.Goal.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Limit.Validate(); err != nil {
		return err
	}
	if !b.Period.IsValid() {
		return fmt.Errorf("%w: unknown budget period %q", ErrInvalidInput, b.Period)
	}
	if b.EndDate.Before(b.StartDate) {
		return fmt.Errorf("%w: budget end date precedes start date", ErrInvalidInput)
	}
	return nil
}
