package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// AlertListLimit caps ListAlerts.
const AlertListLimit = 50

type BudgetInput struct {
	Category string
	Limit    core.Money
	Period   core.BudgetPeriod // defaults to monthly
}

type BudgetPatch struct {
	Limit    *core.Money
	IsActive *bool
}

type budgetServiceStore interface {
	storage.BudgetStore
	storage.AlertStore
}

// BudgetService manages budgets and their alerts. Reads never evaluate;
// callers that want fresh spending call Evaluate first.
type BudgetService struct {
	store     budgetServiceStore
	evaluator Evaluator
	resolver  *analytics.PeriodResolver
	now       func() time.Time
}

func NewBudgetService(store budgetServiceStore, evaluator Evaluator, resolver *analytics.PeriodResolver) *BudgetService {
	if resolver == nil {
		resolver = analytics.NewPeriodResolver()
	}
	return &BudgetService{
		store:     store,
		evaluator: evaluator,
		resolver:  resolver,
		now:       time.Now,
	}
}

// Create adds a budget covering the current month or week. Only one active
// budget may exist per category and period.
func (s *BudgetService) Create(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	period := in.Period
	if period == "" {
		period = core.PeriodMonthly
	}
	if !period.IsValid() {
		return core.Budget{}, fmt.Errorf("%w: unknown budget period %q", core.ErrInvalidInput, in.Period)
	}
	category := strings.TrimSpace(in.Category)

	_, err := s.store.FindActiveBudget(ctx, userID, category, period)
	switch {
	case err == nil:
		return core.Budget{}, fmt.Errorf("%w: an active %s budget for %q already exists",
			core.ErrConflict, period, category)
	case !errors.Is(err, core.ErrNotFound):
		return core.Budget{}, fmt.Errorf("find active budget: %w", err)
	}

	r := s.resolver.BudgetRange(period)
	b := core.Budget{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  category,
		Limit:     in.Limit,
		Period:    period,
		StartDate: r.Start,
		EndDate:   r.End,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.InsertBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		"budget_id", b.ID,
		"category", b.Category,
		"period", b.Period,
		"limit_cents", b.Limit.Cents,
		"start_date", b.StartDate.String(),
		"end_date", b.EndDate.String())
	return b, nil
}

// List returns every budget of the user as stored.
func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, storage.BudgetFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// Evaluate refreshes spending and alerts for every active budget of the user.
func (s *BudgetService) Evaluate(ctx context.Context, userID string) ([]core.BudgetAlert, error) {
	alerts, err := s.evaluator.EvaluateUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("evaluate budgets: %w", err)
	}
	return alerts, nil
}

// Update changes the limit and/or the active flag. Uniqueness of active
// budgets is not re-checked.
func (s *BudgetService) Update(ctx context.Context, userID, id string, patch BudgetPatch) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	if patch.Limit != nil {
		if err := patch.Limit.Validate(); err != nil {
			return core.Budget{}, err
		}
		b.Limit = *patch.Limit
	}
	if patch.IsActive != nil {
		b.IsActive = *patch.IsActive
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.store.DeleteBudget(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListAlerts returns the user's newest alerts.
func (s *BudgetService) ListAlerts(ctx context.Context, userID string) ([]core.BudgetAlert, error) {
	alerts, err := s.store.ListAlerts(ctx, userID, AlertListLimit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

func (s *BudgetService) MarkAlertRead(ctx context.Context, userID, id string) error {
	n, err := s.store.MarkAlertRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
	}
	return nil
}
