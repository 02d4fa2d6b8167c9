package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// ChangeListener is told when a user's transactions change, e.g. to drop
// cached analytics.
type ChangeListener interface {
	TransactionsChanged(userID string)
}

type TransactionInput struct {
	Title       string
	Amount      core.Money
	Category    string
	Kind        core.TransactionKind // defaults to expense
	Description *string
	Date        core.Date // defaults to today
}

// TransactionPatch changes only the non-nil fields.
type TransactionPatch struct {
	Title       *string
	Amount      *core.Money
	Category    *string
	Kind        *core.TransactionKind
	Description *string
	Date        *core.Date
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Category == nil &&
		p.Kind == nil && p.Description == nil && p.Date == nil
}

// TransactionService records transactions and keeps budgets current.
type TransactionService struct {
	store     storage.TransactionStore
	evaluator Evaluator
	listeners []ChangeListener
	now       func() time.Time
}

func NewTransactionService(store storage.TransactionStore, evaluator Evaluator, listeners ...ChangeListener) *TransactionService {
	return &TransactionService{
		store:     store,
		evaluator: evaluator,
		listeners: listeners,
		now:       time.Now,
	}
}

// Create stores a transaction and, for expenses, re-evaluates the owner's
// budgets. An evaluation failure is returned alongside the stored
// transaction.
func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	now := s.now()
	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Kind:        in.Kind,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   now.UTC(),
	}
	if tx.Kind == "" {
		tx.Kind = core.KindExpense
	}
	if tx.Date.IsZero() {
		tx.Date = core.DateOf(now)
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(userID)

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", tx.ID,
		"type", tx.Kind,
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents)

	if tx.Kind == core.KindExpense {
		if err := s.evaluate(ctx, userID); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

// List returns the user's transactions matching f, newest first.
func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Update applies patch. Budgets are re-evaluated when the transaction was
// or becomes an expense. An empty patch returns the stored transaction.
func (s *TransactionService) Update(ctx context.Context, userID, id string, patch TransactionPatch) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if patch.IsEmpty() {
		return tx, nil
	}
	wasExpense := tx.Kind == core.KindExpense

	if patch.Title != nil {
		tx.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Category != nil {
		tx.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Kind != nil {
		tx.Kind = *patch.Kind
	}
	if patch.Description != nil {
		desc := *patch.Description
		tx.Description = &desc
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(userID)

	if wasExpense || tx.Kind == core.KindExpense {
		if err := s.evaluate(ctx, userID); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

// Delete removes a transaction. Budgets are refreshed on their next
// evaluation.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.changed(userID)
	return nil
}

func (s *TransactionService) evaluate(ctx context.Context, userID string) error {
	if s.evaluator == nil {
		return nil
	}
	if _, err := s.evaluator.EvaluateUser(ctx, userID); err != nil {
		return fmt.Errorf("evaluate budgets: %w", err)
	}
	return nil
}

func (s *TransactionService) changed(userID string) {
	for _, l := range s.listeners {
		l.TransactionsChanged(userID)
	}
}
