package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// expenseRequest is shared by create and update. On update only the
// fields present in the body change.
type expenseRequest struct {
	Title       *string               `json:"title"`
	Amount      *core.Money           `json:"amount"`
	Category    *string               `json:"category"`
	Kind        *core.TransactionKind `json:"type"`
	Description *string               `json:"description"`
	Date        *core.Date            `json:"date"`
}

type expenseResponse struct {
	Message string           `json:"message"`
	Expense core.Transaction `json:"expense"`
}

func normalizeKind(k *core.TransactionKind) *core.TransactionKind {
	if k == nil {
		return nil
	}
	v := core.TransactionKind(strings.ToLower(strings.TrimSpace(string(*k))))
	return &v
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(currentUser(r).ID, r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(nonNil(txs)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, log.OpCreate, fmt.Errorf("%w: amount is required", core.ErrInvalidInput))
		return
	}

	in := services.TransactionInput{
		Amount:      *req.Amount,
		Description: sanitizePtr(req.Description),
	}
	if req.Title != nil {
		in.Title = sanitizeInput(*req.Title)
	}
	if req.Category != nil {
		in.Category = sanitizeInput(*req.Category)
	}
	if kind := normalizeKind(req.Kind); kind != nil {
		in.Kind = *kind
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	tx, err := s.transactions.Create(r.Context(), currentUser(r).ID, in)
	if tx.ID != "" {
		atomic.AddInt64(&s.appMetrics.transactionsCreated, 1)
	}
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.NewFields().WithTransaction(tx.ID, tx.Category, tx.Amount.Cents).ToSlice()...)
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(expenseResponse{Message: "Expense created successfully", Expense: tx}).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	tx, err := s.transactions.Update(r.Context(), currentUser(r).ID, r.PathValue("id"), services.TransactionPatch{
		Title:       sanitizePtr(req.Title),
		Amount:      req.Amount,
		Category:    sanitizePtr(req.Category),
		Kind:        normalizeKind(req.Kind),
		Description: sanitizePtr(req.Description),
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().
		Body(expenseResponse{Message: "Expense updated successfully", Expense: tx}).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("Expense deleted successfully").Write(w)
}
