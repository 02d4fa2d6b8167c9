package http

import (
	"net/http"
	"sync/atomic"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type budgetRequest struct {
	Category string            `json:"category"`
	Limit    core.Money        `json:"limit_amount"`
	Period   core.BudgetPeriod `json:"period"`
}

type budgetUpdateRequest struct {
	Limit    *core.Money `json:"limit_amount"`
	IsActive *bool       `json:"is_active"`
}

type budgetResponse struct {
	Message string      `json:"message"`
	Budget  core.Budget `json:"budget"`
}

type evaluationResponse struct {
	Message string             `json:"message"`
	Alerts  []core.BudgetAlert `json:"alerts"`
	Budgets []core.Budget      `json:"budgets"`
}

// refreshBudgets evaluates the user's budgets unless the request opted out
// with refresh=false. It reports false after writing an error response.
func (s *Server) refreshBudgets(w http.ResponseWriter, r *http.Request) bool {
	refresh, err := wantsRefresh(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpEvaluate, err)
		return false
	}
	if !refresh {
		return true
	}
	if _, err := s.evaluate(r); err != nil {
		writeError(w, r, log.OpEvaluate, err)
		return false
	}
	return true
}

func (s *Server) evaluate(r *http.Request) ([]core.BudgetAlert, error) {
	alerts, err := s.budgets.Evaluate(r.Context(), currentUser(r).ID)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&s.appMetrics.alertsRaised, int64(len(alerts)))
	return alerts, nil
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	if !s.refreshBudgets(w, r) {
		return
	}
	budgets, err := s.budgets.List(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(nonNil(budgets)).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	b, err := s.budgets.Create(r.Context(), currentUser(r).ID, services.BudgetInput{
		Category: sanitizeInput(req.Category),
		Limit:    req.Limit,
		Period:   req.Period,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(budgetResponse{Message: "Budget created successfully", Budget: b}).
		Write(w)
}

// handleEvaluateBudgets refreshes spending and returns the alerts raised by
// this pass along with the refreshed budgets.
func (s *Server) handleEvaluateBudgets(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.evaluate(r)
	if err != nil {
		writeError(w, r, log.OpEvaluate, err)
		return
	}
	budgets, err := s.budgets.List(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(evaluationResponse{
		Message: "Budgets evaluated",
		Alerts:  nonNil(alerts),
		Budgets: nonNil(budgets),
	}).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	b, err := s.budgets.Update(r.Context(), currentUser(r).ID, r.PathValue("id"), services.BudgetPatch{
		Limit:    req.Limit,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().
		Body(budgetResponse{Message: "Budget updated successfully", Budget: b}).
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Delete(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("Budget deleted successfully").Write(w)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.refreshBudgets(w, r) {
		return
	}
	alerts, err := s.budgets.ListAlerts(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(nonNil(alerts)).Write(w)
}

func (s *Server) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.MarkAlertRead(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Message("Alert marked as read").Write(w)
}

// nonNil makes empty listings encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
