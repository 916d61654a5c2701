package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

type budgetRequest struct {
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Category    string          `json:"category"`
	Period      string          `json:"period"`
	Notes       string          `json:"notes"`
}

type budgetResponse struct {
	ID          int64           `json:"id"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Category    string          `json:"category"`
	Period      string          `json:"period"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:          b.ID,
		LimitAmount: b.LimitAmount,
		Category:    b.Category,
		Period:      b.Period,
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	budget := core.Budget{
		UserID:      userID,
		LimitAmount: req.LimitAmount,
		Category:    req.Category,
		Period:      req.Period,
		Notes:       req.Notes,
	}
	if err := budget.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.repo.CreateBudget(r.Context(), budget)
	if err != nil {
		respondStoreError(w, r, err, "create budget")
		return
	}

	s.invalidateSummaries(userID)
	writeJSON(w, http.StatusCreated, toBudgetResponse(created))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	period := r.URL.Query().Get("period")
	if period != "" && !core.ValidPeriod(period) {
		writeError(w, http.StatusBadRequest, "invalid period")
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	budgets, err := s.repo.ListBudgets(r.Context(), userID, period, filter)
	if err != nil {
		respondStoreError(w, r, err, "list budgets")
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": out})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	budget, err := s.repo.GetBudget(r.Context(), userID, id)
	if err != nil {
		respondStoreError(w, r, err, "get budget")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(budget))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	budget := core.Budget{
		ID:          id,
		UserID:      userID,
		LimitAmount: req.LimitAmount,
		Category:    req.Category,
		Period:      req.Period,
		Notes:       req.Notes,
	}
	if err := budget.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.repo.UpdateBudget(r.Context(), budget); err != nil {
		respondStoreError(w, r, err, "update budget")
		return
	}

	updated, err := s.repo.GetBudget(r.Context(), userID, id)
	if err != nil {
		respondStoreError(w, r, err, "get budget")
		return
	}

	s.invalidateSummaries(userID)
	writeJSON(w, http.StatusOK, toBudgetResponse(updated))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.DeleteBudget(r.Context(), userID, id); err != nil {
		respondStoreError(w, r, err, "delete budget")
		return
	}

	s.invalidateSummaries(userID)
	w.WriteHeader(http.StatusNoContent)
}
