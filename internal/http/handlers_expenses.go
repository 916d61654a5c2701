package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

type expenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Notes       string          `json:"notes"`
	CreatedAt   *time.Time      `json:"created_at"`
}

type expenseResponse struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Amount:      e.Amount,
		Description: e.Description,
		Category:    e.Category,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt,
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense := core.Expense{
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Notes:       req.Notes,
	}
	if req.CreatedAt != nil {
		expense.CreatedAt = req.CreatedAt.UTC()
	}
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.repo.CreateExpense(r.Context(), expense)
	if err != nil {
		respondStoreError(w, r, err, "create expense")
		return
	}

	s.invalidateSummaries(userID)
	s.learnCategory(r.Context(), userID, created.Description, created.Category)
	s.checkBudgetsAsync(userID, created.Category)
	writeJSON(w, http.StatusCreated, toExpenseResponse(created))
}

// handleSuggestCategory proposes a category for a not-yet-saved expense
// from the user's history and keyword rules.
func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	suggestion, err := s.suggestions.SuggestCategory(r.Context(), userID, req.Description)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "suggest category failed",
			applog.FieldUserID, userID, applog.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := s.repo.ListExpenses(r.Context(), userID, filter)
	if err != nil {
		respondStoreError(w, r, err, "list expenses")
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := s.repo.GetExpense(r.Context(), userID, id)
	if err != nil {
		respondStoreError(w, r, err, "get expense")
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense := core.Expense{
		ID:          id,
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Notes:       req.Notes,
	}
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.repo.UpdateExpense(r.Context(), expense); err != nil {
		respondStoreError(w, r, err, "update expense")
		return
	}

	updated, err := s.repo.GetExpense(r.Context(), userID, id)
	if err != nil {
		respondStoreError(w, r, err, "get expense")
		return
	}

	s.invalidateSummaries(userID)
	s.learnCategory(r.Context(), userID, updated.Description, updated.Category)
	s.checkBudgetsAsync(userID, updated.Category)
	writeJSON(w, http.StatusOK, toExpenseResponse(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.DeleteExpense(r.Context(), userID, id); err != nil {
		respondStoreError(w, r, err, "delete expense")
		return
	}

	s.invalidateSummaries(userID)
	w.WriteHeader(http.StatusNoContent)
}

// learnCategory remembers the description-to-category pairing for future
// suggestions. Failures only cost suggestion quality, so they are logged
// and swallowed.
func (s *Server) learnCategory(ctx context.Context, userID int64, description, category string) {
	if s.suggestions == nil {
		return
	}
	if err := s.suggestions.Learn(ctx, userID, description, category); err != nil {
		s.log.Error("learn category mapping failed",
			applog.FieldUserID, userID,
			applog.FieldCategory, category,
			applog.FieldError, err.Error())
	}
}

// checkBudgetsAsync runs alert evaluation off the request path. The request
// context is gone by the time the check runs, so it gets its own deadline.
func (s *Server) checkBudgetsAsync(userID int64, category string) {
	if s.alerts == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.alerts.CheckCategory(ctx, userID, category); err != nil {
			s.log.Error("budget check failed",
				applog.FieldUserID, userID,
				applog.FieldCategory, category,
				applog.FieldError, err.Error())
		}
	}()
}
