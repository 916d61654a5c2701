package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

type incomeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Source     string          `json:"source"`
	Category   string          `json:"category"`
	Notes      string          `json:"notes"`
	ReceivedAt *time.Time      `json:"received_at"`
}

type incomeResponse struct {
	ID         int64           `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Source     string          `json:"source"`
	Category   string          `json:"category"`
	Notes      string          `json:"notes"`
	ReceivedAt time.Time       `json:"received_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toIncomeResponse(in core.Income) incomeResponse {
	return incomeResponse{
		ID:         in.ID,
		Amount:     in.Amount,
		Source:     in.Source,
		Category:   in.Category,
		Notes:      in.Notes,
		ReceivedAt: in.ReceivedAt,
		CreatedAt:  in.CreatedAt,
	}
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	income := core.Income{
		UserID:   userID,
		Amount:   req.Amount,
		Source:   req.Source,
		Category: req.Category,
		Notes:    req.Notes,
	}
	if req.ReceivedAt != nil {
		income.ReceivedAt = req.ReceivedAt.UTC()
	}
	if err := income.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.repo.CreateIncome(r.Context(), income)
	if err != nil {
		respondStoreError(w, r, err, "create income")
		return
	}

	s.invalidateSummaries(userID)
	writeJSON(w, http.StatusCreated, toIncomeResponse(created))
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The shared filter's category slot doubles as the income source.
	if v := r.URL.Query().Get("source"); v != "" {
		filter.Category = v
	}

	incomes, err := s.repo.ListIncomes(r.Context(), userID, filter)
	if err != nil {
		respondStoreError(w, r, err, "list incomes")
		return
	}

	out := make([]incomeResponse, 0, len(incomes))
	for _, in := range incomes {
		out = append(out, toIncomeResponse(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{"incomes": out})
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	income, err := s.repo.GetIncome(r.Context(), userID, id)
	if err != nil {
		respondStoreError(w, r, err, "get income")
		return
	}
	writeJSON(w, http.StatusOK, toIncomeResponse(income))
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	income := core.Income{
		ID:       id,
		UserID:   userID,
		Amount:   req.Amount,
		Source:   req.Source,
		Category: req.Category,
		Notes:    req.Notes,
	}
	if req.ReceivedAt != nil {
		income.ReceivedAt = req.ReceivedAt.UTC()
	}
	if err := income.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.repo.UpdateIncome(r.Context(), income); err != nil {
		respondStoreError(w, r, err, "update income")
		return
	}

	updated, err := s.repo.GetIncome(r.Context(), userID, id)
	if err != nil {
		respondStoreError(w, r, err, "get income")
		return
	}

	s.invalidateSummaries(userID)
	writeJSON(w, http.StatusOK, toIncomeResponse(updated))
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.DeleteIncome(r.Context(), userID, id); err != nil {
		respondStoreError(w, r, err, "delete income")
		return
	}

	s.invalidateSummaries(userID)
	w.WriteHeader(http.StatusNoContent)
}
