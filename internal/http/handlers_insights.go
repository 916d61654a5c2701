package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/Andrew-O39/expense-vista/internal/assistant"
	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if period == "" {
		period = assistant.PeriodMonth
	}

	key := s.summaryCacheKey(userID, period)
	if cached, ok := s.summaryCache.Get(key); ok {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.summaries.ForPeriod(r.Context(), userID, period)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "build summary failed",
			applog.FieldUserID, userID, applog.FieldPeriod, period, applog.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	q := r.URL.Query()
	period := strings.TrimSpace(q.Get("period"))
	if period == "" {
		period = assistant.PeriodMonth
	}

	overview, err := s.summaries.Overview(r.Context(), userID, period, q.Get("category"))
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "build overview failed",
			applog.FieldUserID, userID, applog.FieldPeriod, period, applog.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

type alertResponse struct {
	ID          int64     `json:"id"`
	BudgetID    int64     `json:"budget_id"`
	Category    string    `json:"category"`
	Period      string    `json:"period"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	PeriodStart time.Time `json:"period_start"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAlertResponse(a core.AlertLog) alertResponse {
	return alertResponse{
		ID:          a.ID,
		BudgetID:    a.BudgetID,
		Category:    a.Category,
		Period:      a.Period,
		Type:        a.Type,
		Message:     a.Message,
		PeriodStart: a.PeriodStart,
		CreatedAt:   a.CreatedAt,
	}
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := s.repo.ListAlertLogs(r.Context(), userID, filter)
	if err != nil {
		respondStoreError(w, r, err, "list alerts")
		return
	}

	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusUnprocessableEntity, "message must not be empty")
		return
	}

	reply, err := s.assistant.Answer(r.Context(), userID, req.Message)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "assistant answer failed",
			applog.FieldUserID, userID, applog.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
