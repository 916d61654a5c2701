package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/assistant"
	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// SummaryStore is the aggregation surface the summary builder reads from.
type SummaryStore interface {
	SumExpenses(ctx context.Context, userID int64, start, end time.Time, category string) (decimal.Decimal, error)
	SumIncome(ctx context.Context, userID int64, start, end time.Time, source string) (decimal.Decimal, error)
	SumExpensesByCategory(ctx context.Context, userID int64, start, end time.Time) ([]core.CategoryTotal, error)
	BudgetsFor(ctx context.Context, userID int64, period, category string, createdBefore time.Time) ([]core.Budget, error)
}

// BudgetStatus is one budget's standing inside a summary window.
type BudgetStatus struct {
	BudgetID  int64           `json:"budget_id"`
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Summary is a period report combining income, spending, the per-category
// breakdown and the standing of every budget whose class matches the window.
type Summary struct {
	Period      string               `json:"period"`
	Label       string               `json:"label"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	TotalSpent  decimal.Decimal      `json:"total_spent"`
	TotalIncome decimal.Decimal      `json:"total_income"`
	Net         decimal.Decimal      `json:"net"`
	ByCategory  []core.CategoryTotal `json:"by_category"`
	Budgets     []BudgetStatus       `json:"budgets"`
}

type SummaryService struct {
	store SummaryStore
	log   *applog.Logger
	now   func() time.Time
}

func NewSummaryService(store SummaryStore, logger *applog.Logger) *SummaryService {
	return &SummaryService{
		store: store,
		log:   logger.WithComponent(applog.ComponentSummary),
		now:   time.Now,
	}
}

// ForPeriod builds the summary for a canonical period key. Unknown keys
// report the current month.
func (s *SummaryService) ForPeriod(ctx context.Context, userID int64, periodKey string) (Summary, error) {
	now := s.now().UTC()
	window := assistant.RangeForKey(periodKey, now)

	spent, err := s.store.SumExpenses(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return Summary{}, fmt.Errorf("sum expenses: %w", err)
	}
	income, err := s.store.SumIncome(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return Summary{}, fmt.Errorf("sum income: %w", err)
	}
	byCategory, err := s.store.SumExpensesByCategory(ctx, userID, window.Start, window.End)
	if err != nil {
		return Summary{}, fmt.Errorf("sum by category: %w", err)
	}

	budgets, err := s.budgetStatuses(ctx, userID, window)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Period:      window.Key,
		Label:       window.Label,
		Start:       window.Start,
		End:         window.End,
		TotalSpent:  spent,
		TotalIncome: income,
		Net:         income.Sub(spent),
		ByCategory:  byCategory,
		Budgets:     budgets,
	}, nil
}

// Overview is the income-versus-spending view of a period. The category
// breakdown is present only when no single category was requested.
type Overview struct {
	Period        string               `json:"period"`
	Label         string               `json:"label"`
	Start         time.Time            `json:"start"`
	End           time.Time            `json:"end"`
	Category      string               `json:"category,omitempty"`
	TotalExpenses decimal.Decimal      `json:"total_expenses"`
	TotalIncome   decimal.Decimal      `json:"total_income"`
	NetBalance    decimal.Decimal      `json:"net_balance"`
	Breakdown     []core.CategoryTotal `json:"breakdown,omitempty"`
}

// Overview reports income against spending for a canonical period key.
// A category narrows the expense side only; income is always the user's
// full income for the window.
func (s *SummaryService) Overview(ctx context.Context, userID int64, periodKey, category string) (Overview, error) {
	now := s.now().UTC()
	window := assistant.RangeForKey(periodKey, now)
	category = strings.ToLower(strings.TrimSpace(category))

	spent, err := s.store.SumExpenses(ctx, userID, window.Start, window.End, category)
	if err != nil {
		return Overview{}, fmt.Errorf("sum expenses: %w", err)
	}
	income, err := s.store.SumIncome(ctx, userID, window.Start, window.End, "")
	if err != nil {
		return Overview{}, fmt.Errorf("sum income: %w", err)
	}

	out := Overview{
		Period:        window.Key,
		Label:         window.Label,
		Start:         window.Start,
		End:           window.End,
		Category:      category,
		TotalExpenses: spent,
		TotalIncome:   income,
		NetBalance:    income.Sub(spent),
	}
	if category == "" {
		out.Breakdown, err = s.store.SumExpensesByCategory(ctx, userID, window.Start, window.End)
		if err != nil {
			return Overview{}, fmt.Errorf("sum by category: %w", err)
		}
	}
	return out, nil
}

func (s *SummaryService) budgetStatuses(ctx context.Context, userID int64, window assistant.Range) ([]BudgetStatus, error) {
	class := classForKey(window.Key)
	if class == "" {
		return nil, nil
	}

	rows, err := s.store.BudgetsFor(ctx, userID, class, "", window.End)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}

	// Newest first; keep the latest definition per category.
	seen := make(map[string]bool, len(rows))
	var statuses []BudgetStatus
	for _, b := range rows {
		if seen[b.Category] || !b.LimitAmount.IsPositive() {
			continue
		}
		seen[b.Category] = true

		spent, err := s.store.SumExpenses(ctx, userID, window.Start, window.End, b.Category)
		if err != nil {
			return nil, fmt.Errorf("sum %s spending: %w", b.Category, err)
		}
		statuses = append(statuses, BudgetStatus{
			BudgetID:  b.ID,
			Category:  b.Category,
			Limit:     b.LimitAmount,
			Spent:     spent,
			Remaining: b.LimitAmount.Sub(spent),
		})
	}
	return statuses, nil
}

// classForKey maps a canonical period key onto the budget period class
// whose budgets apply to that window. Past-flavored keys share the class of
// their current counterpart.
func classForKey(key string) string {
	switch key {
	case assistant.PeriodWeek, assistant.PeriodLastWeek:
		return core.PeriodWeekly
	case assistant.PeriodMonth, assistant.PeriodLastMonth:
		return core.PeriodMonthly
	case assistant.PeriodQuarter, assistant.PeriodLastQuarter:
		return core.PeriodQuarterly
	case assistant.PeriodHalfYear, assistant.PeriodLastHalfYear:
		return core.PeriodHalfYearly
	case assistant.PeriodYear, assistant.PeriodLastYear:
		return core.PeriodYearly
	default:
		return ""
	}
}
