package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/amqp"
	"github.com/Andrew-O39/expense-vista/internal/assistant"
	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

// Budget thresholds, checked from most to least severe. Only the highest
// crossed threshold produces an alert.
var alertThresholds = []struct {
	ratio decimal.Decimal
	typ   string
}{
	{decimal.NewFromInt(1), core.AlertLimitExceeded},
	{decimal.NewFromFloat(0.8), core.AlertNearLimit},
	{decimal.NewFromFloat(0.5), core.AlertHalfLimit},
}

// periodClassKeys maps each budget period class to the canonical period key
// whose window it is checked against.
var periodClassKeys = map[string]string{
	core.PeriodWeekly:     assistant.PeriodWeek,
	core.PeriodMonthly:    assistant.PeriodMonth,
	core.PeriodQuarterly:  assistant.PeriodQuarter,
	core.PeriodHalfYearly: assistant.PeriodHalfYear,
	core.PeriodYearly:     assistant.PeriodYear,
}

// AlertStore is the persistence surface the alert checker needs.
type AlertStore interface {
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	BudgetsFor(ctx context.Context, userID int64, period, category string, createdBefore time.Time) ([]core.Budget, error)
	SumExpenses(ctx context.Context, userID int64, start, end time.Time, category string) (decimal.Decimal, error)
	CreateAlertLog(ctx context.Context, a core.AlertLog) (core.AlertLog, error)
}

// AlertPublisher hands a triggered alert to the notification queue.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, msg *amqp.AlertMessage) error
}

// AlertService evaluates budgets after spending changes and emits at most
// one alert per budget, threshold and period window.
type AlertService struct {
	store     AlertStore
	publisher AlertPublisher
	log       *applog.Logger
	now       func() time.Time
}

// NewAlertService builds the checker. publisher may be nil, which records
// alerts without queueing notifications.
func NewAlertService(store AlertStore, publisher AlertPublisher, logger *applog.Logger) *AlertService {
	return &AlertService{
		store:     store,
		publisher: publisher,
		log:       logger.WithComponent(applog.ComponentAlerts),
		now:       time.Now,
	}
}

// CheckCategory evaluates every budget covering the given category across
// all period classes. Called after an expense is created or updated.
func (s *AlertService) CheckCategory(ctx context.Context, userID int64, category string) error {
	category = strings.ToLower(strings.TrimSpace(category))
	now := s.now().UTC()

	for class, key := range periodClassKeys {
		window := assistant.RangeForKey(key, now)
		if err := s.checkClass(ctx, userID, class, category, window); err != nil {
			return err
		}
	}
	return nil
}

func (s *AlertService) checkClass(ctx context.Context, userID int64, class, category string, window assistant.Range) error {
	rows, err := s.store.BudgetsFor(ctx, userID, class, category, window.End)
	if err != nil {
		return fmt.Errorf("load %s budgets: %w", class, err)
	}
	if len(rows) == 0 {
		return nil
	}
	// Rows come newest first; the latest definition is authoritative.
	budget := rows[0]
	if !budget.LimitAmount.IsPositive() {
		return nil
	}

	spent, err := s.store.SumExpenses(ctx, userID, window.Start, window.End, category)
	if err != nil {
		return fmt.Errorf("sum %s spending: %w", category, err)
	}

	ratio := spent.Div(budget.LimitAmount)
	for _, threshold := range alertThresholds {
		if ratio.LessThan(threshold.ratio) {
			continue
		}
		return s.emit(ctx, budget, threshold.typ, spent, window)
	}
	return nil
}

func (s *AlertService) emit(ctx context.Context, budget core.Budget, alertType string, spent decimal.Decimal, window assistant.Range) error {
	message := alertText(alertType, budget, spent)

	_, err := s.store.CreateAlertLog(ctx, core.AlertLog{
		UserID:      budget.UserID,
		BudgetID:    budget.ID,
		Category:    budget.Category,
		Period:      budget.Period,
		Type:        alertType,
		Message:     message,
		PeriodStart: window.Start,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		// Already alerted for this window.
		return nil
	}
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}

	s.log.InfoContext(ctx, "budget alert triggered",
		applog.FieldUserID, budget.UserID,
		applog.FieldBudgetID, budget.ID,
		applog.FieldAlertType, alertType,
		applog.FieldCategory, budget.Category)

	if s.publisher == nil {
		return nil
	}

	user, err := s.store.GetUserByID(ctx, budget.UserID)
	if err != nil {
		return fmt.Errorf("load alert recipient: %w", err)
	}

	msg := amqp.NewAlertMessage(budget.UserID, budget.ID, user.Email, user.Username,
		budget.Category, budget.Period, alertType,
		spent.StringFixed(2), budget.LimitAmount.StringFixed(2), message)
	if err := s.publisher.PublishAlert(ctx, msg); err != nil {
		// Alert is recorded; notification delivery is best effort.
		s.log.WarnContext(ctx, "alert publish failed", applog.FieldError, err.Error())
	}
	return nil
}

func alertText(alertType string, budget core.Budget, spent decimal.Decimal) string {
	spentStr := core.FormatAmount(spent)
	limitStr := core.FormatAmount(budget.LimitAmount)
	switch alertType {
	case core.AlertLimitExceeded:
		return fmt.Sprintf("You've spent %s of your %s %s budget of %s.", spentStr, budget.Period, budget.Category, limitStr)
	case core.AlertNearLimit:
		return fmt.Sprintf("You've used over 80%% of your %s %s budget: %s of %s.", budget.Period, budget.Category, spentStr, limitStr)
	default:
		return fmt.Sprintf("You've used half of your %s %s budget: %s of %s.", budget.Period, budget.Category, spentStr, limitStr)
	}
}
