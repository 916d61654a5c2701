package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Budget period classes. A budget row is classified by one of these; the
// assistant maps resolved time windows onto the same vocabulary.
const (
	PeriodWeekly     = "weekly"
	PeriodMonthly    = "monthly"
	PeriodQuarterly  = "quarterly"
	PeriodHalfYearly = "half-yearly"
	PeriodYearly     = "yearly"
)

// Alert types recorded when spending crosses a budget threshold.
const (
	AlertHalfLimit     = "half_limit"
	AlertNearLimit     = "near_limit"
	AlertLimitExceeded = "limit_exceeded"
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptySource      = errors.New("empty source")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrEmptyUsername    = errors.New("empty username")
	ErrEmptyEmail       = errors.New("empty email")
)

type (
	User struct {
		ID             int64
		Username       string
		Email          string
		HashedPassword string
		IsVerified     bool
		CreatedAt      time.Time
	}

	Expense struct {
		ID          int64
		UserID      int64
		Amount      decimal.Decimal
		Description string
		Category    string
		Notes       string
		CreatedAt   time.Time
	}

	Income struct {
		ID         int64
		UserID     int64
		Amount     decimal.Decimal
		Source     string
		Category   string
		Notes      string
		ReceivedAt time.Time
		CreatedAt  time.Time
	}

	Budget struct {
		ID          int64
		UserID      int64
		LimitAmount decimal.Decimal
		Category    string
		Period      string
		Notes       string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	AlertLog struct {
		ID          int64
		UserID      int64
		BudgetID    int64
		Category    string
		Period      string
		Type        string
		Message     string
		PeriodStart time.Time
		CreatedAt   time.Time
	}

	// CategoryTotal is one category's aggregated spending in a window.
	CategoryTotal struct {
		Category string
		Total    decimal.Decimal
	}
)

// ValidPeriod reports whether p is one of the allowed budget period classes.
func ValidPeriod(p string) bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodHalfYearly, PeriodYearly:
		return true
	default:
		return false
	}
}

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (i Income) Validate() error {
	if !i.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if strings.TrimSpace(i.Source) == "" {
		return ErrEmptySource
	}
	if len(i.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.LimitAmount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if !ValidPeriod(b.Period) {
		return ErrInvalidPeriod
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyUsername
	}
	if !strings.Contains(u.Email, "@") {
		return ErrEmptyEmail
	}
	return nil
}
