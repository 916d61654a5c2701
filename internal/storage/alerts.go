package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

// CreateAlertLog records a triggered alert. A second alert of the same type
// for the same budget and period window hits the dedup index and comes back
// as ErrDuplicate, which callers treat as "already notified".
func (r *SQLiteRepository) CreateAlertLog(ctx context.Context, a core.AlertLog) (core.AlertLog, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_logs (user_id, budget_id, category, period, alert_type, message, period_start, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.BudgetID, a.Category, a.Period, a.Type, a.Message,
		toMicros(a.PeriodStart), toMicros(a.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.AlertLog{}, ErrDuplicate
		}
		return core.AlertLog{}, fmt.Errorf("create alert log: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return core.AlertLog{}, fmt.Errorf("create alert log id: %w", err)
	}
	return a, nil
}

// ListAlertLogs returns a user's alerts, newest first.
func (r *SQLiteRepository) ListAlertLogs(ctx context.Context, userID int64, f ListFilter) ([]core.AlertLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, budget_id, category, period, alert_type, message, period_start, created_at
		 FROM alert_logs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, f.limit(), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list alert logs: %w", err)
	}
	defer rows.Close()

	var out []core.AlertLog
	for rows.Next() {
		var (
			a           core.AlertLog
			periodStart int64
			created     int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.BudgetID, &a.Category, &a.Period, &a.Type,
			&a.Message, &periodStart, &created); err != nil {
			return nil, fmt.Errorf("scan alert log: %w", err)
		}
		a.PeriodStart = fromMicros(periodStart)
		a.CreatedAt = fromMicros(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
