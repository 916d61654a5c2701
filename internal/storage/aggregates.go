package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

// Money sums are computed in Go from the stored decimal strings. SQLite
// would have to cast to floats to aggregate them, which loses exactness.

// SumExpenses totals expense amounts inside the inclusive window, optionally
// restricted to a category.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID int64, start, end time.Time, category string) (decimal.Decimal, error) {
	query := `SELECT amount FROM expenses WHERE user_id = ? AND created_at >= ? AND created_at <= ?`
	args := []any{userID, toMicros(start), toMicros(end)}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, strings.ToLower(category))
	}
	return r.sumAmounts(ctx, "sum expenses", query, args...)
}

// SumIncome totals income amounts inside the inclusive window, optionally
// restricted to a source.
func (r *SQLiteRepository) SumIncome(ctx context.Context, userID int64, start, end time.Time, source string) (decimal.Decimal, error) {
	query := `SELECT amount FROM incomes WHERE user_id = ? AND received_at >= ? AND received_at <= ?`
	args := []any{userID, toMicros(start), toMicros(end)}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, strings.ToLower(source))
	}
	return r.sumAmounts(ctx, "sum incomes", query, args...)
}

// SumExpensesByCategory returns per-category totals inside the window,
// ordered by descending total.
func (r *SQLiteRepository) SumExpensesByCategory(ctx context.Context, userID int64, start, end time.Time) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, amount FROM expenses WHERE user_id = ? AND created_at >= ? AND created_at <= ?`,
		userID, toMicros(start), toMicros(end))
	if err != nil {
		return nil, fmt.Errorf("expenses by category: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var category, amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("scan category amount: %w", err)
		}
		d, err := parseMoney(amount)
		if err != nil {
			return nil, err
		}
		totals[category] = totals[category].Add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.CategoryTotal, 0, len(totals))
	for category, total := range totals {
		out = append(out, core.CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// TopExpenseCategory returns the category with the largest spend in the
// window, or nil when there are no expenses at all.
func (r *SQLiteRepository) TopExpenseCategory(ctx context.Context, userID int64, start, end time.Time) (*core.CategoryTotal, error) {
	totals, err := r.SumExpensesByCategory(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, nil
	}
	top := totals[0]
	return &top, nil
}

func (r *SQLiteRepository) sumAmounts(ctx context.Context, op, query string, args ...any) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("%s scan: %w", op, err)
		}
		d, err := parseMoney(amount)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}
