package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Andrew-O39/expense-vista/internal/core"
)

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	b.Category = strings.ToLower(strings.TrimSpace(b.Category))

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, limit_amount, category, period, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.LimitAmount.String(), b.Category, b.Period, b.Notes,
		toMicros(now), toMicros(now))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget id: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, limit_amount, category, period, notes, created_at, updated_at
		 FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	return b, err
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64, period string, f ListFilter) ([]core.Budget, error) {
	query := `SELECT id, user_id, limit_amount, category, period, notes, created_at, updated_at
		 FROM budgets WHERE user_id = ?`
	args := []any{userID}
	if period != "" {
		query += ` AND period = ?`
		args = append(args, period)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, strings.ToLower(f.Category))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.limit(), f.Offset)

	return r.queryBudgets(ctx, query, args...)
}

// BudgetsFor returns budgets of one period class created no later than
// createdBefore, newest first. The assistant's latest-wins dedup relies on
// that ordering.
func (r *SQLiteRepository) BudgetsFor(ctx context.Context, userID int64, period, category string, createdBefore time.Time) ([]core.Budget, error) {
	query := `SELECT id, user_id, limit_amount, category, period, notes, created_at, updated_at
		 FROM budgets WHERE user_id = ? AND period = ? AND created_at <= ?`
	args := []any{userID, period, toMicros(createdBefore)}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, strings.ToLower(category))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return r.queryBudgets(ctx, query, args...)
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET limit_amount = ?, category = ?, period = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		b.LimitAmount.String(), strings.ToLower(strings.TrimSpace(b.Category)), b.Period, b.Notes,
		toMicros(time.Now().UTC()), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) queryBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(scan func(...any) error) (core.Budget, error) {
	var (
		b       core.Budget
		limit   string
		created int64
		updated int64
	)
	if err := scan(&b.ID, &b.UserID, &limit, &b.Category, &b.Period, &b.Notes, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, err
		}
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	var err error
	b.LimitAmount, err = parseMoney(limit)
	if err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = fromMicros(created)
	b.UpdatedAt = fromMicros(updated)
	return b, nil
}
