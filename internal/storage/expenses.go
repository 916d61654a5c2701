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

// ListFilter bounds list queries. Zero times mean unbounded; Limit zero
// means the default page size. Search matches as a case-insensitive
// substring against the free-text columns of each table.
type ListFilter struct {
	Category string
	Search   string
	Start    time.Time
	End      time.Time
	Limit    int
	Offset   int
}

const defaultPageSize = 50

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return defaultPageSize
	}
	if f.Limit > 500 {
		return 500
	}
	return f.Limit
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Category = strings.ToLower(strings.TrimSpace(e.Category))

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, amount, description, category, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Amount.String(), e.Description, e.Category, e.Notes,
		toMicros(e.CreatedAt), toMicros(e.CreatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense id: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, description, category, notes, created_at
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	return scanExpense(row)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, f ListFilter) ([]core.Expense, error) {
	query := `SELECT id, user_id, amount, description, category, notes, created_at
		 FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, strings.ToLower(f.Category))
	}
	if f.Search != "" {
		query += ` AND (description LIKE ? OR notes LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if !f.Start.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, toMicros(f.Start))
	}
	if !f.End.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, toMicros(f.End))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.limit(), f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpenseRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, description = ?, category = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		e.Amount.String(), e.Description, strings.ToLower(strings.TrimSpace(e.Category)), e.Notes,
		toMicros(time.Now().UTC()), e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res)
}

func scanExpense(row *sql.Row) (core.Expense, error) {
	var (
		e       core.Expense
		amount  string
		created int64
	)
	err := row.Scan(&e.ID, &e.UserID, &amount, &e.Description, &e.Category, &e.Notes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Amount, err = parseMoney(amount)
	if err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = fromMicros(created)
	return e, nil
}

func scanExpenseRows(rows *sql.Rows) (core.Expense, error) {
	var (
		e       core.Expense
		amount  string
		created int64
	)
	if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Description, &e.Category, &e.Notes, &created); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	var err error
	e.Amount, err = parseMoney(amount)
	if err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = fromMicros(created)
	return e, nil
}
