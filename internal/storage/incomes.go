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

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	now := time.Now().UTC()
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = now
	}
	in.CreatedAt = now
	in.Source = strings.ToLower(strings.TrimSpace(in.Source))

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, amount, source, category, notes, received_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.Amount.String(), in.Source, strings.ToLower(in.Category), in.Notes,
		toMicros(in.ReceivedAt), toMicros(now))
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	in.ID, err = res.LastInsertId()
	if err != nil {
		return core.Income{}, fmt.Errorf("create income id: %w", err)
	}
	return in, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID, id int64) (core.Income, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, source, category, notes, received_at, created_at
		 FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
	in, err := scanIncome(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, ErrNotFound
	}
	return in, err
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID int64, f ListFilter) ([]core.Income, error) {
	query := `SELECT id, user_id, amount, source, category, notes, received_at, created_at
		 FROM incomes WHERE user_id = ?`
	args := []any{userID}
	if f.Category != "" {
		// For incomes, the filter's category slot matches the source.
		query += ` AND source = ?`
		args = append(args, strings.ToLower(f.Category))
	}
	if f.Search != "" {
		query += ` AND (source LIKE ? OR notes LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if !f.Start.IsZero() {
		query += ` AND received_at >= ?`
		args = append(args, toMicros(f.Start))
	}
	if !f.End.IsZero() {
		query += ` AND received_at <= ?`
		args = append(args, toMicros(f.End))
	}
	query += ` ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.limit(), f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		in, err := scanIncome(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, in core.Income) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET amount = ?, source = ?, category = ?, notes = ? WHERE id = ? AND user_id = ?`,
		in.Amount.String(), strings.ToLower(strings.TrimSpace(in.Source)), strings.ToLower(in.Category),
		in.Notes, in.ID, in.UserID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return requireRow(res)
}

func scanIncome(scan func(...any) error) (core.Income, error) {
	var (
		in       core.Income
		amount   string
		received int64
		created  int64
	)
	if err := scan(&in.ID, &in.UserID, &amount, &in.Source, &in.Category, &in.Notes, &received, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Income{}, err
		}
		return core.Income{}, fmt.Errorf("scan income: %w", err)
	}
	var err error
	in.Amount, err = parseMoney(amount)
	if err != nil {
		return core.Income{}, err
	}
	in.ReceivedAt = fromMicros(received)
	in.CreatedAt = fromMicros(created)
	return in, nil
}
