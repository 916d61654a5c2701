package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Category mappings remember which category a user filed a description
// under, keyed by the normalized description. One row per user+pattern;
// re-learning a pattern overwrites the previous category.

func (r *SQLiteRepository) UpsertCategoryMapping(ctx context.Context, userID int64, pattern, category, source string) error {
	now := toMicros(time.Now().UTC())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO category_maps (user_id, pattern, category, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, pattern) DO UPDATE SET category = excluded.category,
		     source = excluded.source, updated_at = excluded.updated_at`,
		userID, pattern, category, source, now, now)
	if err != nil {
		return fmt.Errorf("upsert category mapping: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CategoryMappingFor(ctx context.Context, userID int64, pattern string) (string, error) {
	var category string
	err := r.db.QueryRowContext(ctx,
		`SELECT category FROM category_maps WHERE user_id = ? AND pattern = ?`,
		userID, pattern).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup category mapping: %w", err)
	}
	return category, nil
}

// MostFrequentCategory returns the category the user files expenses under
// most often, by row count.
func (r *SQLiteRepository) MostFrequentCategory(ctx context.Context, userID int64) (string, error) {
	var category string
	err := r.db.QueryRowContext(ctx,
		`SELECT category FROM expenses WHERE user_id = ?
		 GROUP BY category ORDER BY COUNT(*) DESC, category LIMIT 1`,
		userID).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("most frequent category: %w", err)
	}
	return category, nil
}
