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

// Token purposes stored alongside auth tokens.
const (
	TokenPurposeVerifyEmail   = "verify_email"
	TokenPurposePasswordReset = "password_reset"
)

// CreateUser inserts a new account. Username and email collisions surface as
// ErrDuplicate.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, hashedPassword string) (core.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, hashed_password, is_verified, created_at) VALUES (?, ?, ?, 0, ?)`,
		username, strings.ToLower(email), hashedPassword, toMicros(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ErrDuplicate
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user id: %w", err)
	}
	return core.User{
		ID:             id,
		Username:       username,
		Email:          strings.ToLower(email),
		HashedPassword: hashedPassword,
		CreatedAt:      now,
	}, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, hashed_password, is_verified, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, hashed_password, is_verified, created_at FROM users WHERE email = ?`,
		strings.ToLower(email)))
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, hashed_password, is_verified, created_at FROM users WHERE username = ?`, username))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var (
		u        core.User
		verified int64
		created  int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &verified, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.IsVerified = verified != 0
	u.CreatedAt = fromMicros(created)
	return u, nil
}

// MarkUserVerified flips the verification flag.
func (r *SQLiteRepository) MarkUserVerified(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified = 1 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return requireRow(res)
}

// UpdateUserPassword replaces the stored password hash.
func (r *SQLiteRepository) UpdateUserPassword(ctx context.Context, userID int64, hashedPassword string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET hashed_password = ? WHERE id = ?`, hashedPassword, userID)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return requireRow(res)
}

// CreateAuthToken stores a hashed single-use token for email verification or
// password reset.
func (r *SQLiteRepository) CreateAuthToken(ctx context.Context, userID int64, tokenHash, purpose string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (user_id, token_hash, purpose, expires_at, used, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		userID, tokenHash, purpose, toMicros(expiresAt), toMicros(time.Now().UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create auth token: %w", err)
	}
	return nil
}

// ConsumeAuthToken atomically validates and burns a token, returning the
// owning user. Expired, used and unknown tokens all come back as ErrNotFound.
func (r *SQLiteRepository) ConsumeAuthToken(ctx context.Context, tokenHash, purpose string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin token tx: %w", err)
	}
	defer tx.Rollback()

	var (
		id      int64
		userID  int64
		expires int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at FROM auth_tokens WHERE token_hash = ? AND purpose = ? AND used = 0`,
		tokenHash, purpose).Scan(&id, &userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load auth token: %w", err)
	}
	if fromMicros(expires).Before(time.Now().UTC()) {
		return 0, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE auth_tokens SET used = 1 WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("consume auth token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit token tx: %w", err)
	}
	return userID, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
