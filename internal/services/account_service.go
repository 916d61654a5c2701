package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Andrew-O39/expense-vista/internal/auth"
	"github.com/Andrew-O39/expense-vista/internal/core"
	"github.com/Andrew-O39/expense-vista/internal/email"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
	minPasswordLen = 8
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("email not verified")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrUserExists         = errors.New("username or email already taken")
)

// UserStore is the persistence surface for account management.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	MarkUserVerified(ctx context.Context, userID int64) error
	UpdateUserPassword(ctx context.Context, userID int64, hashedPassword string) error
	CreateAuthToken(ctx context.Context, userID int64, tokenHash, purpose string, expiresAt time.Time) error
	ConsumeAuthToken(ctx context.Context, tokenHash, purpose string) (int64, error)
}

// AccountService implements registration, email verification, login and
// password recovery. Verification and reset links point at the frontend,
// which relays the embedded token back to the API.
type AccountService struct {
	store       UserStore
	issuer      *auth.TokenIssuer
	mailer      email.Mailer
	frontendURL string
	log         *applog.Logger
	now         func() time.Time
}

func NewAccountService(store UserStore, issuer *auth.TokenIssuer, mailer email.Mailer, frontendURL string, logger *applog.Logger) *AccountService {
	return &AccountService{
		store:       store,
		issuer:      issuer,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         logger.WithComponent(applog.ComponentAuth),
		now:         time.Now,
	}
}

// Register creates an unverified account and emails a verification link.
func (s *AccountService) Register(ctx context.Context, username, emailAddr, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	if err := (core.User{Username: username, Email: emailAddr}).Validate(); err != nil {
		return core.User{}, err
	}
	if len(password) < minPasswordLen {
		return core.User{}, ErrWeakPassword
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}

	user, err := s.store.CreateUser(ctx, username, emailAddr, hashed)
	if errors.Is(err, storage.ErrDuplicate) {
		return core.User{}, ErrUserExists
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		// The account exists; the user can request a fresh link.
		s.log.WarnContext(ctx, "verification email failed",
			applog.FieldUserID, user.ID, applog.FieldError, err.Error())
	}
	return user, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.store.ConsumeAuthToken(ctx, hashToken(token), storage.TokenPurposeVerifyEmail)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if err := s.store.MarkUserVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.log.InfoContext(ctx, "email verified", applog.FieldUserID, userID)
	return nil
}

// Login checks credentials and returns a signed access token. The login
// field accepts a username or an email address.
func (s *AccountService) Login(ctx context.Context, login, password string) (string, core.User, error) {
	login = strings.TrimSpace(login)

	var user core.User
	var err error
	if strings.Contains(login, "@") {
		user, err = s.store.GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.store.GetUserByUsername(ctx, login)
	}
	if errors.Is(err, storage.ErrNotFound) {
		// Burn a hash comparison so lookups and mismatches take similar time.
		auth.VerifyPassword(password, "$2a$10$invalidsaltinvalidsaltinvalidsalt1234567890123456789")
		return "", core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", core.User{}, fmt.Errorf("load user: %w", err)
	}

	if !auth.VerifyPassword(password, user.HashedPassword) {
		return "", core.User{}, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return "", core.User{}, ErrNotVerified
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return "", core.User{}, err
	}
	return token, user, nil
}

// RequestPasswordReset emails a reset link when the address is known. It
// never reveals whether an account exists.
func (s *AccountService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	user, err := s.store.GetUserByEmail(ctx, emailAddr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	token, err := s.issueToken(ctx, user.ID, storage.TokenPurposePasswordReset, resetTokenTTL)
	if err != nil {
		return err
	}

	link := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	subject, body, err := email.PasswordResetEmail(user.Username, link)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	s.log.InfoContext(ctx, "password reset requested", applog.FieldUserID, user.ID)
	return nil
}

// ResetPassword consumes a reset token and stores the new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	userID, err := s.store.ConsumeAuthToken(ctx, hashToken(token), storage.TokenPurposePasswordReset)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hashed); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.InfoContext(ctx, "password reset", applog.FieldUserID, userID)
	return nil
}

// ResendVerification issues a fresh verification link for an unverified
// account. Silently succeeds for unknown or already verified addresses.
func (s *AccountService) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.IsVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

func (s *AccountService) sendVerification(ctx context.Context, user core.User) error {
	token, err := s.issueToken(ctx, user.ID, storage.TokenPurposeVerifyEmail, verifyTokenTTL)
	if err != nil {
		return err
	}

	link := s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
	subject, body, err := email.VerificationEmail(user.Username, link)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *AccountService) issueToken(ctx context.Context, userID int64, purpose string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().UTC().Add(ttl)
	if err := s.store.CreateAuthToken(ctx, userID, hashToken(token), purpose, expiresAt); err != nil {
		return "", fmt.Errorf("store %s token: %w", purpose, err)
	}
	return token, nil
}

// newToken returns 32 bytes of hex-encoded randomness. Only its SHA-256
// digest is persisted.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
