package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/Andrew-O39/expense-vista/internal/core"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/services"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

type userResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.respondAccountError(w, r, err, "register")
	default:
		writeJSON(w, http.StatusCreated, toUserResponse(user))
	}
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "invalid or expired verification token")
			return
		}
		s.respondAccountError(w, r, err, "verify email")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVerifyEmailLink serves the link clicked from the verification
// email, which arrives as a GET with the token in the query string.
func (s *Server) handleVerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := s.accounts.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "invalid or expired verification token")
			return
		}
		s.respondAccountError(w, r, err, "verify email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.accounts.ResendVerification(r.Context(), req.Email); err != nil {
		s.respondAccountError(w, r, err, "resend verification")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := s.accounts.Login(r.Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrNotVerified):
		writeError(w, http.StatusForbidden, "email not verified")
	case err != nil:
		s.respondAccountError(w, r, err, "login")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"token_type":   "bearer",
			"user":         toUserResponse(user),
		})
	}
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.respondAccountError(w, r, err, "forgot password")
		return
	}
	// Accepted regardless of whether the address exists.
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.accounts.ResetPassword(r.Context(), req.Token, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "invalid or expired reset token")
	case errors.Is(err, services.ErrWeakPassword):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.respondAccountError(w, r, err, "reset password")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	user, err := s.repo.GetUserByID(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		s.respondAccountError(w, r, err, "load account")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// respondAccountError maps validation errors to 422 and everything else to
// a logged 500.
func (s *Server) respondAccountError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, core.ErrEmptyUsername) ||
		errors.Is(err, core.ErrEmptyEmail) ||
		errors.Is(err, services.ErrWeakPassword) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	applog.FromContext(r.Context()).ErrorContext(r.Context(), op+" failed", applog.FieldError, err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}
