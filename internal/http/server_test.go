package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew-O39/expense-vista/internal/assistant"
	"github.com/Andrew-O39/expense-vista/internal/auth"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/services"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

type recordingMailer struct {
	bodies []string
}

func (m *recordingMailer) Send(_ context.Context, _, _, htmlBody string) error {
	m.bodies = append(m.bodies, htmlBody)
	return nil
}

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.bodies)
	body := m.bodies[len(m.bodies)-1]
	idx := strings.Index(body, "token=")
	require.NotEqual(t, -1, idx)
	token := body[idx+len("token="):]
	if end := strings.IndexAny(token, "\"&<"); end != -1 {
		token = token[:end]
	}
	return token
}

type testEnv struct {
	ts     *httptest.Server
	mailer *recordingMailer
	repo   *storage.SQLiteRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	issuer := auth.NewTokenIssuer("integration-test-secret", time.Hour)
	mailer := &recordingMailer{}
	accounts := services.NewAccountService(repo, issuer, mailer, "http://localhost:3000", logger)
	alerts := services.NewAlertService(repo, nil, logger)
	summaries := services.NewSummaryService(repo, logger)
	suggestions := services.NewSuggestionService(repo, logger)
	assistantSvc := assistant.NewService(repo, nil, logger)

	srv := NewServer(ServerConfig{Port: "0", RateLimitPerMinute: 10000},
		repo, accounts, alerts, summaries, suggestions, assistantSvc, issuer, logger)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.limiter.shutdown)

	return &testEnv{ts: ts, mailer: mailer, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

// registerAndLogin walks the full signup flow and returns an access token.
func (e *testEnv) registerAndLogin(t *testing.T, username, email string) string {
	t.Helper()

	resp, _ := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{
		"token": e.mailer.lastToken(t),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"login": username, "password": "s3cretpass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	// Login is rejected until the email is verified.
	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"login": "alice", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{
		"token": env.mailer.lastToken(t),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"login": "alice@example.com", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["access_token"].(string)

	resp, body = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, true, body["is_verified"])

	// Duplicate registration conflicts.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Wrong password.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"login": "alice", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordResetEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "alice", "alice@example.com")

	// Unknown address still gets 202.
	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{
		"email": "ghost@example.com",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resetToken := env.mailer.lastToken(t)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/reset-password", "", map[string]string{
		"token": resetToken, "password": "newpassword1",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"login": "alice", "password": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVerifyEmailLink(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The emailed link is a plain GET with the token in the query string.
	resp, body := env.do(t, http.MethodGet, "/api/v1/auth/verify-email?token="+env.mailer.lastToken(t), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "verified", body["status"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"login": "carol", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/verify-email", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/expenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/expenses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpenseCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, body := env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "12.50", "description": "lunch", "category": "Food",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "food", body["category"], "categories are normalized to lowercase")
	assert.EqualValues(t, 1, body["id"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/expenses", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["expenses"], 1)

	resp, body = env.do(t, http.MethodPut, "/api/v1/expenses/1", token, map[string]any{
		"amount": "15.00", "description": "lunch out", "category": "food",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lunch out", body["description"])

	// Another user cannot see or delete it.
	otherToken := env.registerAndLogin(t, "bob", "bob@example.com")
	resp, _ = env.do(t, http.MethodGet, "/api/v1/expenses/1", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/expenses/1", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/expenses/1", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Validation failures.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "0", "category": "food",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "10", "category": "",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExpenseListSearch(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	for _, e := range []map[string]any{
		{"amount": "12.50", "description": "lunch at the deli", "category": "food"},
		{"amount": "30.00", "description": "cinema tickets", "category": "leisure"},
	} {
		resp, _ := env.do(t, http.MethodPost, "/api/v1/expenses", token, e)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/v1/expenses?q=deli", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["expenses"], 1)
	first := body["expenses"].([]any)[0].(map[string]any)
	assert.Equal(t, "lunch at the deli", first["description"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/expenses?q=parking", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["expenses"])
}

func TestSuggestCategoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	// Keyword fallback before anything is learned.
	resp, body := env.do(t, http.MethodPost, "/api/v1/expenses/suggest-category", token, map[string]string{
		"description": "uber to the airport",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "transport", body["suggested_category"])
	assert.InDelta(t, 0.7, body["confidence"].(float64), 0.001)

	// Creating an expense teaches the description-to-category pairing.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "4.50", "description": "coffee with sam", "category": "entertainment",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/v1/expenses/suggest-category", token, map[string]string{
		"description": "Coffee  with Sam",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "entertainment", body["suggested_category"])
	assert.InDelta(t, 0.95, body["confidence"].(float64), 0.001)

	// No signal at all still answers, with zero confidence.
	resp, body = env.do(t, http.MethodPost, "/api/v1/expenses/suggest-category", token, map[string]string{
		"description": "",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["suggested_category"])
	assert.Zero(t, body["confidence"])
}

func TestIncomeCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, body := env.do(t, http.MethodPost, "/api/v1/incomes", token, map[string]any{
		"amount": "2500.00", "source": "Salary",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "salary", body["source"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/incomes?source=salary", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["incomes"], 1)

	resp, body = env.do(t, http.MethodGet, "/api/v1/incomes?source=freelance", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["incomes"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/incomes", token, map[string]any{
		"amount": "100.00", "source": "",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBudgetCRUDAndValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, body := env.do(t, http.MethodPost, "/api/v1/budgets", token, map[string]any{
		"limit_amount": "400.00", "category": "groceries", "period": "monthly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "monthly", body["period"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/budgets", token, map[string]any{
		"limit_amount": "400.00", "category": "groceries", "period": "fortnightly",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/budgets?period=fortnightly", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/budgets?period=monthly", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["budgets"], 1)
}

func TestBudgetAlertFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/budgets", token, map[string]any{
		"limit_amount": "100.00", "category": "groceries", "period": "monthly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "120.00", "description": "big shop", "category": "groceries",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Alert evaluation runs off the request path.
	require.Eventually(t, func() bool {
		resp, body := env.do(t, http.MethodGet, "/api/v1/alerts", token, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		alerts, _ := body["alerts"].([]any)
		if len(alerts) == 0 {
			return false
		}
		first := alerts[0].(map[string]any)
		return first["type"] == "limit_exceeded" && first["category"] == "groceries"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSummaryEndpointAndCache(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "50.00", "description": "groceries", "category": "groceries",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/incomes", token, map[string]any{
		"amount": "2000.00", "source": "salary",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/summary?period=month", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "month", body["period"])
	assert.Equal(t, "50", body["total_spent"])
	assert.Equal(t, "2000", body["total_income"])
	assert.Equal(t, "1950", body["net"])
	assert.Empty(t, resp.Header.Get("X-Cache"))

	resp, _ = env.do(t, http.MethodGet, "/api/v1/summary?period=month", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))

	// A write invalidates cached summaries.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "10.00", "description": "snack", "category": "groceries",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/summary?period=month", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Cache"))
	assert.Equal(t, "60", body["total_spent"])
}

func TestOverviewEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "50.00", "description": "groceries", "category": "groceries",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "20.00", "description": "bus pass", "category": "transport",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/incomes", token, map[string]any{
		"amount": "2000.00", "source": "salary",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/overview?period=month", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "70", body["total_expenses"])
	assert.Equal(t, "2000", body["total_income"])
	assert.Equal(t, "1930", body["net_balance"])
	assert.Len(t, body["breakdown"], 2)

	// A category narrows expenses but never income, and drops the breakdown.
	resp, body = env.do(t, http.MethodGet, "/api/v1/overview?period=month&category=groceries", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "50", body["total_expenses"])
	assert.Equal(t, "2000", body["total_income"])
	assert.Nil(t, body["breakdown"])
}

func TestAssistantEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice", "alice@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"amount": "80.00", "description": "weekly shop", "category": "groceries",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/v1/assistant", token, map[string]string{
		"message": "how much did I spend on groceries this month",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply, _ := body["reply"].(string)
	assert.Contains(t, reply, "80")
	assert.Contains(t, reply, "groceries")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/assistant", token, map[string]string{
		"message": "   ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRateLimiting(t *testing.T) {
	limiter := newRateLimiter(3)
	defer limiter.shutdown()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow("10.1.2.3"))
	}
	assert.False(t, limiter.allow("10.1.2.3"))
	assert.True(t, limiter.allow("10.9.9.9"), "limits are per client")
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	assert.Equal(t, "203.0.113.7", extractClientIP(r), "untrusted peers cannot spoof")

	r.RemoteAddr = "10.0.0.5:1234"
	assert.Equal(t, "198.51.100.9", extractClientIP(r), "trusted proxies may forward")
}
