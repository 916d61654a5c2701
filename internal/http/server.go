package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Andrew-O39/expense-vista/internal/assistant"
	"github.com/Andrew-O39/expense-vista/internal/auth"
	"github.com/Andrew-O39/expense-vista/internal/cache"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/services"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

const (
	summaryCacheSize = 512
	summaryCacheTTL  = time.Minute
)

// Server wires the HTTP API together: account management, expense, income
// and budget CRUD, period summaries, alert history and the assistant
// endpoint.
type Server struct {
	repo        *storage.SQLiteRepository
	accounts    *services.AccountService
	alerts      *services.AlertService
	summaries   *services.SummaryService
	suggestions *services.SuggestionService
	assistant   *assistant.Service
	issuer      *auth.TokenIssuer
	log         *applog.Logger
	limiter     *rateLimiter

	// summaryCache holds recently built period summaries. Entries are keyed
	// by user, generation and period; writes bump the user's generation so
	// stale entries simply age out.
	summaryCache *cache.LRUCache[services.Summary]
	cacheManager *cache.Manager
	generations  sync.Map // userID -> *atomic.Int64

	httpServer *http.Server
}

type ServerConfig struct {
	Port               string
	RateLimitPerMinute int
}

func NewServer(
	cfg ServerConfig,
	repo *storage.SQLiteRepository,
	accounts *services.AccountService,
	alerts *services.AlertService,
	summaries *services.SummaryService,
	suggestions *services.SuggestionService,
	assistantSvc *assistant.Service,
	issuer *auth.TokenIssuer,
	logger *applog.Logger,
) *Server {
	s := &Server{
		repo:         repo,
		accounts:     accounts,
		alerts:       alerts,
		summaries:    summaries,
		suggestions:  suggestions,
		assistant:    assistantSvc,
		issuer:       issuer,
		log:          logger.WithComponent(applog.ComponentHTTP),
		limiter:      newRateLimiter(cfg.RateLimitPerMinute),
		summaryCache: cache.NewLRUCache[services.Summary](summaryCacheSize, summaryCacheTTL),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(summaryCacheTTL)

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.withObservability(s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/verify-email", s.handleVerifyEmail)
	mux.HandleFunc("GET /api/v1/auth/verify-email", s.handleVerifyEmailLink)
	mux.HandleFunc("POST /api/v1/auth/resend-verification", s.handleResendVerification)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/v1/auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("GET /api/v1/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("POST /api/v1/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("POST /api/v1/expenses/suggest-category", s.requireAuth(s.handleSuggestCategory))
	mux.HandleFunc("GET /api/v1/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("GET /api/v1/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.HandleFunc("PUT /api/v1/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("POST /api/v1/incomes", s.requireAuth(s.handleCreateIncome))
	mux.HandleFunc("GET /api/v1/incomes", s.requireAuth(s.handleListIncomes))
	mux.HandleFunc("GET /api/v1/incomes/{id}", s.requireAuth(s.handleGetIncome))
	mux.HandleFunc("PUT /api/v1/incomes/{id}", s.requireAuth(s.handleUpdateIncome))
	mux.HandleFunc("DELETE /api/v1/incomes/{id}", s.requireAuth(s.handleDeleteIncome))

	mux.HandleFunc("POST /api/v1/budgets", s.requireAuth(s.handleCreateBudget))
	mux.HandleFunc("GET /api/v1/budgets", s.requireAuth(s.handleListBudgets))
	mux.HandleFunc("GET /api/v1/budgets/{id}", s.requireAuth(s.handleGetBudget))
	mux.HandleFunc("PUT /api/v1/budgets/{id}", s.requireAuth(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/v1/budgets/{id}", s.requireAuth(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/v1/summary", s.requireAuth(s.handleSummary))
	mux.HandleFunc("GET /api/v1/overview", s.requireAuth(s.handleOverview))
	mux.HandleFunc("GET /api/v1/alerts", s.requireAuth(s.handleListAlerts))
	mux.HandleFunc("POST /api/v1/assistant", s.requireAuth(s.handleAssistant))

	return mux
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.limiter.shutdown()
	s.cacheManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// generation returns the user's current cache generation counter.
func (s *Server) generation(userID int64) *atomic.Int64 {
	gen, _ := s.generations.LoadOrStore(userID, new(atomic.Int64))
	return gen.(*atomic.Int64)
}

func (s *Server) summaryCacheKey(userID int64, period string) string {
	return fmt.Sprintf("%d:%d:%s", userID, s.generation(userID).Load(), period)
}

// invalidateSummaries makes all of a user's cached summaries unreachable.
func (s *Server) invalidateSummaries(userID int64) {
	s.generation(userID).Add(1)
}
